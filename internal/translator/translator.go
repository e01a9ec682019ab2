// Package translator turns free-form symptom descriptions into evidence.
//
// Translation runs an ordered chain of strategies and the first one that
// yields evidence wins. Within the expansion strategy every proposed
// symptom name goes through its own resolver chain. Nothing here returns an
// error: upstream failures are logged and treated as "no result".
package translator

import (
	"context"
	"strings"

	"github.com/healthsync/symptom-triage/internal/evidence"
	"github.com/healthsync/symptom-triage/internal/oracle"
	"github.com/healthsync/symptom-triage/internal/shared/metrics"
	"go.uber.org/zap"
)

// Oracle is the part of the diagnostic oracle the translator needs.
type Oracle interface {
	Parse(ctx context.Context, text string, p oracle.Patient) ([]evidence.Item, error)
	Suggest(ctx context.Context, name string, p oracle.Patient) (string, error)
}

// SymptomInterpreter proposes symptom names for vague text.
type SymptomInterpreter interface {
	InterpretVagueSymptoms(ctx context.Context, text string) []string
}

// Strategy is one step of the translation chain. An empty result means the
// next strategy should be tried.
type Strategy interface {
	Name() string
	Translate(ctx context.Context, text string, p oracle.Patient) []evidence.Item
}

// Resolver maps one symptom name to an oracle identifier.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, name string, p oracle.Patient) (string, bool)
}

// Translator runs the strategy chain.
type Translator struct {
	strategies []Strategy
	logger     *zap.Logger
}

// New builds the default chain: oracle mention extraction, then vague
// expansion resolved through the catalog, the suggestion endpoint and the
// static table.
func New(o Oracle, interp SymptomInterpreter, catalog *Catalog, logger *zap.Logger) *Translator {
	return NewWithStrategies(logger,
		&ParseStrategy{oracle: o, logger: logger},
		&ExpansionStrategy{
			interpreter: interp,
			resolvers: []Resolver{
				CatalogResolver{Catalog: catalog},
				&SuggestResolver{oracle: o, logger: logger},
				StaticResolver{},
			},
			logger: logger,
		},
	)
}

// NewWithStrategies builds a translator over an explicit chain.
func NewWithStrategies(logger *zap.Logger, strategies ...Strategy) *Translator {
	return &Translator{strategies: strategies, logger: logger}
}

// Translate returns evidence for text in discovery order, possibly empty.
func (t *Translator) Translate(ctx context.Context, text string, p oracle.Patient) []evidence.Item {
	text = evidence.NormalizeText(text)
	if text == "" {
		return nil
	}
	for _, s := range t.strategies {
		if items := s.Translate(ctx, text, p); len(items) > 0 {
			metrics.RecordTranslatorHit(s.Name())
			t.logger.Debug("translated symptoms",
				zap.String("strategy", s.Name()),
				zap.Int("items", len(items)),
			)
			return items
		}
	}
	metrics.RecordTranslatorHit("none")
	return nil
}

// ParseStrategy asks the oracle to extract mentions directly.
type ParseStrategy struct {
	oracle Oracle
	logger *zap.Logger
}

func (s *ParseStrategy) Name() string { return "parse" }

func (s *ParseStrategy) Translate(ctx context.Context, text string, p oracle.Patient) []evidence.Item {
	items, err := s.oracle.Parse(ctx, text, p)
	if err != nil {
		s.logger.Warn("oracle parse failed", zap.Error(err))
		return nil
	}
	var out []evidence.Item
	for _, it := range items {
		if it.SymptomID == "" || !it.Presence.Valid() {
			continue
		}
		out = append(out, it)
	}
	return out
}

// ExpansionStrategy asks the language model for likely symptom names and
// resolves each one. Names no resolver knows are dropped.
type ExpansionStrategy struct {
	interpreter SymptomInterpreter
	resolvers   []Resolver
	logger      *zap.Logger
}

func (s *ExpansionStrategy) Name() string { return "expansion" }

func (s *ExpansionStrategy) Translate(ctx context.Context, text string, p oracle.Patient) []evidence.Item {
	names := s.interpreter.InterpretVagueSymptoms(ctx, text)
	var out []evidence.Item
	for _, name := range names {
		id, ok := s.resolve(ctx, name, p)
		if !ok {
			s.logger.Warn("symptom could not be mapped", zap.String("symptom", name))
			continue
		}
		out = append(out, evidence.New(id, evidence.Present))
	}
	return out
}

func (s *ExpansionStrategy) resolve(ctx context.Context, name string, p oracle.Patient) (string, bool) {
	for _, r := range s.resolvers {
		if id, ok := r.Resolve(ctx, name, p); ok {
			s.logger.Debug("resolved symptom",
				zap.String("symptom", name),
				zap.String("resolver", r.Name()),
				zap.String("id", id),
			)
			return id, true
		}
	}
	return "", false
}

// CatalogResolver looks the name up in the cached vocabulary.
type CatalogResolver struct {
	Catalog *Catalog
}

func (CatalogResolver) Name() string { return "catalog" }

func (r CatalogResolver) Resolve(_ context.Context, name string, _ oracle.Patient) (string, bool) {
	return r.Catalog.Lookup(name)
}

// SuggestResolver takes the oracle's top suggestion.
type SuggestResolver struct {
	oracle Oracle
	logger *zap.Logger
}

func (*SuggestResolver) Name() string { return "suggest" }

func (r *SuggestResolver) Resolve(ctx context.Context, name string, p oracle.Patient) (string, bool) {
	id, err := r.oracle.Suggest(ctx, evidence.NormalizeText(name), p)
	if err != nil {
		r.logger.Warn("oracle suggest failed", zap.String("symptom", name), zap.Error(err))
		return "", false
	}
	return id, id != ""
}

// StaticResolver consults the built-in table of common symptoms.
type StaticResolver struct{}

func (StaticResolver) Name() string { return "static" }

func (StaticResolver) Resolve(_ context.Context, name string, _ oracle.Patient) (string, bool) {
	id, ok := staticSymptoms[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}
