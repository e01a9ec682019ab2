// Package oracle is the HTTP client for the external diagnostic-reasoning
// service: mention extraction, symptom suggestion, differential diagnosis,
// triage and the symptom vocabulary.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/healthsync/symptom-triage/internal/evidence"
	"github.com/healthsync/symptom-triage/internal/shared/config"
	"github.com/healthsync/symptom-triage/internal/shared/metrics"
	"go.uber.org/zap"
)

// StatusError is returned when the oracle answers with a non-200 status.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("oracle %s: API error: %d", e.Endpoint, e.StatusCode)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Client talks to the oracle REST API.
type Client struct {
	baseURL    string
	appID      string
	appKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an oracle client from configuration.
func NewClient(cfg config.OracleConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		appID:   cfg.AppID,
		appKey:  cfg.AppKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// Parse extracts symptom mentions from free text.
func (c *Client) Parse(ctx context.Context, text string, p Patient) ([]evidence.Item, error) {
	var resp parseResponse
	req := textRequest{Text: text, Age: ageValue{p.Age}, Sex: p.Sex}
	if err := c.do(ctx, http.MethodPost, "/parse", req, &resp); err != nil {
		return nil, err
	}
	return resp.Mentions, nil
}

// Suggest returns the top symptom matching name, or "" when there is none.
func (c *Client) Suggest(ctx context.Context, name string, p Patient) (string, error) {
	var resp []Suggestion
	req := textRequest{Text: name, Age: ageValue{p.Age}, Sex: p.Sex, Limit: 1}
	if err := c.do(ctx, http.MethodPost, "/suggest", req, &resp); err != nil {
		return "", err
	}
	if len(resp) == 0 {
		return "", nil
	}
	return resp[0].ID, nil
}

// Diagnosis requests the next differential and follow-up question.
func (c *Client) Diagnosis(ctx context.Context, ev []evidence.Item, p Patient, interviewID string) (*DiagnosisResponse, error) {
	var resp DiagnosisResponse
	req := evidenceRequest{Sex: p.Sex, Age: ageValue{p.Age}, Evidence: nonNil(ev), InterviewID: interviewID}
	if err := c.do(ctx, http.MethodPost, "/diagnosis", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Triage requests the urgency classification for the evidence.
func (c *Client) Triage(ctx context.Context, ev []evidence.Item, p Patient, interviewID string) (*TriageResponse, error) {
	var resp TriageResponse
	req := evidenceRequest{Sex: p.Sex, Age: ageValue{p.Age}, Evidence: nonNil(ev), InterviewID: interviewID}
	if err := c.do(ctx, http.MethodPost, "/triage", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Symptoms lists the oracle's symptom vocabulary for an adult of the given age.
func (c *Client) Symptoms(ctx context.Context, age int) ([]Symptom, error) {
	var resp []Symptom
	endpoint := "/symptoms?age.value=" + strconv.Itoa(age)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", endpoint, err)
	}
	req.Header.Set("App-Id", c.appID)
	req.Header.Set("App-Key", c.appKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	label := metricLabel(endpoint)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordOracleRequest(label, 0, time.Since(start))
		return fmt.Errorf("oracle %s: %w", label, err)
	}
	defer resp.Body.Close()
	metrics.RecordOracleRequest(label, resp.StatusCode, time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("oracle %s: failed to read response: %w", label, err)
	}
	c.logger.Debug("oracle response",
		zap.String("endpoint", label),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
	)

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Endpoint: label, StatusCode: resp.StatusCode, Body: string(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("oracle %s: failed to decode response: %w", label, err)
	}
	return nil
}

func metricLabel(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	return strings.TrimPrefix(endpoint, "/")
}

// The oracle rejects a null evidence list.
func nonNil(ev []evidence.Item) []evidence.Item {
	if ev == nil {
		return []evidence.Item{}
	}
	return ev
}
