// Package fitbit reads SpO2 and resting heart rate from the Fitbit Web API.
package fitbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/healthsync/symptom-triage/internal/adapters/wearable"
	"github.com/healthsync/symptom-triage/internal/shared/config"
	"github.com/healthsync/symptom-triage/internal/shared/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const dateLayout = "2006-01-02"

var errUnauthorized = errors.New("fitbit: unauthorized")

// Client implements wearable.Provider for Fitbit.
type Client struct {
	apiURL       string
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	now          func() time.Time
	logger       *zap.Logger

	mu     sync.Mutex
	tokens map[string]tokenEntry
}

// tokenEntry remembers tokens refreshed on the user's behalf. seed is the
// refresh token the caller supplied; a different seed means the user has
// logged in again and the entry is obsolete.
type tokenEntry struct {
	seed    string
	access  string
	refresh string
}

// New creates a Fitbit client.
func New(cfg config.WearableConfig, logger *zap.Logger) *Client {
	return &Client{
		apiURL:       strings.TrimRight(cfg.FitbitAPIURL, "/"),
		tokenURL:     cfg.FitbitTokenURL,
		clientID:     cfg.FitbitClientID,
		clientSecret: cfg.FitbitClientSecret,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		now:          time.Now,
		logger:       logger,
		tokens:       make(map[string]tokenEntry),
	}
}

func (c *Client) Name() string { return "fitbit" }

// GetBasicVitals fetches SpO2 and resting heart rate concurrently. A 401
// triggers one token refresh; a reading still missing falls back to
// yesterday's value.
func (c *Client) GetBasicVitals(ctx context.Context, creds wearable.Credentials) (wearable.Vitals, error) {
	if creds.AccessToken == "" {
		return wearable.Unavailable(), nil
	}

	sess := c.session(creds)
	today := c.now()
	var vitals wearable.Vitals

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := c.fetchWithFallback(gctx, sess, today, spo2Path, parseSpO2)
		vitals.SpO2 = r
		return err
	})
	g.Go(func() error {
		r, err := c.fetchWithFallback(gctx, sess, today, heartRatePath, parseHeartRate)
		vitals.HeartRate = r
		return err
	})
	err := g.Wait()

	metrics.RecordWearableFetch(c.Name(), err == nil && vitals.Any())
	if err != nil {
		c.logger.Warn("fitbit vitals incomplete", zap.String("user_id", creds.UserID), zap.Error(err))
	}
	return vitals, err
}

func spo2Path(date string) string {
	return "/1/user/-/spo2/date/" + date + ".json"
}

func heartRatePath(date string) string {
	return "/1/user/-/activities/heart/date/" + date + "/1d/1m.json"
}

func parseSpO2(body []byte) wearable.Reading {
	var resp struct {
		Value struct {
			Avg *float64 `json:"avg"`
		} `json:"value"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Value.Avg == nil {
		return wearable.Reading{}
	}
	return wearable.Value(*resp.Value.Avg)
}

func parseHeartRate(body []byte) wearable.Reading {
	var resp struct {
		ActivitiesHeart []struct {
			Value struct {
				RestingHeartRate *float64 `json:"restingHeartRate"`
			} `json:"value"`
		} `json:"activities-heart"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.ActivitiesHeart) == 0 {
		return wearable.Reading{}
	}
	if rhr := resp.ActivitiesHeart[0].Value.RestingHeartRate; rhr != nil {
		return wearable.Value(*rhr)
	}
	return wearable.Reading{}
}

func (c *Client) fetchWithFallback(ctx context.Context, sess *session, today time.Time, path func(string) string, parse func([]byte) wearable.Reading) (wearable.Reading, error) {
	body, err := c.get(ctx, sess, path(today.Format(dateLayout)))
	if errors.Is(err, errUnauthorized) {
		if rerr := c.refresh(ctx, sess, sess.accessToken()); rerr != nil {
			c.logger.Error("fitbit token refresh failed", zap.Error(rerr))
		} else {
			body, err = c.get(ctx, sess, path(today.Format(dateLayout)))
		}
	}
	if err == nil {
		return parse(body), nil
	}
	if ctx.Err() != nil {
		return wearable.Reading{}, ctx.Err()
	}

	yesterday := today.AddDate(0, 0, -1).Format(dateLayout)
	body, ferr := c.get(ctx, sess, path(yesterday))
	if ferr != nil {
		c.logger.Debug("fitbit fallback failed", zap.String("date", yesterday), zap.Error(ferr))
		return wearable.Reading{}, nil
	}
	return parse(body), nil
}

func (c *Client) get(ctx context.Context, sess *session, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+sess.accessToken())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusUnauthorized:
		return nil, errUnauthorized
	default:
		return nil, fmt.Errorf("fitbit %s: status %d", path, resp.StatusCode)
	}
}

// refresh exchanges the refresh token once per stale access token, so two
// concurrent 401s lead to a single token request.
func (c *Client) refresh(ctx context.Context, sess *session, stale string) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.access != stale {
		return nil
	}
	if sess.refresh == "" {
		return errors.New("no refresh token available")
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {sess.refresh},
		"client_id":     {c.clientID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, body)
	}

	var tok struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return errors.New("token response without access_token")
	}

	sess.access = tok.AccessToken
	if tok.RefreshToken != "" {
		sess.refresh = tok.RefreshToken
	}

	c.mu.Lock()
	c.tokens[sess.userID] = tokenEntry{seed: sess.seed, access: sess.access, refresh: sess.refresh}
	c.mu.Unlock()
	return nil
}

// session holds the tokens used by one GetBasicVitals call.
type session struct {
	userID string
	seed   string

	mu      sync.Mutex
	access  string
	refresh string
}

func (s *session) accessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access
}

func (c *Client) session(creds wearable.Credentials) *session {
	s := &session{
		userID:  creds.UserID,
		seed:    creds.RefreshToken,
		access:  creds.AccessToken,
		refresh: creds.RefreshToken,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.tokens[creds.UserID]; ok {
		if e.seed == creds.RefreshToken {
			s.access, s.refresh = e.access, e.refresh
		} else {
			delete(c.tokens, creds.UserID)
		}
	}
	return s
}
