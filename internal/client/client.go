// Package client is the game-side submission client: it packages a finished
// round into the canonical score payload and talks to the leaderboard
// service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bananagame/banago/internal/domain"
	"github.com/bananagame/banago/internal/errors"
)

const defaultTimeout = 15 * time.Second

type Config struct {
	// BaseURL is the service root, e.g. "http://localhost:8080".
	BaseURL string
	// Token is the bearer credential issued at login.
	Token string
	// Username is the authenticated principal's username. Candidates naming
	// anyone else are rejected locally.
	Username   string
	HTTPClient *http.Client
}

type Client struct {
	baseURL  string
	token    string
	username string
	hc       *http.Client
}

func New(c Config) *Client {
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:  c.BaseURL,
		token:    c.Token,
		username: c.Username,
		hc:       hc,
	}
}

type scorePayload struct {
	Username string    `json:"username"`
	Points   int       `json:"points"`
	Date     time.Time `json:"date"`
}

// Submit sends one score record. Identity mismatch and negative points are
// rejected before any network effect. Transport failures surface as
// unavailable errors; retrying is the caller's decision.
func (c *Client) Submit(ctx context.Context, rec domain.ScoreRecord) error {
	if rec.Username != c.username {
		return errors.Unauthenticatedf("client: candidate username %q does not match principal %q", rec.Username, c.username)
	}
	if rec.Points < 0 {
		return errors.InvalidArgumentf("client: points must not be negative")
	}

	body, err := json.Marshal(scorePayload{
		Username: rec.Username,
		Points:   rec.Points,
		Date:     rec.Date.UTC(),
	})
	if err != nil {
		return errors.Internal(err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/game/submit-score", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}
	return nil
}

type highestScoreResponse struct {
	Username     string `json:"username"`
	HighestScore int    `json:"highestScore"`
}

// FetchPersonalBest returns the user's best stored score. A user with no
// record yet yields ok=false with no error.
func (c *Client) FetchPersonalBest(ctx context.Context, username string) (points int, ok bool, err error) {
	if username != c.username {
		return 0, false, errors.Unauthenticatedf("client: username %q does not match principal %q", username, c.username)
	}

	resp, err := c.do(ctx, http.MethodGet, "/api/game/get-highest-score", nil)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, false, responseError(resp)
	}

	var hs highestScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil {
		return 0, false, errors.Unavailable(fmt.Errorf("client: decode response: %w", err))
	}
	return hs.HighestScore, true, nil
}

// SubmitIfFirst submits only when the user has no stored record yet. This is
// a display-flow convenience; the server's atomic upsert is what actually
// prevents duplicates.
func (c *Client) SubmitIfFirst(ctx context.Context, rec domain.ScoreRecord) (submitted bool, best int, err error) {
	best, ok, err := c.FetchPersonalBest(ctx, rec.Username)
	if err != nil {
		return false, 0, err
	}
	if ok {
		return false, best, nil
	}

	if err := c.Submit(ctx, rec); err != nil {
		return false, 0, err
	}
	return true, rec.Points, nil
}

// Leaderboard fetches up to top ranked entries.
func (c *Client) Leaderboard(ctx context.Context, top int) ([]domain.LeaderboardEntry, error) {
	if top <= 0 {
		return nil, errors.InvalidArgumentf("client: top must be greater than zero")
	}

	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/game/leaderboard?top=%d", top), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}

	var entries []domain.LeaderboardEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, errors.Unavailable(fmt.Errorf("client: decode response: %w", err))
	}
	return entries, nil
}

// Login authenticates against the service and returns a bearer token.
func Login(ctx context.Context, baseURL, username, password string, hc *http.Client) (string, error) {
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}

	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return "", errors.Internal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", errors.Internal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return "", errors.Unavailable(fmt.Errorf("client: login: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", responseError(resp)
	}

	var lr struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", errors.Unavailable(fmt.Errorf("client: decode login response: %w", err))
	}
	return lr.Token, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Internal(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, errors.Unavailable(fmt.Errorf("client: %s %s: %w", method, path, err))
	}
	return resp, nil
}

// responseError maps an HTTP failure back into the shared error model,
// keeping the server's message when one is present.
func responseError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	msg := body.Error
	if msg == "" {
		msg = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return errors.InvalidArgumentf("%s", msg)
	case http.StatusUnauthorized:
		return errors.Unauthenticatedf("%s", msg)
	case http.StatusNotFound:
		return errors.NotFoundf("%s", msg)
	default:
		return errors.Unavailable(fmt.Errorf("client: server returned %s: %s", resp.Status, msg))
	}
}
