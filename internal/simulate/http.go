package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/crease/internal/domain/model"
)

// ErrRejected marks a request the service answered with an error body.
var ErrRejected = errors.New("request rejected")

// APIError is a decoded error response.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
	Slot    string `json:"slot"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap lets callers match ErrRejected.
func (e *APIError) Unwrap() error { return ErrRejected }

// CommandResponse mirrors the body of a scoring command.
type CommandResponse struct {
	Status    string           `json:"status"`
	Duplicate bool             `json:"duplicate"`
	Version   uint64           `json:"version"`
	Score     model.MatchScore `json:"score"`
}

// HTTPClient talks to one scoring service.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *HTTPClient) health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *HTTPClient) setBattingTeam(ctx context.Context, matchID, teamID string) (CommandResponse, error) {
	var out CommandResponse
	err := c.do(ctx, http.MethodPut, "/matches/"+matchID+"/batting-team", map[string]string{"teamId": teamID}, &out)
	return out, err
}

func (c *HTTPClient) setPlayer(ctx context.Context, matchID, slot string, p model.Player) (CommandResponse, error) {
	var out CommandResponse
	err := c.do(ctx, http.MethodPut, "/matches/"+matchID+"/players/"+slot, p, &out)
	return out, err
}

func (c *HTTPClient) recordBall(ctx context.Context, matchID string, ev model.BallEvent) (CommandResponse, error) { //nolint:gocritic // hugeParam: events travel by value
	var out CommandResponse
	err := c.do(ctx, http.MethodPost, "/matches/"+matchID+"/balls", ev, &out)
	return out, err
}

func (c *HTTPClient) undo(ctx context.Context, matchID string) (CommandResponse, error) {
	var out CommandResponse
	err := c.do(ctx, http.MethodPost, "/matches/"+matchID+"/undo", nil, &out)
	return out, err
}

func (c *HTTPClient) score(ctx context.Context, matchID string) (model.MatchScore, error) {
	var out model.MatchScore
	err := c.do(ctx, http.MethodGet, "/matches/"+matchID+"/score", nil, &out)
	return out, err
}
