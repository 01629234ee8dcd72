package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/robot-engine/internal/services/session"
)

const (
	// PollInterval is how often to check the session while a run is in flight
	PollInterval = 100 * time.Millisecond
	// RunTimeout is max time to wait for a run to halt or complete
	RunTimeout = 30 * time.Second
)

// apiCall sends body as JSON and returns the status code and raw response.
func apiCall(ctx context.Context, client *http.Client, method, url string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to send %s %s: %w", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// GetSession retrieves the current view of a session
func GetSession(ctx context.Context, client *http.Client, baseURL string, id uuid.UUID) (*session.View, error) {
	status, body, err := apiCall(ctx, client, http.MethodGet, fmt.Sprintf("%s/v1/sessions/%s", baseURL, id), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("session endpoint returned %d: %s", status, string(body))
	}

	var view session.View
	if err := json.Unmarshal(body, &view); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &view, nil
}

// PollForRunEnd waits until the session's run has halted or completed.
func PollForRunEnd(ctx context.Context, client *http.Client, baseURL string, id uuid.UUID) (*session.View, error) {
	ctx, cancel := context.WithTimeout(ctx, RunTimeout)
	defer cancel()

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		view, err := GetSession(ctx, client, baseURL, id)
		if err != nil {
			return nil, err
		}
		if view.Phase == "halted" || view.Phase == "completed" {
			return view, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timeout waiting for run to finish (phase %s)", view.Phase)
		case <-ticker.C:
		}
	}
}
