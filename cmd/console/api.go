package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type progressPayload struct {
	Username string `json:"username"`
	Level    int    `json:"level"`
}

// progressClient talks to the API's cloud save endpoints.
type progressClient struct {
	client  *http.Client
	baseURL string
}

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

func (p *progressClient) get(username string) (int, error) {
	resp, err := p.client.Get(p.baseURL + "/v1/progress?username=" + url.QueryEscape(username))
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, apiError(resp.StatusCode, body, "failed to load progress")
	}

	var out progressPayload
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("failed to parse progress response: %w", err)
	}
	return out.Level, nil
}

func (p *progressClient) save(username string, level int) error {
	jsonData, err := json.Marshal(progressPayload{Username: username, Level: level})
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	resp, err := p.client.Post(p.baseURL+"/v1/progress", "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return apiError(resp.StatusCode, body, "failed to save progress")
	}
	return nil
}

func apiError(status int, body []byte, what string) error {
	var errorResp ErrorResponse
	if err := json.Unmarshal(body, &errorResp); err != nil || errorResp.Error == "" {
		return fmt.Errorf("API returned status %d: %s", status, string(body))
	}
	return fmt.Errorf("%s: %s", what, errorResp.Error)
}
