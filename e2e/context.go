// Package e2e drives the placement service over real HTTP. The suite
// expects a running server and talks to it the way a lab client would:
// fetch a token, submit jobs, poll for results.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// TestContext carries shared state between steps: the HTTP client, the
// captured response, and identifiers saved by earlier steps.
type TestContext struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *http.Client

	accessToken string
	jobID       string

	lastStatus int
	lastBody   []byte
}

// NewTestContext reads the target service location and credentials from
// the environment. Defaults line up with the server's development
// fallbacks, so a bare `go run ./cmd/server` is a valid target.
func NewTestContext() *TestContext {
	return &TestContext{
		baseURL:      envOr("QPLACE_E2E_BASE_URL", "http://localhost:8080"),
		clientID:     envOr("QPLACE_E2E_CLIENT_ID", "qplace-client"),
		clientSecret: envOr("QPLACE_E2E_CLIENT_SECRET", "qplace-dev-secret"),
		client:       &http.Client{Timeout: 15 * time.Second},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// POST sends a JSON body to path. The saved access token, if any, is
// attached as a bearer credential.
func (tc *TestContext) POST(path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, tc.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if tc.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+tc.accessToken)
	}
	return tc.do(req)
}

// GET sends a GET request to path. Explicit headers win over the saved
// access token.
func (tc *TestContext) GET(path string, headers map[string]string) error {
	req, err := http.NewRequest(http.MethodGet, tc.baseURL+path, nil)
	if err != nil {
		return err
	}
	if tc.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+tc.accessToken)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return tc.do(req)
}

func (tc *TestContext) do(req *http.Request) error {
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	tc.lastStatus = resp.StatusCode
	tc.lastBody = body
	return nil
}

// GetResponseField returns one top-level field of the last JSON response.
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var parsed map[string]interface{}
	if err := json.Unmarshal(tc.lastBody, &parsed); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	value, ok := parsed[field]
	if !ok {
		return nil, fmt.Errorf("response has no field %q: %s", field, tc.lastBody)
	}
	return value, nil
}

// ResponseContains reports whether the last JSON response has the field.
func (tc *TestContext) ResponseContains(field string) bool {
	_, err := tc.GetResponseField(field)
	return err == nil
}

func (tc *TestContext) GetLastResponseStatus() int { return tc.lastStatus }

func (tc *TestContext) GetLastResponseBody() []byte { return tc.lastBody }

func (tc *TestContext) GetClientID() string { return tc.clientID }

func (tc *TestContext) GetClientSecret() string { return tc.clientSecret }

func (tc *TestContext) GetAccessToken() string { return tc.accessToken }

func (tc *TestContext) SetAccessToken(token string) { tc.accessToken = token }

func (tc *TestContext) ClearAccessToken() { tc.accessToken = "" }

func (tc *TestContext) GetJobID() string { return tc.jobID }

func (tc *TestContext) SetJobID(id string) { tc.jobID = id }
