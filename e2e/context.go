// Package e2e drives a running unikyc server through its HTTP API.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// TestContext carries HTTP state between steps of one scenario.
type TestContext struct {
	baseURL      string
	client       *http.Client
	accessToken  string
	adminToken   string
	address      string
	recordID     string
	shares       [][]byte
	lastStatus   int
	lastBody     []byte
	lastResponse map[string]any
}

// NewTestContext reads the target server and credentials from the environment.
// UNIKYC_E2E_TOKEN is a bearer token minted with `unikyc token <address>`.
func NewTestContext() *TestContext {
	return &TestContext{
		baseURL:     strings.TrimRight(os.Getenv("UNIKYC_E2E_URL"), "/"),
		client:      &http.Client{Timeout: 10 * time.Second},
		accessToken: os.Getenv("UNIKYC_E2E_TOKEN"),
		adminToken:  os.Getenv("UNIKYC_E2E_ADMIN_TOKEN"),
		address:     os.Getenv("UNIKYC_E2E_ADDRESS"),
	}
}

func (tc *TestContext) Reset() {
	tc.recordID = ""
	tc.shares = nil
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.lastResponse = nil
}

func (tc *TestContext) POST(path string, body any, headers map[string]string) error {
	return tc.do(http.MethodPost, path, body, headers)
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.do(http.MethodGet, path, nil, headers)
}

func (tc *TestContext) do(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, tc.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	tc.lastResponse = nil
	if len(tc.lastBody) > 0 {
		var parsed map[string]any
		if json.Unmarshal(tc.lastBody, &parsed) == nil {
			tc.lastResponse = parsed
		}
	}
	return nil
}

// GetResponseField looks up a dotted path such as "record.status".
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var cur any = tc.lastResponse
	for _, part := range strings.Split(field, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q not found in %s", field, tc.lastBody)
		}
		if cur, ok = obj[part]; !ok {
			return nil, fmt.Errorf("field %q not found in %s", field, tc.lastBody)
		}
	}
	return cur, nil
}

func (tc *TestContext) GetLastResponseStatus() int  { return tc.lastStatus }
func (tc *TestContext) GetLastResponseBody() []byte { return tc.lastBody }
func (tc *TestContext) GetAccessToken() string      { return tc.accessToken }
func (tc *TestContext) GetAdminToken() string       { return tc.adminToken }
func (tc *TestContext) GetAddress() string          { return tc.address }
func (tc *TestContext) GetRecordID() string         { return tc.recordID }
func (tc *TestContext) SetRecordID(recordID string) { tc.recordID = recordID }
func (tc *TestContext) GetShares() [][]byte         { return tc.shares }
func (tc *TestContext) SetShares(shares [][]byte)   { tc.shares = shares }
