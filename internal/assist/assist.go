// Package assist calls the AI endpoints that generate test cases from a
// problem statement and estimate the complexity of a solution.
package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jxucoder/codegrounds/internal/harness"
)

// DefaultTimeout bounds a single assist call.
const DefaultTimeout = 30 * time.Second

// ErrUnsuccessful is returned when the service answers without success.
var ErrUnsuccessful = errors.New("assist request was not successful")

// Complexity is a Big-O estimate of a solution.
type Complexity struct {
	TimeComplexity  string `json:"timeComplexity"`
	SpaceComplexity string `json:"spaceComplexity"`
	Explanation     string `json:"explanation"`
	Bottleneck      string `json:"bottleneck,omitempty"`
}

// Assistant is the AI collaborator used by playground sessions.
type Assistant interface {
	GenerateTestCases(ctx context.Context, problemStatement, language string) ([]harness.TestCase, error)
	AnalyzeComplexity(ctx context.Context, code, language string) (*Complexity, error)
}

// Client implements Assistant over HTTP.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	client  *http.Client
}

// NewClient creates a client for the AI API at baseURL.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
		client:  http.DefaultClient,
	}
}

func (c *Client) GenerateTestCases(ctx context.Context, problemStatement, language string) ([]harness.TestCase, error) {
	var result struct {
		Success   bool               `json:"success"`
		TestCases []harness.TestCase `json:"testCases"`
	}
	err := c.post(ctx, "/generate-test-cases", map[string]string{
		"problemStatement": problemStatement,
		"language":         language,
	}, &result)
	if err != nil {
		return nil, err
	}
	if !result.Success || result.TestCases == nil {
		return nil, ErrUnsuccessful
	}
	return result.TestCases, nil
}

func (c *Client) AnalyzeComplexity(ctx context.Context, code, language string) (*Complexity, error) {
	var result struct {
		Success bool `json:"success"`
		Complexity
	}
	err := c.post(ctx, "/analyze-complexity", map[string]string{
		"code":     code,
		"language": language,
	}, &result)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, ErrUnsuccessful
	}
	return &result.Complexity, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("assist API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("assist API error (%d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
