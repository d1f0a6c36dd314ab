package hint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultBaseURL is the AI API base the stream endpoint hangs off.
const DefaultBaseURL = "http://localhost:5000/api/ai"

// Request is the input of one hint stream.
type Request struct {
	ProblemStatement string `json:"problemStatement"`
	Code             string `json:"code"`
	// Language is the display name ("Python"), not the playground id.
	Language string `json:"language"`
}

// Service opens hint streams. The returned body carries `data: ` frames and is
// closed by the caller.
type Service interface {
	Stream(ctx context.Context, req Request) (io.ReadCloser, error)
}

// HTTPService streams hints from the code-suggestion endpoint.
type HTTPService struct {
	url    string
	token  string
	client *http.Client
}

// NewHTTPService creates a service rooted at baseURL. token, if set, is sent as
// a bearer token.
func NewHTTPService(baseURL, token string) *HTTPService {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPService{
		url:    strings.TrimRight(baseURL, "/") + "/code-suggestion-stream",
		token:  token,
		client: http.DefaultClient,
	}
}

func (s *HTTPService) Stream(ctx context.Context, req Request) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if s.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("hint service error (%d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp.Body, nil
}
