// Package execution is the client for the remote sandboxed-execution service
// (a Piston-compatible /execute endpoint).
package execution

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
)

// DefaultURL is the public Piston API base.
const DefaultURL = "https://emkc.org/api/v2/piston"

// DefaultTimeout bounds a single execution call.
const DefaultTimeout = 30 * time.Second

// ErrUnrecognizedResponse is returned when the service answers with neither a
// run nor a compile section.
var ErrUnrecognizedResponse = errors.New("unrecognized execution response")

// Executor runs source code remotely. Implementations must be safe for
// concurrent use.
type Executor interface {
	Execute(ctx context.Context, req Request) (*Result, error)
}

// Request is one program execution.
type Request struct {
	Source   string
	Language string // playground language id, e.g. "cpp"
	Version  string
	FileName string // defaults to "main"
	Stdin    string
}

// Result is the captured output of one execution. CompileError is set when the
// program failed before it ran; Stdout/Stderr are then empty.
type Result struct {
	Stdout       string `json:"stdout"`
	Stderr       string `json:"stderr"`
	CompileError string `json:"compileError,omitempty"`
	ExitCode     *int   `json:"exitCode,omitempty"`
}

// Compiled reports whether the program got past the compile phase.
func (r *Result) Compiled() bool {
	return r.CompileError == ""
}

// ErrorKind classifies execution failures.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindStatus    ErrorKind = "status"
	KindDecode    ErrorKind = "decode"
)

// Error is a failed call to the execution service.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("execution service error (%d): %s", e.Status, e.Message)
	default:
		if e.Err != nil {
			return fmt.Sprintf("execution %s error: %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("execution %s error: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// dialects maps playground ids to the names the execution service expects.
var dialects = map[string]string{
	"cpp": "c++",
}

// Dialect returns the execution-service name for a playground language id.
func Dialect(languageID string) string {
	if d, ok := dialects[languageID]; ok {
		return d
	}
	return languageID
}

// Client calls a Piston-compatible execution API.
type Client struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewClient creates a client for the service at baseURL. Empty baseURL uses
// DefaultURL; a timeout <= 0 uses DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  http.DefaultClient,
	}
}

type wireFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type wireRequest struct {
	Language string     `json:"language"`
	Version  string     `json:"version"`
	Files    []wireFile `json:"files"`
	Stdin    string     `json:"stdin"`
}

type wireStage struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Code   *int   `json:"code"`
}

type wireResponse struct {
	Run     *wireStage `json:"run"`
	Compile *wireStage `json:"compile"`
	Message string     `json:"message"`
}

// Execute submits the program and waits for its output.
func (c *Client) Execute(ctx context.Context, req Request) (*Result, error) {
	name := req.FileName
	if name == "" {
		name = "main"
	}
	body, err := json.Marshal(wireRequest{
		Language: Dialect(req.Language),
		Version:  req.Version,
		Files:    []wireFile{{Name: name, Content: req.Source}},
		Stdin:    req.Stdin,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: KindStatus, Status: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	var wire wireResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, &Error{Kind: KindDecode, Err: err}
	}
	return decodeResult(wire)
}

func decodeResult(wire wireResponse) (*Result, error) {
	switch {
	case wire.Run != nil:
		return &Result{Stdout: wire.Run.Stdout, Stderr: wire.Run.Stderr, ExitCode: wire.Run.Code}, nil
	case wire.Compile != nil && wire.Compile.Stderr != "":
		return &Result{CompileError: wire.Compile.Stderr, ExitCode: wire.Compile.Code}, nil
	default:
		if wire.Message != "" {
			return nil, &Error{Kind: KindDecode, Message: wire.Message, Err: ErrUnrecognizedResponse}
		}
		return nil, &Error{Kind: KindDecode, Err: ErrUnrecognizedResponse}
	}
}

// Display renders an execution outcome the way the editor's output pane shows
// it. err is the error returned alongside res, if any.
func Display(res *Result, err error) string {
	if err != nil {
		if errors.Is(err, ErrUnrecognizedResponse) {
			return "Error executing code"
		}
		return "Error: " + err.Error()
	}
	if !res.Compiled() {
		return "Compilation Error:\n" + res.CompileError
	}
	switch {
	case res.Stdout != "":
		return res.Stdout
	case res.Stderr != "":
		return res.Stderr
	default:
		return "No output"
	}
}
