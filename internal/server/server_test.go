package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jxucoder/codegrounds/internal/execution"
	"github.com/jxucoder/codegrounds/internal/hint"
	"github.com/jxucoder/codegrounds/internal/playground"
	"github.com/jxucoder/codegrounds/internal/store"
)

// echoExecutor prints its stdin back.
type echoExecutor struct{}

func (echoExecutor) Execute(_ context.Context, req execution.Request) (*execution.Result, error) {
	return &execution.Result{Stdout: req.Stdin}, nil
}

type staticHints struct{}

func (staticHints) Stream(context.Context, hint.Request) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("data: {\"type\":\"TOKEN\",\"content\":\"hi\"}\ndata: {\"type\":\"DONE\"}\n")), nil
}

type fakeSharer struct{ got *store.File }

func (f *fakeSharer) ShareFile(_ context.Context, file *store.File) (string, error) {
	f.got = file
	return "https://gist.example/abc", nil
}

func newTestServer(t *testing.T, sharer Sharer) (*Server, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	manager := playground.NewManager(playground.Deps{
		Executor: echoExecutor{},
		Hints:    staticHints{},
		Runs:     st,
	}, playground.Options{Debounce: time.Hour})
	t.Cleanup(manager.CloseAll)

	return NewWithDeps(":0", Deps{Sessions: manager, Store: st, Sharer: sharer}), st
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func createSession(t *testing.T, h http.Handler, body string) playground.State {
	t.Helper()
	w := do(t, h, http.MethodPost, "/api/sessions", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create session: %d %s", w.Code, w.Body.String())
	}
	return decodeBody[playground.State](t, w)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	w := do(t, srv.Handler(), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", w.Code, w.Body.String())
	}
}

func TestLanguages(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	w := do(t, srv.Handler(), http.MethodGet, "/api/languages", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"python"`) {
		t.Fatalf("expected python in %s", w.Body.String())
	}
}

func TestCreateSessionValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	if w := do(t, h, http.MethodPost, "/api/sessions", "not json"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad body, got %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/sessions", `{"language":"cobol"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown language, got %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/sessions/nope", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestEditUndoRedo(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()
	st := createSession(t, h, `{"language":"javascript"}`)
	base := "/api/sessions/" + st.ID

	if w := do(t, h, http.MethodPost, base+"/edit", `{"code":"let a = 1;"}`); w.Code != http.StatusOK {
		t.Fatalf("edit: %d %s", w.Code, w.Body.String())
	}
	undo := decodeBody[historyResponse](t, do(t, h, http.MethodPost, base+"/undo", ""))
	if !undo.Changed || undo.Code != st.Code.Code || !undo.CanRedo {
		t.Fatalf("unexpected undo %+v", undo)
	}
	redo := decodeBody[historyResponse](t, do(t, h, http.MethodPost, base+"/redo", ""))
	if !redo.Changed || redo.Code != "let a = 1;" {
		t.Fatalf("unexpected redo %+v", redo)
	}
	again := decodeBody[historyResponse](t, do(t, h, http.MethodPost, base+"/redo", ""))
	if again.Changed {
		t.Fatal("redo at the newest snapshot must not change anything")
	}
}

func TestRunAndTests(t *testing.T) {
	srv, st := newTestServer(t, nil)
	h := srv.Handler()
	sess := createSession(t, h, "")
	base := "/api/sessions/" + sess.ID

	out := decodeBody[playground.OutputState](t, do(t, h, http.MethodPost, base+"/run", `{"stdin":"hello"}`))
	if out.Output != "hello" || out.Failed {
		t.Fatalf("unexpected run output %+v", out)
	}

	w := do(t, h, http.MethodPut, base+"/testcases", `[{"input":"1","expectedOutput":"1"},{"input":"2","expectedOutput":"3"}]`)
	if w.Code != http.StatusOK {
		t.Fatalf("set cases: %d %s", w.Code, w.Body.String())
	}
	tests := decodeBody[playground.TestState](t, do(t, h, http.MethodPost, base+"/tests?wait=true", ""))
	if tests.Report.Total != 2 || tests.Report.Passed != 1 || tests.Report.Failed != 1 {
		t.Fatalf("unexpected report %+v", tests.Report)
	}

	// The run is recorded once tests_done has been published.
	deadline := time.Now().Add(2 * time.Second)
	for {
		runs, err := st.ListRuns(context.Background(), sess.ID)
		if err != nil {
			t.Fatalf("list runs: %v", err)
		}
		if len(runs) == 1 {
			if runs[0].Passed != 1 || runs[0].Total != 2 {
				t.Fatalf("unexpected recorded run %+v", runs[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("run was not recorded")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if w := do(t, h, http.MethodPut, base+"/testcases/9", `{"input":"x"}`); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing case, got %d", w.Code)
	}
	if w := do(t, h, http.MethodDelete, base+"/testcases/abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad index, got %d", w.Code)
	}
	if w := do(t, h, http.MethodDelete, base+"/testcases/1", ""); w.Code != http.StatusOK {
		t.Fatalf("remove case: %d", w.Code)
	}
	if got := decodeBody[playground.TestState](t, do(t, h, http.MethodGet, base+"/tests", "")); len(got.Cases) != 1 {
		t.Fatalf("expected one case left, got %d", len(got.Cases))
	}
}

func TestHintRequiresProblem(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()
	sess := createSession(t, h, `{"aiEnabled":true}`)
	base := "/api/sessions/" + sess.ID

	do(t, h, http.MethodPost, base+"/edit", `{"code":"x = 1"}`)
	if w := do(t, h, http.MethodPost, base+"/hint", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a problem, got %d", w.Code)
	}
	do(t, h, http.MethodPut, base+"/problem", `{"problemStatement":"add numbers"}`)
	if w := do(t, h, http.MethodPost, base+"/hint", ""); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d %s", w.Code, w.Body.String())
	}

	do(t, h, http.MethodPut, base+"/ai", `{"enabled":false}`)
	if w := do(t, h, http.MethodPost, base+"/hint", ""); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 when disabled, got %d", w.Code)
	}
}

func TestComplexityWithoutAssistant(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()
	sess := createSession(t, h, "")
	if w := do(t, h, http.MethodPost, "/api/sessions/"+sess.ID+"/complexity", ""); w.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", w.Code)
	}
}

func TestFilesLifecycle(t *testing.T) {
	sharer := &fakeSharer{}
	srv, _ := newTestServer(t, sharer)
	h := srv.Handler()
	sess := createSession(t, h, `{"language":"java","problemStatement":"sum"}`)
	base := "/api/sessions/" + sess.ID

	do(t, h, http.MethodPost, base+"/edit", `{"code":"class Main {}"}`)
	w := do(t, h, http.MethodPost, base+"/save", `{"name":"Sum.java"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("save: %d %s", w.Code, w.Body.String())
	}
	saved := decodeBody[store.File](t, w)
	if saved.ID == "" || saved.Code != "class Main {}" || saved.Language != "java" {
		t.Fatalf("unexpected saved file %+v", saved)
	}

	files := decodeBody[[]store.File](t, do(t, h, http.MethodGet, "/api/files", ""))
	if len(files) != 1 || files[0].Name != "Sum.java" {
		t.Fatalf("unexpected file list %+v", files)
	}

	other := createSession(t, h, "")
	opened := decodeBody[playground.State](t, do(t, h, http.MethodPost, "/api/files/"+saved.ID+"/open", `{"sessionId":"`+other.ID+`"}`))
	if opened.Code.Code != "class Main {}" || opened.Language.ID != "java" || opened.ProblemStatement != "sum" {
		t.Fatalf("unexpected opened state %+v", opened)
	}

	share := decodeBody[shareResponse](t, do(t, h, http.MethodPost, "/api/files/"+saved.ID+"/share", ""))
	if share.URL != "https://gist.example/abc" || sharer.got == nil || sharer.got.ID != saved.ID {
		t.Fatalf("unexpected share %+v", share)
	}

	if w := do(t, h, http.MethodDelete, "/api/files/"+saved.ID, ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/files/"+saved.ID, ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}

func TestShareWithoutSharer(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	if w := do(t, srv.Handler(), http.MethodPost, "/api/files/x/share", ""); w.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", w.Code)
	}
}

func TestSessionEventsStream(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	sess := createSession(t, srv.Handler(), "")

	resp, err := http.Get(ts.URL + "/api/sessions/" + sess.ID + "/events")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		for lines.Scan() {
			if strings.HasPrefix(lines.Text(), "event: ") {
				return strings.TrimPrefix(lines.Text(), "event: ")
			}
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return ""
	}
	if got := next(); got != string(EventState) {
		t.Fatalf("expected state first, got %q", got)
	}

	do(t, srv.Handler(), http.MethodPost, "/api/sessions/"+sess.ID+"/edit", `{"code":"y = 2"}`)
	if got := next(); got != string(playground.EventCode) {
		t.Fatalf("expected code event, got %q", got)
	}
}

func TestWebSocketCommands(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	sess := createSession(t, srv.Handler(), "")

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/" + sess.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first playground.Event
	if err := conn.ReadJSON(&first); err != nil || first.Type != EventState {
		t.Fatalf("expected state event, got %+v (%v)", first, err)
	}

	if err := conn.WriteJSON(wsCommand{Type: "edit", Code: "z = 3"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var ev struct {
		Type string               `json:"type"`
		Data playground.CodeState `json:"data"`
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Type != string(playground.EventCode) || ev.Data.Code != "z = 3" {
		t.Fatalf("unexpected event %+v", ev)
	}

	conn.WriteJSON(wsCommand{Type: "bogus"})
	var errMsg wsError
	if err := conn.ReadJSON(&errMsg); err != nil || errMsg.Type != "error" {
		t.Fatalf("expected an error message, got %+v (%v)", errMsg, err)
	}
}
