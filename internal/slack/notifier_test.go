package slack

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/slack-go/slack"

	"github.com/jxucoder/codegrounds/internal/harness"
	"github.com/jxucoder/codegrounds/internal/playground"
)

func TestReportText(t *testing.T) {
	got := reportText(playground.RunSummary{
		Report:           harness.Report{Passed: 2, Failed: 1, Total: 3},
		ProblemStatement: strings.Repeat("x", 200),
	})
	if !strings.HasPrefix(got, ":x: *2/3 tests passed*\n") {
		t.Fatalf("unexpected text %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected truncated problem statement, got %q", got)
	}

	got = reportText(playground.RunSummary{Report: harness.Report{Passed: 1, Total: 1}})
	if got != ":white_check_mark: *1/1 tests passed*" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	in := strings.Repeat("é", 10)
	got := truncate(in, 6)
	if got != "ééé..." || !utf8.ValidString(got) {
		t.Fatalf("unexpected truncation %q", got)
	}
	if truncate(in, 10) != in {
		t.Fatal("a string within the limit must be unchanged")
	}
}

func TestNotifyTestsDonePosts(t *testing.T) {
	var channel, blocks string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat.postMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		r.ParseForm()
		channel = r.Form.Get("channel")
		blocks = r.Form.Get("blocks")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"channel":"C123","ts":"1.0"}`))
	}))
	defer srv.Close()

	n := NewNotifier("xoxb-test", "C123", nil, slack.OptionAPIURL(srv.URL+"/"))
	err := n.NotifyTestsDone(context.Background(), playground.RunSummary{
		SessionID: "s1",
		Language:  "python",
		Report:    harness.Report{Passed: 3, Total: 3},
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if channel != "C123" || !strings.Contains(blocks, "3/3 tests passed") {
		t.Fatalf("unexpected post channel=%q blocks=%q", channel, blocks)
	}
}
