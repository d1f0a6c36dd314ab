package assist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGenerateTestCases(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate-test-cases" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"success":true,"testCases":[{"input":"1 2","expectedOutput":"3","description":"small"},{"input":"","expectedOutput":"0"}]}`))
	}))
	defer srv.Close()

	cases, err := NewClient(srv.URL, "secret", time.Second).GenerateTestCases(context.Background(), "add two numbers", "Python")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(cases) != 2 || cases[0].Input != "1 2" || cases[0].ExpectedOutput != "3" || cases[0].Description != "small" {
		t.Fatalf("unexpected cases %+v", cases)
	}
	if body["problemStatement"] != "add two numbers" || body["language"] != "Python" {
		t.Fatalf("unexpected request body %+v", body)
	}
}

func TestGenerateTestCasesUnsuccessful(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).GenerateTestCases(context.Background(), "p", "Python")
	if !errors.Is(err, ErrUnsuccessful) {
		t.Fatalf("expected ErrUnsuccessful, got %v", err)
	}
}

func TestAnalyzeComplexity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"timeComplexity":"O(n)","spaceComplexity":"O(1)","explanation":"single pass","bottleneck":"loop"}`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, "", time.Second).AnalyzeComplexity(context.Background(), "for x in y: pass", "Python")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if got.TimeComplexity != "O(n)" || got.SpaceComplexity != "O(1)" || got.Bottleneck != "loop" {
		t.Fatalf("unexpected complexity %+v", got)
	}
}

func TestAPIErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Code is required"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).AnalyzeComplexity(context.Background(), "", "Python")
	if err == nil || !strings.Contains(err.Error(), "Code is required") {
		t.Fatalf("expected API message in error, got %v", err)
	}
}
