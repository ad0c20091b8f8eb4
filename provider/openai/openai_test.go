package openai_provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mohammad-safakhou/tradescope/internal/httpclient"
)

func TestCompleteSendsJSONFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk" {
			t.Errorf("missing bearer token")
		}
		var got request
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		if got.Model != "gpt-4o-mini" || got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
			t.Errorf("unexpected request %+v", got)
		}
		if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.MaxTokens != 800 {
			t.Errorf("unexpected messages %+v", got.Messages)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  {\"decision\":\"PASS\"}  "}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk", srv.URL+"/", httpclient.New(time.Second, 0, 0))
	out, err := c.Complete(context.Background(), Request{System: "s", User: "u", Model: "gpt-4o-mini", MaxTokens: 800, Format: FormatJSON})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != `{"decision":"PASS"}` {
		t.Fatalf("unexpected content %q", out)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk", srv.URL, httpclient.New(time.Second, 0, 0))
	if _, err := c.Complete(context.Background(), Request{User: "u"}); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}
