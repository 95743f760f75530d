package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// sseResponse writes raw SSE lines as a streaming response.
func sseResponse(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "data: %s\n\n", line)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestStream_TextDeltas(t *testing.T) {
	srv := sseResponse(t,
		`{"choices":[{"delta":{"content":"Hel"}}]}`,
		`{"choices":[{"delta":{"content":"lo"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":4,"prompt_tokens_details":{"cached_tokens":3}}}`,
	)
	defer srv.Close()

	var deltas []string
	c := NewHTTPClient(srv.URL, "test-key")
	res, err := c.Stream(context.Background(), Request{Model: "gpt-4o-mini", Messages: []Message{{Role: RoleUser, Content: "hi"}}}, func(text string) {
		deltas = append(deltas, text)
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if res.Text != "Hello" {
		t.Errorf("Text = %q, want Hello", res.Text)
	}
	if strings.Join(deltas, "|") != "Hel|lo" {
		t.Errorf("deltas = %v", deltas)
	}
	if res.Usage.InputTokens != 12 || res.Usage.OutputTokens != 4 || res.Usage.CachedTokens != 3 {
		t.Errorf("Usage = %+v", res.Usage)
	}
	if res.FinishReason != "stop" {
		t.Errorf("FinishReason = %q, want stop", res.FinishReason)
	}
}

func TestStream_ToolCallAssembly(t *testing.T) {
	srv := sseResponse(t,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"search","arguments":"{\"qu"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"ery\":\"x\"}"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}],"usage":{"prompt_tokens":5,"completion_tokens":9}}`,
	)
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	res, err := c.Stream(context.Background(), Request{Model: "gpt-4o"}, nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if len(res.ToolCalls) != 1 {
		t.Fatalf("len(ToolCalls) = %d, want 1", len(res.ToolCalls))
	}
	tc := res.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "search" {
		t.Errorf("tool call = %+v", tc)
	}
	if string(tc.Args) != `{"query":"x"}` {
		t.Errorf("Args = %s", tc.Args)
	}
	if res.FinishReason != "tool_calls" {
		t.Errorf("FinishReason = %q", res.FinishReason)
	}
}

func TestStream_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	_, err := c.Stream(context.Background(), Request{Model: "gpt-4o"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error = %q, want status in message", err)
	}
}

func TestStream_MalformedChunksIgnored(t *testing.T) {
	srv := sseResponse(t,
		`not-json`,
		`{"choices":[{"delta":{"content":"ok"}}]}`,
	)
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	res, err := c.Stream(context.Background(), Request{Model: "gpt-4o"}, nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if res.Text != "ok" {
		t.Errorf("Text = %q, want ok", res.Text)
	}
}

func TestUsage_Add(t *testing.T) {
	u := Usage{InputTokens: 10, OutputTokens: 5, CachedTokens: 1}
	u.Add(Usage{InputTokens: 3, OutputTokens: 2, CachedTokens: 1})
	if u.InputTokens != 13 || u.OutputTokens != 7 || u.CachedTokens != 2 {
		t.Errorf("Usage = %+v", u)
	}
}
