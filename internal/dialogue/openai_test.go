package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"voicecoach/internal/accounts"
)

func newServedClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return NewClientWithConfig(cfg, 2*time.Second, 2*time.Second)
}

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-3.5-turbo",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(b)
}

func TestGenerateParsesPolicyDecision(t *testing.T) {
	client := newServedClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionBody(`{"response":"Good. Keep at it.","should_end":true}`))
	})

	reply := client.Generate(context.Background(), "I finished everything", accounts.PersonalityStrict, nil)
	if reply.Text != "Good. Keep at it." || !reply.ShouldEnd || reply.Fallback {
		t.Fatalf("reply = %+v", reply)
	}
}

func TestGenerateSendsSystemPromptAndBoundedHistory(t *testing.T) {
	var got openai.ChatCompletionRequest
	client := newServedClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionBody(`{"response":"ok","should_end":false}`))
	})

	history := []Message{
		{Role: "user", Content: "one"},
		{Role: "assistant", Content: "two"},
		{Role: "user", Content: "three"},
		{Role: "assistant", Content: "four"},
		{Role: "user", Content: "five"},
	}
	client.Generate(context.Background(), "latest", accounts.PersonalitySarcastic, history)

	// system + HistoryWindow + current utterance
	if len(got.Messages) != HistoryWindow+2 {
		t.Fatalf("messages = %d, want %d", len(got.Messages), HistoryWindow+2)
	}
	if got.Messages[0].Role != "system" || got.Messages[0].Content != systemPrompts[accounts.PersonalitySarcastic] {
		t.Fatalf("system message = %+v", got.Messages[0])
	}
	if got.Messages[1].Content != "three" {
		t.Fatalf("oldest forwarded entry = %q, want three", got.Messages[1].Content)
	}
	last := got.Messages[len(got.Messages)-1]
	if last.Role != "user" || last.Content != "latest" {
		t.Fatalf("last message = %+v", last)
	}
	if got.MaxTokens != 80 {
		t.Fatalf("max tokens = %d", got.MaxTokens)
	}
}

func TestGenerateFallsBackPerPersonalityOnTransportFailure(t *testing.T) {
	client := newServedClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	seen := map[string]bool{}
	for _, p := range []accounts.Personality{
		accounts.PersonalityStrict,
		accounts.PersonalitySarcastic,
		accounts.PersonalitySupportive,
	} {
		reply := client.Generate(context.Background(), "hello", p, nil)
		if !reply.Fallback {
			t.Fatalf("%s: expected fallback reply", p)
		}
		if reply.ShouldEnd {
			t.Fatalf("%s: a failed turn must not end the call", p)
		}
		if reply.Text == "" {
			t.Fatalf("%s: fallback text empty", p)
		}
		if seen[reply.Text] {
			t.Fatalf("%s: fallback not distinct: %q", p, reply.Text)
		}
		seen[reply.Text] = true
	}
}

func TestGenerateMalformedJSONYieldsNeutralReply(t *testing.T) {
	client := newServedClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionBody("sure, I'll keep that in mind"))
	})

	reply := client.Generate(context.Background(), "hi", accounts.PersonalitySupportive, nil)
	if reply.Text != neutralReply || reply.ShouldEnd {
		t.Fatalf("reply = %+v", reply)
	}
}

func TestTranscribeReturnsText(t *testing.T) {
	client := newServedClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"text":"I wrote the report today"}`)
	})

	text, err := client.Transcribe(context.Background(), []byte("RIFFdata"), "en")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "I wrote the report today" {
		t.Fatalf("text = %q", text)
	}
}

func TestTranscribeRejectsEmptyAudio(t *testing.T) {
	client := newServedClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected for empty audio")
	})
	if _, err := client.Transcribe(context.Background(), nil, "en"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestTranscribeSurfacesGatewayError(t *testing.T) {
	client := newServedClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	if _, err := client.Transcribe(context.Background(), []byte("RIFF"), "en"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFallbackReplyUnknownPersonalityIsNeutral(t *testing.T) {
	if got := FallbackReply(accounts.Personality("grumpy")); got != neutralReply {
		t.Fatalf("got %q", got)
	}
}
