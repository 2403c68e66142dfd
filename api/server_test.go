package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openai/openai-go"

	"github.com/wardrobelab/chatpants"
	"github.com/wardrobelab/chatpants/api"
)

type stubLLM struct {
	reply string
	err   error
	calls int
}

func (s *stubLLM) New(context.Context, openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: s.reply}},
		},
	}, nil
}

func newTestServer(t *testing.T, llm chatpants.LLM) (*httptest.Server, chatpants.Store) {
	t.Helper()
	store, err := chatpants.NewBoltStore(filepath.Join(t.TempDir(), "chatpants.db"))
	if err != nil {
		t.Fatalf("Failed to initialize store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	controller := chatpants.NewController(store, llm, chatpants.DefaultModel)
	mux := http.NewServeMux()
	api.New(controller, store).Register(mux)

	ts := httptest.NewServer(api.WithCORS(mux))
	t.Cleanup(ts.Close)
	return ts, store
}

func postChat(t *testing.T, ts *httptest.Server, payload map[string]any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}
	resp, err := http.Post(ts.URL+"/api/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func TestChatTurn(t *testing.T) {
	ts, store := newTestServer(t, &stubLLM{reply: "Hello! Could you tell me your height and weight?"})

	resp := postChat(t, ts, map[string]any{
		"nickname": "p1",
		"message":  "hi",
		"group_id": "normal",
		"phase":    1,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Reply       string           `json:"reply"`
		ChatHistory []chatpants.Turn `json:"chatHistory"`
	}
	decodeBody(t, resp, &body)

	if body.Reply != "Hello! Could you tell me your height and weight?" {
		t.Fatalf("Unexpected reply: %q", body.Reply)
	}
	if len(body.ChatHistory) != 2 {
		t.Fatalf("Expected 2 turns in history, got %d", len(body.ChatHistory))
	}
	if body.ChatHistory[0].Speaker != "p1" || body.ChatHistory[1].Speaker != chatpants.SpeakerAssistant {
		t.Fatalf("Unexpected speakers: %+v", body.ChatHistory)
	}

	rec, err := store.LoadConversation(context.Background(), "p1", chatpants.GroupNormal)
	if err != nil {
		t.Fatalf("Expected persisted record, got %v", err)
	}
	if len(rec.Transcript) != 2 {
		t.Fatalf("Expected 2 persisted turns, got %d", len(rec.Transcript))
	}
}

func TestChatRejectsMissingFields(t *testing.T) {
	ts, store := newTestServer(t, &stubLLM{reply: "unused"})

	cases := []map[string]any{
		{"message": "hi", "group_id": "group1", "phase": 2},
		{"nickname": "p1", "group_id": "group1", "phase": 2},
		{"nickname": "p1", "message": "hi", "phase": 2},
		{"nickname": "p1", "message": "hi", "group_id": "group1"},
		{"nickname": "p1", "message": "hi", "group_id": "group9", "phase": 2},
		{"nickname": "p1", "message": "hi", "group_id": "group1", "phase": 7},
	}
	for i, payload := range cases {
		resp := postChat(t, ts, payload)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Case %d: expected 400, got %d", i, resp.StatusCode)
		}
	}

	// No record may be created by a rejected request.
	if _, err := store.LoadConversation(context.Background(), "p1", chatpants.Group1); !errors.Is(err, chatpants.ErrNotFound) {
		t.Fatalf("Expected no record, got %v", err)
	}
}

func TestChatSurvivesGenerationOutage(t *testing.T) {
	ts, store := newTestServer(t, &stubLLM{err: errors.New("connection refused")})

	resp := postChat(t, ts, map[string]any{
		"nickname": "p1",
		"message":  "hello again",
		"group_id": "group4",
		"phase":    2,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 despite outage, got %d", resp.StatusCode)
	}

	var body struct {
		Reply string `json:"reply"`
	}
	decodeBody(t, resp, &body)
	if !strings.Contains(body.Reply, "\n\n") {
		t.Fatalf("Expected a composite fallback reply, got %q", body.Reply)
	}

	rec, err := store.LoadConversation(context.Background(), "p1", chatpants.Group4)
	if err != nil {
		t.Fatalf("Expected persisted record, got %v", err)
	}
	if !rec.MemoryResolved {
		t.Fatal("Expected the recall to be marked resolved")
	}
}

func TestLoadHistory(t *testing.T) {
	ts, store := newTestServer(t, &stubLLM{reply: "unused"})

	t.Run("DefaultsWhenAbsent", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/load-history?nickname=p1&group_id=group2&phase=2")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.StatusCode)
		}

		var body struct {
			ChatHistory    []chatpants.Turn `json:"chatHistory"`
			MemoryResolved bool             `json:"memoryResolved"`
		}
		decodeBody(t, resp, &body)
		if body.ChatHistory == nil || len(body.ChatHistory) != 0 {
			t.Fatalf("Expected empty history, got %v", body.ChatHistory)
		}
		if body.MemoryResolved {
			t.Fatal("Expected memoryResolved=false for absent record")
		}
	})

	t.Run("ReturnsStoredTranscript", func(t *testing.T) {
		rec := chatpants.NewRecord("p2", chatpants.GroupNormal)
		rec.Transcript = []chatpants.Turn{
			{Speaker: "p2", Text: "hi"},
			{Speaker: chatpants.SpeakerAssistant, Text: "hello"},
		}
		if err := store.SaveConversation(context.Background(), rec); err != nil {
			t.Fatalf("Failed to seed record: %v", err)
		}

		resp, err := http.Get(ts.URL + "/api/load-history?nickname=p2&group_id=normal&phase=1")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		var body struct {
			ChatHistory []chatpants.Turn `json:"chatHistory"`
		}
		decodeBody(t, resp, &body)
		if len(body.ChatHistory) != 2 {
			t.Fatalf("Expected 2 turns, got %d", len(body.ChatHistory))
		}
		if body.ChatHistory[0].Text != "hi" {
			t.Fatalf("Unexpected first turn: %+v", body.ChatHistory[0])
		}
	})

	t.Run("RequiresIdentity", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/load-history?group_id=group1")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d", resp.StatusCode)
		}
	})
}

func TestAssignGroup(t *testing.T) {
	ts, _ := newTestServer(t, &stubLLM{reply: "unused"})

	fetch := func() string {
		resp, err := http.Get(ts.URL + "/api/assign-group?nickname=p1")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.StatusCode)
		}
		var body struct {
			GroupID string `json:"groupId"`
		}
		decodeBody(t, resp, &body)
		return body.GroupID
	}

	first := fetch()
	if _, err := chatpants.ParseGroup(first); err != nil || first == string(chatpants.GroupNormal) {
		t.Fatalf("Unexpected assigned group %q", first)
	}
	if again := fetch(); again != first {
		t.Fatalf("Expected sticky group %q, got %q", first, again)
	}

	resp, err := http.Get(ts.URL + "/api/assign-group")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400 without nickname, got %d", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t, &stubLLM{reply: "unused"})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/chat", nil)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204 for preflight, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Expected allow-all origin, got %q", got)
	}
}
