package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/UgochukwuChidera/resourcehub/internal/chatbot"
	"github.com/UgochukwuChidera/resourcehub/internal/model"
)

// mockChatbotService はChatbotServiceInterfaceのモック実装。
type mockChatbotService struct {
	askFn func(ctx context.Context, question string) (*chatbot.Reply, error)
}

func (m *mockChatbotService) Ask(ctx context.Context, question string) (*chatbot.Reply, error) {
	if m.askFn != nil {
		return m.askFn(ctx, question)
	}
	return &chatbot.Reply{}, nil
}

func TestChatbotHandler_Ask_Success(t *testing.T) {
	svc := &mockChatbotService{
		askFn: func(ctx context.Context, question string) (*chatbot.Reply, error) {
			if question != "how do I download a file?" {
				t.Errorf("question = %s", question)
			}
			return &chatbot.Reply{
				Answer:  "Open the resource page and use the download button.",
				Matched: "download",
			}, nil
		},
	}
	h := NewChatbotHandler(svc)

	req := jsonRequest(t, http.MethodPost, "/api/chatbot/ask", askRequest{Question: "how do I download a file?"})
	w := httptest.NewRecorder()
	h.Ask(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp chatbot.Reply
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Matched != "download" {
		t.Errorf("matched = %s, want download", resp.Matched)
	}
}

func TestChatbotHandler_Ask_EmptyQuestion(t *testing.T) {
	h := NewChatbotHandler(&mockChatbotService{})

	req := jsonRequest(t, http.MethodPost, "/api/chatbot/ask", askRequest{Question: "   "})
	w := httptest.NewRecorder()
	h.Ask(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	resp := parseAPIErrorResponse(t, w)
	if resp["code"] != model.ErrCodeMissingField {
		t.Errorf("code = %s, want %s", resp["code"], model.ErrCodeMissingField)
	}
}

func TestChatbotHandler_Ask_InvalidBody(t *testing.T) {
	h := NewChatbotHandler(&mockChatbotService{})

	req := httptest.NewRequest(http.MethodPost, "/api/chatbot/ask", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	h.Ask(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestChatbotHandler_Ask_ResourceSuggestions(t *testing.T) {
	svc := &mockChatbotService{
		askFn: func(ctx context.Context, question string) (*chatbot.Reply, error) {
			return &chatbot.Reply{
				Answer: "Here is what I found for \"calculus\":",
				Resources: []model.Resource{
					{ID: "r1", Name: "Calculus I Lecture Notes"},
				},
			}, nil
		},
	}
	h := NewChatbotHandler(svc)

	req := jsonRequest(t, http.MethodPost, "/api/chatbot/ask", askRequest{Question: "find calculus"})
	w := httptest.NewRecorder()
	h.Ask(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp chatbot.Reply
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Resources) != 1 {
		t.Errorf("len(resources) = %d, want 1", len(resp.Resources))
	}
}
