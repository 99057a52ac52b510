package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/UgochukwuChidera/resourcehub/internal/chatbot"
	"github.com/UgochukwuChidera/resourcehub/internal/model"
)

// ChatbotServiceInterface はチャットボットハンドラーが必要とするサービスインターフェース。
type ChatbotServiceInterface interface {
	Ask(ctx context.Context, question string) (*chatbot.Reply, error)
}

// ChatbotHandler はFAQチャットボットのHTTPハンドラー。
type ChatbotHandler struct {
	service ChatbotServiceInterface
}

// NewChatbotHandler はChatbotHandlerを生成する。
func NewChatbotHandler(service ChatbotServiceInterface) *ChatbotHandler {
	return &ChatbotHandler{service: service}
}

type askRequest struct {
	Question string `json:"question"`
}

// Ask は質問に対するFAQ回答またはリソース検索結果を返す。
// POST /api/chatbot/ask
func (h *ChatbotHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldError("question"))
		return
	}

	reply, err := h.service.Ask(r.Context(), req.Question)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reply)
}
