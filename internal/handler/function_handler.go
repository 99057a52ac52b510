package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/UgochukwuChidera/resourcehub/internal/admin"
	"github.com/UgochukwuChidera/resourcehub/internal/middleware"
	"github.com/UgochukwuChidera/resourcehub/internal/model"
)

// AdminServiceInterface は管理機能ハンドラーが必要とするサービスインターフェース。
type AdminServiceInterface interface {
	GenerateURL(ctx context.Context, filePath string) (string, error)
	UpdatePassword(ctx context.Context, actor *model.LocalUser, email, newPassword string) error
	UpdateProfile(ctx context.Context, accessToken, userID string, input admin.ProfileUpdateInput) error
	ResolveActor(ctx context.Context, userID string) (*model.LocalUser, error)
}

// FunctionHandler はベアラートークン認証の管理エンドポイント群のHTTPハンドラー。
// Cookieセッションではなく検証済みJWTのクレームから操作主体を特定する。
type FunctionHandler struct {
	service AdminServiceInterface
}

// NewFunctionHandler はFunctionHandlerを生成する。
func NewFunctionHandler(service AdminServiceInterface) *FunctionHandler {
	return &FunctionHandler{service: service}
}

type generateURLRequest struct {
	FilePath string `json:"filePath"`
}

type generateURLResponse struct {
	URL string `json:"signedUrl"`
}

type passwordUpdateRequest struct {
	Email       string `json:"userEmailToUpdate"`
	NewPassword string `json:"newPassword"`
}

type profileUpdateRequest struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// GenerateURL は任意のストレージキーに対する署名付きダウンロードURLを発行する。
// POST /api/functions/generate-url
func (h *FunctionHandler) GenerateURL(w http.ResponseWriter, r *http.Request) {
	var req generateURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	url, err := h.service.GenerateURL(r.Context(), req.FilePath)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generateURLResponse{URL: url})
}

// UpdatePassword は管理者が指定ユーザーのパスワードを更新する。
// 操作主体の管理者判定はサービス層がprofiles行から行う。
// POST /api/functions/password-update
func (h *FunctionHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req passwordUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	actor, err := h.service.ResolveActor(r.Context(), claims.Subject)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.service.UpdatePassword(r.Context(), actor, req.Email, req.NewPassword); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Password updated successfully."})
}

// UpdateProfile は本人のname/avatarUrlを更新する。
// POST /api/functions/profile-update
func (h *FunctionHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	token, err := middleware.AccessTokenFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req profileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	input := admin.ProfileUpdateInput{
		Name:      req.Name,
		AvatarURL: req.AvatarURL,
	}
	if err := h.service.UpdateProfile(r.Context(), token, claims.Subject, input); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Profile updated successfully."})
}
