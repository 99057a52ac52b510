package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/UgochukwuChidera/resourcehub/internal/middleware"
	"github.com/UgochukwuChidera/resourcehub/internal/model"
	"github.com/UgochukwuChidera/resourcehub/internal/repository"
	"github.com/UgochukwuChidera/resourcehub/internal/resource"
)

// maxUploadBytes はアップロードリクエスト全体のサイズ上限。
const maxUploadBytes = 50 << 20 // 50MB

// multipartMemoryBytes はマルチパート解析時にメモリへ保持する上限。
// 超過分は一時ファイルへ書き出される。
const multipartMemoryBytes = 8 << 20 // 8MB

// ResourceServiceInterface はリソースハンドラーが必要とするサービスインターフェース。
type ResourceServiceInterface interface {
	List(ctx context.Context) ([]model.Resource, error)
	Search(ctx context.Context, filter repository.ResourceFilter) ([]model.Resource, error)
	Get(ctx context.Context, id string) (*model.Resource, error)
	Upload(ctx context.Context, input resource.UploadInput) (*model.Resource, error)
	Delete(ctx context.Context, id string) error
	SignedDownloadURL(ctx context.Context, id string) (string, error)
}

// ResourceHandler はリソース管理のHTTPハンドラー。
type ResourceHandler struct {
	service ResourceServiceInterface
}

// NewResourceHandler はResourceHandlerを生成する。
func NewResourceHandler(service ResourceServiceInterface) *ResourceHandler {
	return &ResourceHandler{service: service}
}

// fileMetaResponse は添付ファイルメタデータのAPI表現。
type fileMetaResponse struct {
	URL       string `json:"url"`
	Name      string `json:"name"`
	MimeType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
}

// resourceResponse はリソースのAPI表現。
type resourceResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Course      string            `json:"course"`
	Year        int               `json:"year"`
	Description string            `json:"description"`
	Keywords    []string          `json:"keywords"`
	File        *fileMetaResponse `json:"file,omitempty"`
	UploaderID  string            `json:"uploaderId,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

type resourceListResponse struct {
	Resources []resourceResponse `json:"resources"`
}

type downloadURLResponse struct {
	URL string `json:"url"`
}

func toResourceResponse(res *model.Resource) resourceResponse {
	out := resourceResponse{
		ID:          res.ID,
		Name:        res.Name,
		Type:        string(res.Type),
		Course:      res.Course,
		Year:        res.Year,
		Description: res.Description,
		Keywords:    res.Keywords,
		UploaderID:  res.UploaderID,
		CreatedAt:   res.CreatedAt,
		UpdatedAt:   res.UpdatedAt,
	}
	if out.Keywords == nil {
		out.Keywords = []string{}
	}
	if res.File != nil {
		out.File = &fileMetaResponse{
			URL:       res.File.URL,
			Name:      res.File.Name,
			MimeType:  res.File.MimeType,
			SizeBytes: res.File.SizeBytes,
		}
	}
	return out
}

func toResourceListResponse(resources []model.Resource) resourceListResponse {
	out := resourceListResponse{Resources: make([]resourceResponse, 0, len(resources))}
	for i := range resources {
		out.Resources = append(out.Resources, toResourceResponse(&resources[i]))
	}
	return out
}

// ListResources はリソース一覧を返す。検索条件がクエリパラメータに
// 1つでも指定されていれば絞り込み結果を返す。
// GET /api/resources?term=&year=&type=&course=
func (h *ResourceHandler) ListResources(w http.ResponseWriter, r *http.Request) {
	filter := repository.ResourceFilter{
		Term:   strings.TrimSpace(r.URL.Query().Get("term")),
		Type:   r.URL.Query().Get("type"),
		Course: r.URL.Query().Get("course"),
	}
	if yearStr := r.URL.Query().Get("year"); yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "INVALID_FILTER",
				Message:  "year must be an integer.",
				Category: "validation",
				Action:   "Provide the year as a number, e.g. 2024.",
			})
			return
		}
		filter.Year = year
	}

	var (
		resources []model.Resource
		err       error
	)
	if filter == (repository.ResourceFilter{}) {
		resources, err = h.service.List(r.Context())
	} else {
		resources, err = h.service.Search(r.Context(), filter)
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toResourceListResponse(resources))
}

// GetResource は単一リソースを返す。
// GET /api/resources/{id}
func (h *ResourceHandler) GetResource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toResourceResponse(res))
}

// UploadResource は新しいリソースを登録する。multipart/form-dataで
// メタデータとファイル（任意）を受け取る。管理者のみ実行できる。
// POST /api/resources
func (h *ResourceHandler) UploadResource(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_UPLOAD",
			Message:  "Failed to parse the upload request.",
			Category: "validation",
			Action:   "Send the request as multipart/form-data within the size limit.",
		})
		return
	}

	input := resource.UploadInput{
		Name:        r.FormValue("name"),
		Type:        r.FormValue("type"),
		Course:      r.FormValue("course"),
		Description: r.FormValue("description"),
		Keywords:    splitKeywords(r.FormValue("keywords")),
		UploaderID:  user.ID,
	}
	if yearStr := r.FormValue("year"); yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldError("year"))
			return
		}
		input.Year = year
	}

	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		input.File = file
		input.FileName = header.Filename
		input.FileMimeType = header.Header.Get("Content-Type")
		input.FileSize = header.Size
	case errors.Is(err, http.ErrMissingFile):
		// ファイル無しのリソースも登録できる
	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidFilePathError("unreadable file part"))
		return
	}

	res, err := h.service.Upload(r.Context(), input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toResourceResponse(res))
}

// DeleteResource はリソースと添付ファイルを削除する。管理者のみ実行できる。
// DELETE /api/resources/{id}
func (h *ResourceHandler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DownloadURL は添付ファイルの署名付きダウンロードURLを発行する。
// GET /api/resources/{id}/download-url
func (h *ResourceHandler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	url, err := h.service.SignedDownloadURL(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, downloadURLResponse{URL: url})
}

// splitKeywords はカンマ区切りのキーワード文字列を分割する。
// 空要素は落とす。
func splitKeywords(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// apiErrorResponse は統一エラーフォーマットのAPI表現。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// invalidRequestBodyError はJSONボディの解析失敗エラーを生成する。
func invalidRequestBodyError() *model.APIError {
	return &model.APIError{
		Code:     "INVALID_REQUEST_BODY",
		Message:  "Request body could not be parsed.",
		Category: "validation",
		Action:   "Send a valid JSON body.",
	}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized, model.ErrCodeSessionExpired, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeResourceNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeWeakPassword, model.ErrCodeMissingField,
		model.ErrCodeInvalidResourceType, model.ErrCodeInvalidFilePath,
		model.ErrCodeInvalidAvatarURL:
		return http.StatusBadRequest
	case model.ErrCodeStorageFailed, model.ErrCodeSignedURLFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
