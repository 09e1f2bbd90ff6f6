package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/jobberwocky/internal/middleware"
	"github.com/hitoshi/jobberwocky/internal/model"
)

// SubscriptionServiceInterface はメール購読ハンドラーが必要とするサービスインターフェース。
type SubscriptionServiceInterface interface {
	Subscribe(ctx context.Context, email string) (*model.Subscription, error)
}

// SubscriptionHandler はメール購読のHTTPハンドラー。
type SubscriptionHandler struct {
	service SubscriptionServiceInterface
	logger  *slog.Logger
}

// NewSubscriptionHandler はSubscriptionHandlerを生成する。
func NewSubscriptionHandler(service SubscriptionServiceInterface, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{service: service, logger: logger}
}

// Subscribe はメール購読を登録する。
// POST /subscriptions {"email": "..."}
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeObject(w, r)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidBodyError())
		return
	}

	var email string
	if msg, ok := raw["email"]; ok && string(msg) != "null" {
		if err := json.Unmarshal(msg, &email); err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				model.NewValidationError(map[string]string{"email": "文字列で指定してください"}))
			return
		}
	}

	sub, err := h.service.Subscribe(r.Context(), email)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}
