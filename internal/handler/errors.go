package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/jobberwocky/internal/middleware"
	"github.com/hitoshi/jobberwocky/internal/model"
)

// maxBodyBytes はリクエストボディの上限サイズ。
const maxBodyBytes = 1 << 20

// statusForCode はエラーコードをHTTPステータスコードに変換する。
func statusForCode(code string) int {
	switch code {
	case model.ErrCodeValidation, model.ErrCodeDuplicateEmail:
		return http.StatusBadRequest
	case model.ErrCodeListingNotFound:
		return http.StatusNotFound
	case model.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		// 外部ソース、統合検索、内部エラー
		return http.StatusInternalServerError
	}
}

// handleServiceError はサービス層から返されたエラーを統一フォーマットのレスポンスに変換する。
// APIError以外のエラーは詳細をログにのみ記録し、INTERNAL_ERRORとして返す。
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	apiErr, ok := model.AsAPIError(err)
	if !ok {
		logger.Error("internal server error",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	status := statusForCode(apiErr.Code)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			slog.String("code", apiErr.Code),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
	}
	middleware.WriteErrorResponse(w, status, apiErr)
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeObject はリクエストボディをJSONオブジェクトとして読み込む。
// フィールドの型検査はサービス層で行うため、値は未解釈のまま返す。
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		// ボディが null の場合
		raw = map[string]json.RawMessage{}
	}
	return raw, nil
}
