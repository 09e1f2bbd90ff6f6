package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// HealthChecker はデータベース疎通確認のインターフェース。
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthCheckerFunc は関数をHealthCheckerとして扱うアダプタ。
type HealthCheckerFunc func(ctx context.Context) error

// Ping はfを呼び出す。
func (f HealthCheckerFunc) Ping(ctx context.Context) error { return f(ctx) }

// healthHandler はGET /healthを処理する。
func healthHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.Ping(r.Context()); err != nil {
				logger.Error("ヘルスチェックに失敗しました", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
