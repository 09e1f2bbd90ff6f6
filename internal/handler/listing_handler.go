package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jobberwocky/internal/listing"
	"github.com/hitoshi/jobberwocky/internal/middleware"
	"github.com/hitoshi/jobberwocky/internal/model"
	"github.com/hitoshi/jobberwocky/internal/search"
)

// ListingServiceInterface は求人ハンドラーが必要とするサービスインターフェース。
type ListingServiceInterface interface {
	Create(ctx context.Context, raw map[string]json.RawMessage) (*model.JobListing, error)
	Get(ctx context.Context, id int64) (*model.JobListing, error)
	Update(ctx context.Context, id int64, raw map[string]json.RawMessage) (*model.JobListing, error)
	Delete(ctx context.Context, id int64) error
}

// SearchServiceInterface は求人検索のサービスインターフェース。
type SearchServiceInterface interface {
	ListLocal(ctx context.Context, filter model.ListingFilter) ([]model.JobListing, error)
	CombinedJobs(ctx context.Context, filter model.SearchFilter) (search.CombinedResult, error)
	ExternalOnly(ctx context.Context, rawQuery string) ([]model.ExternalListing, error)
}

// ListingHandler は求人管理と検索のHTTPハンドラー。
type ListingHandler struct {
	listings ListingServiceInterface
	search   SearchServiceInterface
	logger   *slog.Logger
}

// NewListingHandler はListingHandlerを生成する。
func NewListingHandler(listings ListingServiceInterface, search SearchServiceInterface, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{listings: listings, search: search, logger: logger}
}

// List はローカル求人を検索する。
// GET /job_listings?title=&location=
func (h *ListingHandler) List(w http.ResponseWriter, r *http.Request) {
	listings, err := h.search.ListLocal(r.Context(), search.ParseLocalFilter(r.URL.Query()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if listings == nil {
		listings = []model.JobListing{}
	}
	writeJSON(w, http.StatusOK, listings)
}

// Create は求人を作成する。
// POST /job_listings
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeObject(w, r)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidBodyError())
		return
	}

	created, err := h.listings.Create(r.Context(), raw)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Get は求人を1件取得する。
// GET /job_listings/{id}
func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := listing.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	l, err := h.listings.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// Update は求人を部分更新する。
// PUT /job_listings/{id}
// 存在しない求人への更新はボディの内容によらず404を返す。
func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := listing.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	raw, err := decodeObject(w, r)
	if err != nil {
		if _, getErr := h.listings.Get(r.Context(), id); getErr != nil {
			handleServiceError(w, r, h.logger, getErr)
			return
		}
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidBodyError())
		return
	}

	updated, err := h.listings.Update(r.Context(), id, raw)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete は求人を削除する。
// DELETE /job_listings/{id}
func (h *ListingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := listing.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	if err := h.listings.Delete(r.Context(), id); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CombinedJobs はローカル求人と外部求人を統合して検索する。
// GET /job_listings/combined_jobs?name=&salary_min=&salary_max=&country=
// クエリ文字列は外部求人ソースへそのまま転送する。
func (h *ListingHandler) CombinedJobs(w http.ResponseWriter, r *http.Request) {
	filter, err := search.ParseSearchFilter(r.URL.Query(), r.URL.RawQuery)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	result, err := h.search.CombinedJobs(r.Context(), filter)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ExternalJobs は外部求人ソースのみを検索する。
// GET /job_listings/external_jobs
func (h *ListingHandler) ExternalJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.search.ExternalOnly(r.Context(), r.URL.RawQuery)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if jobs == nil {
		jobs = []model.ExternalListing{}
	}
	writeJSON(w, http.StatusOK, jobs)
}
