package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/jobberwocky/internal/model"
	"github.com/hitoshi/jobberwocky/internal/search"
)

// --- モック定義 ---

type mockListingService struct {
	createFn func(ctx context.Context, raw map[string]json.RawMessage) (*model.JobListing, error)
	getFn    func(ctx context.Context, id int64) (*model.JobListing, error)
	updateFn func(ctx context.Context, id int64, raw map[string]json.RawMessage) (*model.JobListing, error)
	deleteFn func(ctx context.Context, id int64) error
}

func (m *mockListingService) Create(ctx context.Context, raw map[string]json.RawMessage) (*model.JobListing, error) {
	if m.createFn != nil {
		return m.createFn(ctx, raw)
	}
	return nil, nil
}

func (m *mockListingService) Get(ctx context.Context, id int64) (*model.JobListing, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, nil
}

func (m *mockListingService) Update(ctx context.Context, id int64, raw map[string]json.RawMessage) (*model.JobListing, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, raw)
	}
	return nil, nil
}

func (m *mockListingService) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockSearchService struct {
	listLocalFn    func(ctx context.Context, filter model.ListingFilter) ([]model.JobListing, error)
	combinedJobsFn func(ctx context.Context, filter model.SearchFilter) (search.CombinedResult, error)
	externalOnlyFn func(ctx context.Context, rawQuery string) ([]model.ExternalListing, error)
}

func (m *mockSearchService) ListLocal(ctx context.Context, filter model.ListingFilter) ([]model.JobListing, error) {
	if m.listLocalFn != nil {
		return m.listLocalFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockSearchService) CombinedJobs(ctx context.Context, filter model.SearchFilter) (search.CombinedResult, error) {
	if m.combinedJobsFn != nil {
		return m.combinedJobsFn(ctx, filter)
	}
	return search.CombinedResult{}, nil
}

func (m *mockSearchService) ExternalOnly(ctx context.Context, rawQuery string) ([]model.ExternalListing, error) {
	if m.externalOnlyFn != nil {
		return m.externalOnlyFn(ctx, rawQuery)
	}
	return nil, nil
}

type mockSubscriptionService struct {
	subscribeFn func(ctx context.Context, email string) (*model.Subscription, error)
}

func (m *mockSubscriptionService) Subscribe(ctx context.Context, email string) (*model.Subscription, error) {
	if m.subscribeFn != nil {
		return m.subscribeFn(ctx, email)
	}
	return nil, nil
}

// --- テストヘルパー ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(listings *mockListingService, searchSvc *mockSearchService, subs *mockSubscriptionService) http.Handler {
	if listings == nil {
		listings = &mockListingService{}
	}
	if searchSvc == nil {
		searchSvc = &mockSearchService{}
	}
	if subs == nil {
		subs = &mockSubscriptionService{}
	}
	return NewRouter(&RouterDeps{
		Logger:              discardLogger(),
		CORSAllowedOrigin:   "*",
		ListingService:      listings,
		SearchService:       searchSvc,
		SubscriptionService: subs,
	})
}

func doRequest(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// parseAPIErrorResponse はレスポンスボディから統一エラーフォーマットをパースする。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

func salary(v float64) *float64 { return &v }

func sampleListing(id int64) *model.JobListing {
	return &model.JobListing{
		ID:          id,
		Title:       "Go Developer",
		Description: "Build APIs",
		Company:     "Acme",
		Skills:      "Go, SQL",
		Location:    "Madrid",
		Salary:      salary(50000),
	}
}
