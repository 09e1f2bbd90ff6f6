package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// TestHandler_ServesMetrics はスクレイプ用ハンドラーが記録済みのメトリクスを返すことを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordListingCreated()
	c.RecordExternalFetchFailure("timeout")

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{
		"jobberwocky_listings_created_total 1",
		`jobberwocky_external_fetch_fail_total{reason="timeout"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("response should contain %q", want)
		}
	}
}
