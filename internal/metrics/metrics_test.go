package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// counterValue は指定名のメトリクスのカウンタ値を返す。
// labelが空でない場合はラベル値が一致するサンプルのみを対象とする。
func counterValue(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label == "" {
				return m.GetCounter().GetValue()
			}
			for _, lp := range m.GetLabel() {
				if lp.GetValue() == label {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s{%s} not found", name, label)
	return 0
}

func TestNewCollector_ReturnsNonNil(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func TestCollector_Counters(t *testing.T) {
	tests := []struct {
		name   string
		record func(c *Collector)
		metric string
		label  string
		want   float64
	}{
		{
			name:   "外部取得成功",
			record: func(c *Collector) { c.RecordExternalFetchSuccess(); c.RecordExternalFetchSuccess() },
			metric: "jobberwocky_external_fetch_success_total",
			want:   2,
		},
		{
			name:   "外部取得失敗（理由別）",
			record: func(c *Collector) { c.RecordExternalFetchFailure("REMOTE_UNAVAILABLE") },
			metric: "jobberwocky_external_fetch_fail_total",
			label:  "REMOTE_UNAVAILABLE",
			want:   1,
		},
		{
			name:   "HTTPステータス",
			record: func(c *Collector) { c.RecordExternalHTTPStatus(502); c.RecordExternalHTTPStatus(502) },
			metric: "jobberwocky_external_http_status_total",
			label:  "502",
			want:   2,
		},
		{
			name:   "スキル解析失敗",
			record: func(c *Collector) { c.RecordSkillsParseFailure() },
			metric: "jobberwocky_skills_parse_fail_total",
			want:   1,
		},
		{
			name:   "求人作成",
			record: func(c *Collector) { c.RecordListingCreated(); c.RecordListingCreated(); c.RecordListingCreated() },
			metric: "jobberwocky_listings_created_total",
			want:   3,
		},
		{
			name:   "通知送信成功",
			record: func(c *Collector) { c.RecordNotificationSent() },
			metric: "jobberwocky_notifications_sent_total",
			want:   1,
		},
		{
			name:   "通知送信失敗",
			record: func(c *Collector) { c.RecordNotificationFailed(); c.RecordNotificationFailed() },
			metric: "jobberwocky_notifications_failed_total",
			want:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			c := NewCollector(reg)

			tt.record(c)

			if got := counterValue(t, reg, tt.metric, tt.label); got != tt.want {
				t.Errorf("%s = %v, want %v", tt.metric, got, tt.want)
			}
		})
	}
}

func TestRecordExternalFetchLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordExternalFetchLatency(100 * time.Millisecond)
	c.RecordExternalFetchLatency(2 * time.Second)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "jobberwocky_external_fetch_latency_seconds" {
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample count = %d, want 2", h.GetSampleCount())
			}
			if h.GetSampleSum() < 2.0 {
				t.Errorf("sample sum = %v, want >= 2.0", h.GetSampleSum())
			}
			return
		}
	}
	t.Error("jobberwocky_external_fetch_latency_seconds metric not found")
}

func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordExternalFetchSuccess()
	c.RecordExternalFetchFailure("REMOTE_MALFORMED")
	c.RecordListingCreated()
	c.RecordNotificationSent()

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	for _, metric := range []string{
		"jobberwocky_external_fetch_success_total",
		`jobberwocky_external_fetch_fail_total{reason="REMOTE_MALFORMED"}`,
		"jobberwocky_listings_created_total",
		"jobberwocky_notifications_sent_total",
	} {
		if !strings.Contains(string(body), metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	var _ MetricsCollector = NewCollector(prometheus.NewRegistry())
}

func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordListingCreated()
	c2.RecordListingCreated()
	c2.RecordListingCreated()

	if v := counterValue(t, reg1, "jobberwocky_listings_created_total", ""); v != 1 {
		t.Errorf("reg1 listings_created = %v, want 1", v)
	}
	if v := counterValue(t, reg2, "jobberwocky_listings_created_total", ""); v != 2 {
		t.Errorf("reg2 listings_created = %v, want 2", v)
	}
}
