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

// counterValue は指定名のカウンタの現在値を返す。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			total := 0.0
			for _, m := range mf.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			return total
		}
	}
	t.Fatalf("%s metric not found", name)
	return 0
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordAuthEvent_IncrementsCounter は認証イベントカウンタが増加することを検証する。
func TestRecordAuthEvent_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthEvent("SIGNED_IN")
	c.RecordAuthEvent("SIGNED_IN")
	c.RecordAuthEvent("SIGNED_OUT")

	if got := counterValue(t, reg, "resourcehub_auth_events_total"); got != 3 {
		t.Errorf("auth_events_total = %v, want 3", got)
	}
}

// TestRecordCacheHitMiss_IncrementsCounters はキャッシュカウンタが増加することを検証する。
func TestRecordCacheHitMiss_IncrementsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCacheMiss()
	c.RecordCacheHit()
	c.RecordCacheHit()

	if got := counterValue(t, reg, "resourcehub_resource_cache_hits_total"); got != 2 {
		t.Errorf("cache_hits_total = %v, want 2", got)
	}
	if got := counterValue(t, reg, "resourcehub_resource_cache_misses_total"); got != 1 {
		t.Errorf("cache_misses_total = %v, want 1", got)
	}
}

// TestRecordSignedURL_IncrementsCounter は署名付きURLカウンタが増加することを検証する。
func TestRecordSignedURL_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSignedURL()

	if got := counterValue(t, reg, "resourcehub_signed_urls_total"); got != 1 {
		t.Errorf("signed_urls_total = %v, want 1", got)
	}
}

// TestRecordStorageError_IncrementsCounter はストレージ失敗カウンタが
// 操作ラベル別に増加することを検証する。
func TestRecordStorageError_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordStorageError("upload")
	c.RecordStorageError("delete")
	c.RecordStorageError("delete")

	if got := counterValue(t, reg, "resourcehub_storage_errors_total"); got != 3 {
		t.Errorf("storage_errors_total = %v, want 3", got)
	}
}

// TestRecordHTTPStatus_LabelsByStatusCode はステータスコード別にカウントされることを検証する。
func TestRecordHTTPStatus_LabelsByStatusCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "resourcehub_http_status_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Errorf("expected 2 label values, got %d", len(mf.GetMetric()))
			}
		}
	}
	if !found {
		t.Error("resourcehub_http_status_total metric not found")
	}
}

// TestRecordRequestLatency_ObservesHistogram はレイテンシが記録されることを検証する。
func TestRecordRequestLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestLatency(150 * time.Millisecond)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "resourcehub_request_latency_seconds" {
			found = true
			count := mf.GetMetric()[0].GetHistogram().GetSampleCount()
			if count != 1 {
				t.Errorf("latency sample count = %d, want 1", count)
			}
		}
	}
	if !found {
		t.Error("resourcehub_request_latency_seconds metric not found")
	}
}

// TestRecordActiveSessions_SetsGauge はセッション数ゲージが設定されることを検証する。
func TestRecordActiveSessions_SetsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordActiveSessions(7)
	c.RecordActiveSessions(3)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "resourcehub_active_sessions" {
			found = true
			val := mf.GetMetric()[0].GetGauge().GetValue()
			if val != 3 {
				t.Errorf("active_sessions = %v, want 3", val)
			}
		}
	}
	if !found {
		t.Error("resourcehub_active_sessions metric not found")
	}
}

// TestSetupMetricsRoute_ServesMetrics は/metricsエンドポイントが
// Prometheusフォーマットで応答することを検証する。
func TestSetupMetricsRoute_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordSignedURL()

	srv := httptest.NewServer(SetupMetricsRoute(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "resourcehub_signed_urls_total") {
		t.Error("metrics output missing resourcehub_signed_urls_total")
	}
}
