package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mfaflow "github.com/MrEthical07/mfaflow"
)

type fakeSource struct {
	snapshot mfaflow.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() mfaflow.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                     { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: mfaflow.MetricsSnapshot{
			Counters:   map[mfaflow.MetricID]uint64{},
			Histograms: map[mfaflow.MetricID][]uint64{},
		},
		dropped: 0,
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderDeterministicIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: mfaflow.MetricsSnapshot{
			Counters: map[mfaflow.MetricID]uint64{
				mfaflow.MetricRegistrationSuccess: 7,
			},
			Histograms: map[mfaflow.MetricID][]uint64{
				mfaflow.MetricRegisterLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	if !strings.Contains(out, "mfaflow_registration_success_total 7") {
		t.Fatalf("expected registration_success counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "mfaflow_register_latency_seconds_bucket{le=\"0.005\"} 1") {
		t.Fatalf("expected first histogram bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "mfaflow_register_latency_seconds_bucket{le=\"+Inf\"} 36") {
		t.Fatalf("expected +Inf cumulative bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "mfaflow_audit_dropped_total 2") {
		t.Fatalf("expected audit dropped counter in output, got:\n%s", out)
	}
}

func TestWriteToMatchesRender(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: mfaflow.MetricsSnapshot{
			Counters: map[mfaflow.MetricID]uint64{
				mfaflow.MetricChallengeSent: 4,
			},
			Histograms: map[mfaflow.MetricID][]uint64{},
		},
		dropped: 1,
	})

	var buf strings.Builder
	n, err := exp.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if buf.String() != exp.Render() {
		t.Fatal("WriteTo and Render must produce identical output")
	}
	if n != int64(len(buf.String())) {
		t.Fatalf("WriteTo reported %d bytes, wrote %d", n, len(buf.String()))
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: mfaflow.MetricsSnapshot{
			Counters:   map[mfaflow.MetricID]uint64{mfaflow.MetricFlowStarted: 1},
			Histograms: map[mfaflow.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: mfaflow.MetricsSnapshot{
			Counters: map[mfaflow.MetricID]uint64{
				mfaflow.MetricFlowStarted:         1000,
				mfaflow.MetricFlowCompleted:       800,
				mfaflow.MetricRegistrationSuccess: 700,
				mfaflow.MetricRegistrationFailure: 40,
				mfaflow.MetricChallengeSent:       650,
				mfaflow.MetricChallengeValidated:  600,
				mfaflow.MetricChallengeFailed:     50,
			},
			Histograms: map[mfaflow.MetricID][]uint64{
				mfaflow.MetricRegisterLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
		dropped: 0,
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
