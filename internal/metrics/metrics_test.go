package metrics_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"capturesync/internal/logging"
	"capturesync/internal/metrics"
	"capturesync/internal/pipeline"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	return rec.Body.String()
}

func TestObserverCountsRecords(t *testing.T) {
	m := metrics.New()
	var observer pipeline.Observer = m

	observer.OnEvent(pipeline.Record{Kind: pipeline.KindDetected})
	observer.OnEvent(pipeline.Record{Kind: pipeline.KindDetected})
	observer.OnEvent(pipeline.Record{Kind: pipeline.KindInfo})
	observer.OnEvent(pipeline.Record{Kind: pipeline.KindProcessed, Elapsed: 2 * time.Second})
	observer.OnEvent(pipeline.Record{Kind: pipeline.KindSkipped, Reason: pipeline.ReasonTimeout})
	observer.OnEvent(pipeline.Record{Kind: pipeline.KindIndexed, Faces: 3})
	observer.OnEvent(pipeline.Record{Kind: pipeline.KindIndexed, Err: errors.New("engine down")})
	m.SetState(pipeline.Running)

	body := scrape(t, m.Handler())
	for _, want := range []string{
		`capturesync_files_total{kind="detected"} 2`,
		`capturesync_files_total{kind="processed"} 1`,
		`capturesync_files_total{kind="indexed"} 2`,
		`capturesync_skips_total{reason="timeout"} 1`,
		`capturesync_faces_indexed_total 3`,
		`capturesync_index_failures_total 1`,
		`capturesync_process_seconds_count 1`,
		`capturesync_state{state="running"} 1`,
		`capturesync_state{state="idle"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in:\n%s", want, body)
		}
	}
	if strings.Contains(body, `kind="info"`) {
		t.Error("info records should not be counted")
	}
}

func TestListenServesMetrics(t *testing.T) {
	m := metrics.New()
	srv, err := metrics.Listen(m, "127.0.0.1:0", logging.NewNop())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer func() { _ = srv.Close(context.Background()) }()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "capturesync_state") {
		t.Fatalf("unexpected body:\n%s", body)
	}
}
