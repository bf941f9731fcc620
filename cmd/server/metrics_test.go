package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"navmotion.ai/internal/persistence/indexdb"
	"navmotion.ai/internal/persistence/r2s3"
	"navmotion.ai/internal/sim/world"
)

func TestWriteMetrics(t *testing.T) {
	var b strings.Builder
	m := world.WorldMetrics{Tick: 42, Units: 3, LaunchesTotal: 9, QueueDepths: world.QueueDepths{Orders: 2}}
	writeMetrics(&b, "w1", m, indexdb.Stats{QueueDepth: 1, QueueCapacity: 16, DropTickTotal: 5}, r2s3.Stats{QueueCapacity: 8, UploadSuccessTotal: 4})
	out := b.String()
	for _, want := range []string{
		`navmotion_world_tick{world="w1"} 42`,
		`navmotion_world_units{world="w1"} 3`,
		`navmotion_world_launches_total{world="w1"} 9`,
		`navmotion_world_queue_depth{world="w1",queue="orders"} 2`,
		`navmotion_index_dropped_ticks_total{world="w1"} 5`,
		"# TYPE navmotion_world_launches_total counter",
		`navmotion_archive_upload_success_total{world="w1"} 4`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestMetricsHandlerWithoutIndex(t *testing.T) {
	w := world.New(world.Config{ID: "solo"}, nil, nil)
	rec := httptest.NewRecorder()
	metricsHandler(w, nil, nil)(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `navmotion_world_units{world="solo"} 0`) {
		t.Fatalf("body:\n%s", body)
	}
	if strings.Contains(body, "navmotion_index_") || strings.Contains(body, "navmotion_archive_") {
		t.Fatalf("optional metrics without their backends:\n%s", body)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("NM_TEST_FLAG", "yes")
	if !envBool("NM_TEST_FLAG", false) {
		t.Fatalf("yes not true")
	}
	t.Setenv("NM_TEST_FLAG", "off")
	if envBool("NM_TEST_FLAG", true) {
		t.Fatalf("off not false")
	}
	t.Setenv("NM_TEST_FLAG", "maybe")
	if !envBool("NM_TEST_FLAG", true) {
		t.Fatalf("unknown value ignored default")
	}
}
