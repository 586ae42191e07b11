package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_LLMCalls(t *testing.T) {
	r := NewRecorder()
	r.RecordLLMCall("expand", "openrouter", "", 120*time.Millisecond)
	r.RecordLLMCall("expand", "openrouter", "network", time.Second)
	r.RecordLLMCall("expand", "openrouter", "network", time.Second)

	if got := testutil.ToFloat64(r.c.llmCalls.WithLabelValues("expand", "openrouter", OutcomeSuccess, "")); got != 1 {
		t.Errorf("success count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.c.llmCalls.WithLabelValues("expand", "openrouter", OutcomeFailure, "network")); got != 2 {
		t.Errorf("failure count = %v, want 2", got)
	}
}

func TestRecorder_SelectionsAndStorage(t *testing.T) {
	r := NewRecorder()
	r.RecordSelection("tags")
	r.RecordSelection("none")
	r.RecordSelection("tags")
	r.RecordStorageOp("save", nil)
	r.RecordStorageOp("save", errors.New("disk full"))
	r.RecordRateLimitWait(1500 * time.Millisecond)
	r.RecordRateLimitWait(-time.Second)

	if got := testutil.ToFloat64(r.c.selections.WithLabelValues("tags")); got != 2 {
		t.Errorf("tags selections = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.c.storageOps.WithLabelValues("save", OutcomeFailure)); got != 1 {
		t.Errorf("failed saves = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.c.rateLimitWaited); got != 1.5 {
		t.Errorf("wait seconds = %v, want 1.5", got)
	}
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	r.RecordLLMCall("expand", "stub", "", time.Millisecond)
	r.RecordSelection("tags")
	r.RecordStorageOp("get", nil)
	r.RecordVariants(3)
	r.RecordRateLimitWait(time.Second)
	if r.Registry() != nil {
		t.Error("nil recorder should have nil registry")
	}
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.RecordSelection("llm")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `promptlab_lora_selections_total{method="llm"} 1`) {
		t.Errorf("metrics output missing selection counter:\n%s", body)
	}
}
