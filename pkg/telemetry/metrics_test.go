package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vango-go/agents-lite/pkg/core"
)

func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			matched := 0
			for _, lp := range metric.GetLabel() {
				if labels[lp.GetName()] == lp.GetValue() {
					matched++
				}
			}
			if matched != len(labels) {
				continue
			}
			if c := metric.GetCounter(); c != nil {
				return c.GetValue()
			}
			if g := metric.GetGauge(); g != nil {
				return g.GetValue()
			}
		}
	}
	return 0
}

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{core.NewModeError("maintenance"), "mode_error"},
		{fmt.Errorf("wrapped: %w", core.NewValidationError("empty", "text")), "validation_error"},
		{context.Canceled, "canceled"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		if got := Status(tt.err); got != tt.want {
			t.Errorf("Status(%v)=%q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestMetrics_ObserveOperation(t *testing.T) {
	m := NewMetrics("test")

	m.ObserveOperation("chat", 10*time.Millisecond, nil)
	m.ObserveOperation("chat", 20*time.Millisecond, core.NewModeError("maintenance"))
	m.ObserveOperation("chat", 5*time.Millisecond, nil)

	if got := counterValue(t, m, "test_operations_total", map[string]string{"op": "chat", "status": "ok"}); got != 2 {
		t.Errorf("ok count=%v, want 2", got)
	}
	if got := counterValue(t, m, "test_operations_total", map[string]string{"op": "chat", "status": "mode_error"}); got != 1 {
		t.Errorf("mode_error count=%v, want 1", got)
	}
}

func TestMetrics_SessionsAndEvents(t *testing.T) {
	m := NewMetrics("")

	m.ObserveSessionStart()
	m.ObserveSessionStart()
	m.ObserveSessionEnd()
	m.ObserveChatEvent("partial")
	m.ObserveChatEvent("partial")
	m.ObserveConnectionState("connected")

	if got := counterValue(t, m, "agents_sessions_active", nil); got != 1 {
		t.Errorf("sessions_active=%v, want 1", got)
	}
	if got := counterValue(t, m, "agents_chat_events_total", map[string]string{"progress": "partial"}); got != 2 {
		t.Errorf("chat_events_total=%v, want 2", got)
	}
	if got := counterValue(t, m, "agents_connection_state_changes_total", map[string]string{"state": "connected"}); got != 1 {
		t.Errorf("connection_state_changes_total=%v, want 1", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics("test")
	m.ObserveChatEvent("answer")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `test_chat_events_total{progress="answer"} 1`) {
		t.Fatalf("metrics output missing chat event counter:\n%s", body)
	}
}

func TestNopObserver(t *testing.T) {
	var o Observer = NopObserver{}
	o.ObserveOperation("connect", time.Second, errors.New("x"))
	o.ObserveSessionStart()
	o.ObserveSessionEnd()
	o.ObserveChatEvent("partial")
	o.ObserveConnectionState("failed")
}
