package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// New registers every collector against the default Prometheus registry,
// so the whole package shares one instance across tests to avoid a
// "duplicate metrics collector registration attempted" panic.
var shared = New()

func TestNewPopulatesAllCollectors(t *testing.T) {
	m := shared
	if m.CandlesProcessed == nil || m.TicksProcessed == nil || m.ChartUpdateDur == nil {
		t.Fatal("expected scalar collectors to be non-nil")
	}
	if m.ControllersActive == nil || m.DivergencesFound == nil || m.RejectionsFound == nil || m.UnknownSymbol == nil {
		t.Fatal("expected analyzer collectors to be non-nil")
	}
	if m.WSClients == nil || m.WSFanoutDrop == nil || m.WSHeartbeats == nil || m.WSReconnects == nil {
		t.Fatal("expected gateway/provider collectors to be non-nil")
	}
	if m.RedisCircuitState == nil || m.RedisCircuitTrips == nil {
		t.Fatal("expected redis collectors to be non-nil")
	}
}

func TestCountersIncrement(t *testing.T) {
	m := shared
	before := testutil.ToFloat64(m.CandlesProcessed)
	m.CandlesProcessed.Inc()
	after := testutil.ToFloat64(m.CandlesProcessed)
	if after != before+1 {
		t.Fatalf("expected CandlesProcessed to increment by 1, got %v -> %v", before, after)
	}

	beforeReconnect := testutil.ToFloat64(m.WSReconnects)
	m.WSReconnects.Inc()
	if got := testutil.ToFloat64(m.WSReconnects); got != beforeReconnect+1 {
		t.Fatalf("expected WSReconnects to increment by 1, got %v -> %v", beforeReconnect, got)
	}
}

func TestHandlerReturnsNonNil(t *testing.T) {
	if shared.Handler() == nil {
		t.Fatal("expected Handler() to return a non-nil http.Handler")
	}
}
