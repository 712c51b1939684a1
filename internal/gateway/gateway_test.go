package gateway

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEncodeFrameStaysTextUnderThreshold(t *testing.T) {
	raw := []byte(`{"action":"HEARTBEAT","data":{"timestamp":1}}`)
	f := encodeFrame(raw)
	if f.binary {
		t.Fatal("expected small payload to stay text")
	}
	if string(f.data) != string(raw) {
		t.Fatalf("expected untouched payload, got %q", f.data)
	}
}

func TestEncodeFrameDeflatesAboveThreshold(t *testing.T) {
	big := `{"action":"UPDATE_CHART","data":"` + strings.Repeat("x", deflateThreshold+50) + `"}`
	f := encodeFrame([]byte(big))
	if !f.binary {
		t.Fatal("expected large payload to be marked binary")
	}
	if len(f.data) >= len(big) {
		t.Fatalf("expected deflate to shrink a repetitive payload, got %d vs %d", len(f.data), len(big))
	}
}

func TestEnvelopeRoundTrips(t *testing.T) {
	env := Envelope{Action: ActionUpdateSymbols, Data: []string{"NSE:SBIN", "NSE:TCS"}}
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Envelope
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Action != ActionUpdateSymbols {
		t.Fatalf("expected action %q, got %q", ActionUpdateSymbols, decoded.Action)
	}
}

func TestBroadcastDropsSlowClientWithoutBlocking(t *testing.T) {
	h := NewHub(nil, nil)
	c := &Client{id: 1, send: make(chan frame, 1), hub: h}
	h.clients[1] = c

	c.send <- frame{data: []byte("x")} // fill the buffer

	done := make(chan struct{})
	go func() {
		h.Broadcast(ActionHeartbeat, map[string]int64{"timestamp": 1})
		close(done)
	}()
	<-done // must not block despite the full client buffer

	if h.ClientCount() != 0 {
		t.Fatalf("expected slow client to be dropped, got %d clients", h.ClientCount())
	}
}
