package metrics

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSnapshotAndJSON(t *testing.T) {
	m := New()
	m.Requests.Add(3)
	m.BusinessErrors.Add(1)
	m.EventsDispatched.Add(2)

	s := m.Snapshot()
	if s.Requests != 3 || s.BusinessErrors != 1 || s.EventsDispatched != 2 {
		t.Fatalf("Snapshot = %+v", s)
	}

	var decoded Snapshot
	if err := json.Unmarshal([]byte(m.JSON()), &decoded); err != nil {
		t.Fatalf("JSON output does not parse: %v", err)
	}
	if decoded.Requests != 3 {
		t.Errorf("decoded.Requests = %d, want 3", decoded.Requests)
	}
}

func TestHandlerPrometheusText(t *testing.T) {
	m := New()
	m.ChannelReconnects.Add(4)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Result().Body)
	text := string(body)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
	for _, want := range []string{
		"# TYPE cliniclink_realtime_reconnects_total counter",
		"cliniclink_realtime_reconnects_total 4\n",
		"cliniclink_http_requests_total 0\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
