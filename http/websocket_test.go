package http

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"obesityrisk/ml"
)

func TestPredictSocketRoundTrip(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, &fakeModel{label: ml.ObesityTypeIII}, nil))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/predict"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	withID := strings.Replace(scenarioJSON, "{", `{"id":"req-1",`, 1)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(withID)); err != nil {
		t.Fatalf("write: %v", err)
	}
	var reply socketReply
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply.ID != "req-1" || reply.Status != 200 || reply.Assessment == nil {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if reply.Assessment.Label != ml.ObesityTypeIII || reply.Assessment.Tier != "high" {
		t.Errorf("unexpected assessment: %+v", reply.Assessment)
	}

	missing := strings.Replace(scenarioJSON, `"SMOKE":"no",`, "", 1)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(missing)); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply = socketReply{}
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply.Status != 422 || reply.Field != "SMOKE" || reply.Assessment != nil {
		t.Errorf("unexpected error reply: %+v", reply)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply = socketReply{}
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply.Status != 400 {
		t.Errorf("status = %d, want 400", reply.Status)
	}
}
