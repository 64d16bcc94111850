package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Immie1996/boussinesq-convection/internal/run"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	return conn
}

func waitClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != want {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.Clients(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcastsSamples(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	waitClients(t, hub, 1)

	sent := run.Sample{Iteration: 42, SimTime: 1.5, Re: 2.5, Nu: 1.8, Ra: 1e5, Q: 1, Phase: "running"}
	hub.OnSample(sent)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got run.Sample
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got != sent {
		t.Errorf("received %+v, want %+v", got, sent)
	}
}

func TestHubReplaysLastSampleToNewClient(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	sent := run.Sample{Iteration: 7, Re: 3.1, Phase: "armed"}
	hub.OnSample(sent)

	conn := dial(t, srv)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got run.Sample
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got != sent {
		t.Errorf("replayed %+v, want %+v", got, sent)
	}
}

func TestHubDropsClosedClients(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	first := dial(t, srv)
	second := dial(t, srv)
	defer second.Close()
	waitClients(t, hub, 2)

	first.Close()
	waitClients(t, hub, 1)

	// the survivor still receives broadcasts
	hub.OnSample(run.Sample{Iteration: 1})
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got run.Sample
	if err := second.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON after drop: %v", err)
	}
	if got.Iteration != 1 {
		t.Errorf("iteration = %d, want 1", got.Iteration)
	}
}
