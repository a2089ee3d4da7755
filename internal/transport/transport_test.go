// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"lipsync/pkg/utils"
)

type failingTransport struct{ closed bool }

func (f *failingTransport) Send(any) error { return errors.New("send failed") }
func (f *failingTransport) Close() error   { f.closed = true; return errors.New("close failed") }

func TestMultiFansOut(t *testing.T) {
	a, b := &utils.MockTransport{}, &utils.MockTransport{}
	bad := &failingTransport{}
	m := Multi{a, bad, b}

	if err := m.Send([]float32{1, 2}); err == nil {
		t.Error("Send() error = nil, want the failing transport's error")
	}
	if a.Count() != 1 || b.Count() != 1 {
		t.Errorf("counts = %d, %d; every transport should receive the payload", a.Count(), b.Count())
	}
	if err := m.Close(); err == nil {
		t.Error("Close() error = nil")
	}
	if !a.Closed || !b.Closed || !bad.closed {
		t.Error("not every transport was closed")
	}
}

func TestLoggingTransport(t *testing.T) {
	lt := NewLoggingTransport()
	if err := lt.Send(map[string]any{"viseme": "aa"}); err != nil {
		t.Errorf("Send() = %v", err)
	}
	if err := lt.Send(func() {}); err != nil {
		t.Errorf("Send(unmarshalable) = %v", err)
	}
	if err := lt.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "lipsync_up 1\n")
	})
	wst, err := NewWebSocketTransport("127.0.0.1:0", map[string]http.Handler{"/metrics": metrics})
	if err != nil {
		t.Fatal(err)
	}
	defer wst.Close()

	url := "ws://" + wst.Addr().String() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial(%s) error = %v", url, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for wst.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	type payload struct {
		Viseme  string    `json:"viseme"`
		Weights []float32 `json:"weights"`
	}
	if err := wst.Send(payload{Viseme: "oh", Weights: []float32{0.25, 0.75}}); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got payload
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if got.Viseme != "oh" || len(got.Weights) != 2 || got.Weights[1] != 0.75 {
		t.Errorf("received %+v", got)
	}

	resp, err := http.Get("http://" + wst.Addr().String() + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "lipsync_up 1\n" {
		t.Errorf("/metrics body = %q", body)
	}

	if err := wst.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	if err := wst.Send(payload{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() after Close = %v, want ErrClosed", err)
	}
	if wst.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d after Close", wst.ClientCount())
	}
}
