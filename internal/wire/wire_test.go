package wire

import (
	"bytes"
	"fmt"
	"testing"
	"time"
)

func freeTCPEndpoint(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("tcp://127.0.0.1:%d", 20000+(time.Now().UnixNano()%10000))
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	parts := [][]byte{[]byte("PING")}
	if err := writeMultipart(&buf, parts); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := readMultipart(&buf, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || string(got[0]) != "PING" {
		t.Fatalf("unexpected frames: %q", got)
	}
}

func TestFrameRoundTripMultiPart(t *testing.T) {
	var buf bytes.Buffer
	parts := [][]byte{{}, []byte("GOGO"), []byte("10000000")}
	if err := writeMultipart(&buf, parts); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := readMultipart(&buf, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(got))
	}
	if len(got[0]) != 0 {
		t.Fatalf("expected empty delimiter frame, got %q", got[0])
	}
	if string(got[1]) != "GOGO" || string(got[2]) != "10000000" {
		t.Fatalf("unexpected payload frames: %q %q", got[1], got[2])
	}
}

func TestFrameOversized(t *testing.T) {
	var buf bytes.Buffer
	if err := writeMultipart(&buf, [][]byte{make([]byte, 100)}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := readMultipart(&buf, 10); err == nil {
		t.Fatalf("expected oversized frame to be rejected")
	}
}

func dialRouter(t *testing.T, r *Router) *Dealer {
	t.Helper()
	d, err := NewDealer("tcp://"+r.Addr().String(), 5*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return d
}

func TestRouterDealerPingPong(t *testing.T) {
	r, err := NewRouter("tcp://127.0.0.1:0", 0, 0)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer r.Close()

	d := dialRouter(t, r)
	defer d.Close()

	if err := d.SendMultipart([][]byte{[]byte("PING")}, 500*time.Millisecond); err != nil {
		t.Fatalf("send ping: %v", err)
	}

	senderID, parts, err := r.RecvMultipart(2 * time.Second)
	if err != nil {
		t.Fatalf("router recv: %v", err)
	}
	if senderID == "" {
		t.Fatalf("expected a non-empty sender id")
	}
	if len(parts) != 1 || string(parts[0]) != "PING" {
		t.Fatalf("unexpected frames: %q", parts)
	}

	if err := r.SendMultipart(senderID, [][]byte{{}, []byte("PONG")}, 500*time.Millisecond); err != nil {
		t.Fatalf("router send: %v", err)
	}

	reply, err := d.RecvMultipart(2 * time.Second)
	if err != nil {
		t.Fatalf("dealer recv: %v", err)
	}
	if len(reply) != 2 || len(reply[0]) != 0 || string(reply[1]) != "PONG" {
		t.Fatalf("unexpected reply frames: %q", reply)
	}
}

func TestDealerRecvTimesOutOnIdlePeer(t *testing.T) {
	r, err := NewRouter("tcp://127.0.0.1:0", 0, 0)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer r.Close()

	d := dialRouter(t, r)
	defer d.Close()

	_, err = d.RecvMultipart(100 * time.Millisecond)
	if err == nil {
		t.Fatalf("expected a timeout error")
	}
}

func TestDealerOverallDeadlineExpires(t *testing.T) {
	r, err := NewRouter("tcp://127.0.0.1:0", 0, 0)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer r.Close()

	d, err := NewDealer("tcp://"+r.Addr().String(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer d.Close()

	time.Sleep(30 * time.Millisecond)
	_, err = d.RecvMultipart(time.Second)
	if err == nil {
		t.Fatalf("expected the overall deadline to have already expired")
	}
}

func TestRouterRemovesPeerOnDisconnect(t *testing.T) {
	r, err := NewRouter("tcp://127.0.0.1:0", 0, 0)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer r.Close()

	removed := make(chan string, 1)
	r.OnPeerRemoved(func(id string) { removed <- id })

	d := dialRouter(t, r)
	if err := d.SendMultipart([][]byte{[]byte("PING")}, time.Second); err != nil {
		t.Fatalf("send: %v", err)
	}
	senderID, _, err := r.RecvMultipart(2 * time.Second)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	_ = d.Close()

	select {
	case id := <-removed:
		if id != senderID {
			t.Fatalf("removed id %q != sender id %q", id, senderID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for peer removal")
	}
}

func TestRouterSendToUnknownPeerFails(t *testing.T) {
	r, err := NewRouter("tcp://127.0.0.1:0", 0, 0)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer r.Close()

	if err := r.SendMultipart("does-not-exist", [][]byte{[]byte("X")}, time.Second); err == nil {
		t.Fatalf("expected send to unknown peer to fail")
	}
}
