package preview

import (
	"testing"
	"time"
)

func TestHubRunExitsOnStop(t *testing.T) {
	stop := make(chan struct{})
	h := newHub("camera1", stop)

	done := make(chan struct{})
	go func() {
		h.run()
		close(done)
	}()

	// A frame with no clients is consumed and discarded.
	h.send([]byte{0xff, 0xd8})

	close(stop)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub loop did not exit after stop")
	}
}

func TestHubStopReleasesClients(t *testing.T) {
	stop := make(chan struct{})
	h := newHub("camera1", stop)

	done := make(chan struct{})
	go func() {
		h.run()
		close(done)
	}()

	c := &client{hub: h, send: make(chan []byte, 16)}
	h.register <- c

	if got := h.clientCount(); got != 1 {
		t.Fatalf("clientCount() = %d, want 1", got)
	}

	close(stop)
	<-done

	// The client's send channel is closed so its write pump can exit.
	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatal("expected closed send channel, got a frame")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client send channel never closed")
	}
	if got := h.clientCount(); got != 0 {
		t.Errorf("clientCount() = %d after stop, want 0", got)
	}
}

func TestHubSendNeverBlocks(t *testing.T) {
	// No run loop draining broadcast: send must still return.
	h := newHub("camera1", make(chan struct{}))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			h.send([]byte{byte(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("send blocked with a full broadcast queue")
	}
}
