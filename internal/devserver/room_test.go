package devserver

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestJoinAfterRoomEmptiesFailsFast(t *testing.T) {
	removed := make(chan string, 1)
	r := newRoom("AB12", "My Lobby", 4, DefaultQuiz(), zap.NewNop(), func(code string) { removed <- code })

	creator := &client{id: "u1", name: "Alice", outbox: make(chan []byte, 16)}
	if !r.join(creator, "Create") {
		t.Fatalf("creator join must succeed")
	}

	r.post(leave{ClientID: "u1"})
	select {
	case <-removed:
	case <-time.After(time.Second):
		t.Fatalf("empty room never unregistered")
	}

	// A join racing the room's exit must be refused, not parked forever.
	late := &client{id: "u2", name: "Bob", outbox: make(chan []byte, 16)}
	result := make(chan bool, 1)
	go func() { result <- r.join(late, "Join") }()

	select {
	case ok := <-result:
		if ok {
			t.Fatalf("join to a dead room must fail")
		}
	case <-time.After(time.Second):
		t.Fatalf("join to a dead room must not block")
	}

	select {
	case data := <-late.outbox:
		if string(data) != `{"message":"Join room failed: room not found"}` {
			t.Fatalf("unexpected failure envelope: %s", data)
		}
	default:
		t.Fatalf("refused join must carry a failure envelope")
	}
}

func TestPostToDeadRoomDoesNotBlock(t *testing.T) {
	removed := make(chan string, 1)
	r := newRoom("AB12", "My Lobby", 4, DefaultQuiz(), zap.NewNop(), func(code string) { removed <- code })

	creator := &client{id: "u1", name: "Alice", outbox: make(chan []byte, 16)}
	if !r.join(creator, "Create") {
		t.Fatalf("creator join must succeed")
	}
	r.post(leave{ClientID: "u1"})
	<-removed
	<-r.done

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			r.post(leave{ClientID: "ghost"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("posting to a dead room must not block")
	}
}
