package asr

import (
	"bytes"
	"testing"
)

func TestSessionListensOnCreate(t *testing.T) {
	s := NewSession("conn-1")
	if !s.Listening() {
		t.Fatal("new session should be listening")
	}
	if !s.AppendFrame([]byte{1, 2, 3}) {
		t.Fatal("frame before explicit start should be kept")
	}
	if s.Buffered() != 3 {
		t.Fatalf("expected 3 buffered bytes, got %d", s.Buffered())
	}
}

func TestStartResetsBuffer(t *testing.T) {
	s := NewSession("conn-1")
	s.AppendFrame([]byte{1, 2, 3})
	s.Start()
	if s.Buffered() != 0 {
		t.Fatalf("start should clear the buffer, got %d bytes", s.Buffered())
	}
	s.AppendFrame([]byte{4, 5})
	if got := s.Stop(); !bytes.Equal(got, []byte{4, 5}) {
		t.Fatalf("unexpected buffer %v", got)
	}
}

func TestStopHandsOffAndClears(t *testing.T) {
	s := NewSession("conn-1")
	s.Start()
	s.AppendFrame([]byte{1, 2})
	s.AppendFrame([]byte{3})

	got := s.Stop()
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("unexpected buffer %v", got)
	}
	if s.Listening() {
		t.Fatal("session should not be listening after stop")
	}
	if s.Buffered() != 0 {
		t.Fatalf("buffer should be cleared after stop, got %d", s.Buffered())
	}
	if s.AppendFrame([]byte{9}) {
		t.Fatal("frame after stop should be dropped")
	}
}

func TestRestartDoesNotAliasHandedOffBuffer(t *testing.T) {
	s := NewSession("conn-1")
	s.Start()
	s.AppendFrame([]byte{1, 2, 3})
	handed := s.Stop()
	snapshot := append([]byte(nil), handed...)

	s.Start()
	s.AppendFrame(bytes.Repeat([]byte{7}, 128))
	if !bytes.Equal(handed, snapshot) {
		t.Fatal("restart mutated a previously handed-off buffer")
	}
}
