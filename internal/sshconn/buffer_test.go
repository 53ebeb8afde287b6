package sshconn

import "testing"

func TestOutputBufferReadConsumes(t *testing.T) {
	b := newOutputBuffer(64)
	b.Write([]byte("hello world"))

	p := make([]byte, 5)
	n, eof := b.read(p)
	if n != 5 || eof || string(p[:n]) != "hello" {
		t.Fatalf("read = %q, %v", p[:n], eof)
	}
	if b.Len() != 6 {
		t.Errorf("Len = %d, want 6", b.Len())
	}
}

func TestOutputBufferTrimsOldest(t *testing.T) {
	b := newOutputBuffer(8)
	b.Write([]byte("0123456789"))

	p := make([]byte, 16)
	n, _ := b.read(p)
	if got := string(p[:n]); got != "23456789" {
		t.Errorf("read = %q, want the newest 8 bytes", got)
	}
	if b.Dropped() != 2 {
		t.Errorf("Dropped = %d, want 2", b.Dropped())
	}
}

func TestOutputBufferEOFAfterDrain(t *testing.T) {
	b := newOutputBuffer(0)
	b.Write([]byte("ab"))
	b.closeWrite()

	if !b.readable() {
		t.Fatal("readable = false with pending data")
	}
	p := make([]byte, 1)
	if n, eof := b.read(p); n != 1 || eof {
		t.Fatalf("first read = %d, %v", n, eof)
	}
	if n, eof := b.read(p); n != 1 || eof {
		t.Fatalf("second read = %d, %v", n, eof)
	}
	if n, eof := b.read(p); n != 0 || !eof {
		t.Fatalf("drained read = %d, %v; want 0, true", n, eof)
	}
}

func TestOutputBufferNotify(t *testing.T) {
	b := newOutputBuffer(0)
	b.Write([]byte("x"))
	b.Write([]byte("y"))

	select {
	case <-b.Notify():
	default:
		t.Fatal("no notification after write")
	}
	select {
	case <-b.Notify():
		t.Fatal("notifications should coalesce")
	default:
	}
}
