// Package logsink funnels every log line of a run through one goroutine, so
// concurrent workers can log without sharing a lock.
package logsink

import (
	"io"
	"sync"
)

const defaultBuffer = 1024

type Sink struct {
	out  io.Writer
	ch   chan []byte
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

func New(out io.Writer) *Sink {
	return NewBuffered(out, defaultBuffer)
}

// NewBuffered lets n lines queue before Write blocks.
func NewBuffered(out io.Writer, n int) *Sink {
	s := &Sink{
		out:  out,
		ch:   make(chan []byte, n),
		done: make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *Sink) loop() {
	defer close(s.done)
	for b := range s.ch {
		_, _ = s.out.Write(b)
	}
}

// Write queues a copy of p. After Close it drops p and reports io.ErrClosedPipe.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	b := make([]byte, len(p))
	copy(b, p)
	s.ch <- b
	return len(p), nil
}

// Close flushes queued lines and stops the writer goroutine.
func (s *Sink) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	s.mu.Unlock()
	<-s.done
	return nil
}
