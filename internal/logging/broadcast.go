package logging

import (
	"bytes"
	"sync"
)

// Broadcaster fans complete log lines out to subscriber channels. It
// replaces an ambient event emitter with an owned service: callers
// construct it, wire it into a Logger via WithBroadcaster, and control
// its lifecycle with Start/Stop. Writes before Start or after Stop are
// dropped, as are lines to subscribers whose buffers are full.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[int]chan string
	nextID  int
	running bool
	buf     bytes.Buffer
	bufSize int
}

// NewBroadcaster creates a broadcaster whose subscriber channels buffer
// bufSize lines each.
func NewBroadcaster(bufSize int) *Broadcaster {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Broadcaster{
		subs:    make(map[int]chan string),
		bufSize: bufSize,
	}
}

// Start begins delivering lines to subscribers.
func (b *Broadcaster) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = true
}

// Stop stops delivery and closes all subscriber channels.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	b.running = false
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The channel is closed on unsubscribe or Stop.
func (b *Broadcaster) Subscribe() (<-chan string, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan string, b.bufSize)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			close(sub)
			delete(b.subs, id)
		}
	}
	return ch, cancel
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Write implements io.Writer so the broadcaster can sit behind a
// MultiWriter on the logger's output. Partial lines are buffered until
// a newline completes them.
func (b *Broadcaster) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf.Write(p)
	for {
		line, err := b.buf.ReadString('\n')
		if err != nil {
			// Incomplete line, keep for the next write
			b.buf.WriteString(line)
			break
		}
		if !b.running {
			continue
		}
		trimmed := line[:len(line)-1]
		for _, ch := range b.subs {
			select {
			case ch <- trimmed:
			default:
				// Slow subscriber loses lines rather than
				// stalling the logger
			}
		}
	}
	return len(p), nil
}
