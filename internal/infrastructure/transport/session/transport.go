package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ark-network/coinjoin/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

const (
	bufferSize          = 32
	disconnectionBuffer = 128
)

type listener struct {
	id string
	ch chan ports.Message
}

// transport keeps one live session per client. A client dropping its
// session is reported as disconnected, and its unconfirmed inputs are not
// requeued.
type transport struct {
	lock      sync.RWMutex
	listeners map[string]*listener
	heartbeat time.Duration

	disconnections chan string
	closed         bool
}

func NewTransport(heartbeat time.Duration) (ports.Transport, error) {
	if heartbeat <= 0 {
		return nil, fmt.Errorf("heartbeat interval must be greater than 0")
	}
	return &transport{
		listeners:      make(map[string]*listener),
		heartbeat:      heartbeat,
		disconnections: make(chan string, disconnectionBuffer),
	}, nil
}

// Deliver never blocks, channels are only closed under the write lock.
func (t *transport) Deliver(_ context.Context, identity string, msg ports.Message) error {
	t.lock.RLock()
	defer t.lock.RUnlock()

	l, ok := t.listeners[identity]
	if !ok {
		return fmt.Errorf("client %s not connected", identity)
	}

	select {
	case l.ch <- msg:
		return nil
	default:
		return fmt.Errorf("session of client %s is full", identity)
	}
}

// PollPending returns nothing, session clients call the coordinator directly.
func (t *transport) PollPending(context.Context, string) ([]ports.Message, error) {
	return nil, nil
}

// Subscribe replaces any previous session of the same identity.
func (t *transport) Subscribe(identity string) (<-chan ports.Message, func(), error) {
	if len(identity) <= 0 {
		return nil, nil, fmt.Errorf("missing identity")
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	if t.closed {
		return nil, nil, fmt.Errorf("transport closed")
	}
	if prev, ok := t.listeners[identity]; ok {
		close(prev.ch)
	}
	l := &listener{id: identity, ch: make(chan ports.Message, bufferSize)}
	t.listeners[identity] = l

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() { t.removeListener(l) })
	}
	return l.ch, unsubscribe, nil
}

func (t *transport) HeartbeatInterval() time.Duration { return t.heartbeat }

func (t *transport) RequeueOnConfirmExpiry() bool { return false }

func (t *transport) Disconnections() <-chan string { return t.disconnections }

func (t *transport) Close() {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	for id, l := range t.listeners {
		close(l.ch)
		delete(t.listeners, id)
	}
	close(t.disconnections)
}

func (t *transport) removeListener(l *listener) {
	t.lock.Lock()
	defer t.lock.Unlock()

	// the session was already replaced or the transport closed
	if current, ok := t.listeners[l.id]; !ok || current != l {
		return
	}
	delete(t.listeners, l.id)
	close(l.ch)

	select {
	case t.disconnections <- l.id:
	default:
		log.Warnf("dropping disconnection of %s, buffer is full", l.id)
	}
}
