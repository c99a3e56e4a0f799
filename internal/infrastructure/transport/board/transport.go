package board

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ark-network/coinjoin/internal/core/ports"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"
)

const maxEntries = 100000

// transport is a store-and-forward message board. Clients have no
// connection to lose, so inputs that miss their confirmation are requeued
// rather than dropped.
type transport struct {
	lock sync.Mutex
	// inbox holds what the coordinator delivered, by recipient.
	inbox *expirable.LRU[string, []ports.Message]
	// posted holds what clients posted, by scope.
	posted *expirable.LRU[string, []ports.Message]
	// seen holds the ids of the posted messages already handed out.
	seen *expirable.LRU[string, struct{}]

	disconnections chan string
}

func NewTransport(messageTTL time.Duration) (ports.Transport, error) {
	if messageTTL <= 0 {
		return nil, fmt.Errorf("message ttl must be greater than 0")
	}
	return &transport{
		inbox:          expirable.NewLRU[string, []ports.Message](maxEntries, nil, messageTTL),
		posted:         expirable.NewLRU[string, []ports.Message](maxEntries, nil, messageTTL),
		seen:           expirable.NewLRU[string, struct{}](maxEntries, nil, messageTTL),
		disconnections: make(chan string),
	}, nil
}

func (t *transport) Deliver(_ context.Context, identity string, msg ports.Message) error {
	if len(identity) <= 0 {
		return fmt.Errorf("missing recipient")
	}
	t.lock.Lock()
	defer t.lock.Unlock()

	msgs, _ := t.inbox.Peek(identity)
	t.inbox.Add(identity, append(msgs, msg))
	return nil
}

// PollPending drains the messages posted to scope. A message whose id was
// already returned within the ttl is dropped.
func (t *transport) PollPending(_ context.Context, scope string) ([]ports.Message, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	msgs, ok := t.posted.Peek(scope)
	if !ok {
		return nil, nil
	}
	t.posted.Remove(scope)

	pending := make([]ports.Message, 0, len(msgs))
	for _, msg := range msgs {
		if t.seen.Contains(msg.Id) {
			log.Debugf("dropping duplicated message %s posted to %s", msg.Id, scope)
			continue
		}
		t.seen.Add(msg.Id, struct{}{})
		pending = append(pending, msg)
	}
	return pending, nil
}

func (t *transport) Post(_ context.Context, scope string, msg ports.Message) error {
	if len(scope) <= 0 {
		return fmt.Errorf("missing scope")
	}
	if len(msg.Id) <= 0 {
		msg.Id = uuid.New().String()
	}
	if msg.Timestamp <= 0 {
		msg.Timestamp = time.Now().Unix()
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	msgs, _ := t.posted.Peek(scope)
	t.posted.Add(scope, append(msgs, msg))
	return nil
}

// Fetch drains the inbox of identity.
func (t *transport) Fetch(_ context.Context, identity string) ([]ports.Message, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	msgs, ok := t.inbox.Peek(identity)
	if !ok {
		return []ports.Message{}, nil
	}
	t.inbox.Remove(identity)
	return msgs, nil
}

func (t *transport) HeartbeatInterval() time.Duration { return 0 }

func (t *transport) RequeueOnConfirmExpiry() bool { return true }

// Disconnections never emits, board clients are never connected.
func (t *transport) Disconnections() <-chan string { return t.disconnections }

func (t *transport) Close() {
	t.inbox.Purge()
	t.posted.Purge()
	t.seen.Purge()
}
