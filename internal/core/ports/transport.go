package ports

import (
	"context"
	"time"
)

type MessageType string

const (
	MsgConfirmInputInvite  MessageType = "CONFIRM_INPUT_INVITE"
	MsgRegisterOutputStart MessageType = "REGISTER_OUTPUT_START"
	MsgRevealOutputRequest MessageType = "REVEAL_OUTPUT_REQUEST"
	MsgSigningRequest      MessageType = "SIGNING_REQUEST"
	MsgRoundResult         MessageType = "ROUND_RESULT"
	MsgInputRequeued       MessageType = "INPUT_REQUEUED"
	MsgInputRejected       MessageType = "INPUT_REJECTED"
	MsgRegisterInput       MessageType = "REGISTER_INPUT"
)

type Message struct {
	// Id is set by clients posting to a board, retried posts keep the same id.
	Id        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	PoolId    string      `json:"poolId,omitempty"`
	RoundId   string      `json:"roundId,omitempty"`
	Body      any         `json:"body,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Transport carries messages between the coordinator and the clients, either
// through a persistent session per client or through a store-and-forward
// board.
type Transport interface {
	Deliver(ctx context.Context, identity string, msg Message) error
	// PollPending returns and removes the messages posted to scope.
	PollPending(ctx context.Context, scope string) ([]Message, error)
	HeartbeatInterval() time.Duration
	// RequeueOnConfirmExpiry tells whether inputs that did not confirm in
	// time must be put back in queue.
	RequeueOnConfirmExpiry() bool
	// Disconnections emits the identities whose connection dropped.
	Disconnections() <-chan string
	Close()
}

// Board is implemented by store-and-forward transports: clients post their
// requests under a scope and fetch what was delivered to them.
type Board interface {
	Post(ctx context.Context, scope string, msg Message) error
	Fetch(ctx context.Context, identity string) ([]Message, error)
}

// SessionHub is implemented by transports holding a live session per client.
type SessionHub interface {
	// Subscribe opens the session of identity. Calling the returned function
	// closes it and reports the identity as disconnected.
	Subscribe(identity string) (<-chan Message, func(), error)
}
