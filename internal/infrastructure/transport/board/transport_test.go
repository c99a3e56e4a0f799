package board_test

import (
	"context"
	"testing"
	"time"

	"github.com/ark-network/coinjoin/internal/core/ports"
	"github.com/ark-network/coinjoin/internal/infrastructure/transport/board"
	"github.com/stretchr/testify/require"
)

func TestBoard(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid", func(t *testing.T) {
		_, err := board.NewTransport(0)
		require.Error(t, err)
	})

	t.Run("deliver and fetch", func(t *testing.T) {
		tr, err := board.NewTransport(time.Minute)
		require.NoError(t, err)
		defer tr.Close()
		b, ok := tr.(ports.Board)
		require.True(t, ok)

		require.True(t, tr.RequeueOnConfirmExpiry())
		require.Zero(t, tr.HeartbeatInterval())

		require.NoError(t, tr.Deliver(ctx, "alice", ports.Message{Type: ports.MsgRoundResult}))
		require.NoError(t, tr.Deliver(ctx, "alice", ports.Message{Type: ports.MsgInputRequeued}))
		require.Error(t, tr.Deliver(ctx, "", ports.Message{}))

		msgs, err := b.Fetch(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		require.Equal(t, ports.MsgRoundResult, msgs[0].Type)
		require.Equal(t, ports.MsgInputRequeued, msgs[1].Type)

		msgs, err = b.Fetch(ctx, "alice")
		require.NoError(t, err)
		require.Empty(t, msgs)
	})

	t.Run("post and poll", func(t *testing.T) {
		tr, err := board.NewTransport(time.Minute)
		require.NoError(t, err)
		defer tr.Close()
		b := tr.(ports.Board)

		msg := ports.Message{Id: "reg-1", Type: ports.MsgRegisterInput}
		require.NoError(t, b.Post(ctx, "0.1btc", msg))
		require.NoError(t, b.Post(ctx, "0.1btc", msg))
		require.NoError(t, b.Post(ctx, "0.1btc", ports.Message{Type: ports.MsgRegisterInput}))
		require.Error(t, b.Post(ctx, "", msg))

		msgs, err := tr.PollPending(ctx, "0.01btc")
		require.NoError(t, err)
		require.Empty(t, msgs)

		msgs, err = tr.PollPending(ctx, "0.1btc")
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		require.Equal(t, "reg-1", msgs[0].Id)
		require.NotEmpty(t, msgs[1].Id)
		require.NotZero(t, msgs[1].Timestamp)

		// retried post of an already consumed message
		require.NoError(t, b.Post(ctx, "0.1btc", msg))
		msgs, err = tr.PollPending(ctx, "0.1btc")
		require.NoError(t, err)
		require.Empty(t, msgs)
	})

	t.Run("expiry", func(t *testing.T) {
		tr, err := board.NewTransport(50 * time.Millisecond)
		require.NoError(t, err)
		defer tr.Close()

		require.NoError(t, tr.Deliver(ctx, "bob", ports.Message{Type: ports.MsgRoundResult}))
		time.Sleep(200 * time.Millisecond)

		msgs, err := tr.(ports.Board).Fetch(ctx, "bob")
		require.NoError(t, err)
		require.Empty(t, msgs)
	})
}
