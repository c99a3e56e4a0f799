package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/ark-network/coinjoin/internal/core/ports"
	"github.com/ark-network/coinjoin/internal/infrastructure/transport/session"
	"github.com/stretchr/testify/require"
)

func TestSession(t *testing.T) {
	ctx := context.Background()

	_, err := session.NewTransport(0)
	require.Error(t, err)

	tr, err := session.NewTransport(time.Second)
	require.NoError(t, err)
	defer tr.Close()
	hub, ok := tr.(ports.SessionHub)
	require.True(t, ok)

	require.False(t, tr.RequeueOnConfirmExpiry())
	require.Equal(t, time.Second, tr.HeartbeatInterval())

	t.Run("deliver", func(t *testing.T) {
		require.Error(t, tr.Deliver(ctx, "alice", ports.Message{}))

		ch, unsubscribe, err := hub.Subscribe("alice")
		require.NoError(t, err)
		defer unsubscribe()

		require.NoError(t, tr.Deliver(ctx, "alice", ports.Message{Type: ports.MsgRoundResult}))
		msg := <-ch
		require.Equal(t, ports.MsgRoundResult, msg.Type)
	})

	t.Run("disconnect", func(t *testing.T) {
		ch, unsubscribe, err := hub.Subscribe("bob")
		require.NoError(t, err)

		unsubscribe()
		unsubscribe()

		_, ok := <-ch
		require.False(t, ok)
		require.Equal(t, "bob", <-tr.Disconnections())
		require.Error(t, tr.Deliver(ctx, "bob", ports.Message{}))
	})

	t.Run("resubscribe", func(t *testing.T) {
		first, unsubscribeFirst, err := hub.Subscribe("carol")
		require.NoError(t, err)
		second, unsubscribeSecond, err := hub.Subscribe("carol")
		require.NoError(t, err)
		defer unsubscribeSecond()

		_, ok := <-first
		require.False(t, ok)

		// closing a replaced session leaves the new one alive
		unsubscribeFirst()
		require.NoError(t, tr.Deliver(ctx, "carol", ports.Message{Type: ports.MsgSigningRequest}))
		msg := <-second
		require.Equal(t, ports.MsgSigningRequest, msg.Type)
	})
}
