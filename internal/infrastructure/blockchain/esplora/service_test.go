package esplora_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ark-network/coinjoin/internal/core/domain"
	"github.com/ark-network/coinjoin/internal/infrastructure/blockchain/esplora"
	"github.com/stretchr/testify/require"
)

var (
	confirmedTxid   = fmt.Sprintf("%064x", 1)
	unconfirmedTxid = fmt.Sprintf("%064x", 2)
	unknownTxid     = fmt.Sprintf("%064x", 3)
)

func newEsplora(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/blocks/tip/height", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "105")
	})
	mux.HandleFunc(fmt.Sprintf("/tx/%s/status", confirmedTxid), func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"confirmed":true,"block_height":100,"block_time":1700000000}`)
	})
	mux.HandleFunc(fmt.Sprintf("/tx/%s/status", unconfirmedTxid), func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"confirmed":false}`)
	})
	mux.HandleFunc(fmt.Sprintf("/tx/%s/hex", confirmedTxid), func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "0200000000000000000000\n")
	})
	mux.HandleFunc(fmt.Sprintf("/tx/%s/outspend/0", confirmedTxid), func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"spent":false}`)
	})
	mux.HandleFunc(fmt.Sprintf("/tx/%s/outspend/1", confirmedTxid), func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"spent":true,"txid":"%s"}`, unconfirmedTxid)
	})
	mux.HandleFunc("/tx", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) == "bad" {
			http.Error(w, "sendrawtransaction RPC error", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, confirmedTxid)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestEsplora(t *testing.T) {
	ctx := context.Background()
	server := newEsplora(t)
	svc, err := esplora.NewService(server.URL)
	require.NoError(t, err)

	t.Run("confirmations", func(t *testing.T) {
		confirmations, err := svc.GetConfirmations(ctx, domain.Outpoint{Txid: confirmedTxid})
		require.NoError(t, err)
		require.Equal(t, uint32(6), confirmations)

		confirmations, err = svc.GetConfirmations(ctx, domain.Outpoint{Txid: unconfirmedTxid})
		require.NoError(t, err)
		require.Zero(t, confirmations)

		_, err = svc.GetConfirmations(ctx, domain.Outpoint{Txid: unknownTxid})
		require.ErrorIs(t, err, esplora.ErrTxNotFound)
	})

	t.Run("unspent", func(t *testing.T) {
		unspent, err := svc.IsUnspent(ctx, domain.Outpoint{Txid: confirmedTxid, VOut: 0})
		require.NoError(t, err)
		require.True(t, unspent)

		unspent, err = svc.IsUnspent(ctx, domain.Outpoint{Txid: confirmedTxid, VOut: 1})
		require.NoError(t, err)
		require.False(t, unspent)
	})

	t.Run("fetch transaction", func(t *testing.T) {
		tx, err := svc.FetchTransaction(ctx, confirmedTxid)
		require.NoError(t, err)
		require.Equal(t, "0200000000000000000000", tx)

		_, err = svc.FetchTransaction(ctx, "nottxid")
		require.Error(t, err)
	})

	t.Run("broadcast", func(t *testing.T) {
		txid, err := svc.Broadcast(ctx, "0200000000000000000000")
		require.NoError(t, err)
		require.Equal(t, confirmedTxid, txid)

		_, err = svc.Broadcast(ctx, "bad")
		require.Error(t, err)
	})

	t.Run("invalid url", func(t *testing.T) {
		svc, err := esplora.NewService("not a url")
		require.Error(t, err)
		require.Nil(t, svc)
	})
}
