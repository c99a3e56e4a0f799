package esplora

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ark-network/coinjoin/internal/core/domain"
	"github.com/ark-network/coinjoin/internal/core/ports"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

var ErrTxNotFound = errors.New("transaction not found")

type esploraClient struct {
	url    string
	client *http.Client
}

type esploraTxStatus struct {
	Confirmed   bool  `json:"confirmed"`
	BlockHeight int64 `json:"block_height"`
	BlockTime   int64 `json:"block_time"`
}

type esploraOutspend struct {
	Spent bool   `json:"spent"`
	Txid  string `json:"txid"`
}

func NewService(esploraURL string) (ports.BlockchainService, error) {
	if _, err := url.ParseRequestURI(esploraURL); err != nil {
		return nil, fmt.Errorf("invalid esplora url: %s", err)
	}
	return &esploraClient{
		url:    strings.TrimSuffix(esploraURL, "/"),
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (f *esploraClient) GetConfirmations(
	ctx context.Context, outpoint domain.Outpoint,
) (uint32, error) {
	var status esploraTxStatus
	if err := f.getJSON(ctx, &status, "tx", outpoint.Txid, "status"); err != nil {
		return 0, err
	}
	if !status.Confirmed {
		return 0, nil
	}

	body, err := f.get(ctx, "blocks", "tip", "height")
	if err != nil {
		return 0, err
	}
	tip, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid tip height: %s", err)
	}
	if tip < status.BlockHeight {
		return 0, nil
	}
	return uint32(tip - status.BlockHeight + 1), nil
}

func (f *esploraClient) IsUnspent(ctx context.Context, outpoint domain.Outpoint) (bool, error) {
	var outspend esploraOutspend
	if err := f.getJSON(
		ctx, &outspend, "tx", outpoint.Txid, "outspend", strconv.Itoa(int(outpoint.VOut)),
	); err != nil {
		return false, err
	}
	return !outspend.Spent, nil
}

func (f *esploraClient) FetchTransaction(ctx context.Context, txid string) (string, error) {
	if _, err := chainhash.NewHashFromStr(txid); err != nil {
		return "", fmt.Errorf("invalid txid %s: %s", txid, err)
	}
	body, err := f.get(ctx, "tx", txid, "hex")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

func (f *esploraClient) Broadcast(ctx context.Context, txhex string) (string, error) {
	endpoint, err := url.JoinPath(f.url, "tx")
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, endpoint, strings.NewReader(txhex),
	)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to broadcast transaction: %s (%s)", resp.Status, content)
	}
	return strings.TrimSpace(string(content)), nil
}

func (f *esploraClient) get(ctx context.Context, path ...string) ([]byte, error) {
	endpoint, err := url.JoinPath(f.url, path...)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTxNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("esplora HTTP error: " + resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (f *esploraClient) getJSON(ctx context.Context, v any, path ...string) error {
	body, err := f.get(ctx, path...)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}
