package application

import (
	"context"
	"fmt"
	"time"

	"github.com/ark-network/coinjoin/internal/core/domain"
)

// validateInput checks a registration against the chain and the fraud
// records, and returns the input to queue.
func (s *service) validateInput(
	ctx context.Context, pool domain.Pool, req RegisterInputRequest,
) (*domain.RegisteredInput, error) {
	reject := func(format string, args ...any) error {
		return domain.InputRejectedError{
			Outpoint: req.Outpoint,
			Reason:   fmt.Sprintf(format, args...),
		}
	}

	if len(req.Identity) <= 0 {
		return nil, reject("missing identity")
	}
	if len(req.Outpoint.Txid) != 64 {
		return nil, reject("invalid txid")
	}
	if len(req.Signature) <= 0 {
		return nil, reject("missing ownership signature")
	}

	ctx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()

	banned, reason, err := s.fraud.IsBanned(ctx, req.Outpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to check ban for %s: %s", req.Outpoint, err)
	}
	if banned {
		return nil, reject("banned: %s", reason)
	}

	tx, err := s.blockchain.FetchTransaction(ctx, req.Outpoint.Txid)
	if err != nil {
		return nil, reject("failed to fetch tx: %s", err)
	}
	out, err := s.builder.GetTxOutput(tx, req.Outpoint.VOut)
	if err != nil {
		return nil, reject("%s", err)
	}

	unspent, err := s.blockchain.IsUnspent(ctx, req.Outpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to check spent status of %s: %s", req.Outpoint, err)
	}
	if !unspent {
		return nil, reject("already spent")
	}

	if err := s.builder.VerifyMessage(out.Address, pool.Id, req.Signature); err != nil {
		return nil, reject("invalid ownership signature: %s", err)
	}

	minConfirmations := s.cfg.MinConfirmationsMustMix
	if req.Liquidity {
		if out.Value != pool.Denomination {
			return nil, reject(
				"liquidity value %d does not match denomination %d",
				out.Value, pool.Denomination,
			)
		}
		minConfirmations = s.cfg.MinConfirmationsLiquidity
	} else {
		minValue, maxValue := pool.MustMixValueRange()
		if out.Value < minValue || out.Value > maxValue {
			return nil, reject("value %d out of range [%d, %d]", out.Value, minValue, maxValue)
		}
	}

	confirmations, err := s.blockchain.GetConfirmations(ctx, req.Outpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get confirmations of %s: %s", req.Outpoint, err)
	}
	if confirmations < minConfirmations {
		return nil, reject(
			"not enough confirmations %d/%d", confirmations, minConfirmations,
		)
	}

	return &domain.RegisteredInput{
		Identity:      req.Identity,
		PoolId:        pool.Id,
		Outpoint:      req.Outpoint,
		Value:         out.Value,
		Script:        out.Script,
		Address:       out.Address,
		Liquidity:     req.Liquidity,
		Confirmations: confirmations,
		UserHash:      req.UserHash,
		CreatedAt:     time.Now(),
	}, nil
}
