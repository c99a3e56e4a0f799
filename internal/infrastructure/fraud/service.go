package fraud

import (
	"context"
	"fmt"
	"time"

	"github.com/ark-network/coinjoin/internal/core/domain"
	"github.com/ark-network/coinjoin/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

// service bans an outpoint for banDuration once it has been blamed in
// banThreshold distinct rounds. A zero threshold disables bans.
type service struct {
	repo         domain.BlameRepository
	banThreshold int
	banDuration  time.Duration
}

func NewService(
	repo domain.BlameRepository, banThreshold int, banDuration time.Duration,
) (ports.FraudService, error) {
	if repo == nil {
		return nil, fmt.Errorf("missing blame repository")
	}
	if banThreshold < 0 {
		return nil, fmt.Errorf("ban threshold must not be negative")
	}
	return &service{repo, banThreshold, banDuration}, nil
}

func (s *service) Blame(
	ctx context.Context, input domain.RegisteredInput, reason, roundId string,
) error {
	now := time.Now()
	if err := s.repo.AddBlame(ctx, domain.Blame{
		Outpoint:  input.Outpoint,
		Identity:  input.Identity,
		RoundId:   roundId,
		Reason:    reason,
		Timestamp: now.Unix(),
	}); err != nil {
		return fmt.Errorf("failed to add blame: %s", err)
	}
	log.WithField("round", roundId).Infof("blamed input %s: %s", input.Outpoint, reason)

	if s.banThreshold <= 0 {
		return nil
	}

	count, err := s.repo.CountBlames(ctx, input.Outpoint)
	if err != nil {
		return fmt.Errorf("failed to count blames: %s", err)
	}
	if count < s.banThreshold {
		return nil
	}

	var expiresAt int64
	if s.banDuration > 0 {
		expiresAt = now.Add(s.banDuration).Unix()
	}
	if err := s.repo.AddBan(ctx, domain.Ban{
		Outpoint:  input.Outpoint,
		Reason:    fmt.Sprintf("blamed %d times, last: %s", count, reason),
		CreatedAt: now.Unix(),
		ExpiresAt: expiresAt,
	}); err != nil {
		return fmt.Errorf("failed to add ban: %s", err)
	}
	log.Warnf("banned input %s after %d blames", input.Outpoint, count)
	return nil
}

func (s *service) IsBanned(ctx context.Context, outpoint domain.Outpoint) (bool, string, error) {
	ban, err := s.repo.GetBan(ctx, outpoint, time.Now())
	if err != nil {
		return false, "", err
	}
	if ban == nil {
		return false, "", nil
	}
	return true, ban.Reason, nil
}
