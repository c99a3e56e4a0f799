package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ark-network/coinjoin/internal/core/domain"
	"github.com/ark-network/coinjoin/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

const externalCallTimeout = 15 * time.Second

type Config struct {
	Pools                     []domain.Pool
	BlindKeyBits              int
	ConfirmInputTimeout       time.Duration
	RegisterOutputTimeout     time.Duration
	RevealOutputTimeout       time.Duration
	SigningTimeout            time.Duration
	SurgeWaitDelay            time.Duration
	WatchdogInterval          time.Duration
	BoardPollInterval         time.Duration
	MinConfirmationsMustMix   uint32
	MinConfirmationsLiquidity uint32
}

type service struct {
	cfg    Config
	timing roundTiming

	liveStore   ports.LiveStore
	repoManager ports.RepoManager
	builder     ports.TxBuilder
	blockchain  ports.BlockchainService
	fraud       ports.FraudService
	transport   ports.Transport
	scheduler   ports.SchedulerService

	pools      map[string]*poolRunner
	poolIds    []string
	stopPoller func()
	quit       chan struct{}
	wg         sync.WaitGroup
}

func NewService(
	cfg Config,
	liveStore ports.LiveStore, repoManager ports.RepoManager,
	builder ports.TxBuilder, blockchain ports.BlockchainService,
	fraud ports.FraudService, transport ports.Transport,
	scheduler ports.SchedulerService,
) (Service, error) {
	if len(cfg.Pools) <= 0 {
		return nil, fmt.Errorf("missing pools")
	}
	if cfg.WatchdogInterval <= 0 {
		return nil, fmt.Errorf("watchdog interval must be greater than 0")
	}

	svc := &service{
		cfg: cfg,
		timing: roundTiming{
			confirmInputTimeout:   cfg.ConfirmInputTimeout,
			registerOutputTimeout: cfg.RegisterOutputTimeout,
			revealOutputTimeout:   cfg.RevealOutputTimeout,
			signingTimeout:        cfg.SigningTimeout,
			surgeWaitDelay:        cfg.SurgeWaitDelay,
		},
		liveStore:   liveStore,
		repoManager: repoManager,
		builder:     builder,
		blockchain:  blockchain,
		fraud:       fraud,
		transport:   transport,
		scheduler:   scheduler,
		pools:       make(map[string]*poolRunner),
		poolIds:     make([]string, 0, len(cfg.Pools)),
		quit:        make(chan struct{}),
	}

	for _, pool := range cfg.Pools {
		if err := pool.Validate(); err != nil {
			return nil, err
		}
		if _, ok := svc.pools[pool.Id]; ok {
			return nil, fmt.Errorf("duplicated pool %s", pool.Id)
		}
		svc.pools[pool.Id] = newPoolRunner(svc, pool)
		svc.poolIds = append(svc.poolIds, pool.Id)
	}
	sort.Strings(svc.poolIds)

	return svc, nil
}

func (s *service) Start() error {
	log.Debug("starting scheduler...")
	s.scheduler.Start()

	for _, id := range s.poolIds {
		if err := s.pools[id].start(); err != nil {
			return fmt.Errorf("failed to start pool %s: %s", id, err)
		}
		log.Infof("started pool %s", id)
	}

	if s.cfg.BoardPollInterval > 0 {
		stop, err := s.scheduler.ScheduleTask(s.cfg.BoardPollInterval, s.pollRegistrations)
		if err != nil {
			return fmt.Errorf("failed to schedule board poller: %s", err)
		}
		s.stopPoller = stop
	}

	s.wg.Add(1)
	go s.listenToDisconnections()
	return nil
}

func (s *service) Stop() {
	if s.stopPoller != nil {
		s.stopPoller()
	}
	close(s.quit)
	for _, id := range s.poolIds {
		s.pools[id].stop()
	}
	s.wg.Wait()

	s.scheduler.Stop()
	log.Debug("stopped scheduler")
	s.transport.Close()
	log.Debug("closed transport")
	s.liveStore.Close()
	log.Debug("closed live store")
	s.repoManager.Close()
	log.Debug("closed connection to db")
}

func (s *service) RegisterInput(ctx context.Context, req RegisterInputRequest) error {
	runner, ok := s.pools[req.PoolId]
	if !ok {
		return domain.ErrPoolNotFound
	}

	input, err := s.validateInput(ctx, runner.pool, req)
	if err != nil {
		return err
	}
	if err := s.checkDuplicatedInput(*input); err != nil {
		return err
	}

	return runner.do(ctx, func() error {
		return runner.enqueue(*input)
	})
}

func (s *service) UnregisterInput(
	ctx context.Context, poolId, identity string, outpoint domain.Outpoint,
) error {
	runner, ok := s.pools[poolId]
	if !ok {
		return domain.ErrPoolNotFound
	}
	key := domain.InputKey{Outpoint: outpoint, Identity: identity}
	return runner.do(ctx, func() error {
		return runner.unregister(key)
	})
}

func (s *service) ConfirmInput(
	ctx context.Context, roundId, identity string,
	outpoint domain.Outpoint, blindedBordereau []byte,
) ([]byte, error) {
	runner, err := s.getRunnerByRound(roundId)
	if err != nil {
		return nil, err
	}

	var signed []byte
	key := domain.InputKey{Outpoint: outpoint, Identity: identity}
	if err := runner.do(ctx, func() error {
		var err error
		signed, err = runner.confirmInput(roundId, key, blindedBordereau)
		return err
	}); err != nil {
		return nil, err
	}
	return signed, nil
}

func (s *service) RegisterOutput(
	ctx context.Context, roundId, address string, bordereau, signature []byte,
) error {
	runner, err := s.getRunnerByRound(roundId)
	if err != nil {
		return err
	}
	return runner.do(ctx, func() error {
		return runner.registerOutput(roundId, address, bordereau, signature)
	})
}

func (s *service) RevealOutput(ctx context.Context, roundId, identity, address string) error {
	runner, err := s.getRunnerByRound(roundId)
	if err != nil {
		return err
	}
	return runner.do(ctx, func() error {
		return runner.revealOutput(roundId, identity, address)
	})
}

func (s *service) SignInput(
	ctx context.Context, roundId, identity string, witness [][]byte,
) (int, error) {
	runner, err := s.getRunnerByRound(roundId)
	if err != nil {
		return -1, err
	}

	index := -1
	if err := runner.do(ctx, func() error {
		var err error
		index, err = runner.sign(roundId, identity, witness)
		return err
	}); err != nil {
		return -1, err
	}
	return index, nil
}

func (s *service) Disconnect(ctx context.Context, identity string) {
	for _, id := range s.poolIds {
		runner := s.pools[id]
		if err := runner.do(ctx, func() error {
			runner.disconnect(identity)
			return nil
		}); err != nil {
			log.WithError(err).Warnf("failed to disconnect %s from pool %s", identity, id)
		}
	}
}

func (s *service) GetPools(_ context.Context) ([]PoolStatus, error) {
	pools := make([]PoolStatus, 0, len(s.poolIds))
	for _, id := range s.poolIds {
		pools = append(pools, s.pools[id].getStatus())
	}
	return pools, nil
}

func (s *service) GetRoundOutcomes(
	ctx context.Context, poolId string, limit int,
) ([]domain.RoundOutcome, error) {
	if _, ok := s.pools[poolId]; !ok {
		return nil, domain.ErrPoolNotFound
	}
	return s.repoManager.Rounds().GetRoundOutcomes(ctx, poolId, limit)
}

func (s *service) getRunnerByRound(roundId string) (*poolRunner, error) {
	for _, id := range s.poolIds {
		runner := s.pools[id]
		if runner.getRoundId() == roundId {
			return runner, nil
		}
	}
	return nil, domain.ErrRoundNotFound
}

// checkDuplicatedInput rejects an outpoint already registered by another
// identity in any pool.
func (s *service) checkDuplicatedInput(input domain.RegisteredInput) error {
	sameOutpointOtherOwner := domain.And(
		domain.MatchOutpoint(input.Outpoint),
		domain.Not(domain.MatchIdentity(input.Identity)),
	)
	for _, id := range s.poolIds {
		if s.pools[id].holds(sameOutpointOtherOwner) {
			return domain.InputRejectedError{
				Outpoint: input.Outpoint,
				Reason:   "already registered by another client",
			}
		}
	}
	return nil
}

func (s *service) listenToDisconnections() {
	defer s.wg.Done()

	disconnections := s.transport.Disconnections()
	for {
		select {
		case <-s.quit:
			return
		case identity, ok := <-disconnections:
			if !ok {
				return
			}
			log.Debugf("client %s disconnected", identity)
			ctx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
			s.Disconnect(ctx, identity)
			cancel()
		}
	}
}

// pollRegistrations fetches the input registrations posted to the board
// for every pool.
func (s *service) pollRegistrations() {
	for _, id := range s.poolIds {
		ctx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
		msgs, err := s.transport.PollPending(ctx, id)
		cancel()
		if err != nil {
			log.WithError(err).Warnf("failed to poll registrations for pool %s", id)
			continue
		}

		for _, msg := range msgs {
			if msg.Type != ports.MsgRegisterInput {
				log.Debugf("ignoring message of type %s posted to pool %s", msg.Type, id)
				continue
			}
			req, err := decodeRegisterInputRequest(msg.Body)
			if err != nil {
				log.WithError(err).Debug("ignoring malformed registration")
				continue
			}
			req.PoolId = id

			ctx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
			if err := s.RegisterInput(ctx, *req); err != nil {
				log.WithError(err).Debugf("registration of %s refused", req.Outpoint)
				s.deliver(ctx, req.Identity, ports.Message{
					Type:   ports.MsgInputRejected,
					PoolId: id,
					Body: InputRejected{
						Outpoint: req.Outpoint.String(),
						Reason:   err.Error(),
					},
				})
			}
			cancel()
		}
	}
}

func (s *service) deliver(ctx context.Context, identity string, msg ports.Message) {
	if msg.Timestamp <= 0 {
		msg.Timestamp = time.Now().Unix()
	}
	if err := s.transport.Deliver(ctx, identity, msg); err != nil {
		log.WithError(err).Debugf("failed to deliver %s to %s", msg.Type, identity)
	}
}

func decodeRegisterInputRequest(body any) (*RegisterInputRequest, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	var req RegisterInputRequest
	if err := json.Unmarshal(buf, &req); err != nil {
		return nil, err
	}
	if len(req.Identity) <= 0 {
		return nil, fmt.Errorf("missing identity")
	}
	return &req, nil
}
