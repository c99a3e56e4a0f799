package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ark-network/coinjoin/internal/core/domain"
	"github.com/ark-network/coinjoin/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

type mockedTxBuilder struct {
	mock.Mock
}

func (m *mockedTxBuilder) GetTxOutput(tx string, vout uint32) (*ports.TxOutput, error) {
	args := m.Called(tx, vout)

	var res *ports.TxOutput
	if a := args.Get(0); a != nil {
		res = a.(*ports.TxOutput)
	}
	return res, args.Error(1)
}

func (m *mockedTxBuilder) VerifyMessage(address, message, signature string) error {
	args := m.Called(address, message, signature)
	return args.Error(0)
}

func (m *mockedTxBuilder) ValidateAddress(address string) error {
	args := m.Called(address)
	return args.Error(0)
}

func (m *mockedTxBuilder) BuildJointTx(
	inputs []domain.RegisteredInput, outputs []string, denomination uint64,
) (string, error) {
	args := m.Called(inputs, outputs, denomination)
	return args.String(0), args.Error(1)
}

func (m *mockedTxBuilder) ApplyWitness(
	tx string, inputIndex int, witness [][]byte,
) (string, error) {
	args := m.Called(tx, inputIndex, witness)
	return args.String(0), args.Error(1)
}

func (m *mockedTxBuilder) Verify(tx string, prevouts []domain.RegisteredInput) error {
	args := m.Called(tx, prevouts)
	return args.Error(0)
}

func (m *mockedTxBuilder) GetTxid(tx string) (string, error) {
	args := m.Called(tx)
	return args.String(0), args.Error(1)
}

type mockedBlockchain struct {
	mock.Mock
}

func (m *mockedBlockchain) GetConfirmations(
	ctx context.Context, outpoint domain.Outpoint,
) (uint32, error) {
	args := m.Called(ctx, outpoint)
	return args.Get(0).(uint32), args.Error(1)
}

func (m *mockedBlockchain) IsUnspent(ctx context.Context, outpoint domain.Outpoint) (bool, error) {
	args := m.Called(ctx, outpoint)
	return args.Bool(0), args.Error(1)
}

func (m *mockedBlockchain) FetchTransaction(ctx context.Context, txid string) (string, error) {
	args := m.Called(ctx, txid)
	return args.String(0), args.Error(1)
}

func (m *mockedBlockchain) Broadcast(ctx context.Context, tx string) (string, error) {
	args := m.Called(ctx, tx)
	return args.String(0), args.Error(1)
}

// fakeTransport records every delivered message by recipient.
type fakeTransport struct {
	lock           sync.Mutex
	msgs           map[string][]ports.Message
	unreachable    map[string]struct{}
	heartbeat      time.Duration
	requeue        bool
	disconnections chan string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		msgs:           make(map[string][]ports.Message),
		unreachable:    make(map[string]struct{}),
		requeue:        true,
		disconnections: make(chan string),
	}
}

func (t *fakeTransport) Deliver(_ context.Context, identity string, msg ports.Message) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if _, ok := t.unreachable[identity]; ok {
		return fmt.Errorf("client %s not connected", identity)
	}
	t.msgs[identity] = append(t.msgs[identity], msg)
	return nil
}

func (t *fakeTransport) PollPending(context.Context, string) ([]ports.Message, error) {
	return nil, nil
}

func (t *fakeTransport) HeartbeatInterval() time.Duration { return t.heartbeat }
func (t *fakeTransport) RequeueOnConfirmExpiry() bool     { return t.requeue }
func (t *fakeTransport) Disconnections() <-chan string    { return t.disconnections }
func (t *fakeTransport) Close()                           {}

func (t *fakeTransport) received(identity string, msgType ports.MessageType) []ports.Message {
	t.lock.Lock()
	defer t.lock.Unlock()
	list := make([]ports.Message, 0)
	for _, msg := range t.msgs[identity] {
		if msg.Type == msgType {
			list = append(list, msg)
		}
	}
	return list
}

func (t *fakeTransport) last(identity string, msgType ports.MessageType) (ports.Message, bool) {
	list := t.received(identity, msgType)
	if len(list) <= 0 {
		return ports.Message{}, false
	}
	return list[len(list)-1], true
}

// fakeScheduler never fires, tests drive the watchdog by hand.
type fakeScheduler struct{}

func (fakeScheduler) Start() {}
func (fakeScheduler) Stop()  {}
func (fakeScheduler) ScheduleTask(time.Duration, func()) (func(), error) {
	return func() {}, nil
}
func (fakeScheduler) ScheduleTaskOnce(time.Time, func()) error { return nil }

type fakeFraud struct {
	lock   sync.Mutex
	blames []domain.Blame
	banned map[domain.Outpoint]string
}

func newFakeFraud() *fakeFraud {
	return &fakeFraud{banned: make(map[domain.Outpoint]string)}
}

func (f *fakeFraud) Blame(
	_ context.Context, input domain.RegisteredInput, reason, roundId string,
) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.blames = append(f.blames, domain.Blame{
		Outpoint: input.Outpoint,
		Identity: input.Identity,
		RoundId:  roundId,
		Reason:   reason,
	})
	return nil
}

func (f *fakeFraud) IsBanned(_ context.Context, outpoint domain.Outpoint) (bool, string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	reason, ok := f.banned[outpoint]
	return ok, reason, nil
}

func (f *fakeFraud) getBlames() []domain.Blame {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]domain.Blame{}, f.blames...)
}

type fakeRepoManager struct {
	rounds *fakeRoundRepo
}

func (m fakeRepoManager) Rounds() domain.RoundRepository { return m.rounds }
func (m fakeRepoManager) Blames() domain.BlameRepository { return nil }
func (m fakeRepoManager) Close()                         {}

type fakeRoundRepo struct {
	lock     sync.Mutex
	outcomes []domain.RoundOutcome
}

func (r *fakeRoundRepo) AddRoundOutcome(_ context.Context, outcome domain.RoundOutcome) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.outcomes = append(r.outcomes, outcome)
	return nil
}

func (r *fakeRoundRepo) GetRoundOutcome(_ context.Context, id string) (*domain.RoundOutcome, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, outcome := range r.outcomes {
		if outcome.Id == id {
			o := outcome
			return &o, nil
		}
	}
	return nil, domain.ErrRoundNotFound
}

func (r *fakeRoundRepo) GetRoundOutcomes(
	_ context.Context, poolId string, limit int,
) ([]domain.RoundOutcome, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	list := make([]domain.RoundOutcome, 0)
	for _, outcome := range r.outcomes {
		if outcome.PoolId == poolId {
			list = append(list, outcome)
		}
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (r *fakeRoundRepo) Close() {}
