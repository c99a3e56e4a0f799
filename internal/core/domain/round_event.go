package domain

const RoundTopic = "round"

type RoundEvent interface {
	GetTopic() string
}

func (e RoundStarted) GetTopic() string   { return RoundTopic }
func (e InputAdmitted) GetTopic() string  { return RoundTopic }
func (e PhaseChanged) GetTopic() string   { return RoundTopic }
func (e RoundSucceeded) GetTopic() string { return RoundTopic }
func (e RoundFailed) GetTopic() string    { return RoundTopic }

type RoundStarted struct {
	Id        string
	PoolId    string
	Timestamp int64
}

type InputAdmitted struct {
	Id        string
	Outpoint  Outpoint
	Liquidity bool
	Surge     int
	Timestamp int64
}

type PhaseChanged struct {
	Id        string
	From      PhaseCode
	To        PhaseCode
	Timestamp int64
}

type RoundSucceeded struct {
	Id        string
	Txid      string
	Timestamp int64
}

type RoundFailed struct {
	Id        string
	Reason    string
	Info      string
	Blamed    []InputKey
	Timestamp int64
}
