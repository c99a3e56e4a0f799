package httpservice

import "github.com/ark-network/coinjoin/internal/core/ports"

// Identity is the only credential of a client: whoever knows it can act on
// its inputs, read its messages and reveal or sign in its name. Clients must
// pick a fresh random value, at least 128 bits, for every registration.
type registerInputRequest struct {
	Identity  string `json:"identity" binding:"required"`
	Outpoint  string `json:"outpoint" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Liquidity bool   `json:"liquidity"`
	UserHash  string `json:"userHash"`
}

type unregisterInputRequest struct {
	Identity string `json:"identity" binding:"required"`
	Outpoint string `json:"outpoint" binding:"required"`
}

// Binary fields are hex encoded.

type confirmInputRequest struct {
	Identity         string `json:"identity" binding:"required"`
	Outpoint         string `json:"outpoint" binding:"required"`
	BlindedBordereau string `json:"blindedBordereau" binding:"required"`
}

type confirmInputResponse struct {
	SignedBlindedBordereau string `json:"signedBlindedBordereau"`
}

type registerOutputRequest struct {
	Address   string `json:"address" binding:"required"`
	Bordereau string `json:"bordereau" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

type revealOutputRequest struct {
	Identity string `json:"identity" binding:"required"`
	Address  string `json:"address" binding:"required"`
}

type signInputRequest struct {
	Identity string   `json:"identity" binding:"required"`
	Witness  []string `json:"witness" binding:"required"`
}

type signInputResponse struct {
	InputIndex int `json:"inputIndex"`
}

type messagesResponse struct {
	Messages []ports.Message `json:"messages"`
}

type poolResponse struct {
	PoolId             string         `json:"poolId"`
	Denomination       uint64         `json:"denomination"`
	MustMixBalanceMin  uint64         `json:"mustMixBalanceMin"`
	MustMixBalanceCap  uint64         `json:"mustMixBalanceCap"`
	MustMixBalanceMax  uint64         `json:"mustMixBalanceMax"`
	MinMustMix         int            `json:"minMustMix"`
	MinLiquidity       int            `json:"minLiquidity"`
	AnonymitySet       int            `json:"anonymitySet"`
	NumMustMixQueued   int            `json:"numMustMixQueued"`
	NumLiquidityQueued int            `json:"numLiquidityQueued"`
	Round              *roundResponse `json:"round,omitempty"`
}

type roundResponse struct {
	Id             string `json:"id"`
	Phase          string `json:"phase"`
	PhaseStartedAt int64  `json:"phaseStartedAt"`
	ElapsedSeconds int64  `json:"elapsedSeconds"`
	NumAdmitted    int    `json:"numAdmitted"`
	NumConfirming  int    `json:"numConfirming"`
	NumMustMix     int    `json:"numMustMix"`
	NumLiquidity   int    `json:"numLiquidity"`
	MinerFee       uint64 `json:"minerFee"`
	SurgeLevel     int    `json:"surgeLevel"`
}

type roundOutcomeResponse struct {
	Id           string `json:"id"`
	Phase        string `json:"phase"`
	Txid         string `json:"txid,omitempty"`
	FailReason   string `json:"failReason,omitempty"`
	FailInfo     string `json:"failInfo,omitempty"`
	NumMustMix   int    `json:"numMustMix"`
	NumLiquidity int    `json:"numLiquidity"`
	NumBlamed    int    `json:"numBlamed"`
	MinerFee     uint64 `json:"minerFee"`
	SurgeLevel   int    `json:"surgeLevel"`
	StartedAt    int64  `json:"startedAt"`
	EndedAt      int64  `json:"endedAt"`
}

type errorResponse struct {
	Error string `json:"error"`
}
