package httpservice

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ark-network/coinjoin/internal/core/application"
	"github.com/ark-network/coinjoin/internal/core/domain"
	"github.com/ark-network/coinjoin/internal/core/ports"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const defaultRoundsLimit = 20

type handler struct {
	svc       application.Service
	transport ports.Transport
}

func newHandler(svc application.Service, transport ports.Transport) *handler {
	return &handler{svc, transport}
}

func (h *handler) getPools(c *gin.Context) {
	pools, err := h.svc.GetPools(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	now := time.Now()
	list := make([]poolResponse, 0, len(pools))
	for _, p := range pools {
		pool := poolResponse{
			PoolId:             p.PoolId,
			Denomination:       p.Denomination,
			MustMixBalanceMin:  p.MustMixBalanceMin,
			MustMixBalanceCap:  p.MustMixBalanceCap,
			MustMixBalanceMax:  p.MustMixBalanceMax,
			MinMustMix:         p.MinMustMix,
			MinLiquidity:       p.MinLiquidity,
			AnonymitySet:       p.AnonymitySet,
			NumMustMixQueued:   p.NumMustMixQueued,
			NumLiquidityQueued: p.NumLiquidityQueued,
		}
		if r := p.Round; r != nil {
			pool.Round = &roundResponse{
				Id:             r.Id,
				Phase:          r.Phase,
				PhaseStartedAt: r.PhaseStartedAt.Unix(),
				ElapsedSeconds: int64(now.Sub(r.PhaseStartedAt).Seconds()),
				NumAdmitted:    r.NumAdmitted,
				NumConfirming:  r.NumConfirming,
				NumMustMix:     r.NumMustMix,
				NumLiquidity:   r.NumLiquidity,
				MinerFee:       r.MinerFee,
				SurgeLevel:     r.SurgeLevel,
			}
		}
		list = append(list, pool)
	}
	c.JSON(http.StatusOK, gin.H{"pools": list})
}

func (h *handler) getRoundOutcomes(c *gin.Context) {
	limit := defaultRoundsLimit
	if s := c.Query("limit"); len(s) > 0 {
		l, err := strconv.Atoi(s)
		if err != nil || l <= 0 {
			abortWithStatus(c, http.StatusBadRequest, fmt.Errorf("invalid limit %s", s))
			return
		}
		limit = l
	}

	outcomes, err := h.svc.GetRoundOutcomes(c.Request.Context(), c.Param("pool"), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}

	list := make([]roundOutcomeResponse, 0, len(outcomes))
	for _, o := range outcomes {
		list = append(list, roundOutcomeResponse{
			Id:           o.Id,
			Phase:        o.Phase.String(),
			Txid:         o.Txid,
			FailReason:   o.FailReason,
			FailInfo:     o.FailInfo,
			NumMustMix:   o.NumMustMix,
			NumLiquidity: o.NumLiquidity,
			NumBlamed:    len(o.Blamed),
			MinerFee:     o.MinerFee,
			SurgeLevel:   o.SurgeLevel,
			StartedAt:    o.StartingTimestamp,
			EndedAt:      o.EndingTimestamp,
		})
	}
	c.JSON(http.StatusOK, gin.H{"rounds": list})
}

func (h *handler) registerInput(c *gin.Context) {
	var req registerInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithStatus(c, http.StatusBadRequest, err)
		return
	}
	outpoint, err := domain.ParseOutpoint(req.Outpoint)
	if err != nil {
		abortWithStatus(c, http.StatusBadRequest, err)
		return
	}

	if err := h.svc.RegisterInput(c.Request.Context(), application.RegisterInputRequest{
		PoolId:    c.Param("pool"),
		Identity:  req.Identity,
		Outpoint:  outpoint,
		Signature: req.Signature,
		Liquidity: req.Liquidity,
		UserHash:  req.UserHash,
	}); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *handler) unregisterInput(c *gin.Context) {
	var req unregisterInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithStatus(c, http.StatusBadRequest, err)
		return
	}
	outpoint, err := domain.ParseOutpoint(req.Outpoint)
	if err != nil {
		abortWithStatus(c, http.StatusBadRequest, err)
		return
	}

	if err := h.svc.UnregisterInput(
		c.Request.Context(), c.Param("pool"), req.Identity, outpoint,
	); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *handler) confirmInput(c *gin.Context) {
	var req confirmInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithStatus(c, http.StatusBadRequest, err)
		return
	}
	outpoint, err := domain.ParseOutpoint(req.Outpoint)
	if err != nil {
		abortWithStatus(c, http.StatusBadRequest, err)
		return
	}
	blinded, err := hex.DecodeString(req.BlindedBordereau)
	if err != nil {
		abortWithStatus(c, http.StatusBadRequest, fmt.Errorf("invalid blinded bordereau: %s", err))
		return
	}

	signed, err := h.svc.ConfirmInput(
		c.Request.Context(), c.Param("round"), req.Identity, outpoint, blinded,
	)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, confirmInputResponse{hex.EncodeToString(signed)})
}

// registerOutput is called anonymously, the request carries no identity.
func (h *handler) registerOutput(c *gin.Context) {
	var req registerOutputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithStatus(c, http.StatusBadRequest, err)
		return
	}
	bordereau, err := hex.DecodeString(req.Bordereau)
	if err != nil {
		abortWithStatus(c, http.StatusBadRequest, fmt.Errorf("invalid bordereau: %s", err))
		return
	}
	sig, err := hex.DecodeString(req.Signature)
	if err != nil {
		abortWithStatus(c, http.StatusBadRequest, fmt.Errorf("invalid signature: %s", err))
		return
	}

	if err := h.svc.RegisterOutput(
		c.Request.Context(), c.Param("round"), req.Address, bordereau, sig,
	); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *handler) revealOutput(c *gin.Context) {
	var req revealOutputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithStatus(c, http.StatusBadRequest, err)
		return
	}

	if err := h.svc.RevealOutput(
		c.Request.Context(), c.Param("round"), req.Identity, req.Address,
	); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *handler) signInput(c *gin.Context) {
	var req signInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithStatus(c, http.StatusBadRequest, err)
		return
	}
	witness := make([][]byte, 0, len(req.Witness))
	for _, w := range req.Witness {
		item, err := hex.DecodeString(w)
		if err != nil {
			abortWithStatus(c, http.StatusBadRequest, fmt.Errorf("invalid witness: %s", err))
			return
		}
		witness = append(witness, item)
	}

	index, err := h.svc.SignInput(c.Request.Context(), c.Param("round"), req.Identity, witness)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, signInputResponse{index})
}

func (h *handler) getMessages(c *gin.Context) {
	board, ok := h.transport.(ports.Board)
	if !ok {
		abortWithStatus(c, http.StatusNotFound, fmt.Errorf("board not enabled"))
		return
	}

	msgs, err := board.Fetch(c.Request.Context(), c.Param("identity"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, messagesResponse{msgs})
}

func (h *handler) postMessage(c *gin.Context) {
	board, ok := h.transport.(ports.Board)
	if !ok {
		abortWithStatus(c, http.StatusNotFound, fmt.Errorf("board not enabled"))
		return
	}

	var msg ports.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		abortWithStatus(c, http.StatusBadRequest, err)
		return
	}
	if err := board.Post(c.Request.Context(), c.Param("scope"), msg); err != nil {
		abortWithStatus(c, http.StatusBadRequest, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// getSession streams the messages of a client as server-sent events until
// the client goes away, which counts as a disconnection.
func (h *handler) getSession(c *gin.Context) {
	hub, ok := h.transport.(ports.SessionHub)
	if !ok {
		abortWithStatus(c, http.StatusNotFound, fmt.Errorf("sessions not enabled"))
		return
	}

	identity := c.Param("identity")
	ch, unsubscribe, err := hub.Subscribe(identity)
	if err != nil {
		abortWithStatus(c, http.StatusBadRequest, err)
		return
	}
	defer unsubscribe()
	log.Debugf("opened session for %s", identity)

	heartbeat := time.NewTicker(h.transport.HeartbeatInterval())
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-heartbeat.C:
			c.SSEvent("heartbeat", time.Now().Unix())
			return true
		case msg, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(string(msg.Type), msg)
			return true
		}
	})
	log.Debugf("closed session for %s", identity)
}

func abortWithStatus(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, errorResponse{err.Error()})
}

func abortWithError(c *gin.Context, err error) {
	abortWithStatus(c, statusCode(err), err)
}

func statusCode(err error) int {
	var (
		rejected   domain.InputRejectedError
		phaseErr   domain.PhaseError
		witnessErr ports.InvalidWitnessError
	)
	switch {
	case errors.Is(err, domain.ErrPoolNotFound),
		errors.Is(err, domain.ErrRoundNotFound),
		errors.Is(err, domain.ErrInputNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRoundTerminated):
		return http.StatusGone
	case errors.Is(err, domain.ErrInvalidSignature),
		errors.Is(err, domain.ErrNotAdmitted):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrBordereauAlreadyRedeemed),
		errors.Is(err, domain.ErrAddressAlreadyRegistered),
		errors.Is(err, domain.ErrAddressReuse),
		errors.Is(err, domain.ErrAlreadySigned),
		errors.Is(err, domain.ErrAlreadyRevealed),
		errors.Is(err, domain.ErrAddressAlreadyRevealed),
		errors.As(err, &phaseErr):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidAddress),
		errors.As(err, &rejected), errors.As(err, &witnessErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
