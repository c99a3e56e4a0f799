package config

import (
	"fmt"

	"github.com/ark-network/coinjoin/internal/core/domain"
	"github.com/spf13/viper"
)

type feesConfig struct {
	MinerFeeMin     uint64 `mapstructure:"miner_fee_min"`
	MinerFeeCap     uint64 `mapstructure:"miner_fee_cap"`
	MinerFeeMax     uint64 `mapstructure:"miner_fee_max"`
	MinerFeeMix     uint64 `mapstructure:"miner_fee_mix"`
	MinRelayFeeRate uint64 `mapstructure:"min_relay_fee_rate"`
	InputWeight     int    `mapstructure:"input_weight"`
	SurgeSlotWeight int    `mapstructure:"surge_slot_weight"`
}

type poolConfig struct {
	Id                           string     `mapstructure:"id"`
	Denomination                 uint64     `mapstructure:"denomination"`
	MinMustMix                   int        `mapstructure:"min_must_mix"`
	MinLiquidity                 int        `mapstructure:"min_liquidity"`
	AnonymitySet                 int        `mapstructure:"anonymity_set"`
	SurgeCap                     int        `mapstructure:"surge_cap"`
	SurgeDisabledForLowLiquidity bool       `mapstructure:"surge_disabled_for_low_liquidity"`
	LowLiquidityThreshold        int        `mapstructure:"low_liquidity_threshold"`
	MaxInputsSameHash            int        `mapstructure:"max_inputs_same_hash"`
	MaxInputsSameUserHash        int        `mapstructure:"max_inputs_same_user_hash"`
	Fees                         feesConfig `mapstructure:"fees"`
}

func (p poolConfig) toDomain() domain.Pool {
	return domain.Pool{
		Id:                           p.Id,
		Denomination:                 p.Denomination,
		MinMustMix:                   p.MinMustMix,
		MinLiquidity:                 p.MinLiquidity,
		AnonymitySet:                 p.AnonymitySet,
		SurgeCap:                     p.SurgeCap,
		SurgeDisabledForLowLiquidity: p.SurgeDisabledForLowLiquidity,
		LowLiquidityThreshold:        p.LowLiquidityThreshold,
		MaxInputsSameHash:            p.MaxInputsSameHash,
		MaxInputsSameUserHash:        p.MaxInputsSameUserHash,
		Fees: domain.FeePolicy{
			MinerFeeMin:     p.Fees.MinerFeeMin,
			MinerFeeCap:     p.Fees.MinerFeeCap,
			MinerFeeMax:     p.Fees.MinerFeeMax,
			MinerFeeMix:     p.Fees.MinerFeeMix,
			MinRelayFeeRate: p.Fees.MinRelayFeeRate,
			InputWeight:     p.Fees.InputWeight,
			SurgeSlotWeight: p.Fees.SurgeSlotWeight,
		},
	}
}

// defaultPools are served when no config file is given.
var defaultPools = []poolConfig{
	{
		Id:           "0.01btc",
		Denomination: 1000000,
		MinMustMix:   2,
		MinLiquidity: 1,
		AnonymitySet: 5,
		SurgeCap:     3,
		Fees: feesConfig{
			MinerFeeMin:     170,
			MinerFeeCap:     9500,
			MinerFeeMax:     10000,
			MinerFeeMix:     510,
			MinRelayFeeRate: 1,
		},
	},
	{
		Id:           "0.05btc",
		Denomination: 5000000,
		MinMustMix:   2,
		MinLiquidity: 1,
		AnonymitySet: 5,
		SurgeCap:     3,
		Fees: feesConfig{
			MinerFeeMin:     170,
			MinerFeeCap:     9500,
			MinerFeeMax:     10000,
			MinerFeeMix:     510,
			MinRelayFeeRate: 1,
		},
	},
}

// loadPools reads the pools list from the given config file, any format
// supported by viper.
func loadPools(path string) ([]domain.Pool, error) {
	list := defaultPools
	if len(path) > 0 {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %s", err)
		}
		list = make([]poolConfig, 0)
		if err := v.UnmarshalKey("pools", &list); err != nil {
			return nil, fmt.Errorf("failed to parse pools: %s", err)
		}
	}

	pools := make([]domain.Pool, 0, len(list))
	for _, p := range list {
		pools = append(pools, p.toDomain())
	}
	return pools, nil
}
