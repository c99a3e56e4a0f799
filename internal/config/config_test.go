package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const poolsFile = `
pools:
  - id: 0.1btc
    denomination: 10000000
    min_must_mix: 3
    min_liquidity: 1
    anonymity_set: 8
    surge_cap: 2
    surge_disabled_for_low_liquidity: true
    low_liquidity_threshold: 4
    fees:
      miner_fee_min: 100
      miner_fee_cap: 9000
      miner_fee_max: 10000
      miner_fee_mix: 600
      min_relay_fee_rate: 2
`

func TestLoadPools(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		pools, err := loadPools("")
		require.NoError(t, err)
		require.Len(t, pools, len(defaultPools))
		for _, p := range pools {
			require.NoError(t, p.Validate())
		}
	})

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pools.yaml")
		require.NoError(t, os.WriteFile(path, []byte(poolsFile), 0600))

		pools, err := loadPools(path)
		require.NoError(t, err)
		require.Len(t, pools, 1)

		pool := pools[0]
		require.Equal(t, "0.1btc", pool.Id)
		require.Equal(t, uint64(10000000), pool.Denomination)
		require.Equal(t, 8, pool.AnonymitySet)
		require.True(t, pool.SurgeDisabledForLowLiquidity)
		require.Equal(t, 4, pool.LowLiquidityThreshold)
		require.Equal(t, uint64(9000), pool.Fees.MinerFeeCap)
		require.Equal(t, uint64(2), pool.Fees.MinRelayFeeRate)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadPools(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	validConfig := func(t *testing.T) *Config {
		pools, err := loadPools("")
		require.NoError(t, err)
		return &Config{
			Network:               "regtest",
			DbType:                "badger",
			DbDir:                 t.TempDir(),
			LiveStoreType:         "inmemory",
			TransportType:         "board",
			BoardMessageTTL:       time.Minute,
			BoardPollInterval:     time.Second,
			EsploraURL:            "http://localhost:3000",
			BlindKeyBits:          1024,
			ConfirmInputTimeout:   time.Minute,
			RegisterOutputTimeout: time.Minute,
			RevealOutputTimeout:   time.Minute,
			SigningTimeout:        time.Minute,
			WatchdogInterval:      time.Second,
			MaxInputsSameHash:     2,
			BanBlameThreshold:     3,
			BanDuration:           time.Hour,
			Pools:                 pools,
		}
	}

	t.Run("valid", func(t *testing.T) {
		cfg := validConfig(t)
		require.NoError(t, cfg.Validate())
		require.NotNil(t, cfg.Transport())
		for _, p := range cfg.Pools {
			require.Equal(t, 2, p.MaxInputsSameHash)
		}

		svc, err := cfg.AppService()
		require.NoError(t, err)
		require.NotNil(t, svc)
		cfg.repo.Close()
	})

	t.Run("invalid", func(t *testing.T) {
		fixtures := []struct {
			name   string
			modify func(*Config)
		}{
			{"db type", func(c *Config) { c.DbType = "postgres" }},
			{"live store type", func(c *Config) { c.LiveStoreType = "memcached" }},
			{"transport type", func(c *Config) { c.TransportType = "grpc" }},
			{"network", func(c *Config) { c.Network = "liquid" }},
			{"no pools", func(c *Config) { c.Pools = nil }},
			{"blind key", func(c *Config) { c.BlindKeyBits = 512 }},
			{"watchdog", func(c *Config) { c.WatchdogInterval = 0 }},
			{"short phase", func(c *Config) { c.SigningTimeout = time.Millisecond }},
			{"redis url", func(c *Config) { c.LiveStoreType = "redis" }},
			{"pool", func(c *Config) { c.Pools[0].AnonymitySet = 1 }},
		}
		for _, f := range fixtures {
			t.Run(f.name, func(t *testing.T) {
				cfg := validConfig(t)
				f.modify(cfg)
				require.Error(t, cfg.Validate())
				if cfg.repo != nil {
					cfg.repo.Close()
				}
			})
		}
	})
}
