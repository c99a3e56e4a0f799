package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ark-network/coinjoin/internal/core/application"
	"github.com/ark-network/coinjoin/internal/core/domain"
	"github.com/ark-network/coinjoin/internal/core/ports"
	"github.com/ark-network/coinjoin/internal/infrastructure/blockchain/esplora"
	"github.com/ark-network/coinjoin/internal/infrastructure/db"
	"github.com/ark-network/coinjoin/internal/infrastructure/fraud"
	inmemorylivestore "github.com/ark-network/coinjoin/internal/infrastructure/live-store/inmemory"
	redislivestore "github.com/ark-network/coinjoin/internal/infrastructure/live-store/redis"
	scheduler "github.com/ark-network/coinjoin/internal/infrastructure/scheduler/gocron"
	"github.com/ark-network/coinjoin/internal/infrastructure/transport/board"
	"github.com/ark-network/coinjoin/internal/infrastructure/transport/session"
	txbuilder "github.com/ark-network/coinjoin/internal/infrastructure/tx-builder"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var (
	supportedDbs = supportedType{
		"badger": {},
		"sqlite": {},
	}
	supportedLiveStores = supportedType{
		"inmemory": {},
		"redis":    {},
	}
	supportedTransports = supportedType{
		"board":   {},
		"session": {},
	}
	supportedNetworks = map[string]*chaincfg.Params{
		"mainnet": &chaincfg.MainNetParams,
		"testnet": &chaincfg.TestNet3Params,
		"signet":  &chaincfg.SigNetParams,
		"regtest": &chaincfg.RegressionNetParams,
	}
)

type Config struct {
	Datadir    string
	Port       uint32
	LogLevel   int
	Network    string
	DbType     string
	DbDir      string
	ConfigFile string

	LiveStoreType     string
	RedisUrl          string
	RedisNumOfRetries int

	TransportType     string
	HeartbeatInterval time.Duration
	BoardMessageTTL   time.Duration
	BoardPollInterval time.Duration

	EsploraURL string

	BlindKeyBits              int
	ConfirmInputTimeout       time.Duration
	RegisterOutputTimeout     time.Duration
	RevealOutputTimeout       time.Duration
	SigningTimeout            time.Duration
	SurgeWaitDelay            time.Duration
	WatchdogInterval          time.Duration
	MinConfirmationsMustMix   uint32
	MinConfirmationsLiquidity uint32
	MaxInputsSameHash         int
	MaxInputsSameUserHash     int

	BanBlameThreshold int
	BanDuration       time.Duration

	Pools []domain.Pool

	repo      ports.RepoManager
	svc       application.Service
	txBuilder ports.TxBuilder
	chain     ports.BlockchainService
	fraud     ports.FraudService
	scheduler ports.SchedulerService
	liveStore ports.LiveStore
	transport ports.Transport
	network   *chaincfg.Params
}

func (c *Config) String() string {
	json, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(json)
}

var (
	Datadir                   = "DATADIR"
	Port                      = "PORT"
	LogLevel                  = "LOG_LEVEL"
	Network                   = "NETWORK"
	ConfigFile                = "CONFIG_FILE"
	DbType                    = "DB_TYPE"
	LiveStoreType             = "LIVE_STORE_TYPE"
	RedisUrl                  = "REDIS_URL"
	RedisNumOfRetries         = "REDIS_NUM_OF_RETRIES"
	TransportType             = "TRANSPORT_TYPE"
	HeartbeatInterval         = "HEARTBEAT_INTERVAL"
	BoardMessageTTL           = "BOARD_MESSAGE_TTL"
	BoardPollInterval         = "BOARD_POLL_INTERVAL"
	EsploraURL                = "ESPLORA_URL"
	BlindKeyBits              = "BLIND_KEY_BITS"
	ConfirmInputTimeout       = "CONFIRM_INPUT_TIMEOUT"
	RegisterOutputTimeout     = "REGISTER_OUTPUT_TIMEOUT"
	RevealOutputTimeout       = "REVEAL_OUTPUT_TIMEOUT"
	SigningTimeout            = "SIGNING_TIMEOUT"
	SurgeWaitDelay            = "SURGE_WAIT_DELAY"
	WatchdogInterval          = "WATCHDOG_INTERVAL"
	MinConfirmationsMustMix   = "MIN_CONFIRMATIONS_MUST_MIX"
	MinConfirmationsLiquidity = "MIN_CONFIRMATIONS_LIQUIDITY"
	MaxInputsSameHash         = "MAX_INPUTS_SAME_HASH"
	MaxInputsSameUserHash     = "MAX_INPUTS_SAME_USER_HASH"
	BanBlameThreshold         = "BAN_BLAME_THRESHOLD"
	BanDuration               = "BAN_DURATION"

	defaultDatadir                   = btcutil.AppDataDir("coinjoind", false)
	DefaultPort                      = 8080
	defaultLogLevel                  = 4
	defaultNetwork                   = "mainnet"
	defaultDbType                    = "badger"
	defaultLiveStoreType             = "inmemory"
	defaultRedisNumOfRetries         = 5
	defaultTransportType             = "session"
	defaultHeartbeatInterval         = 15 * time.Second
	defaultBoardMessageTTL           = 10 * time.Minute
	defaultBoardPollInterval         = 2 * time.Second
	defaultEsploraURL                = "https://blockstream.info/api"
	defaultBlindKeyBits              = 2048
	defaultConfirmInputTimeout       = 30 * time.Second
	defaultRegisterOutputTimeout     = 60 * time.Second
	defaultRevealOutputTimeout       = 30 * time.Second
	defaultSigningTimeout            = 60 * time.Second
	defaultSurgeWaitDelay            = 15 * time.Second
	defaultWatchdogInterval          = time.Second
	defaultMinConfirmationsMustMix   = 1
	defaultMinConfirmationsLiquidity = 1
	defaultBanBlameThreshold         = 3
	defaultBanDuration               = 24 * time.Hour
)

func LoadConfig() (*Config, error) {
	viper.SetEnvPrefix("COINJOIN")
	viper.AutomaticEnv()

	viper.SetDefault(Datadir, defaultDatadir)
	viper.SetDefault(Port, DefaultPort)
	viper.SetDefault(LogLevel, defaultLogLevel)
	viper.SetDefault(Network, defaultNetwork)
	viper.SetDefault(DbType, defaultDbType)
	viper.SetDefault(LiveStoreType, defaultLiveStoreType)
	viper.SetDefault(RedisNumOfRetries, defaultRedisNumOfRetries)
	viper.SetDefault(TransportType, defaultTransportType)
	viper.SetDefault(HeartbeatInterval, defaultHeartbeatInterval)
	viper.SetDefault(BoardMessageTTL, defaultBoardMessageTTL)
	viper.SetDefault(BoardPollInterval, defaultBoardPollInterval)
	viper.SetDefault(EsploraURL, defaultEsploraURL)
	viper.SetDefault(BlindKeyBits, defaultBlindKeyBits)
	viper.SetDefault(ConfirmInputTimeout, defaultConfirmInputTimeout)
	viper.SetDefault(RegisterOutputTimeout, defaultRegisterOutputTimeout)
	viper.SetDefault(RevealOutputTimeout, defaultRevealOutputTimeout)
	viper.SetDefault(SigningTimeout, defaultSigningTimeout)
	viper.SetDefault(SurgeWaitDelay, defaultSurgeWaitDelay)
	viper.SetDefault(WatchdogInterval, defaultWatchdogInterval)
	viper.SetDefault(MinConfirmationsMustMix, defaultMinConfirmationsMustMix)
	viper.SetDefault(MinConfirmationsLiquidity, defaultMinConfirmationsLiquidity)
	viper.SetDefault(BanBlameThreshold, defaultBanBlameThreshold)
	viper.SetDefault(BanDuration, defaultBanDuration)

	if err := initDatadir(); err != nil {
		return nil, fmt.Errorf("error while creating datadir: %s", err)
	}

	pools, err := loadPools(viper.GetString(ConfigFile))
	if err != nil {
		return nil, err
	}

	return &Config{
		Datadir:                   viper.GetString(Datadir),
		Port:                      viper.GetUint32(Port),
		LogLevel:                  viper.GetInt(LogLevel),
		Network:                   viper.GetString(Network),
		DbType:                    viper.GetString(DbType),
		DbDir:                     filepath.Join(viper.GetString(Datadir), "db"),
		ConfigFile:                viper.GetString(ConfigFile),
		LiveStoreType:             viper.GetString(LiveStoreType),
		RedisUrl:                  viper.GetString(RedisUrl),
		RedisNumOfRetries:         viper.GetInt(RedisNumOfRetries),
		TransportType:             viper.GetString(TransportType),
		HeartbeatInterval:         viper.GetDuration(HeartbeatInterval),
		BoardMessageTTL:           viper.GetDuration(BoardMessageTTL),
		BoardPollInterval:         viper.GetDuration(BoardPollInterval),
		EsploraURL:                viper.GetString(EsploraURL),
		BlindKeyBits:              viper.GetInt(BlindKeyBits),
		ConfirmInputTimeout:       viper.GetDuration(ConfirmInputTimeout),
		RegisterOutputTimeout:     viper.GetDuration(RegisterOutputTimeout),
		RevealOutputTimeout:       viper.GetDuration(RevealOutputTimeout),
		SigningTimeout:            viper.GetDuration(SigningTimeout),
		SurgeWaitDelay:            viper.GetDuration(SurgeWaitDelay),
		WatchdogInterval:          viper.GetDuration(WatchdogInterval),
		MinConfirmationsMustMix:   viper.GetUint32(MinConfirmationsMustMix),
		MinConfirmationsLiquidity: viper.GetUint32(MinConfirmationsLiquidity),
		MaxInputsSameHash:         viper.GetInt(MaxInputsSameHash),
		MaxInputsSameUserHash:     viper.GetInt(MaxInputsSameUserHash),
		BanBlameThreshold:         viper.GetInt(BanBlameThreshold),
		BanDuration:               viper.GetDuration(BanDuration),
		Pools:                     pools,
	}, nil
}

func initDatadir() error {
	datadir := viper.GetString(Datadir)
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

func (c *Config) Validate() error {
	if !supportedDbs.supports(c.DbType) {
		return fmt.Errorf("db type not supported, please select one of: %s", supportedDbs)
	}
	if !supportedLiveStores.supports(c.LiveStoreType) {
		return fmt.Errorf("live store type not supported, please select one of: %s", supportedLiveStores)
	}
	if !supportedTransports.supports(c.TransportType) {
		return fmt.Errorf("transport type not supported, please select one of: %s", supportedTransports)
	}
	network, ok := supportedNetworks[c.Network]
	if !ok {
		return fmt.Errorf("network not supported, please select one of: %s", networkNames())
	}
	c.network = network

	if len(c.Pools) <= 0 {
		return fmt.Errorf("missing pools")
	}
	if c.BlindKeyBits < 1024 {
		return fmt.Errorf("blind key must be at least 1024 bits")
	}
	if c.WatchdogInterval <= 0 {
		return fmt.Errorf("watchdog interval must be greater than 0")
	}
	for _, timeout := range []time.Duration{
		c.ConfirmInputTimeout, c.RegisterOutputTimeout, c.RevealOutputTimeout, c.SigningTimeout,
	} {
		if timeout < c.WatchdogInterval {
			return fmt.Errorf("phase timeouts must not be shorter than the watchdog interval")
		}
	}
	if c.BanBlameThreshold < 0 {
		return fmt.Errorf("ban blame threshold must not be negative")
	}

	// anti-sybil limits set by env apply to pools not setting their own
	for i := range c.Pools {
		if c.Pools[i].MaxInputsSameHash <= 0 {
			c.Pools[i].MaxInputsSameHash = c.MaxInputsSameHash
		}
		if c.Pools[i].MaxInputsSameUserHash <= 0 {
			c.Pools[i].MaxInputsSameUserHash = c.MaxInputsSameUserHash
		}
		if err := c.Pools[i].Validate(); err != nil {
			return err
		}
	}

	if err := c.repoManager(); err != nil {
		return err
	}
	if err := c.txBuilderService(); err != nil {
		return err
	}
	if err := c.blockchainService(); err != nil {
		return err
	}
	if err := c.fraudService(); err != nil {
		return err
	}
	if err := c.liveStoreService(); err != nil {
		return err
	}
	if err := c.transportService(); err != nil {
		return err
	}
	return c.schedulerService()
}

func (c *Config) AppService() (application.Service, error) {
	if c.svc == nil {
		if err := c.appService(); err != nil {
			return nil, err
		}
	}
	return c.svc, nil
}

func (c *Config) Transport() ports.Transport {
	return c.transport
}

func (c *Config) repoManager() error {
	var dataStoreConfig []interface{}
	switch c.DbType {
	case "badger":
		dataStoreConfig = []interface{}{c.DbDir, log.New()}
	case "sqlite":
		dataStoreConfig = []interface{}{c.DbDir}
	default:
		return fmt.Errorf("unknown db type")
	}

	svc, err := db.NewService(db.ServiceConfig{
		DataStoreType:   c.DbType,
		DataStoreConfig: dataStoreConfig,
	})
	if err != nil {
		return err
	}

	c.repo = svc
	return nil
}

func (c *Config) txBuilderService() error {
	c.txBuilder = txbuilder.NewTxBuilder(c.network)
	return nil
}

func (c *Config) blockchainService() error {
	svc, err := esplora.NewService(c.EsploraURL)
	if err != nil {
		return err
	}
	c.chain = svc
	return nil
}

func (c *Config) fraudService() error {
	if c.repo == nil {
		return fmt.Errorf("repo manager not set")
	}

	svc, err := fraud.NewService(c.repo.Blames(), c.BanBlameThreshold, c.BanDuration)
	if err != nil {
		return err
	}
	c.fraud = svc
	return nil
}

func (c *Config) liveStoreService() error {
	var liveStoreSvc ports.LiveStore
	var err error
	switch c.LiveStoreType {
	case "inmemory":
		liveStoreSvc = inmemorylivestore.NewLiveStore()
	case "redis":
		if len(c.RedisUrl) <= 0 {
			return fmt.Errorf("missing redis url")
		}
		redisOpts, err := redis.ParseURL(c.RedisUrl)
		if err != nil {
			return fmt.Errorf("invalid redis url: %s", err)
		}
		rdb := redis.NewClient(redisOpts)
		liveStoreSvc = redislivestore.NewLiveStore(rdb, c.RedisNumOfRetries)
	default:
		err = fmt.Errorf("unknown liveStore type")
	}
	if err != nil {
		return err
	}

	c.liveStore = liveStoreSvc
	return nil
}

func (c *Config) transportService() error {
	var svc ports.Transport
	var err error
	switch c.TransportType {
	case "board":
		svc, err = board.NewTransport(c.BoardMessageTTL)
	case "session":
		svc, err = session.NewTransport(c.HeartbeatInterval)
		// session clients call the coordinator directly
		c.BoardPollInterval = 0
	default:
		err = fmt.Errorf("unknown transport type")
	}
	if err != nil {
		return err
	}

	c.transport = svc
	return nil
}

func (c *Config) schedulerService() error {
	c.scheduler = scheduler.NewScheduler()
	return nil
}

func (c *Config) appService() error {
	svc, err := application.NewService(
		application.Config{
			Pools:                     c.Pools,
			BlindKeyBits:              c.BlindKeyBits,
			ConfirmInputTimeout:       c.ConfirmInputTimeout,
			RegisterOutputTimeout:     c.RegisterOutputTimeout,
			RevealOutputTimeout:       c.RevealOutputTimeout,
			SigningTimeout:            c.SigningTimeout,
			SurgeWaitDelay:            c.SurgeWaitDelay,
			WatchdogInterval:          c.WatchdogInterval,
			BoardPollInterval:         c.BoardPollInterval,
			MinConfirmationsMustMix:   c.MinConfirmationsMustMix,
			MinConfirmationsLiquidity: c.MinConfirmationsLiquidity,
		},
		c.liveStore, c.repo, c.txBuilder, c.chain, c.fraud, c.transport, c.scheduler,
	)
	if err != nil {
		return err
	}

	c.svc = svc
	return nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}

func networkNames() string {
	names := make([]string, 0, len(supportedNetworks))
	for name := range supportedNetworks {
		names = append(names, name)
	}
	return strings.Join(names, " | ")
}
