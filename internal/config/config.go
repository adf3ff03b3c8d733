package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`

	Gamma    GammaConfig    `mapstructure:"gamma"`
	ClobREST ClobRESTConfig `mapstructure:"clob_rest"`
	Binance  BinanceConfig  `mapstructure:"binance"`

	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Window     WindowConfig     `mapstructure:"window"`
	Volatility VolatilityConfig `mapstructure:"volatility"`
	Executor   ExecutorConfig   `mapstructure:"executor"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	AutoClaim  AutoClaimConfig  `mapstructure:"auto_claim"`
	StopLoss   StopLossConfig   `mapstructure:"stop_loss"`
	Strategy   StrategyConfig   `mapstructure:"strategy"`

	Assets []AssetConfig `mapstructure:"assets"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type GammaConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ClobRESTConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`

	// Trading credentials. Empty api_key means the client is read-only and
	// submissions are simulated.
	APIKey     string `mapstructure:"api_key"`
	APISecret  string `mapstructure:"api_secret"`
	Passphrase string `mapstructure:"passphrase"`
	Address    string `mapstructure:"address"`
}

type BinanceConfig struct {
	RESTEndpoint  string        `mapstructure:"rest_endpoint"`
	StreamURL     string        `mapstructure:"stream_url"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	WindowSeconds int           `mapstructure:"window_seconds"`
}

type SchedulerConfig struct {
	ScanInterval     time.Duration `mapstructure:"scan_interval"`
	MinFetchInterval time.Duration `mapstructure:"min_fetch_interval"`
	HorizonMinutes   int           `mapstructure:"horizon_minutes"`
}

type WindowConfig struct {
	StartMinute int `mapstructure:"start_minute"`
	EndMinute   int `mapstructure:"end_minute"`
}

type VolatilityConfig struct {
	VolatileHoursUTC []int         `mapstructure:"volatile_hours_utc"`
	SwingWindow      time.Duration `mapstructure:"swing_window"`
	MaxSwingPct      float64       `mapstructure:"max_swing_pct"`
	MaxSpreadBps     float64       `mapstructure:"max_spread_bps"`
	DeepChecks       bool          `mapstructure:"deep_checks"`
}

type ExecutorConfig struct {
	Straddle bool `mapstructure:"straddle"`
	// Price nudge in ticks applied over the best opposing quote so the IOC
	// order is marketable even if the book moved since evaluation.
	AggressionTicks int `mapstructure:"aggression_ticks"`
}

type SettlementConfig struct {
	RPCEndpoints   []string      `mapstructure:"rpc_endpoints"`
	GasStationURL  string        `mapstructure:"gas_station_url"`
	GasSpeedTier   string        `mapstructure:"gas_speed_tier"`
	ReceiptTimeout time.Duration `mapstructure:"receipt_timeout"`
	PrivateKey     string        `mapstructure:"private_key"`
}

type AutoClaimConfig struct {
	ScanInterval time.Duration `mapstructure:"scan_interval"`
	LookbackDays int           `mapstructure:"lookback_days"`
	SuccessDelay time.Duration `mapstructure:"success_delay"`
	SkipDelay    time.Duration `mapstructure:"skip_delay"`
}

type StopLossConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
	Threshold     float64       `mapstructure:"threshold"`
}

type StrategyConfig struct {
	// Optional overrides for the calibrated win-rate table, keyed by the
	// band's lower bound, e.g. {"0.90": 0.93}.
	WinRateOverrides map[string]float64 `mapstructure:"win_rate_overrides"`
}

type AssetConfig struct {
	ID         string  `mapstructure:"id"`
	SeriesSlug string  `mapstructure:"series_slug"`
	SpotSymbol string  `mapstructure:"spot_symbol"`
	Enabled    bool    `mapstructure:"enabled"`
	BetSize    float64 `mapstructure:"bet_size"`
	MinPrice   float64 `mapstructure:"min_price"`
	MaxPrice   float64 `mapstructure:"max_price"`
	AutoClaim  bool    `mapstructure:"auto_claim"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("UD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("gamma.base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("gamma.timeout", "15s")
	v.SetDefault("clob_rest.base_url", "https://clob.polymarket.com")
	v.SetDefault("clob_rest.timeout", "15s")
	v.SetDefault("binance.rest_endpoint", "https://api.binance.com/api/v3/ticker/price")
	v.SetDefault("binance.stream_url", "wss://stream.binance.com:9443/ws")
	v.SetDefault("binance.poll_interval", "2s")
	v.SetDefault("binance.window_seconds", 300)

	v.SetDefault("scheduler.scan_interval", "10s")
	v.SetDefault("scheduler.min_fetch_interval", "5s")
	v.SetDefault("scheduler.horizon_minutes", 60)

	v.SetDefault("window.start_minute", 45)
	v.SetDefault("window.end_minute", 59)

	v.SetDefault("volatility.volatile_hours_utc", []int{13, 14, 20, 21})
	v.SetDefault("volatility.swing_window", "5m")
	v.SetDefault("volatility.max_swing_pct", 0.5)
	v.SetDefault("volatility.max_spread_bps", 400)
	v.SetDefault("volatility.deep_checks", true)

	v.SetDefault("executor.straddle", false)
	v.SetDefault("executor.aggression_ticks", 1)

	v.SetDefault("settlement.rpc_endpoints", []string{
		"https://polygon-rpc.com",
		"https://rpc-mainnet.matic.quiknode.pro",
		"https://polygon-bor-rpc.publicnode.com",
	})
	v.SetDefault("settlement.gas_station_url", "https://gasstation.polygon.technology/v2")
	v.SetDefault("settlement.gas_speed_tier", "fast")
	v.SetDefault("settlement.receipt_timeout", "60s")

	v.SetDefault("auto_claim.scan_interval", "1h")
	v.SetDefault("auto_claim.lookback_days", 3)
	v.SetDefault("auto_claim.success_delay", "3s")
	v.SetDefault("auto_claim.skip_delay", "500ms")

	v.SetDefault("stop_loss.check_interval", "30s")
	v.SetDefault("stop_loss.threshold", 0.70)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
