// Package config loads the analyzer's configuration from environment
// variables, with an optional KEY=VALUE file (the CLI's positional
// config-path argument) layered in first. No config framework: the
// teacher's mustEnv/getEnv style, extended to parse the richer
// trade_config surface (timeframes, trading hours, chart configs,
// replay mode) into the typed values the analyzer packages need.
package config

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"trading-systemv1/internal/analyzer/chart"
	"trading-systemv1/internal/analyzer/controller"
	"trading-systemv1/internal/analyzer/supportresistance"
	"trading-systemv1/internal/markethours"
)

// DefaultConfigPath is used when the CLI is invoked with no positional
// config-path argument.
const DefaultConfigPath = "config.toml"

// Config holds all application configuration.
type Config struct {
	// Broker credentials (secrets for broker auth)
	AngelAPIKey     string
	AngelClientCode string
	AngelPassword   string
	AngelTOTPSecret string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	HTTPAddr      string
	HTTPSAddr     string
	AssetDir      string
	DatabaseURL   string
	WSCompression bool

	// Subscription
	SubscribeTokens string

	// trade_config.timeframes
	Timeframes string // comma-separated, e.g. "1Min,5Min,15Min"

	// trade_config.trading_hours / open_hours, "HH:MM-HH:MM"
	TradingHours string
	OpenHours    string

	UseExtendedHour bool
	UseTickData     bool
	LookBackDays    int
	SRThresholdPerc float64
	SRThresholdMax  float64
	EnableGapFillSR bool
	AutoComputeSR   bool

	// chart_configs, one entry per "tf:days:ema:divergence:divIndicator:vwap"
	ChartConfigs string

	ReplayMode      bool
	ReplayStartTime string

	// Dynamic Timeframes (comma-separated seconds, legacy TF-candle publish list)
	EnabledTFs string
}

// Load reads configuration from environment variables with sensible
// defaults. Call LoadFile first to seed the environment from a config
// file.
func Load() *Config {
	return &Config{
		AngelAPIKey:     mustEnv("ANGEL_API_KEY"),
		AngelClientCode: mustEnv("ANGEL_CLIENT_CODE"),
		AngelPassword:   mustEnv("ANGEL_PASSWORD"),
		AngelTOTPSecret: mustEnv("ANGEL_TOTP_SECRET"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/candles.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		HTTPSAddr:     getEnv("HTTPS_ADDR", ""),
		AssetDir:      getEnv("ASSET_DIR", "assets"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		WSCompression: getBoolEnv("WS_COMPRESSION", true),

		SubscribeTokens: getEnv("SUBSCRIBE_TOKENS", "1:99926000"),

		Timeframes:   getEnv("TIMEFRAMES", "1Min,5Min,15Min"),
		TradingHours: getEnv("TRADING_HOURS", "09:15-15:30"),
		OpenHours:    getEnv("OPEN_HOURS", "09:00-15:30"),

		UseExtendedHour: getBoolEnv("USE_EXTENDED_HOUR", false),
		UseTickData:     getBoolEnv("USE_TICK_DATA", true),
		LookBackDays:    getIntEnv("LOOK_BACK_DAYS", 20),
		SRThresholdPerc: getFloatEnv("SR_THRESHOLD_PERC", 0.4),
		SRThresholdMax:  getFloatEnv("SR_THRESHOLD_MAX", 5.0),
		EnableGapFillSR: getBoolEnv("ENABLE_GAP_FILL_SR", true),
		AutoComputeSR:   getBoolEnv("AUTO_COMPUTE_SR", true),

		ChartConfigs: getEnv("CHART_CONFIGS", "5Min:5:20:true:rsi:false,1Hour:20:20:true:rsi:true,1Day:90:20:false:rsi:true"),

		ReplayMode:      getBoolEnv("REPLAY_MODE", false),
		ReplayStartTime: getEnv("REPLAY_START_TIME", ""),

		EnabledTFs: getEnv("ENABLED_TFS", "60,300,900"),
	}
}

// LoadFile seeds the process environment from a KEY=VALUE file,
// without overriding variables already set, then returns Load()'s
// result. Missing files are not an error: config.toml is optional and
// the environment alone is a valid configuration source.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Load(), nil
		}
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		val := strings.Trim(strings.TrimSpace(kv[1]), `"`)
		if _, set := os.LookupEnv(key); !set {
			os.Setenv(key, val)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Load(), nil
}

// FromArgs resolves the CLI's positional config-path convention: the
// first argument (if present) is the application config path,
// defaulting to DefaultConfigPath; a second positional argument would
// be a crawler config path, which is out of core and only returned
// for the caller to thread through if it wants it.
func FromArgs(args []string) (cfg *Config, crawlerConfigPath string, err error) {
	path := DefaultConfigPath
	if len(args) > 0 && args[0] != "" {
		path = args[0]
	}
	if len(args) > 1 {
		crawlerConfigPath = args[1]
	}
	cfg, err = LoadFile(path)
	return cfg, crawlerConfigPath, err
}

// ParseTFs parses the EnabledTFs string into a slice of timeframe
// durations in seconds, for the legacy TF-candle stream publish list.
func (c *Config) ParseTFs() []int {
	parts := strings.Split(c.EnabledTFs, ",")
	tfs := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			log.Printf("[config] skipping invalid TF value: %q", p)
			continue
		}
		tfs = append(tfs, n)
	}
	return tfs
}

// ParseTimeframe parses a single timeframe duration string such as
// "1Min", "15Min", "1Hour", "1Day" (case-insensitive); a bare "m" suffix
// ("1m", "1M") also means minutes. Anything else, including minor
// variants like "1mm" or "1minutes", is rejected:
// trade_config.timeframes is meant to be a small closed vocabulary,
// not a free-form duration parser.
func ParseTimeframe(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	var n int
	var unit string
	if _, err := fmt.Sscanf(lower, "%d%s", &n, &unit); err != nil || n <= 0 {
		return 0, fmt.Errorf("config: invalid timeframe %q", s)
	}
	switch unit {
	case "min", "m":
		return time.Duration(n) * time.Minute, nil
	case "hour":
		return time.Duration(n) * time.Hour, nil
	case "day":
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("config: invalid timeframe unit in %q", s)
	}
}

// ParseTimeframes parses Timeframes into a slice of durations,
// dropping (and logging) any entry that fails to parse.
func (c *Config) ParseTimeframes() []time.Duration {
	return parseTimeframeList(c.Timeframes)
}

func parseTimeframeList(raw string) []time.Duration {
	parts := strings.Split(raw, ",")
	out := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		d, err := ParseTimeframe(p)
		if err != nil {
			log.Printf("[config] %v", err)
			continue
		}
		out = append(out, d)
	}
	return out
}

// parseHourRange parses a "HH:MM-HH:MM" window into open/close offsets.
func parseHourRange(raw string) (open, close time.Duration, err error) {
	parts := strings.SplitN(raw, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("config: invalid hour range %q", raw)
	}
	open, err = markethours.ParseClock(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	close, err = markethours.ParseClock(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return open, close, nil
}

// TradingHoursWindow parses TradingHours into a controller.TradingHours.
func (c *Config) TradingHoursWindow() (controller.TradingHours, error) {
	open, close, err := parseHourRange(c.TradingHours)
	if err != nil {
		return controller.TradingHours{}, err
	}
	return controller.TradingHours{Open: open, Close: close}, nil
}

// MarketWindow builds a markethours.Window from OpenHours, anchored to
// IST (the teacher's only brokerage so far), with the bundled NSE
// holiday calendar.
func (c *Config) MarketWindow() (*markethours.Window, error) {
	open, close, err := parseHourRange(c.OpenHours)
	if err != nil {
		return nil, err
	}
	w := markethours.Default()
	w.Open, w.Close = open, close
	return w, nil
}

// SupportResistanceConfig builds a supportresistance.Config from the
// SR threshold settings.
func (c *Config) SupportResistanceConfig() supportresistance.Config {
	return supportresistance.Config{
		SRThresholdPerc: c.SRThresholdPerc,
		SRThresholdMax:  c.SRThresholdMax,
	}
}

// ChartConfigList parses ChartConfigs, a comma-separated list of
// "timeframe:days:ema:useDivergence:divIndicator:useVWAP" entries,
// into chart.Config values. Malformed entries are skipped and logged.
func (c *Config) ChartConfigList() []chart.Config {
	entries := strings.Split(c.ChartConfigs, ",")
	out := make([]chart.Config, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		fields := strings.Split(e, ":")
		if len(fields) != 6 {
			log.Printf("[config] skipping malformed chart config %q", e)
			continue
		}
		tf, err := ParseTimeframe(fields[0])
		if err != nil {
			log.Printf("[config] %v", err)
			continue
		}
		days, err1 := strconv.Atoi(fields[1])
		ema, err2 := strconv.Atoi(fields[2])
		useDiv, err3 := strconv.ParseBool(fields[3])
		useVWAP, err4 := strconv.ParseBool(fields[5])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			log.Printf("[config] skipping malformed chart config %q", e)
			continue
		}
		div := chart.DivRSI
		if strings.EqualFold(fields[4], "stochastic") {
			div = chart.DivStochastic
		}
		out = append(out, chart.Config{
			Timeframe:       tf,
			Days:            days,
			EMA:             ema,
			UseDivergence:   useDiv,
			DivIndicator:    div,
			UseVWAP:         useVWAP,
			UseExtendedHour: c.UseExtendedHour,
		})
	}
	return out
}

// ReplayStart parses ReplayStartTime ("YYYY-MM-DD" or
// "YYYY-MM-DD HH:MM[:SS]") in IST, returning the zero time and false
// if unset.
func (c *Config) ReplayStart() (time.Time, bool, error) {
	if c.ReplayStartTime == "" {
		return time.Time{}, false, nil
	}
	layouts := []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, c.ReplayStartTime, markethours.IST); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("config: invalid replay_start_time %q", c.ReplayStartTime)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getBoolEnv(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid bool for %s: %q, using default", key, v)
		return fallback
	}
	return b
}

func getIntEnv(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s: %q, using default", key, v)
		return fallback
	}
	return n
}

func getFloatEnv(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid float for %s: %q, using default", key, v)
		return fallback
	}
	return f
}
