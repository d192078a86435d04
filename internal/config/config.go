package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrMissingCredential is returned by Validate when a stage needs a
// credential that is not configured.
var ErrMissingCredential = eris.New("config: missing credential")

// Config holds the full application configuration.
type Config struct {
	DataDir   string          `yaml:"data_dir" mapstructure:"data_dir"`
	Registry  RegistryConfig  `yaml:"registry" mapstructure:"registry"`
	Progress  ProgressConfig  `yaml:"progress" mapstructure:"progress"`
	Jobplanet JobplanetConfig `yaml:"jobplanet" mapstructure:"jobplanet"`
	Wanted    WantedConfig    `yaml:"wanted" mapstructure:"wanted"`
	Naver     NaverConfig     `yaml:"naver" mapstructure:"naver"`
	Kakao     KakaoConfig     `yaml:"kakao" mapstructure:"kakao"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Match     MatchConfig     `yaml:"match" mapstructure:"match"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// RegistryConfig locates the registry spreadsheet and the company document.
type RegistryConfig struct {
	DownloadURL   string `yaml:"download_url" mapstructure:"download_url"`
	ExcelPath     string `yaml:"excel_path" mapstructure:"excel_path"`
	CompaniesPath string `yaml:"companies_path" mapstructure:"companies_path"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ProgressConfig selects the progress store backend.
type ProgressConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // json, sqlite or postgres
	Dir    string `yaml:"dir" mapstructure:"dir"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// JobplanetConfig configures the browser-driven Jobplanet adapter.
type JobplanetConfig struct {
	Email          string `yaml:"email" mapstructure:"email"`
	Password       string `yaml:"password" mapstructure:"password"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	RateLimitMs    int    `yaml:"rate_limit_ms" mapstructure:"rate_limit_ms"`
	Headless       bool   `yaml:"headless" mapstructure:"headless"`
	NavTimeoutSecs int    `yaml:"nav_timeout_secs" mapstructure:"nav_timeout_secs"`
}

// WantedConfig configures the Wanted API adapter.
type WantedConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	RateLimitMs int    `yaml:"rate_limit_ms" mapstructure:"rate_limit_ms"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxJobs     int    `yaml:"max_jobs" mapstructure:"max_jobs"`
}

// NaverConfig holds Naver Maps geocoding credentials.
type NaverConfig struct {
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	URL          string `yaml:"url" mapstructure:"url"`
	RateLimitMs  int    `yaml:"rate_limit_ms" mapstructure:"rate_limit_ms"`
}

// KakaoConfig holds the optional Kakao Local fallback credentials.
type KakaoConfig struct {
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	URL         string `yaml:"url" mapstructure:"url"`
	RateLimitMs int    `yaml:"rate_limit_ms" mapstructure:"rate_limit_ms"`
}

// RetryConfig configures retries and the per-source circuit breaker.
type RetryConfig struct {
	MaxAttempts         int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs    int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs        int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier          float64 `yaml:"multiplier" mapstructure:"multiplier"`
	BreakerThreshold    int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int     `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// MatchConfig tunes candidate acceptance.
type MatchConfig struct {
	Threshold           float64 `yaml:"threshold" mapstructure:"threshold"`
	SmallResultFallback bool    `yaml:"small_result_fallback" mapstructure:"small_result_fallback"`
	SmallResultMax      int     `yaml:"small_result_max" mapstructure:"small_result_max"`
}

// ServerConfig configures the map file server.
type ServerConfig struct {
	Port int    `yaml:"port" mapstructure:"port"`
	Root string `yaml:"root" mapstructure:"root"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// legacyEnv maps config keys to the environment variable names the crawler
// scripts have always read. BTMAP_-prefixed names take precedence.
var legacyEnv = map[string]string{
	"jobplanet.email":     "JOBPLANET_EMAIL",
	"jobplanet.password":  "JOBPLANET_PASSWORD",
	"naver.client_id":     "NAVER_GEOCODING_API_KEY_ID",
	"naver.client_secret": "NAVER_GEOCODING_API_KEY",
	"kakao.api_key":       "KAKAO_API_KEY",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BTMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, envName(key), legacy); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	v.SetDefault("data_dir", "data")
	v.SetDefault("registry.download_url", "https://work.mma.go.kr/caisBYIS/search/downloadBYJJEopCheExcel.do")
	v.SetDefault("registry.timeout_secs", 120)
	v.SetDefault("progress.driver", "json")
	v.SetDefault("jobplanet.base_url", "https://www.jobplanet.co.kr")
	v.SetDefault("jobplanet.rate_limit_ms", 3000)
	v.SetDefault("jobplanet.headless", true)
	v.SetDefault("jobplanet.nav_timeout_secs", 30)
	v.SetDefault("wanted.base_url", "https://www.wanted.co.kr")
	v.SetDefault("wanted.rate_limit_ms", 2000)
	v.SetDefault("wanted.timeout_secs", 30)
	v.SetDefault("wanted.max_jobs", 5)
	v.SetDefault("naver.url", "https://maps.apigw.ntruss.com/map-geocode/v2/geocode")
	v.SetDefault("naver.rate_limit_ms", 100)
	v.SetDefault("kakao.url", "https://dapi.kakao.com/v2/local/search/keyword.json")
	v.SetDefault("kakao.rate_limit_ms", 100)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 2000)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.breaker_threshold", 5)
	v.SetDefault("retry.breaker_cooldown_secs", 60)
	v.SetDefault("match.threshold", 0.6)
	v.SetDefault("match.small_result_fallback", true)
	v.SetDefault("match.small_result_max", 3)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.root", ".")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func envName(key string) string {
	return "BTMAP_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// ExcelPath is where the registry spreadsheet is downloaded to and read from.
func (c *Config) ExcelPath() string {
	if c.Registry.ExcelPath != "" {
		return c.Registry.ExcelPath
	}
	return filepath.Join(c.DataDir, "mma_companies.xls")
}

// CompaniesPath is the location of the company document.
func (c *Config) CompaniesPath() string {
	if c.Registry.CompaniesPath != "" {
		return c.Registry.CompaniesPath
	}
	return filepath.Join(c.DataDir, "companies.json")
}

// ProgressDir is where the json progress store keeps its files.
func (c *Config) ProgressDir() string {
	if c.Progress.Dir != "" {
		return c.Progress.Dir
	}
	return c.DataDir
}

// Validate checks that everything the named stage needs is present. Unknown
// stages only get the checks shared by every stage.
func (c *Config) Validate(stage string) error {
	var missing []string
	require := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, describe(key))
		}
	}

	switch c.Progress.Driver {
	case "json", "":
	case "sqlite", "postgres":
		if stage != "serve" && stage != "export" {
			require("progress.dsn", c.Progress.DSN)
		}
	default:
		return eris.Errorf("config: unknown progress.driver %q (want json, sqlite or postgres)", c.Progress.Driver)
	}

	switch stage {
	case "jobplanet":
		require("jobplanet.email", c.Jobplanet.Email)
		require("jobplanet.password", c.Jobplanet.Password)
	case "geocode":
		require("naver.client_id", c.Naver.ClientID)
		require("naver.client_secret", c.Naver.ClientSecret)
	case "serve":
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			return eris.Errorf("config: server.port %d out of range", c.Server.Port)
		}
	}

	for _, r := range c.rateLimits(stage) {
		if r.ms <= 0 {
			return eris.Errorf("config: %s must be positive, got %d (env %s)", r.key, r.ms, envName(r.key))
		}
	}

	if c.Match.Threshold < 0 || c.Match.Threshold > 1 {
		return eris.Errorf("config: match.threshold %.2f must be within [0, 1]", c.Match.Threshold)
	}

	if len(missing) > 0 {
		return eris.Wrapf(ErrMissingCredential, "%s: %s", stage, strings.Join(missing, "; "))
	}
	return nil
}

type rateLimit struct {
	key string
	ms  int
}

// rateLimits lists the request spacing settings a stage relies on. Every
// remote source must be paced, so none of them may be zero.
func (c *Config) rateLimits(stage string) []rateLimit {
	var out []rateLimit
	if stage == "jobplanet" || stage == "all" {
		out = append(out, rateLimit{"jobplanet.rate_limit_ms", c.Jobplanet.RateLimitMs})
	}
	if stage == "wanted" || stage == "all" {
		out = append(out, rateLimit{"wanted.rate_limit_ms", c.Wanted.RateLimitMs})
	}
	if stage == "geocode" || stage == "all" {
		out = append(out, rateLimit{"naver.rate_limit_ms", c.Naver.RateLimitMs})
		if c.Kakao.APIKey != "" {
			out = append(out, rateLimit{"kakao.rate_limit_ms", c.Kakao.RateLimitMs})
		}
	}
	return out
}

func describe(key string) string {
	if legacy, ok := legacyEnv[key]; ok {
		return fmt.Sprintf("%s (env %s or %s)", key, legacy, envName(key))
	}
	return fmt.Sprintf("%s (env %s)", key, envName(key))
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
