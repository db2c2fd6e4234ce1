// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hitoshi/drumposture/internal/logger"
)

// 設定キー。設定ファイルではドット区切りのネストしたキーとして記述する。
const (
	KeyDatabaseURL               = "database.url"
	KeyDBMaxOpenConns            = "database.max_open_conns"
	KeyPostureAPIURL             = "posture_api.url"
	KeyPostureAPITimeout         = "posture_api.timeout"
	KeyPostureAPIRestrictPrivate = "posture_api.restrict_private"
	KeyServerPort                = "server.port"
	KeyCORSAllowedOrigins        = "cors.allowed_origins"
	KeyRateLimitGeneral          = "rate_limit.general"
	KeyRateLimitPostureCheck     = "rate_limit.posture_check"
	KeyLogLevel                  = "log.level"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL    string
	DBMaxOpenConns int

	// Posture API
	PostureAPIURL             string
	PostureAPITimeout         time.Duration
	PostureAPIRestrictPrivate bool

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigins []string

	// Rate Limit（1分あたりのリクエスト数。0で無効）
	RateLimitGeneral      int
	RateLimitPostureCheck int

	// Logging
	LogLevel string
}

// envBinding は設定キーと環境変数の対応を表す。
type envBinding struct {
	key    string
	envVar string
	def    any
}

var bindings = []envBinding{
	{KeyDatabaseURL, "DATABASE_URL", "sqlite://./drumming_posture.db"},
	{KeyDBMaxOpenConns, "DB_MAX_OPEN_CONNS", 10},
	{KeyPostureAPIURL, "POSTURE_API_URL", ""},
	{KeyPostureAPITimeout, "POSTURE_API_TIMEOUT", "10s"},
	{KeyPostureAPIRestrictPrivate, "POSTURE_API_RESTRICT_PRIVATE", false},
	{KeyServerPort, "SERVER_PORT", "8080"},
	{KeyCORSAllowedOrigins, "CORS_ALLOWED_ORIGINS", "http://localhost:3000"},
	{KeyRateLimitGeneral, "RATE_LIMIT_GENERAL", 120},
	{KeyRateLimitPostureCheck, "RATE_LIMIT_POSTURE_CHECK", 30},
	{KeyLogLevel, "LOG_LEVEL", "info"},
}

// NewViper はデフォルト値と環境変数を登録したviperインスタンスを返す。
func NewViper() *viper.Viper {
	v := viper.New()
	for _, b := range bindings {
		v.SetDefault(b.key, b.def)
		// BindEnvは引数が1つ以上あればエラーを返さない
		_ = v.BindEnv(b.key, b.envVar)
	}
	return v
}

// ReadFile は設定ファイルを読み込む。環境変数はファイルの値より優先される。
// 形式は拡張子（yaml, json, toml など）から判定する。
func ReadFile(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
func Load() (*Config, error) {
	return FromViper(NewViper())
}

// FromViper はviperインスタンスの値からConfigを組み立てて検証する。
// 数値や期間として解釈できない値はエラーとする。
func FromViper(v *viper.Viper) (*Config, error) {
	var errs []string
	intValue := func(key string) int {
		raw := strings.TrimSpace(v.GetString(key))
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %q is not an integer", key, raw))
		}
		return n
	}

	cfg := &Config{
		DatabaseURL:               strings.TrimSpace(v.GetString(KeyDatabaseURL)),
		DBMaxOpenConns:            intValue(KeyDBMaxOpenConns),
		PostureAPIURL:             strings.TrimSpace(v.GetString(KeyPostureAPIURL)),
		PostureAPIRestrictPrivate: v.GetBool(KeyPostureAPIRestrictPrivate),
		ServerPort:                strings.TrimSpace(v.GetString(KeyServerPort)),
		CORSAllowedOrigins:        splitList(v.Get(KeyCORSAllowedOrigins)),
		RateLimitGeneral:          intValue(KeyRateLimitGeneral),
		RateLimitPostureCheck:     intValue(KeyRateLimitPostureCheck),
		LogLevel:                  strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
	}

	timeout, err := time.ParseDuration(strings.TrimSpace(v.GetString(KeyPostureAPITimeout)))
	if err != nil {
		errs = append(errs, fmt.Sprintf("%s: %v", KeyPostureAPITimeout, err))
	}
	cfg.PostureAPITimeout = timeout

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// validate は値の範囲を検証し、問題のある項目を返す。
func (c *Config) validate() []string {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, KeyDatabaseURL+" must not be empty")
	}
	if c.DBMaxOpenConns < 0 {
		errs = append(errs, KeyDBMaxOpenConns+" must not be negative")
	}
	if port, err := strconv.Atoi(c.ServerPort); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("%s: %q is not a valid port", KeyServerPort, c.ServerPort))
	}
	if c.PostureAPITimeout <= 0 {
		errs = append(errs, KeyPostureAPITimeout+" must be positive")
	}
	if c.PostureAPIURL != "" {
		u, err := url.Parse(c.PostureAPIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("%s: %q is not an http(s) URL", KeyPostureAPIURL, c.PostureAPIURL))
		}
	}
	if c.RateLimitGeneral < 0 {
		errs = append(errs, KeyRateLimitGeneral+" must not be negative")
	}
	if c.RateLimitPostureCheck < 0 {
		errs = append(errs, KeyRateLimitPostureCheck+" must not be negative")
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("%s: %v", KeyLogLevel, err))
	}

	return errs
}

// splitList はカンマ区切りの文字列または設定ファイルのリストを文字列スライスに変換する。
func splitList(raw any) []string {
	var items []string
	switch val := raw.(type) {
	case []string:
		items = val
	case []any:
		for _, item := range val {
			items = append(items, fmt.Sprint(item))
		}
	case nil:
	default:
		items = strings.Split(fmt.Sprint(val), ",")
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
