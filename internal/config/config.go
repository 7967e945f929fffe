// Package config はクライアント設定の読み込みを提供する。
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はクライアント全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// BaseURL はリモートサービスのベースURL。
	BaseURL string
	// Token は認証必須の操作に使用するベアラートークン。未設定可。
	Token string
	// Timeout はHTTPリクエストのタイムアウト。
	Timeout time.Duration
	// RateLimitPerMinute は送信レート制限（req/min）。0で無効。
	RateLimitPerMinute int
	// RateLimitBurst は送信レート制限のバーストサイズ。
	RateLimitBurst int
	// SafeTransport はSSRF防止機能付きトランスポートを使用するか。
	// ベースURLを信頼できない設定ソースから解決する環境向け。
	SafeTransport bool
	// LogLevel はログレベル（debug, info, warn, error）。
	LogLevel string
	// StubPort はスタブサーバーの待ち受けポート。
	StubPort string
}

// LoadEnvFile はカレントディレクトリの.envファイルを読み込む。
// ファイルが存在しない場合は何もしない。
func LoadEnvFile() {
	// 見つからないのは正常系（本番では環境変数を直接設定する）
	_ = godotenv.Load()
}

// Load は環境変数からConfigを読み込む。
// ベースURLが不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{
		BaseURL:            getEnvString("RTTRAIL_BASE_URL", "http://localhost"),
		Token:              os.Getenv("RTTRAIL_TOKEN"),
		Timeout:            getEnvDuration("RTTRAIL_TIMEOUT", 10*time.Second),
		RateLimitPerMinute: getEnvInt("RTTRAIL_RATE_LIMIT", 0),
		RateLimitBurst:     getEnvInt("RTTRAIL_RATE_LIMIT_BURST", 10),
		SafeTransport:      getEnvBool("RTTRAIL_SAFE_TRANSPORT", false),
		LogLevel:           getEnvString("LOG_LEVEL", "info"),
		StubPort:           getEnvString("RTTRAIL_STUB_PORT", "8080"),
	}

	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("RTTRAIL_BASE_URL が不正です: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("RTTRAIL_BASE_URL のスキームは http または https である必要があります: %s", cfg.BaseURL)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
