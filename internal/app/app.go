// Package app はCLIのエントリーポイントを提供する。
// サブコマンドの解析、設定の読み込み、依存関係のワイヤリングを担う。
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/rttrail-go/internal/client"
	"github.com/hitoshi/rttrail-go/internal/config"
	"github.com/hitoshi/rttrail-go/internal/credential"
	"github.com/hitoshi/rttrail-go/internal/logger"
	"github.com/hitoshi/rttrail-go/internal/metrics"
	"github.com/hitoshi/rttrail-go/internal/model"
	"github.com/hitoshi/rttrail-go/internal/security"
	"github.com/hitoshi/rttrail-go/internal/stubserver"
)

// Init はアプリケーションの初期化を行う。
// .envファイルと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. .envファイルの読み込み（存在しない場合は何もしない）
	config.LoadEnvFile()

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}

	// 3. ログの初期化
	log := logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, log, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("RTTRAIL_STUB_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, log, err := Init(w)
	if err != nil {
		return fmt.Errorf("初期化に失敗しました: %w", err)
	}

	log.Info("起動します",
		slog.String("command", string(cmd)),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandLogin:
		return runLogin(w, cfg, log)
	case CommandMe:
		return runMe(w, cfg, log)
	case CommandSearch:
		return runSearch(w, cfg, log, args[1:])
	case CommandServeStub:
		return runServeStub(cfg, log)
	default:
		return runInfo(w, cfg, log)
	}
}

// newAPIClient は設定からAPIクライアントを構築する。
// SafeTransportが有効な場合はベースURLを静的検査し、SSRF防止トランスポートを使用する。
func newAPIClient(cfg *config.Config, log *slog.Logger) (*client.Client, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.SafeTransport {
		if err := security.ValidateBaseURL(cfg.BaseURL); err != nil {
			return nil, fmt.Errorf("ベースURLの検査に失敗しました: %w", err)
		}
		httpClient = security.NewSafeClient(cfg.Timeout)
	}

	var limiter *rate.Limiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerMinute)/60, cfg.RateLimitBurst)
	}

	// Runが複数回呼ばれても二重登録で落ちないよう、クライアントごとにレジストリを持つ
	return client.NewClient(client.Config{
		BaseURL:    cfg.BaseURL,
		HTTPClient: httpClient,
		Credential: credential.New(cfg.Token),
		Metrics:    metrics.NewCollector(prometheus.NewRegistry()),
		Limiter:    limiter,
	}, log), nil
}

// runInfo はリモートサービスの稼働情報を表示する。
func runInfo(w io.Writer, cfg *config.Config, log *slog.Logger) error {
	c, err := newAPIClient(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	info, err := c.GetInformation(ctx)
	if err != nil {
		return fmt.Errorf("稼働情報の取得に失敗しました: %w", err)
	}

	return printJSON(w, info)
}

// runLogin は環境変数の資格情報でログインし、アクセストークンを表示する。
// RTTRAIL_EMAILとRTTRAIL_PASSWORDを使用する。
func runLogin(w io.Writer, cfg *config.Config, log *slog.Logger) error {
	email := os.Getenv("RTTRAIL_EMAIL")
	password := os.Getenv("RTTRAIL_PASSWORD")
	if email == "" || password == "" {
		return fmt.Errorf("RTTRAIL_EMAIL と RTTRAIL_PASSWORD を設定してください")
	}

	c, err := newAPIClient(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	token, err := c.Login(ctx, email, password, nil)
	if err != nil {
		return fmt.Errorf("ログインに失敗しました: %w", err)
	}

	return printJSON(w, token)
}

// runMe は認証済みユーザーの詳細を表示する。RTTRAIL_TOKENが必要。
func runMe(w io.Writer, cfg *config.Config, log *slog.Logger) error {
	c, err := newAPIClient(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	me, err := c.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("ユーザー情報の取得に失敗しました: %w", err)
	}

	return printJSON(w, me)
}

// runSearch は名前でユーザーを検索して結果を表示する。
// argsの先頭要素を検索クエリとして使用する。
func runSearch(w io.Writer, cfg *config.Config, log *slog.Logger, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("検索クエリを指定してください: rttrail search <query>")
	}

	c, err := newAPIClient(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	users, err := c.SearchUsers(ctx, args[0], nil, nil)
	if err != nil {
		return fmt.Errorf("ユーザー検索に失敗しました: %w", err)
	}

	return printJSON(w, users)
}

// runServeStub はスタブサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServeStub(cfg *config.Config, log *slog.Logger) error {
	store := stubserver.NewStore()

	// 開発用の初期ユーザー（環境変数が設定されている場合のみ）
	if email := os.Getenv("RTTRAIL_STUB_SEED_EMAIL"); email != "" {
		password := os.Getenv("RTTRAIL_STUB_SEED_PASSWORD")
		userID := store.SeedUser("admin", email, password, model.AccountTypeAdmin)
		log.Info("初期ユーザーを登録しました",
			slog.String("email", email),
			slog.String("user_id", userID),
		)
	}

	r := chi.NewRouter()
	r.Handle("/metrics", metrics.Handler(prometheus.DefaultGatherer))
	r.Mount("/", stubserver.NewServer(store, log).Router())

	server := &http.Server{
		Addr:         ":" + cfg.StubPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("スタブサーバーを起動します", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("サーバーの待ち受けに失敗しました", slog.String("error", err.Error()))
		}
	}()

	<-stop
	log.Info("スタブサーバーを停止します...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーの停止に失敗しました: %w", err)
	}

	log.Info("スタブサーバーを停止しました")
	return nil
}

// runHealthcheck はスタブサーバーの稼働確認を行う。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/information", port)
	httpClient := &http.Client{Timeout: 5 * time.Second}

	resp, err := httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("ヘルスチェックに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ヘルスチェックがステータス %d を返しました", resp.StatusCode)
	}

	return nil
}

// printJSON は結果をインデント付きJSONで書き出す。
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
