// Package client はRTTrail REST APIの型付きクライアントを提供する。
// エンドポイントごとに1つの操作を公開し、リクエスト・レスポンスを
// 型付きレコードとして扱う。キャッシュやリトライは一切行わず、
// すべての失敗は呼び出し元にそのまま返す。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/rttrail-go/internal/credential"
	"github.com/hitoshi/rttrail-go/internal/model"
)

const (
	// DefaultBaseURL はベースURLのデフォルト値。
	DefaultBaseURL = "http://localhost"
	// userAgent は全リクエストに付与するUser-Agentヘッダ。
	userAgent = "rttrail-go/1.0"
)

// MetricsRecorder はクライアント操作のメトリクス記録のインターフェース。
type MetricsRecorder interface {
	// RecordRequest はHTTPレスポンスを受信した操作を記録する。
	RecordRequest(operation string, statusCode int, duration time.Duration)
	// RecordLocalFailure はディスパッチ前に失敗した操作を記録する。
	RecordLocalFailure(operation string, errCode string)
}

// Config はクライアントの設定を保持する。
// 生成後のクライアント設定は読み取り専用であり、並行呼び出しに対して安全。
type Config struct {
	// BaseURL はリモートサービスのベースURL。未指定時はDefaultBaseURL。
	BaseURL string
	// HTTPClient は下位トランスポート。未指定時はタイムアウト付きのデフォルトクライアント。
	// コネクションプーリングはこのトランスポートに委譲される。
	HTTPClient *http.Client
	// Credential は認証必須の操作に使用するベアラー認証情報。
	Credential credential.Credential
	// Metrics はメトリクス収集。nilの場合は記録しない。
	Metrics MetricsRecorder
	// Limiter は送信レート制限。nilの場合は制限しない。
	Limiter *rate.Limiter
}

// DefaultHTTPClient はデフォルトのHTTPトランスポートを返す。
func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// Client はRTTrail APIの型付きクライアント。
// 設定（ベースURL、認証情報）以外の状態を一切持たない。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	cred       credential.Credential
	metrics    MetricsRecorder
	limiter    *rate.Limiter
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(cfg Config, logger *slog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = DefaultHTTPClient()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cred:       cfg.Credential,
		metrics:    cfg.Metrics,
		limiter:    cfg.Limiter,
	}
}

// WithCredential は認証情報のみを差し替えた新しいClientを返す。
// 元のClientは変更されない。ログイン後にトークンを反映する用途を想定している。
func (c *Client) WithCredential(cred credential.Credential) *Client {
	clone := *c
	clone.cred = cred
	return &clone
}

// requestSpec は1回のディスパッチに必要な情報をまとめる。
type requestSpec struct {
	operation    string     // 操作名（ログ・メトリクス用）
	method       string     // HTTPメソッド
	path         string     // 先頭スラッシュ付きのパス
	query        url.Values // クエリパラメータ。不要ならnil
	body         io.Reader  // リクエストボディ。不要ならnil
	contentType  string     // ボディのContent-Type
	expectStatus int        // 成功とみなすHTTPステータス
	needsAuth    bool       // ベアラー認証必須か
}

// checkAuth は認証必須の操作に対するディスパッチ前検査を行う。
// 認証情報が未設定または期限切れの場合、ネットワークリクエストを発行せずにエラーを返す。
func (c *Client) checkAuth(operation string) *model.APIError {
	if !c.cred.Valid(time.Now()) {
		if c.metrics != nil {
			c.metrics.RecordLocalFailure(operation, model.ErrCodeUnauthenticated)
		}
		c.logger.Warn("認証情報なしで認証必須の操作が呼び出されました",
			slog.String("operation", operation),
		)
		return model.NewUnauthenticatedError()
	}
	return nil
}

// missingParam は必須パラメータ欠落のローカルエラーを記録して返す。
func (c *Client) missingParam(operation, param string) *model.APIError {
	if c.metrics != nil {
		c.metrics.RecordLocalFailure(operation, model.ErrCodeMissingParameter)
	}
	return model.NewMissingParameterError(param)
}

// do はリクエストを1回発行し、成功時はレスポンスボディを返す。
// ステータスコードは次の通りマッピングされる:
//
//	expectStatus      → 成功
//	422               → VALIDATION_ERROR（フィールド単位の問題を含む）
//	401 / 403         → AUTH_ERROR
//	その他の非2xx     → UNEXPECTED_STATUS（ステータスと生ボディを含む）
//	トランスポート失敗 → TRANSPORT_ERROR
//
// いかなる失敗もリトライしない。リトライは呼び出し元の判断。
func (c *Client) do(ctx context.Context, spec requestSpec) ([]byte, error) {
	if spec.needsAuth {
		if apiErr := c.checkAuth(spec.operation); apiErr != nil {
			return nil, apiErr
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, model.NewTransportError(err)
		}
	}

	reqURL := c.baseURL + spec.path
	if len(spec.query) > 0 {
		reqURL += "?" + spec.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, spec.method, reqURL, spec.body)
	if err != nil {
		return nil, model.NewTransportError(err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if spec.contentType != "" {
		req.Header.Set("Content-Type", spec.contentType)
	}
	// 認証情報が設定されていれば常に付与する。
	// /login/test-tokenのように認証必須とされていない操作でも、
	// 設定済みのトークンはそのまま提示される。
	if !c.cred.Empty() {
		req.Header.Set("Authorization", "Bearer "+c.cred.Token())
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("HTTPリクエストに失敗しました",
			slog.String("operation", spec.operation),
			slog.String("method", spec.method),
			slog.String("path", spec.path),
			slog.String("error", err.Error()),
		)
		if c.metrics != nil {
			c.metrics.RecordLocalFailure(spec.operation, model.ErrCodeTransport)
		}
		return nil, model.NewTransportError(err)
	}
	defer resp.Body.Close()

	duration := time.Since(start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("operation", spec.operation),
			slog.String("error", err.Error()),
		)
		return nil, model.NewTransportError(err)
	}

	if c.metrics != nil {
		c.metrics.RecordRequest(spec.operation, resp.StatusCode, duration)
	}

	if resp.StatusCode == spec.expectStatus {
		return body, nil
	}

	apiErr := c.mapErrorStatus(resp.StatusCode, body)
	c.logger.Warn("リモートサービスがエラーステータスを返しました",
		slog.String("operation", spec.operation),
		slog.String("method", spec.method),
		slog.String("path", spec.path),
		slog.Int("http_status", resp.StatusCode),
		slog.String("error_code", apiErr.Code),
	)
	return nil, apiErr
}

// validationBody は422レスポンスのFastAPI形式ボディ。
type validationBody struct {
	Detail []model.FieldProblem `json:"detail"`
}

// mapErrorStatus は非成功ステータスをAPIErrorに変換する。
func (c *Client) mapErrorStatus(statusCode int, body []byte) *model.APIError {
	switch {
	case statusCode == http.StatusUnprocessableEntity:
		var vb validationBody
		if err := json.Unmarshal(body, &vb); err != nil {
			// ボディが期待形式でなくても422はVALIDATION_ERRORとして返す
			return model.NewValidationError(nil)
		}
		return model.NewValidationError(vb.Detail)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return model.NewAuthError(statusCode)
	default:
		return model.NewUnexpectedStatusError(statusCode, string(body))
	}
}

// doJSON はJSONボディ付きのリクエストを発行する。
func (c *Client) doJSON(ctx context.Context, spec requestSpec, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, model.NewTransportError(err)
	}
	spec.body = bytes.NewReader(data)
	spec.contentType = "application/json"
	return c.do(ctx, spec)
}
