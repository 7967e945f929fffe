package client

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/rttrail-go/internal/credential"
	"github.com/hitoshi/rttrail-go/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// newTestClient はテスト用HTTPサーバーに向けたClientを生成する。
func newTestClient(server *httptest.Server, cred credential.Credential) *Client {
	var buf bytes.Buffer
	return NewClient(Config{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Credential: cred,
	}, newTestLogger(&buf))
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	var buf bytes.Buffer
	c := NewClient(Config{}, newTestLogger(&buf))
	if c.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %s, want %s", c.baseURL, DefaultBaseURL)
	}
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	var buf bytes.Buffer
	c := NewClient(Config{BaseURL: "http://api.example.com/"}, newTestLogger(&buf))
	if c.baseURL != "http://api.example.com" {
		t.Errorf("baseURL = %s, want http://api.example.com", c.baseURL)
	}
}

func TestClient_SetsRequestHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != userAgent {
			t.Errorf("User-Agent = %s, want %s", r.Header.Get("User-Agent"), userAgent)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("X-Request-ID が設定されるべき")
		}
		w.Write([]byte(`{"ready":true,"version":"1.0.0"}`))
	}))
	defer server.Close()

	c := newTestClient(server, credential.Credential{})
	if _, err := c.GetInformation(context.Background()); err != nil {
		t.Fatalf("GetInformation がエラーを返した: %v", err)
	}
}

func TestClient_AttachesBearerWhenCredentialSet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-abc" {
			t.Errorf("Authorization = %s, want Bearer token-abc", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"ready":true,"version":"1.0.0"}`))
	}))
	defer server.Close()

	// 認証不要の操作でも設定済みの認証情報は付与される
	c := newTestClient(server, credential.New("token-abc"))
	if _, err := c.GetInformation(context.Background()); err != nil {
		t.Fatalf("GetInformation がエラーを返した: %v", err)
	}
}

func TestClient_NoAuthorizationHeaderWithoutCredential(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("認証情報なしでは Authorization ヘッダを送信しないべき: %s", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"ready":true,"version":"1.0.0"}`))
	}))
	defer server.Close()

	c := newTestClient(server, credential.Credential{})
	if _, err := c.GetInformation(context.Background()); err != nil {
		t.Fatalf("GetInformation がエラーを返した: %v", err)
	}
}

// --- 認証必須操作のディスパッチ前検査 ---

func TestClient_ProtectedOperation_WithoutCredential_NoNetworkCall(t *testing.T) {
	var requestCount int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requestCount++
		mu.Unlock()
	}))
	defer server.Close()

	c := newTestClient(server, credential.Credential{})

	// 認証必須の全操作について、認証情報なしではネットワークリクエストを発行しないこと
	ops := map[string]func() error{
		"GetMe":       func() error { _, err := c.GetMe(context.Background()); return err },
		"ListUsers":   func() error { _, err := c.ListUsers(context.Background(), nil); return err },
		"CountUsers":  func() error { _, err := c.CountUsers(context.Background()); return err },
		"GetUser":     func() error { _, err := c.GetUser(context.Background(), "u1"); return err },
		"UpdateUser":  func() error { return c.UpdateUser(context.Background(), "u1", model.UserUpdateAdmin{}) },
		"UpdateMe":    func() error { return c.UpdateMe(context.Background(), model.UserUpdate{}) },
		"MigrateMail": func() error { return c.MigrateMail(context.Background(), "new@example.com") },
		"AskDeletion": func() error { return c.AskDeletion(context.Background()) },
		"GetMyProfilePicture": func() error {
			_, err := c.GetMyProfilePicture(context.Background())
			return err
		},
		"ListAccountTypes": func() error {
			_, err := c.ListAccountTypes(context.Background())
			return err
		},
	}

	for name, call := range ops {
		err := call()
		if err == nil {
			t.Errorf("%s: 認証情報なしでエラーが返されるべき", name)
			continue
		}
		apiErr, ok := model.AsAPIError(err)
		if !ok || apiErr.Code != model.ErrCodeUnauthenticated {
			t.Errorf("%s: UNAUTHENTICATED エラーであるべき: got %v", name, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if requestCount != 0 {
		t.Errorf("ネットワークリクエストが発行された: %d 回", requestCount)
	}
}

func TestClient_ProtectedOperation_ExpiredJWT_FailsLocally(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("期限切れ認証情報でネットワークリクエストを発行してはならない")
	}))
	defer server.Close()

	// 有効期限が過去のJWT（ヘッダ・ペイロード・署名の形式だけ満たす）
	expired := expiredJWT(t)
	c := newTestClient(server, credential.New(expired))

	_, err := c.GetMe(context.Background())
	apiErr, ok := model.AsAPIError(err)
	if !ok || apiErr.Code != model.ErrCodeUnauthenticated {
		t.Errorf("UNAUTHENTICATED エラーであるべき: got %v", err)
	}
}

// --- エラーマッピング ---

func TestClient_Maps422ToValidationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":[{"loc":["body","email"],"msg":"value is not a valid email address","type":"value_error.email"}]}`))
	}))
	defer server.Close()

	c := newTestClient(server, credential.Credential{})
	_, err := c.GetInformation(context.Background())

	apiErr, ok := model.AsAPIError(err)
	if !ok || apiErr.Code != model.ErrCodeValidation {
		t.Fatalf("VALIDATION_ERROR であるべき: got %v", err)
	}
	if len(apiErr.Problems) != 1 {
		t.Fatalf("Problems の数 = %d, want 1", len(apiErr.Problems))
	}
	if apiErr.Problems[0].Msg != "value is not a valid email address" {
		t.Errorf("Msg = %s", apiErr.Problems[0].Msg)
	}
}

func TestClient_Maps401ToAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newTestClient(server, credential.Credential{})
	_, err := c.GetInformation(context.Background())

	apiErr, ok := model.AsAPIError(err)
	if !ok || apiErr.Code != model.ErrCodeAuth {
		t.Fatalf("AUTH_ERROR であるべき: got %v", err)
	}
	if apiErr.StatusCode != 401 {
		t.Errorf("StatusCode = %d, want 401", apiErr.StatusCode)
	}
}

func TestClient_Maps403ToAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := newTestClient(server, credential.Credential{})
	_, err := c.GetInformation(context.Background())

	apiErr, ok := model.AsAPIError(err)
	if !ok || apiErr.Code != model.ErrCodeAuth {
		t.Fatalf("AUTH_ERROR であるべき: got %v", err)
	}
}

func TestClient_MapsOtherStatusToUnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"detail":"conflict"}`))
	}))
	defer server.Close()

	c := newTestClient(server, credential.Credential{})
	_, err := c.GetInformation(context.Background())

	apiErr, ok := model.AsAPIError(err)
	if !ok || apiErr.Code != model.ErrCodeUnexpectedStatus {
		t.Fatalf("UNEXPECTED_STATUS であるべき: got %v", err)
	}
	if apiErr.StatusCode != http.StatusConflict {
		t.Errorf("StatusCode = %d, want 409", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Body, "conflict") {
		t.Errorf("診断用に生ボディを保持するべき: %s", apiErr.Body)
	}
}

func TestClient_TransportFailure(t *testing.T) {
	// サーバーを起動して即座に閉じ、接続拒否を発生させる
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	var buf bytes.Buffer
	c := NewClient(Config{BaseURL: addr}, newTestLogger(&buf))

	_, err := c.GetInformation(context.Background())
	apiErr, ok := model.AsAPIError(err)
	if !ok || apiErr.Code != model.ErrCodeTransport {
		t.Fatalf("TRANSPORT_ERROR であるべき: got %v", err)
	}
	if apiErr.Unwrap() == nil {
		t.Error("下位のトランスポートエラーをラップするべき")
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Second)
	}))
	defer server.Close()

	c := newTestClient(server, credential.Credential{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // 即座にキャンセル

	_, err := c.GetInformation(ctx)
	if err == nil {
		t.Fatal("キャンセルされたコンテキストでエラーが返されるべき")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("context.Canceled エラーであるべき: got %v", err)
	}
}

func TestClient_WithCredential_ReturnsNewClient(t *testing.T) {
	var buf bytes.Buffer
	c := NewClient(Config{}, newTestLogger(&buf))

	c2 := c.WithCredential(credential.New("token-xyz"))
	if c2 == c {
		t.Error("WithCredential は新しいインスタンスを返すべき")
	}
	if !c.cred.Empty() {
		t.Error("元のクライアントの認証情報は変更されないべき")
	}
	if c2.cred.Token() != "token-xyz" {
		t.Errorf("新しいクライアントの認証情報 = %s, want token-xyz", c2.cred.Token())
	}
}

// expiredJWT は有効期限が過去のテスト用JWTを生成する。
func expiredJWT(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("テスト用JWTの生成に失敗した: %v", err)
	}
	return s
}

func TestClient_UnexpectedSuccessStatus(t *testing.T) {
	// 200を期待する操作に204が返った場合はUNEXPECTED_STATUS
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := newTestClient(server, credential.Credential{})
	_, err := c.GetInformation(context.Background())

	apiErr, ok := model.AsAPIError(err)
	if !ok || apiErr.Code != model.ErrCodeUnexpectedStatus {
		t.Fatalf("UNEXPECTED_STATUS であるべき: got %v", err)
	}
}
