package credential

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// signedToken はテスト用のHS256署名付きJWTを生成する。
func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("テスト用JWTの生成に失敗した: %v", err)
	}
	return s
}

func TestCredential_Empty(t *testing.T) {
	c := New("")
	if !c.Empty() {
		t.Error("空トークンの Empty() は true であるべき")
	}
	if c.Valid(time.Now()) {
		t.Error("空トークンは無効であるべき")
	}
}

func TestCredential_OpaqueToken_ValidByPresence(t *testing.T) {
	// JWTでない不透明トークンは存在のみで有効
	c := New("opaque-token-abc123")
	if !c.Valid(time.Now()) {
		t.Error("不透明トークンは存在のみで有効とみなされるべき")
	}
}

func TestCredential_JWT_NotExpired(t *testing.T) {
	now := time.Now()
	c := New(signedToken(t, now.Add(30*time.Minute)))
	if !c.Valid(now) {
		t.Error("有効期限内のJWTは有効であるべき")
	}
}

func TestCredential_JWT_Expired(t *testing.T) {
	now := time.Now()
	c := New(signedToken(t, now.Add(-time.Minute)))
	if c.Valid(now) {
		t.Error("期限切れのJWTは無効であるべき")
	}
}

func TestCredential_JWT_WithoutExpClaim(t *testing.T) {
	// expクレームのないJWTは存在のみで有効
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"})
	s, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("テスト用JWTの生成に失敗した: %v", err)
	}

	c := New(s)
	if !c.Valid(time.Now()) {
		t.Error("expクレームのないJWTは有効とみなされるべき")
	}
}

func TestCredential_TokenAccessor(t *testing.T) {
	c := New("abc")
	if c.Token() != "abc" {
		t.Errorf("Token() = %s, want abc", c.Token())
	}
}
