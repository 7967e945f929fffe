// Package credential はベアラー認証情報の保持と有効性判定を提供する。
package credential

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential はリモートサービスに提示するベアラートークンを保持する。
// 値型であり、生成後に書き換えられることはない。
type Credential struct {
	token string
}

// New はトークン文字列からCredentialを生成する。
func New(token string) Credential {
	return Credential{token: token}
}

// Token はトークン文字列を返す。
func (c Credential) Token() string {
	return c.token
}

// Empty はトークンが未設定かを返す。
func (c Credential) Empty() bool {
	return c.token == ""
}

// Valid は認証情報がディスパッチに使用可能かを判定する。
// トークンが未設定の場合はfalse。
// トークンがJWTとしてパースできる場合はexpクレームの期限切れを検査する。
// 署名鍵を持たないため検証なしパースであり、署名の真正性は確認しない。
// JWTでない不透明トークンは存在のみで有効とみなす（有効期限の管理はリモート側の責務）。
func (c Credential) Valid(now time.Time) bool {
	if c.token == "" {
		return false
	}

	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(c.token, claims)
	if err != nil {
		// JWT形式でないトークンは存在チェックのみ
		return true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return exp.After(now)
}
