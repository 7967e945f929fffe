package model

import "time"

// User はユーザーの完全な表現。
// 認証済みエンドポイント（/users/me、/users/{id}等）のレスポンスで使用される。
type User struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	AccountType AccountType `json:"account_type"`
	IsActive    bool        `json:"is_active"`
	Email       string      `json:"email"`
	// CreatedOn はアカウント作成日時。サーバーが返さない場合はnil。
	CreatedOn *time.Time `json:"created_on,omitempty"`
}

// UserSimple はユーザーの簡易表現。
// 一覧・検索レスポンスで使用され、メールアドレスを含まない。
type UserSimple struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	AccountType AccountType `json:"account_type"`
	IsActive    bool        `json:"is_active"`
}
