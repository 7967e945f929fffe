// Package model はRTTrail APIのドメインモデルを定義する。
// すべてのレコードはワイヤ上で交換されるイミュータブルな値であり、
// クライアント側で書き換えられることはない。
package model

import "fmt"

// AccountType はユーザーのアカウント種別を表す。
type AccountType string

const (
	// AccountTypeUser は一般ユーザー。
	AccountTypeUser AccountType = "user"
	// AccountTypeModerator はモデレーター。
	AccountTypeModerator AccountType = "moderator"
	// AccountTypeAdmin は管理者。
	AccountTypeAdmin AccountType = "admin"
)

// AllAccountTypes は定義済みの全アカウント種別を返す。
func AllAccountTypes() []AccountType {
	return []AccountType{AccountTypeUser, AccountTypeModerator, AccountTypeAdmin}
}

// ParseAccountType は文字列をAccountTypeに変換する。
// 未知の値の場合はエラーを返す。
func ParseAccountType(s string) (AccountType, error) {
	switch AccountType(s) {
	case AccountTypeUser, AccountTypeModerator, AccountTypeAdmin:
		return AccountType(s), nil
	default:
		return "", fmt.Errorf("未知のアカウント種別です: %s", s)
	}
}

// Valid はアカウント種別が定義済みの値かを検証する。
func (a AccountType) Valid() bool {
	_, err := ParseAccountType(string(a))
	return err == nil
}
