package model

import (
	"errors"
	"fmt"
)

// APIError はクライアント操作の統一エラーフォーマットを表す。
// ローカル検証エラーとリモートエラーの両方をこの型で表現する。
type APIError struct {
	Code       string         // エラーコード
	Message    string         // エラーメッセージ
	Category   string         // カテゴリ: local, transport, validation, auth, remote
	StatusCode int            // HTTPステータスコード（リモートエラーのみ）
	Body       string         // レスポンスボディ（UNEXPECTED_STATUSのみ、診断用）
	Problems   []FieldProblem // フィールド単位の検証エラー（VALIDATION_ERRORのみ）

	err error // ラップされた下位エラー（TRANSPORT_ERRORのみ）
}

// FieldProblem はリモートサービスが報告するフィールド単位の検証エラー。
type FieldProblem struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap はラップされた下位エラーを返す。
func (e *APIError) Unwrap() error {
	return e.err
}

// 定義済みエラーコード
const (
	// ErrCodeMissingParameter は必須パラメータ欠落。ディスパッチ前にローカルで検出される。
	ErrCodeMissingParameter = "MISSING_PARAMETER"
	// ErrCodeUnauthenticated は認証情報の欠落または期限切れ。ディスパッチ前にローカルで検出される。
	ErrCodeUnauthenticated = "UNAUTHENTICATED"
	// ErrCodeTransport はネットワーク・トランスポート層の失敗。
	ErrCodeTransport = "TRANSPORT_ERROR"
	// ErrCodeValidation はリモートの検証エラー（HTTP 422）。
	ErrCodeValidation = "VALIDATION_ERROR"
	// ErrCodeAuth はリモートの認証・認可拒否（HTTP 401/403）。
	ErrCodeAuth = "AUTH_ERROR"
	// ErrCodeUnexpectedStatus は想定外のHTTPステータス。
	ErrCodeUnexpectedStatus = "UNEXPECTED_STATUS"
)

// NewMissingParameterError は必須パラメータ欠落エラーを生成する。
// ネットワークリクエストを発行する前に返される。
func NewMissingParameterError(param string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingParameter,
		Message:  fmt.Sprintf("必須パラメータが指定されていません: %s", param),
		Category: "local",
	}
}

// NewUnauthenticatedError は認証情報欠落エラーを生成する。
// 認証必須の操作を認証情報なしで呼び出した場合に、ディスパッチ前に返される。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "認証情報が設定されていないか、有効期限が切れています。",
		Category: "local",
	}
}

// NewTransportError はトランスポート層の失敗エラーを生成する。
// 接続拒否、タイムアウト、DNS失敗などが該当する。クライアントは決してリトライしない。
func NewTransportError(err error) *APIError {
	return &APIError{
		Code:     ErrCodeTransport,
		Message:  fmt.Sprintf("ネットワークリクエストに失敗しました: %s", err.Error()),
		Category: "transport",
		err:      err,
	}
}

// NewValidationError はリモート検証エラー（422）を生成する。
// リモートサービスが報告したフィールド単位の問題を保持する。
func NewValidationError(problems []FieldProblem) *APIError {
	return &APIError{
		Code:       ErrCodeValidation,
		Message:    "リクエスト内容がリモートサービスの検証で拒否されました。",
		Category:   "validation",
		StatusCode: 422,
		Problems:   problems,
	}
}

// NewAuthError はリモートの認証・認可拒否エラー（401/403）を生成する。
func NewAuthError(statusCode int) *APIError {
	return &APIError{
		Code:       ErrCodeAuth,
		Message:    fmt.Sprintf("リモートサービスが認証を拒否しました（ステータス %d）。", statusCode),
		Category:   "auth",
		StatusCode: statusCode,
	}
}

// NewUnexpectedStatusError は想定外のHTTPステータスエラーを生成する。
// 診断のためステータスコードと生のレスポンスボディを保持する。
func NewUnexpectedStatusError(statusCode int, body string) *APIError {
	return &APIError{
		Code:       ErrCodeUnexpectedStatus,
		Message:    fmt.Sprintf("想定外のHTTPステータスを受信しました: %d", statusCode),
		Category:   "remote",
		StatusCode: statusCode,
		Body:       body,
	}
}

// AsAPIError はエラーチェーンからAPIErrorを取り出す。
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
