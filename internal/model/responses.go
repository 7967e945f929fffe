package model

// AccessToken はログイン成功時に発行されるベアラートークン。
type AccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// CoreInformation はサービスの稼働状態とバージョン情報。
// APIの死活確認に使用できる。
type CoreInformation struct {
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
}

// Result は変更系エンドポイントが返す汎用の操作結果。
type Result struct {
	Success bool `json:"success"`
}
