package model

// UserRegister はアカウント登録リクエスト。
// パスワードは平文で一度だけ送信され、レスポンスには決して含まれない。
type UserRegister struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// UserUpdate は自分自身の部分更新リクエスト。
// nilのフィールドは送信されず、サーバー側で「変更なし」として扱われる。
// ゼロ値との混同を避けるため、省略可能フィールドはすべてポインタで表現する。
type UserUpdate struct {
	Name *string `json:"name,omitempty"`
}

// UserUpdateAdmin は管理者による部分更新リクエスト。
// UserUpdateと同様に、nilのフィールドは「変更なし」を意味する。
type UserUpdateAdmin struct {
	Email       *string      `json:"email,omitempty"`
	AccountType *AccountType `json:"account_type,omitempty"`
	Name        *string      `json:"name,omitempty"`
	IsActive    *bool        `json:"is_active,omitempty"`
}

// UserActivate はアカウント有効化リクエスト。
// ActivationTokenはメールで送付される使い捨てトークン。
type UserActivate struct {
	Name            string `json:"name"`
	ActivationToken string `json:"activation_token"`
}

// ChangePassword はパスワード変更リクエスト。
// 旧パスワードの提示が必要。
type ChangePassword struct {
	Email       string `json:"email"`
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ResetPassword はパスワードリセットリクエスト。
// ResetTokenは/login/recoverで開始した回復フローでメール送付される。
type ResetPassword struct {
	ResetToken  string `json:"reset_token"`
	NewPassword string `json:"new_password"`
}

// EmailRecover はパスワード回復の開始リクエスト。
type EmailRecover struct {
	Email string `json:"email"`
}

// MailMigration はメールアドレス変更の開始リクエスト。
// 確認コードが新しいアドレスに送付される。
type MailMigration struct {
	NewEmail string `json:"new_email"`
}
