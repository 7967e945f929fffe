package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/rttrail-go/internal/model"
)

// LoginOptions はOAuthパスワードフローの省略可能なパラメータ。
// 空のフィールドは送信されない。
type LoginOptions struct {
	GrantType    string
	Scope        string
	ClientID     string
	ClientSecret string
}

// Login はユーザー名とパスワードをアクセストークンと交換する。
// このエンドポイントのみ、リクエストボディはJSONではなくフォームエンコードで送信される。
func (c *Client) Login(ctx context.Context, username, password string, opts *LoginOptions) (*model.AccessToken, error) {
	const op = "Login"
	if username == "" {
		return nil, c.missingParam(op, "username")
	}
	if password == "" {
		return nil, c.missingParam(op, "password")
	}

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	if opts != nil {
		if opts.GrantType != "" {
			form.Set("grant_type", opts.GrantType)
		}
		if opts.Scope != "" {
			form.Set("scope", opts.Scope)
		}
		if opts.ClientID != "" {
			form.Set("client_id", opts.ClientID)
		}
		if opts.ClientSecret != "" {
			form.Set("client_secret", opts.ClientSecret)
		}
	}

	body, err := c.do(ctx, requestSpec{
		operation:    op,
		method:       http.MethodPost,
		path:         "/login/access-token",
		body:         strings.NewReader(form.Encode()),
		contentType:  "application/x-www-form-urlencoded",
		expectStatus: http.StatusOK,
	})
	if err != nil {
		return nil, err
	}

	var token model.AccessToken
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return &token, nil
}

// TestToken は設定済みのアクセストークンをリモートサービスで検証し、
// 対応するユーザーを返す。認証情報が設定されていればそのまま提示され、
// 未設定の場合はローカルでは失敗せずリモートの401がAUTH_ERRORとして返る。
func (c *Client) TestToken(ctx context.Context) (*model.User, error) {
	body, err := c.do(ctx, requestSpec{
		operation:    "TestToken",
		method:       http.MethodPost,
		path:         "/login/test-token",
		expectStatus: http.StatusOK,
	})
	if err != nil {
		return nil, err
	}

	var user model.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return &user, nil
}

// ActivateUser は登録済みアカウントを有効化する。
// ActivationTokenはメールで送付される使い捨てトークン。
func (c *Client) ActivateUser(ctx context.Context, activate model.UserActivate) (*model.Result, error) {
	const op = "ActivateUser"
	if activate.Name == "" {
		return nil, c.missingParam(op, "name")
	}
	if activate.ActivationToken == "" {
		return nil, c.missingParam(op, "activation_token")
	}

	body, err := c.doJSON(ctx, requestSpec{
		operation:    op,
		method:       http.MethodPost,
		path:         "/login/activate",
		expectStatus: http.StatusCreated,
	}, activate)
	if err != nil {
		return nil, err
	}
	return decodeResult(body)
}

// ChangePassword はパスワードを変更する。旧パスワードの提示が必要。
// パスワードを忘れた場合はRecoverUserとResetPasswordを使用する。
func (c *Client) ChangePassword(ctx context.Context, change model.ChangePassword) (*model.Result, error) {
	const op = "ChangePassword"
	if change.Email == "" {
		return nil, c.missingParam(op, "email")
	}
	if change.OldPassword == "" {
		return nil, c.missingParam(op, "old_password")
	}
	if change.NewPassword == "" {
		return nil, c.missingParam(op, "new_password")
	}

	body, err := c.doJSON(ctx, requestSpec{
		operation:    op,
		method:       http.MethodPost,
		path:         "/login/change-password",
		expectStatus: http.StatusCreated,
	}, change)
	if err != nil {
		return nil, err
	}
	return decodeResult(body)
}

// RecoverUser はパスワード回復フローを開始する。
// リモートサービスはアカウント列挙を防ぐため、メールアドレスの存在に関わらず
// 常に成功形のResultを返す。クライアント側で存在判定の短絡を仮定してはならない。
func (c *Client) RecoverUser(ctx context.Context, email string) (*model.Result, error) {
	const op = "RecoverUser"
	if email == "" {
		return nil, c.missingParam(op, "email")
	}

	body, err := c.doJSON(ctx, requestSpec{
		operation:    op,
		method:       http.MethodPost,
		path:         "/login/recover",
		expectStatus: http.StatusCreated,
	}, model.EmailRecover{Email: email})
	if err != nil {
		return nil, err
	}
	return decodeResult(body)
}

// ResetPassword は回復フローで取得したリセットトークンを使ってパスワードを再設定する。
// トークンの対応付けは呼び出し元の責務であり、クライアントは2つの呼び出しを関連付けない。
func (c *Client) ResetPassword(ctx context.Context, reset model.ResetPassword) (*model.Result, error) {
	const op = "ResetPassword"
	if reset.ResetToken == "" {
		return nil, c.missingParam(op, "reset_token")
	}
	if reset.NewPassword == "" {
		return nil, c.missingParam(op, "new_password")
	}

	body, err := c.doJSON(ctx, requestSpec{
		operation:    op,
		method:       http.MethodPost,
		path:         "/login/reset-password",
		expectStatus: http.StatusCreated,
	}, reset)
	if err != nil {
		return nil, err
	}
	return decodeResult(body)
}

// MigrateMail はメールアドレス変更フローの第1段階を実行する。
// 認証必須。新しいアドレスに確認コードが送付される。
// 第2段階はConfirmMailMigrationで、対応付けは呼び出し元の責務。
func (c *Client) MigrateMail(ctx context.Context, newEmail string) error {
	const op = "MigrateMail"
	if newEmail == "" {
		return c.missingParam(op, "new_email")
	}

	_, err := c.doJSON(ctx, requestSpec{
		operation:    op,
		method:       http.MethodPost,
		path:         "/login/migrate-mail",
		expectStatus: http.StatusNoContent,
		needsAuth:    true,
	}, model.MailMigration{NewEmail: newEmail})
	return err
}

// ConfirmMailMigration はメールアドレス変更フローの第2段階を実行する。
// 認証不要。トークンは確認メールに含まれる使い捨て文字列で、
// クエリパラメータとして送信される。
func (c *Client) ConfirmMailMigration(ctx context.Context, token string) error {
	const op = "ConfirmMailMigration"
	if token == "" {
		return c.missingParam(op, "token")
	}

	query := url.Values{}
	query.Set("token", token)

	_, err := c.do(ctx, requestSpec{
		operation:    op,
		method:       http.MethodGet,
		path:         "/login/migrate-mail-confirm",
		query:        query,
		expectStatus: http.StatusOK,
	})
	return err
}

// decodeResult はResultレコードをデコードする。
func decodeResult(body []byte) (*model.Result, error) {
	var result model.Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return &result, nil
}
