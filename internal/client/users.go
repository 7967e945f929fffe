package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/rttrail-go/internal/model"
)

// ListUsers は全ユーザーをUserSimpleの一覧として取得する。
// 認証必須（管理者向け）。accountTypesで種別を絞り込める。空の場合は全種別。
func (c *Client) ListUsers(ctx context.Context, accountTypes []model.AccountType) ([]model.UserSimple, error) {
	query := url.Values{}
	for _, t := range accountTypes {
		query.Add("accountTypes", string(t))
	}

	body, err := c.do(ctx, requestSpec{
		operation:    "ListUsers",
		method:       http.MethodGet,
		path:         "/users",
		query:        query,
		expectStatus: http.StatusOK,
		needsAuth:    true,
	})
	if err != nil {
		return nil, err
	}
	return decodeUserSimpleList(body)
}

// RegisterUser はアカウント登録を申請する。
// 有効化トークンがメールで送付され、ActivateUserで確認するまでアカウントは未確定。
// 既存アカウントと同じメールアドレスでも成功形のResultが返る（列挙防止のためのリモート側の性質）。
func (c *Client) RegisterUser(ctx context.Context, register model.UserRegister) (*model.Result, error) {
	const op = "RegisterUser"
	if register.Email == "" {
		return nil, c.missingParam(op, "email")
	}
	if register.Password == "" {
		return nil, c.missingParam(op, "password")
	}
	if register.Name == "" {
		return nil, c.missingParam(op, "name")
	}

	body, err := c.doJSON(ctx, requestSpec{
		operation:    op,
		method:       http.MethodPost,
		path:         "/users/register",
		expectStatus: http.StatusCreated,
	}, register)
	if err != nil {
		return nil, err
	}
	return decodeResult(body)
}

// SearchUsers は自由テキストでユーザーを検索する。
// マッチングアルゴリズム（名前のあいまい一致）はサーバー側の実装であり、
// クライアントの契約はパラメータのマーシャリングと結果のデシリアライズのみ。
// 結果0件は空スライス（nilではない）として返る正常系。
func (c *Client) SearchUsers(ctx context.Context, query string, included, excluded []model.AccountType) ([]model.UserSimple, error) {
	const op = "SearchUsers"
	if query == "" {
		return nil, c.missingParam(op, "query")
	}

	params := url.Values{}
	params.Set("query", query)
	for _, t := range included {
		params.Add("includedAccountTypes", string(t))
	}
	for _, t := range excluded {
		params.Add("excludedAccountTypes", string(t))
	}

	body, err := c.do(ctx, requestSpec{
		operation:    op,
		method:       http.MethodGet,
		path:         "/users/search",
		query:        params,
		expectStatus: http.StatusOK,
	})
	if err != nil {
		return nil, err
	}
	return decodeUserSimpleList(body)
}

// CountUsers は登録ユーザー数を取得する。認証必須（管理者向け）。
func (c *Client) CountUsers(ctx context.Context) (int, error) {
	body, err := c.do(ctx, requestSpec{
		operation:    "CountUsers",
		method:       http.MethodGet,
		path:         "/users/count",
		expectStatus: http.StatusOK,
		needsAuth:    true,
	})
	if err != nil {
		return 0, err
	}

	// json.Encoderを使うサーバーは末尾に改行を付けるため、余白を除去してからパースする
	count, err := strconv.Atoi(strings.TrimSpace(string(body)))
	if err != nil {
		return 0, fmt.Errorf("レスポンスのパースに失敗しました: %w", err)
	}
	return count, nil
}

// ListAccountTypes はシステムに定義された全アカウント種別を取得する。
// 認証必須（管理者向け）。
func (c *Client) ListAccountTypes(ctx context.Context) ([]model.AccountType, error) {
	body, err := c.do(ctx, requestSpec{
		operation:    "ListAccountTypes",
		method:       http.MethodGet,
		path:         "/users/account-types",
		expectStatus: http.StatusOK,
		needsAuth:    true,
	})
	if err != nil {
		return nil, err
	}

	var types []model.AccountType
	if err := json.Unmarshal(body, &types); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return types, nil
}

// GetUser は指定IDのユーザーの完全な表現を取得する。認証必須。
func (c *Client) GetUser(ctx context.Context, userID string) (*model.User, error) {
	const op = "GetUser"
	if userID == "" {
		return nil, c.missingParam(op, "user_id")
	}

	body, err := c.do(ctx, requestSpec{
		operation:    op,
		method:       http.MethodGet,
		path:         "/users/" + url.PathEscape(userID),
		expectStatus: http.StatusOK,
		needsAuth:    true,
	})
	if err != nil {
		return nil, err
	}
	return decodeUser(body)
}

// UpdateUser は指定IDのユーザーを部分更新する。認証必須（管理者向け）。
// updateのnilフィールドは送信されず「変更なし」として扱われる。
func (c *Client) UpdateUser(ctx context.Context, userID string, update model.UserUpdateAdmin) error {
	const op = "UpdateUser"
	if userID == "" {
		return c.missingParam(op, "user_id")
	}

	_, err := c.doJSON(ctx, requestSpec{
		operation:    op,
		method:       http.MethodPatch,
		path:         "/users/" + url.PathEscape(userID),
		expectStatus: http.StatusNoContent,
		needsAuth:    true,
	}, update)
	return err
}

// GetUserProfilePicture は指定IDのユーザーのプロフィール画像をバイナリで取得する。
// 認証不要（OIDCサービス向けに公開されている）。
func (c *Client) GetUserProfilePicture(ctx context.Context, userID string) ([]byte, error) {
	const op = "GetUserProfilePicture"
	if userID == "" {
		return nil, c.missingParam(op, "user_id")
	}

	return c.do(ctx, requestSpec{
		operation:    op,
		method:       http.MethodGet,
		path:         "/users/" + url.PathEscape(userID) + "/profile-picture",
		expectStatus: http.StatusOK,
	})
}

// decodeUser はUserレコードをデコードする。
func decodeUser(body []byte) (*model.User, error) {
	var user model.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return &user, nil
}

// decodeUserSimpleList はUserSimpleの一覧をデコードする。
// 空の結果は常に空スライスとして返し、nilは返さない。
func decodeUserSimpleList(body []byte) ([]model.UserSimple, error) {
	var users []model.UserSimple
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	if users == nil {
		users = []model.UserSimple{}
	}
	return users, nil
}
