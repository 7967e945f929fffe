package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/hitoshi/rttrail-go/internal/model"
)

// GetMe は現在のユーザーの完全な表現を取得する。認証必須。
func (c *Client) GetMe(ctx context.Context) (*model.User, error) {
	body, err := c.do(ctx, requestSpec{
		operation:    "GetMe",
		method:       http.MethodGet,
		path:         "/users/me",
		expectStatus: http.StatusOK,
		needsAuth:    true,
	})
	if err != nil {
		return nil, err
	}
	return decodeUser(body)
}

// UpdateMe は現在のユーザーを部分更新する。認証必須。
// updateのnilフィールドは送信されず「変更なし」として扱われる。
func (c *Client) UpdateMe(ctx context.Context, update model.UserUpdate) error {
	_, err := c.doJSON(ctx, requestSpec{
		operation:    "UpdateMe",
		method:       http.MethodPatch,
		path:         "/users/me",
		expectStatus: http.StatusNoContent,
		needsAuth:    true,
	}, update)
	return err
}

// GetMyProfilePicture は現在のユーザーのプロフィール画像をバイナリで取得する。認証必須。
func (c *Client) GetMyProfilePicture(ctx context.Context) ([]byte, error) {
	return c.do(ctx, requestSpec{
		operation:    "GetMyProfilePicture",
		method:       http.MethodGet,
		path:         "/users/me/profile-picture",
		expectStatus: http.StatusOK,
		needsAuth:    true,
	})
}

// UploadProfilePicture は現在のユーザーのプロフィール画像をアップロードする。認証必須。
// 画像はマルチパートボディのimageフィールドとして送信され、レスポンスは
// 画像そのものではなくResultレコード。
// 認証情報がない場合、ボディを組み立てる前（1バイトも送信される前）に失敗する。
func (c *Client) UploadProfilePicture(ctx context.Context, filename string, image io.Reader) (*model.Result, error) {
	const op = "UploadProfilePicture"
	if apiErr := c.checkAuth(op); apiErr != nil {
		return nil, apiErr
	}
	if image == nil {
		return nil, c.missingParam(op, "image")
	}
	if filename == "" {
		return nil, c.missingParam(op, "filename")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("マルチパートボディの組み立てに失敗しました: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("画像データの読み取りに失敗しました: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("マルチパートボディの組み立てに失敗しました: %w", err)
	}

	body, err := c.do(ctx, requestSpec{
		operation:    op,
		method:       http.MethodPost,
		path:         "/users/me/profile-picture",
		body:         &buf,
		contentType:  writer.FormDataContentType(),
		expectStatus: http.StatusCreated,
		needsAuth:    true,
	})
	if err != nil {
		return nil, err
	}
	return decodeResult(body)
}

// AskDeletion はアカウント削除を管理者に申請する。認証必須。
// 削除そのものは管理者の手動確認を経て行われる。
func (c *Client) AskDeletion(ctx context.Context) error {
	_, err := c.do(ctx, requestSpec{
		operation:    "AskDeletion",
		method:       http.MethodPost,
		path:         "/users/me/ask-deletion",
		expectStatus: http.StatusNoContent,
		needsAuth:    true,
	})
	return err
}
