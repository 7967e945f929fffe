package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hitoshi/rttrail-go/internal/model"
)

// GetInformation はサービスの稼働状態とバージョン情報を取得する。
// 認証不要。APIの死活確認に使用できる。
func (c *Client) GetInformation(ctx context.Context) (*model.CoreInformation, error) {
	body, err := c.do(ctx, requestSpec{
		operation:    "GetInformation",
		method:       http.MethodGet,
		path:         "/information",
		expectStatus: http.StatusOK,
	})
	if err != nil {
		return nil, err
	}

	var info model.CoreInformation
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return &info, nil
}
