package app

import (
	"bytes"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/rttrail-go/internal/model"
	"github.com/hitoshi/rttrail-go/internal/stubserver"
)

// newStubURL はスタブサーバーを起動してベースURLを返す。
func newStubURL(t *testing.T) (*stubserver.Store, string) {
	t.Helper()

	store := stubserver.NewStore()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	srv := httptest.NewServer(stubserver.NewServer(store, logger).Router())
	t.Cleanup(srv.Close)
	return store, srv.URL
}

func TestRun_InfoCommand_PrintsVersion(t *testing.T) {
	_, url := newStubURL(t)
	t.Setenv("RTTRAIL_BASE_URL", url)

	var buf bytes.Buffer
	if err := Run(&buf, []string{"info"}); err != nil {
		t.Fatalf("Run(info)に失敗: %v", err)
	}

	if !strings.Contains(buf.String(), stubserver.Version) {
		t.Errorf("output should contain version %q, got: %s", stubserver.Version, buf.String())
	}
}

func TestRun_LoginCommand_PrintsAccessToken(t *testing.T) {
	store, url := newStubURL(t)
	store.SeedUser("alice", "alice@example.com", "password1", model.AccountTypeUser)

	t.Setenv("RTTRAIL_BASE_URL", url)
	t.Setenv("RTTRAIL_EMAIL", "alice@example.com")
	t.Setenv("RTTRAIL_PASSWORD", "password1")

	var buf bytes.Buffer
	if err := Run(&buf, []string{"login"}); err != nil {
		t.Fatalf("Run(login)に失敗: %v", err)
	}

	if !strings.Contains(buf.String(), "access_token") {
		t.Errorf("output should contain an access token, got: %s", buf.String())
	}
}

func TestRun_LoginCommand_WithoutCredentials_ReturnsError(t *testing.T) {
	_, url := newStubURL(t)
	t.Setenv("RTTRAIL_BASE_URL", url)
	t.Setenv("RTTRAIL_EMAIL", "")
	t.Setenv("RTTRAIL_PASSWORD", "")

	var buf bytes.Buffer
	if err := Run(&buf, []string{"login"}); err == nil {
		t.Fatal("expected error for missing credentials, got nil")
	}
}

func TestRun_MeCommand_WithoutToken_ReturnsError(t *testing.T) {
	_, url := newStubURL(t)
	t.Setenv("RTTRAIL_BASE_URL", url)
	t.Setenv("RTTRAIL_TOKEN", "")

	var buf bytes.Buffer
	if err := Run(&buf, []string{"me"}); err == nil {
		t.Fatal("expected error without a token, got nil")
	}
}

func TestRun_SearchCommand_WithoutQuery_ReturnsError(t *testing.T) {
	_, url := newStubURL(t)
	t.Setenv("RTTRAIL_BASE_URL", url)

	var buf bytes.Buffer
	if err := Run(&buf, []string{"search"}); err == nil {
		t.Fatal("expected error without a query, got nil")
	}
}

func TestRun_HealthcheckCommand_NoServer_ReturnsError(t *testing.T) {
	// 未使用ポートを指すヘルスチェックは失敗する
	t.Setenv("RTTRAIL_STUB_PORT", "1")

	var buf bytes.Buffer
	if err := Run(&buf, []string{"healthcheck"}); err == nil {
		t.Fatal("expected error when no server is listening, got nil")
	}
}
