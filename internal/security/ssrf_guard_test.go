package security

import (
	"strings"
	"testing"
	"time"
)

func TestValidateBaseURL_AllowsPublicHTTPS(t *testing.T) {
	if err := ValidateBaseURL("https://api.example.com"); err != nil {
		t.Errorf("公開HTTPSのベースURLは許可されるべき: %v", err)
	}
}

func TestValidateBaseURL_AllowsPublicHTTP(t *testing.T) {
	if err := ValidateBaseURL("http://api.example.com"); err != nil {
		t.Errorf("公開HTTPのベースURLは許可されるべき: %v", err)
	}
}

func TestValidateBaseURL_RejectsEmptyURL(t *testing.T) {
	if err := ValidateBaseURL(""); err == nil {
		t.Error("空URLは拒否されるべき")
	}
}

func TestValidateBaseURL_RejectsDisallowedScheme(t *testing.T) {
	cases := []string{
		"ftp://example.com",
		"file:///etc/passwd",
		"gopher://example.com",
	}
	for _, rawURL := range cases {
		err := ValidateBaseURL(rawURL)
		if err == nil {
			t.Errorf("%s は拒否されるべき", rawURL)
			continue
		}
		if !strings.Contains(err.Error(), "scheme") {
			t.Errorf("スキームエラーであるべき: %v", err)
		}
	}
}

func TestValidateBaseURL_RejectsPrivateIPs(t *testing.T) {
	cases := []string{
		"http://10.0.0.1",
		"http://172.16.0.1",
		"http://192.168.1.1",
		"http://127.0.0.1",
		"http://169.254.169.254", // クラウドメタデータIP
		"http://0.0.0.0",
	}
	for _, rawURL := range cases {
		if err := ValidateBaseURL(rawURL); err == nil {
			t.Errorf("%s は拒否されるべき", rawURL)
		}
	}
}

func TestValidateBaseURL_RejectsIPv6Loopback(t *testing.T) {
	if err := ValidateBaseURL("http://[::1]"); err == nil {
		t.Error("IPv6ループバックは拒否されるべき")
	}
}

func TestValidateBaseURL_RejectsLocalhost(t *testing.T) {
	if err := ValidateBaseURL("http://localhost"); err == nil {
		t.Error("localhost は拒否されるべき")
	}
	if err := ValidateBaseURL("http://LOCALHOST"); err == nil {
		t.Error("大文字の LOCALHOST も拒否されるべき")
	}
}

func TestValidateBaseURL_RejectsEmptyHost(t *testing.T) {
	if err := ValidateBaseURL("http://"); err == nil {
		t.Error("空ホストは拒否されるべき")
	}
}

func TestValidateBaseURL_AllowsPublicIP(t *testing.T) {
	if err := ValidateBaseURL("http://93.184.216.34"); err != nil {
		t.Errorf("公開IPアドレスは許可されるべき: %v", err)
	}
}

func TestNewSafeClient_ReturnsNonNil(t *testing.T) {
	client := NewSafeClient(10 * time.Second)
	if client == nil {
		t.Fatal("NewSafeClient は nil を返してはならない")
	}
	if client.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", client.Timeout)
	}
}
