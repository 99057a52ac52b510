package security

import (
	"testing"
	"time"
)

// TestValidateAvatarURL_Allowed は安全なhttps URLが通過することを検証する。
func TestValidateAvatarURL_Allowed(t *testing.T) {
	guard := NewAvatarGuard()

	urls := []string{
		"https://placehold.co/100x100.png?text=JD",
		"https://cdn.example.edu/avatars/jane.png",
		"https://93.184.216.34/avatar.png",
	}
	for _, u := range urls {
		if err := guard.ValidateAvatarURL(u); err != nil {
			t.Errorf("ValidateAvatarURL(%q) = %v, want nil", u, err)
		}
	}
}

// TestValidateAvatarURL_Blocked は危険なURLが拒否されることを検証する。
func TestValidateAvatarURL_Blocked(t *testing.T) {
	guard := NewAvatarGuard()

	tests := []struct {
		name string
		url  string
	}{
		{"空のURL", ""},
		{"httpスキーム", "http://example.com/avatar.png"},
		{"javascriptスキーム", "javascript:alert(1)"},
		{"dataスキーム", "data:image/png;base64,AAAA"},
		{"localhost", "https://localhost/avatar.png"},
		{"ループバックIP", "https://127.0.0.1/avatar.png"},
		{"プライベートIP 10系", "https://10.0.0.5/avatar.png"},
		{"プライベートIP 192.168系", "https://192.168.1.1/avatar.png"},
		{"プライベートIP 172.16系", "https://172.16.0.1/avatar.png"},
		{"クラウドメタデータIP", "https://169.254.169.254/latest/meta-data/"},
		{"IPv6ループバック", "https://[::1]/avatar.png"},
		{"ホストなし", "https:///avatar.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := guard.ValidateAvatarURL(tt.url); err == nil {
				t.Errorf("ValidateAvatarURL(%q) = nil, want error", tt.url)
			}
		})
	}
}

// TestNewSafeClient はクライアント生成とタイムアウト設定を検証する。
func TestNewSafeClient(t *testing.T) {
	guard := NewAvatarGuard()

	client := guard.NewSafeClient(5 * time.Second)
	if client == nil {
		t.Fatal("NewSafeClient returned nil")
	}
	if client.Timeout != 5*time.Second {
		t.Errorf("client.Timeout = %v, want 5s", client.Timeout)
	}
}
