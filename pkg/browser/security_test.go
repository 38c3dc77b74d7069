package browser

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name   string
		config SecurityConfig
		url    string
		code   string // empty when the URL is accepted
	}{
		{"https dapp", SecurityConfig{}, "https://app.uniswap.org/#/swap", ""},
		{"about blank", SecurityConfig{}, "about:blank", ""},
		{"javascript scheme", SecurityConfig{}, "javascript:alert(1)", ErrCodeSecurity},
		{"unparseable", SecurityConfig{}, "://invalid", ErrCodeValidation},
		{"file blocked", SecurityConfig{}, "file:///etc/passwd", ErrCodeSecurity},
		{"file allowed", SecurityConfig{AllowFileUrls: true}, "file:///tmp/dapp.html", ""},
		{"localhost blocked", SecurityConfig{}, "http://localhost:8080", ErrCodeSecurity},
		{"ipv6 loopback blocked", SecurityConfig{}, "http://[::1]:3000", ErrCodeSecurity},
		{"localhost allowed", SecurityConfig{AllowLocalhostUrls: true}, "http://127.0.0.1:5173", ""},
		{"allow list hit", SecurityConfig{AllowedDomains: []string{"example.com"}}, "https://example.com/page", ""},
		{"allow list is case insensitive", SecurityConfig{AllowedDomains: []string{"Example.com"}}, "https://EXAMPLE.com", ""},
		{"allow list miss", SecurityConfig{AllowedDomains: []string{"example.com"}}, "https://other.com/page", ErrCodeSecurity},
		{"wildcard allow", SecurityConfig{AllowedDomains: []string{"*.example.com"}}, "https://sub.example.com:8443", ""},
		{"block list", SecurityConfig{BlockedDomains: []string{".phish.io"}}, "https://wallet.phish.io", ErrCodeSecurity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewSecurityValidator(tt.config, zerolog.Nop()).ValidateURL(tt.url)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			browserErr, ok := err.(*BrowserError)
			require.True(t, ok)
			assert.Equal(t, tt.code, browserErr.Code)
		})
	}
}

func TestValidateURLDetails(t *testing.T) {
	sv := NewSecurityValidator(SecurityConfig{BlockedDomains: []string{"bad.com"}}, zerolog.Nop())

	err := sv.ValidateURL("https://bad.com/drain")
	require.Error(t, err)
	details := err.(*BrowserError).Details.(map[string]interface{})
	assert.Equal(t, "https://bad.com/drain", details["url"])
	assert.Equal(t, "bad.com", details["domain"])
}

func TestIsLoopbackHost(t *testing.T) {
	for host, want := range map[string]bool{
		"localhost":     true,
		"app.localhost": true,
		"127.0.0.1":     true,
		"127.1.2.3":     true,
		"0.0.0.0":       true,
		"::1":           true,
		"::ffff:7f00:1": true,
		"example.com":   false,
		"192.168.1.1":   false,
		"localhostx.io": false,
	} {
		assert.Equal(t, want, isLoopbackHost(host), host)
	}
}

func TestMatchDomain(t *testing.T) {
	tests := []struct {
		host    string
		pattern string
		want    bool
	}{
		{"example.com", "example.com", true},
		{"sub.example.com", "*.example.com", true},
		{"example.com", "*.example.com", true},
		{"sub.example.com", ".example.com", true},
		{"example.com", ".example.com", true},
		{"badexample.com", "*.example.com", false},
		{"sub.example.com", "example.com", false},
		{"other.com", "", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, matchDomain(tt.host, tt.pattern), "%s vs %s", tt.host, tt.pattern)
	}
}

func TestValidateProfile(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		wantErr bool
	}{
		{"valid profile", Profile{Name: "dapp", CDPPort: 9222}, false},
		{"missing name", Profile{CDPPort: 9222}, true},
		{"invalid port", Profile{Name: "dapp", CDPPort: 100}, true},
		{"attach without endpoint", Profile{Name: "dapp", AttachOnly: true}, true},
		{"attach by url", Profile{Name: "dapp", AttachOnly: true, CDPUrl: "ws://localhost:9222"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProfile(&tt.profile)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
