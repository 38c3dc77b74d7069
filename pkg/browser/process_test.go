package browser

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProcessManagerStartsStopped(t *testing.T) {
	pm := NewProcessManager(&ResolvedProfile{Profile: Profile{Name: "dapp", CDPPort: 9222}})

	assert.False(t, pm.IsRunning())
	pm.Kill()
	assert.False(t, pm.IsRunning())

	err := pm.CheckHealth(context.Background())
	require.Error(t, err)
	assert.Equal(t, ErrCodeBrowserCrash, err.(*BrowserError).Code)
}

func TestLauncherForBuildsFlags(t *testing.T) {
	profile := &ResolvedProfile{
		Profile: Profile{
			Name:       "dapp",
			CDPPort:    9333,
			Headless:   true,
			NoSandbox:  true,
			Extensions: []string{"/ext/metamask", "/ext/rabby"},
			Args:       []string{"--lang=en-US", "--mute-audio"},
		},
		UserDataDir: "/data/profiles/dapp",
	}

	l := launcherFor(profile, "/usr/bin/chromium")

	assert.Equal(t, "/ext/metamask,/ext/rabby", l.Get(flags.Flag("load-extension")))
	assert.Equal(t, "new", l.Get(flags.Headless))
	assert.Equal(t, "9333", l.Get(flags.RemoteDebuggingPort))
	assert.Equal(t, "/data/profiles/dapp", l.Get(flags.UserDataDir))
	assert.Equal(t, "en-US", l.Get(flags.Flag("lang")))
	assert.True(t, l.Has(flags.Flag("mute-audio")))
	assert.True(t, l.Has(flags.NoSandbox))
}

func TestResolveProfile(t *testing.T) {
	baseDir := "/tmp/browser"

	tests := []struct {
		name        string
		userDataDir string
		expected    string
	}{
		{"relative path", "profiles/test", filepath.Join(baseDir, "profiles/test")},
		{"absolute path", "/absolute/path", "/absolute/path"},
		{"empty path", "", filepath.Join(baseDir, "profiles", "test")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := ResolveProfile(&Profile{Name: "test", CDPPort: 9222, UserDataDir: tt.userDataDir}, baseDir)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, resolved.UserDataDir)
			assert.Equal(t, 9222, resolved.CDPPort)
			assert.Empty(t, resolved.CDPUrl)
		})
	}
}

func TestResolveProfileDefaults(t *testing.T) {
	profile := &Profile{
		Name:       "dapp",
		AttachOnly: true,
		Extensions: []string{"ext/metamask", "/opt/ext/other"},
	}

	resolved, err := ResolveProfile(profile, "/data")
	require.NoError(t, err)

	assert.Equal(t, DefaultCDPPort, resolved.CDPPort)
	assert.Equal(t, "ws://localhost:9222", resolved.CDPUrl)
	assert.Equal(t, []string{"/data/ext/metamask", "/opt/ext/other"}, resolved.Extensions)
	assert.Equal(t, "ext/metamask", profile.Extensions[0])
}

func TestValidateCDPPort(t *testing.T) {
	for port, wantErr := range map[int]bool{9222: false, 50000: false, 1023: true, 65536: true, -1: true} {
		err := ValidateCDPPort(port)
		if wantErr {
			assert.Error(t, err, port)
		} else {
			assert.NoError(t, err, port)
		}
	}
}

func TestCDPAddress(t *testing.T) {
	tests := []struct {
		cdpURL  string
		want    string
		wantErr bool
	}{
		{"ws://localhost:9222", "localhost:9222", false},
		{"ws://127.0.0.1:9333/devtools/browser/abc", "127.0.0.1:9333", false},
		{"http://[::1]:9222", "[::1]:9222", false},
		{"ftp://localhost:9222", "", true},
		{"ws://localhost", "", true},
	}

	for _, tt := range tests {
		addr, err := cdpAddress(tt.cdpURL)
		if tt.wantErr {
			assert.Error(t, err, tt.cdpURL)
			continue
		}
		require.NoError(t, err, tt.cdpURL)
		assert.Equal(t, tt.want, addr)
	}
}

func TestWaitForCDPHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := waitForCDP(ctx, "ws://127.0.0.1:1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitForCDPReturnsOnceListening(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	assert.NoError(t, waitForCDP(context.Background(), "ws://"+ln.Addr().String()))
}
