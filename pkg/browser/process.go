package browser

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
)

// DefaultCDPPort is used when a profile leaves cdp_port unset.
const DefaultCDPPort = 9222

// cdpWait bounds how long a DevTools endpoint may take to accept connections.
const cdpWait = 10 * time.Second

// ProcessManager owns the Chrome instance behind a profile: one it launched,
// or one it attached to and must leave running.
type ProcessManager struct {
	mu       sync.RWMutex
	profile  *ResolvedProfile
	launcher *launcher.Launcher
	running  bool
}

// NewProcessManager creates a process manager for profile.
func NewProcessManager(profile *ResolvedProfile) *ProcessManager {
	return &ProcessManager{profile: profile}
}

// launcherFor builds the launch flags for p. Extensions force the new
// headless mode since the old one cannot load them.
func launcherFor(p *ResolvedProfile, bin string) *launcher.Launcher {
	l := launcher.New().
		Bin(bin).
		Headless(p.Headless).
		UserDataDir(p.UserDataDir).
		RemoteDebuggingPort(p.CDPPort)
	if p.NoSandbox {
		l = l.NoSandbox(true)
	}
	if len(p.Extensions) > 0 {
		l = l.Set(flags.Flag("load-extension"), strings.Join(p.Extensions, ","))
		if p.Headless {
			l = l.Set(flags.Headless, "new")
		}
	}
	for _, arg := range p.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if hasValue {
			l = l.Set(flags.Flag(name), value)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	return l
}

// Launch starts a local Chrome for the profile and connects to it.
func (pm *ProcessManager) Launch(ctx context.Context) (*rod.Browser, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.profile.UserDataDir == "" {
		pm.profile.UserDataDir = filepath.Join(os.TempDir(), "walletlink-profiles", pm.profile.Name)
	}
	if err := os.MkdirAll(pm.profile.UserDataDir, 0o755); err != nil {
		return nil, &BrowserError{Code: ErrCodeConfiguration, Message: fmt.Sprintf("Failed to create user data directory: %v", err)}
	}

	bin := pm.profile.ChromePath
	if bin == "" {
		found, ok := launcher.LookPath()
		if !ok {
			return nil, &BrowserError{Code: ErrCodeNotFound, Message: "Chrome executable not found"}
		}
		bin = found
	}

	l := launcherFor(pm.profile, bin)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, &BrowserError{Code: ErrCodeBrowserCrash, Message: fmt.Sprintf("Failed to launch Chrome: %v", err)}
	}
	pm.launcher = l
	pm.profile.CDPUrl = controlURL
	pm.running = true

	return pm.connect(ctx, controlURL)
}

// Attach connects to a Chrome started elsewhere through its CDP URL.
func (pm *ProcessManager) Attach(ctx context.Context) (*rod.Browser, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.profile.CDPUrl == "" {
		pm.profile.CDPUrl = fmt.Sprintf("ws://localhost:%d", pm.profile.CDPPort)
	}
	if err := waitForCDP(ctx, pm.profile.CDPUrl); err != nil {
		return nil, err
	}
	controlURL, err := launcher.ResolveURL(pm.profile.CDPUrl)
	if err != nil {
		return nil, &BrowserError{Code: ErrCodeBrowserCrash, Message: fmt.Sprintf("Failed to resolve CDP endpoint: %v", err)}
	}

	browser, err := pm.connect(ctx, controlURL)
	if err != nil {
		return nil, err
	}
	pm.running = true
	return browser, nil
}

func (pm *ProcessManager) connect(ctx context.Context, controlURL string) (*rod.Browser, error) {
	if err := waitForCDP(ctx, controlURL); err != nil {
		return nil, err
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, &BrowserError{Code: ErrCodeBrowserCrash, Message: fmt.Sprintf("Failed to connect to CDP: %v", err)}
	}
	return browser, nil
}

// Kill terminates a Chrome started by Launch. An attached browser is only
// forgotten.
func (pm *ProcessManager) Kill() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.launcher != nil {
		pm.launcher.Kill()
		pm.launcher = nil
	}
	pm.running = false
}

// IsRunning reports whether a browser is launched or attached.
func (pm *ProcessManager) IsRunning() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.running
}

// CheckHealth dials the CDP endpoint. A dead endpoint marks the process
// stopped.
func (pm *ProcessManager) CheckHealth(ctx context.Context) error {
	pm.mu.RLock()
	running, cdpURL := pm.running, pm.profile.CDPUrl
	pm.mu.RUnlock()
	if !running {
		return &BrowserError{Code: ErrCodeBrowserCrash, Message: "Chrome process not running"}
	}

	addr, err := cdpAddress(cdpURL)
	if err != nil {
		return &BrowserError{Code: ErrCodeConfiguration, Message: err.Error()}
	}
	dialer := net.Dialer{Timeout: 2 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		pm.mu.Lock()
		pm.running = false
		pm.mu.Unlock()
		return &BrowserError{Code: ErrCodeBrowserCrash, Message: "CDP endpoint not responding"}
	}
	return conn.Close()
}

// waitForCDP polls until the endpoint accepts TCP connections.
func waitForCDP(ctx context.Context, cdpURL string) error {
	addr, err := cdpAddress(cdpURL)
	if err != nil {
		return &BrowserError{Code: ErrCodeConfiguration, Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, cdpWait)
	defer cancel()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var dialer net.Dialer
	for {
		if conn, err := dialer.DialContext(ctx, "tcp", addr); err == nil {
			return conn.Close()
		}
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return &BrowserError{Code: ErrCodeTimeout, Message: fmt.Sprintf("CDP endpoint %s not available after %v", addr, cdpWait)}
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ResolveProfile fills defaults and anchors relative paths at baseDir.
func ResolveProfile(profile *Profile, baseDir string) (*ResolvedProfile, error) {
	resolved := &ResolvedProfile{Profile: *profile}
	resolved.Extensions = make([]string, len(profile.Extensions))

	anchor := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}

	resolved.UserDataDir = filepath.Join(baseDir, "profiles", profile.Name)
	if profile.UserDataDir != "" {
		resolved.UserDataDir = anchor(profile.UserDataDir)
	}
	for i, dir := range profile.Extensions {
		resolved.Extensions[i] = anchor(dir)
	}
	if resolved.CDPPort == 0 {
		resolved.CDPPort = DefaultCDPPort
	}
	if resolved.CDPUrl == "" && resolved.AttachOnly {
		resolved.CDPUrl = fmt.Sprintf("ws://localhost:%d", resolved.CDPPort)
	}
	return resolved, nil
}

// cdpAddress returns host:port of a ws, wss or http DevTools URL.
func cdpAddress(cdpURL string) (string, error) {
	u, err := url.Parse(cdpURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss" && u.Scheme != "http") || u.Port() == "" {
		return "", fmt.Errorf("invalid CDP URL format: %s", cdpURL)
	}
	return net.JoinHostPort(u.Hostname(), u.Port()), nil
}

// ValidateCDPPort rejects privileged and out of range ports.
func ValidateCDPPort(port int) error {
	if port < 1024 || port > 65535 {
		return fmt.Errorf("CDP port must be between 1024 and 65535, got %d", port)
	}
	return nil
}
