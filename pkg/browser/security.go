package browser

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// SecurityValidator decides whether a dapp page may be opened. Wallet
// providers are origin scoped, so the page URL decides which site the
// wallet is asked to trust.
type SecurityValidator struct {
	config SecurityConfig
	logger zerolog.Logger
}

// NewSecurityValidator creates a validator for config.
func NewSecurityValidator(config SecurityConfig, logger zerolog.Logger) *SecurityValidator {
	return &SecurityValidator{
		config: config,
		logger: logger.With().Str("component", "browser-security").Logger(),
	}
}

// ValidateURL parses raw and checks it against the policy. Only http, https,
// file and about pages are accepted.
func (sv *SecurityValidator) ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return &BrowserError{Code: ErrCodeValidation, Message: fmt.Sprintf("Invalid URL format: %s", raw)}
	}

	host := strings.ToLower(u.Hostname())
	switch {
	case u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "file" && u.Scheme != "about":
		return sv.reject("scheme_blocked", raw, "", fmt.Sprintf("URL scheme is not allowed: %s", u.Scheme))
	case u.Scheme == "file" && !sv.config.AllowFileUrls:
		return sv.reject("file_url_blocked", raw, "", "file:// URLs are not allowed")
	case isLoopbackHost(host) && !sv.config.AllowLocalhostUrls:
		return sv.reject("localhost_url_blocked", raw, "", "localhost URLs are not allowed")
	case len(sv.config.AllowedDomains) > 0 && !matchesAny(host, sv.config.AllowedDomains):
		return sv.reject("domain_not_allowed", raw, u.Host, fmt.Sprintf("Domain not in allowed list: %s", u.Host))
	case matchesAny(host, sv.config.BlockedDomains):
		return sv.reject("domain_blocked", raw, u.Host, fmt.Sprintf("Domain is blocked: %s", u.Host))
	}
	return nil
}

func (sv *SecurityValidator) reject(violation, raw, domain, message string) error {
	sv.logger.Warn().Str("violation", violation).Str("url", raw).Msg("Dapp URL rejected")
	details := map[string]interface{}{"url": raw}
	if domain != "" {
		details["domain"] = domain
	}
	return &BrowserError{Code: ErrCodeSecurity, Message: message, Details: details}
}

// isLoopbackHost reports whether host names this machine: localhost and its
// subdomains, any loopback address or the unspecified address.
func isLoopbackHost(host string) bool {
	host = strings.TrimSuffix(host, ".")
	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasPrefix(host, "localhost.") {
		return true
	}
	addr, err := netip.ParseAddr(strings.Trim(host, "[]"))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsLoopback() || addr.IsUnspecified()
}

func matchesAny(host string, patterns []string) bool {
	for _, p := range patterns {
		if matchDomain(host, strings.ToLower(strings.TrimSpace(p))) {
			return true
		}
	}
	return false
}

// matchDomain matches host against an exact name, "*.example.com" or
// ".example.com". The two suffix forms also match the bare domain.
func matchDomain(host, pattern string) bool {
	if pattern == "" {
		return false
	}
	if host == pattern {
		return true
	}
	suffix := strings.TrimPrefix(strings.TrimPrefix(pattern, "*"), ".")
	if suffix == pattern {
		return false
	}
	return host == suffix || strings.HasSuffix(host, "."+suffix)
}

// ValidateProfile checks the launch settings of a profile.
func ValidateProfile(profile *Profile) error {
	switch {
	case profile.Name == "":
		return &BrowserError{Code: ErrCodeConfiguration, Message: "Profile name is required"}
	case profile.AttachOnly && profile.CDPUrl == "" && profile.CDPPort == 0:
		return &BrowserError{Code: ErrCodeConfiguration, Message: "attach_only requires cdp_url or cdp_port"}
	case profile.CDPPort != 0:
		return ValidateCDPPort(profile.CDPPort)
	}
	return nil
}
