package browser

// Profile configures the Chrome instance that hosts the dapp page.
type Profile struct {
	Name        string `json:"name" mapstructure:"name"`
	CDPPort     int    `json:"cdp_port" mapstructure:"cdp_port"`
	CDPUrl      string `json:"cdp_url,omitempty" mapstructure:"cdp_url"`
	Headless    bool   `json:"headless" mapstructure:"headless"`
	NoSandbox   bool   `json:"no_sandbox" mapstructure:"no_sandbox"`
	AttachOnly  bool   `json:"attach_only" mapstructure:"attach_only"`
	UserDataDir string `json:"user_data_dir,omitempty" mapstructure:"user_data_dir"`
	ChromePath  string `json:"chrome_path,omitempty" mapstructure:"chrome_path"`
	// Extensions are unpacked extension directories loaded at launch.
	Extensions []string `json:"extensions,omitempty" mapstructure:"extensions"`
	Args       []string `json:"args,omitempty" mapstructure:"args"`
	// DappURL is the page whose injected providers are used.
	DappURL string `json:"dapp_url" mapstructure:"dapp_url"`
}

// ResolvedProfile is a profile with computed paths.
type ResolvedProfile struct {
	Profile
	UserDataDir string `json:"user_data_dir"` // Computed absolute path
}

// SecurityConfig restricts which dapp URLs may be opened.
type SecurityConfig struct {
	AllowFileUrls      bool     `json:"allow_file_urls" mapstructure:"allow_file_urls"`
	AllowLocalhostUrls bool     `json:"allow_localhost_urls" mapstructure:"allow_localhost_urls"`
	AllowedDomains     []string `json:"allowed_domains,omitempty" mapstructure:"allowed_domains"`
	BlockedDomains     []string `json:"blocked_domains,omitempty" mapstructure:"blocked_domains"`
}

// Error types
type BrowserError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *BrowserError) Error() string {
	return e.Message
}

// Error codes
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeNavigation      = "NAVIGATION_ERROR"
	ErrCodeTimeout         = "TIMEOUT_ERROR"
	ErrCodeScriptExecution = "SCRIPT_EXECUTION_ERROR"
	ErrCodeSecurity        = "SECURITY_ERROR"
	ErrCodeBrowserCrash    = "BROWSER_CRASH"
	ErrCodeConfiguration   = "CONFIGURATION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
)
