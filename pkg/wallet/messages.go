package wallet

import "fmt"

// Messages holds the user-facing error strings written to Session.Error.
type Messages struct {
	NotInstalled      string
	SwitchUnavailable string
	TokenUnavailable  string
	UserRejected      string
	RequestPending    string
	NoAccounts        string
	ConnectTimeout    string
	ConnectFailed     string
	ChainNotAdded     string
	SwitchFailed      string
	InvalidChainID    string
	AddTokenFailed    string
	InvalidToken      string
	InvalidTokenField string
}

// DefaultMessages returns the messages for the named wallet brand.
func DefaultMessages(walletName string) Messages {
	if walletName == "" {
		walletName = "MetaMask"
	}
	return Messages{
		NotInstalled: fmt.Sprintf("%s is not installed or not detected. Please disable other wallet extensions or use %s directly.",
			walletName, walletName),
		SwitchUnavailable: fmt.Sprintf("%s is not installed or not detected", walletName),
		TokenUnavailable:  fmt.Sprintf("%s is not installed", walletName),
		UserRejected:      "User rejected the connection",
		RequestPending:    "Connection request already pending",
		NoAccounts:        "No accounts returned",
		ConnectTimeout:    "Connection request timed out",
		ConnectFailed:     fmt.Sprintf("Failed to connect to %s", walletName),
		ChainNotAdded:     fmt.Sprintf("Chain not added to %s", walletName),
		SwitchFailed:      "Failed to switch chain: %s",
		InvalidChainID:    "Invalid chain id: %s",
		AddTokenFailed:    "Failed to add token: %s",
		InvalidToken:      "Invalid token address: %s",
		InvalidTokenField: "Invalid token: %s",
	}
}
