package wallet

import (
	"strings"

	"github.com/harun/walletlink/pkg/provider"
)

var defaultChainNames = map[string]string{
	"0x1":     "Ethereum Mainnet",
	"0x5":     "Goerli Testnet",
	"0x89":    "Polygon Mainnet",
	"0x13881": "Polygon Mumbai",
	"0xa4b1":  "Arbitrum One",
	"0xa":     "Optimism",
}

// ChainNames maps 0x-hex chain ids to display names.
type ChainNames map[string]string

// DefaultChainNames returns the built-in names merged with extra. Keys in
// extra may be hex or decimal; invalid keys are skipped.
func DefaultChainNames(extra map[string]string) ChainNames {
	names := make(ChainNames, len(defaultChainNames)+len(extra))
	for id, name := range defaultChainNames {
		names[id] = name
	}
	for id, name := range extra {
		normalized, err := provider.NormalizeChainID(id)
		if err != nil || strings.TrimSpace(name) == "" {
			continue
		}
		names[normalized] = name
	}
	return names
}

// Name returns the display name for chainID, or "Chain ID: <id>".
func (c ChainNames) Name(chainID string) string {
	if normalized, err := provider.NormalizeChainID(chainID); err == nil {
		if name, ok := c[normalized]; ok {
			return name
		}
	}
	return "Chain ID: " + chainID
}

// ShortAddress renders 0x1234...abcd. Short inputs are returned unchanged.
func ShortAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
