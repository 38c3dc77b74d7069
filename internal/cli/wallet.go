package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/harun/walletlink/pkg/gateway"
	"github.com/harun/walletlink/pkg/provider"
)

var tokenImage string

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Ask the wallet to authorise an account",
	Long: `Ask the running daemon to connect the wallet. The wallet shows its
approval prompt; the command returns once it is answered or times out.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return walletCall(cmd, gateway.MethodConnect, nil)
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Forget the current wallet session",
	Long: `Clear the session held by the daemon. The wallet keeps its own
authorisation; reconnecting does not prompt again.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return walletCall(cmd, gateway.MethodDisconnect, nil)
	},
}

var switchChainCmd = &cobra.Command{
	Use:   "switch-chain <chain-id>",
	Short: "Ask the wallet to switch network",
	Long:  `Ask the wallet to switch network. The chain id may be hex (0x89) or decimal (137).`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chainID, err := provider.NormalizeChainID(args[0])
		if err != nil {
			return err
		}
		return walletCall(cmd, gateway.MethodSwitchChain, map[string]interface{}{"chainId": chainID})
	},
}

var addTokenCmd = &cobra.Command{
	Use:   "add-token <address> <symbol> <decimals>",
	Short: "Ask the wallet to track an ERC-20 token",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !common.IsHexAddress(args[0]) {
			return fmt.Errorf("invalid token address: %s", args[0])
		}
		decimals, err := strconv.Atoi(args[2])
		if err != nil || decimals < 0 || decimals > 255 {
			return fmt.Errorf("decimals must be an integer between 0 and 255, got %q", args[2])
		}

		params := map[string]interface{}{
			"address":  args[0],
			"symbol":   args[1],
			"decimals": decimals,
		}
		if tokenImage != "" {
			params["image"] = tokenImage
		}
		return walletCall(cmd, gateway.MethodAddToken, params)
	},
}

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "List known chain names",
	Args:  cobra.NoArgs,
	RunE:  runChains,
}

func init() {
	addTokenCmd.Flags().StringVar(&tokenImage, "image", "", "token image URL")
	rootCmd.AddCommand(connectCmd, disconnectCmd, switchChainCmd, addTokenCmd, chainsCmd)
}

// walletCall runs a session-returning method and prints the session. A
// failure the wallet reported through the session makes the command fail.
func walletCall(cmd *cobra.Command, method string, params map[string]interface{}) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newGatewayClient(cfg)
	if err != nil {
		return err
	}

	var view gateway.SessionView
	if err := client.call(cmd.Context(), method, params, &view); err != nil {
		return err
	}

	printSession(cmd.OutOrStdout(), view)
	if view.Error != "" {
		return fmt.Errorf("wallet: %s", view.Error)
	}
	return nil
}

func runChains(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newGatewayClient(cfg)
	if err != nil {
		return err
	}

	var result struct {
		Chains map[string]string `json:"chains"`
	}
	if err := client.call(cmd.Context(), gateway.MethodChains, nil, &result); err != nil {
		return err
	}

	ids := make([]string, 0, len(result.Chains))
	for id := range result.Chains {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, okA := chainNumber(ids[i])
		b, okB := chainNumber(ids[j])
		if !okA || !okB {
			return ids[i] < ids[j]
		}
		return a < b
	})

	out := cmd.OutOrStdout()
	for _, id := range ids {
		printf(out, "%-10s %s\n", id, result.Chains[id])
	}
	return nil
}

func chainNumber(id string) (uint64, bool) {
	if !strings.HasPrefix(id, "0x") {
		return 0, false
	}
	n, err := strconv.ParseUint(id[2:], 16, 64)
	return n, err == nil
}

func printSession(w io.Writer, view gateway.SessionView) {
	switch {
	case view.IsConnected:
		printf(w, "Wallet: connected %s\n", view.ShortAccount)
		printf(w, "Account: %s\n", view.Account)
	case view.IsConnecting:
		printf(w, "Wallet: connecting\n")
	default:
		printf(w, "Wallet: not connected\n")
	}
	if view.ChainID != "" {
		printf(w, "Network: %s (%s)\n", view.ChainName, view.ChainID)
	}
	if view.Error != "" {
		printf(w, "Error: %s\n", view.Error)
	}
}
