package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/walletlink/internal/daemon"
	"github.com/harun/walletlink/pkg/gateway"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and wallet status",
	Long: `Show whether the walletlink daemon is running and, when its gateway is
enabled, the wallet session it holds.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	pidFile := cfg.PIDFile()
	pid, err := daemon.RunningPID(pidFile)
	if errors.Is(err, daemon.ErrNotRunning) {
		printf(out, "Status: stopped\n")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	printf(out, "Status: running\n")
	printf(out, "PID: %d\n", pid)

	// PID file modification time approximates the start time
	if fileInfo, err := os.Stat(pidFile); err == nil {
		printf(out, "Uptime: %s\n", formatDuration(time.Since(fileInfo.ModTime())))
	}

	if !cfg.Gateway.Enabled {
		return nil
	}

	client, err := newGatewayClient(cfg)
	if err != nil {
		return err
	}
	var view gateway.SessionView
	if err := client.call(cmd.Context(), gateway.MethodSession, nil, &view); err != nil {
		printf(out, "Wallet: unavailable (%v)\n", err)
		return nil
	}
	printSession(out, view)
	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
