package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harun/walletlink/internal/config"
	"github.com/harun/walletlink/internal/daemon"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the walletlink daemon",
	Long: `Start the walletlink daemon in the foreground.
The daemon binds the wallet provider, restores an already authorised session
and serves the gateway until it receives SIGINT or SIGTERM.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Check if daemon is already running
	if pid, err := daemon.RunningPID(cfg.PIDFile()); err == nil {
		return fmt.Errorf("daemon is already running (pid %d)", pid)
	}

	if errs := config.NewValidator().ValidateConfig(cfg); len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	d, err := daemon.New(cfg, configPath(), log)
	if err != nil {
		return err
	}
	if err := d.Start(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printf(out, "walletlink daemon started (pid %d)\n", os.Getpid())
	if gw := d.GetGatewayServer(); gw != nil {
		printf(out, "Gateway: %s\n", gw.Addr())
	}

	d.Wait()
	return nil
}
