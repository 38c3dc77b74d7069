package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/harun/walletlink/internal/config"
	"github.com/harun/walletlink/internal/logger"
	"github.com/harun/walletlink/internal/observability"
	"github.com/harun/walletlink/internal/tracing"
	"github.com/harun/walletlink/pkg/gateway"
	"github.com/harun/walletlink/pkg/hooks"
	"github.com/harun/walletlink/pkg/wallet"
)

// Daemon represents the walletlink daemon service
type Daemon struct {
	config     *config.Config
	configPath string
	logger     *logger.Logger

	// Core modules
	source      walletSource
	manager     *wallet.Manager
	hookManager *hooks.Manager

	// Services
	gatewayServer *gateway.Server

	// Internal
	eventLoop *EventLoop
	watcher   *ConfigWatcher
	lifecycle *LifecycleManager

	ctx    context.Context
	cancel context.CancelFunc

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	shutdownTracing tracing.ShutdownFunc
	audit           *observability.AuditLogger
}

// New creates a new daemon instance. configPath enables hot reload of the
// file it names; it may be empty.
func New(cfg *config.Config, configPath string, log *logger.Logger) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	observability.EnsureRegistered()
	d := &Daemon{
		config:     cfg,
		configPath: configPath,
		logger:     log,
		ctx:        ctx,
		cancel:     cancel,
	}

	shutdown, err := tracing.Setup(ctx, "walletlink-daemon")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
	} else {
		d.shutdownTracing = shutdown
		log.Info().Msg("Tracing initialized successfully")
	}

	// Initialize core modules in dependency order
	if err := d.initializeCoreModules(); err != nil {
		d.abort()
		return nil, fmt.Errorf("failed to initialize core modules: %w", err)
	}

	// Initialize services
	if err := d.initializeServices(); err != nil {
		d.abort()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Create internal components
	d.eventLoop = NewEventLoop(d)
	d.lifecycle = NewLifecycleManager(d)

	return d, nil
}

// abort releases what New acquired before failing
func (d *Daemon) abort() {
	if d.manager != nil {
		_ = d.manager.Close()
	}
	if d.source != nil {
		_ = d.source.Close()
	}
	d.cancel()
	if d.shutdownTracing != nil {
		_ = d.shutdownTracing(context.Background())
		d.shutdownTracing = nil
	}
	d.closeAudit()
}

func (d *Daemon) closeAudit() {
	if d.audit == nil {
		return
	}
	observability.UseAuditLogger(nil)
	if err := d.audit.Close(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to close audit logger")
	}
	d.audit = nil
}

// initializeCoreModules initializes the audit log, hooks, provider source
// and wallet manager
func (d *Daemon) initializeCoreModules() error {
	if err := os.MkdirAll(d.config.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// Initialize audit logger
	auditPath := d.config.AuditFile()
	if audit, err := observability.OpenAuditLog(auditPath); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to initialize audit logger, using default stderr")
	} else {
		d.audit = audit
		observability.UseAuditLogger(audit)
		d.logger.Info().Str("path", auditPath).Msg("Audit logger initialized")
	}

	hookManager, err := newHookManager(d.config.Hooks, d.logger.GetZerolog())
	if err != nil {
		return fmt.Errorf("failed to create hook manager: %w", err)
	}
	d.hookManager = hookManager
	d.logger.Info().Strs("events", hookManager.Events()).Msg("Hook manager initialized")

	source, err := openSource(d.ctx, d.config, d.logger.GetZerolog())
	if err != nil {
		return err
	}
	d.source = source
	d.logger.Info().Str("transport", d.config.Provider.Transport).Msg("Provider source initialized")

	w := d.config.Wallet
	d.manager = wallet.NewManager(wallet.Config{
		Source: source,
		Brand: wallet.Brand{
			Name:              w.Name,
			TargetFlag:        w.TargetFlag,
			ListCompetitors:   w.ListCompetitors,
			SingleCompetitors: w.SingleCompetitors,
			Marker:            w.Marker,
		},
		PromptTimeout:  time.Duration(w.PromptTimeout) * time.Second,
		RequestTimeout: time.Duration(w.RequestTimeout) * time.Second,
		ChainNames:     w.ChainNames,
		Hooks:          hookManager,
		Logger:         d.logger.GetZerolog(),
	})
	d.logger.Info().Str("wallet", w.Name).Msg("Wallet manager initialized")

	return nil
}

// initializeServices initializes the gateway
func (d *Daemon) initializeServices() error {
	if !d.config.Gateway.Enabled {
		d.logger.Info().Msg("Gateway disabled")
		return nil
	}

	gatewayServer, err := gateway.NewServer(gateway.Config{
		Port:         d.config.Gateway.Port,
		Host:         d.config.Gateway.Host,
		SharedSecret: d.config.Gateway.SharedSecret,
		TickInterval: time.Duration(d.config.Gateway.TickInterval) * time.Millisecond,
		Wallet:       d.manager,
		Logger:       d.logger.GetZerolog(),
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway server: %w", err)
	}
	d.gatewayServer = gatewayServer
	d.logger.Info().Int("port", d.config.Gateway.Port).Msg("Gateway server initialized")

	return nil
}

// Start starts the daemon service
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	ctx := tracing.WithOperation(tracing.NewRequestContext(d.ctx), "daemon.start")
	logger := tracing.LoggerFromContext(ctx, d.logger.GetZerolog())
	logger.Info().Msg("Starting walletlink daemon")

	// Start lifecycle manager
	if err := d.lifecycle.Start(); err != nil {
		d.setStopped()
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	// Bind the provider and restore an already authorised session. A
	// missing provider is retried by the refresh schedule.
	startCtx, cancel := context.WithTimeout(ctx, time.Duration(d.config.Wallet.RequestTimeout+5)*time.Second)
	if err := d.manager.Start(startCtx); err != nil {
		logger.Warn().Err(err).Msg("Initial provider bind failed")
	}
	cancel()

	// Start gateway server
	if d.gatewayServer != nil {
		if err := d.gatewayServer.Start(); err != nil {
			_ = d.lifecycle.Stop()
			d.setStopped()
			return fmt.Errorf("failed to start gateway server: %w", err)
		}
		logger.Info().Str("addr", d.gatewayServer.Addr()).Msg("Gateway server started")
	}

	// Start event loop
	if err := d.eventLoop.Start(d.ctx, d.config.Wallet.RefreshSchedule); err != nil {
		_ = d.Stop()
		return err
	}

	// Watch the config file
	if d.configPath != "" {
		watcher, err := NewConfigWatcher(d.configPath, d.onConfigChange, d.logger.GetZerolog())
		if err == nil {
			err = watcher.Start()
		}
		if err != nil {
			logger.Warn().Err(err).Msg("Config hot reload disabled")
		} else {
			d.watcher = watcher
		}
	}

	logger.Info().Msg("Daemon started successfully")

	return nil
}

func (d *Daemon) onConfigChange() {
	if err := d.reloadConfig(); err != nil {
		d.logger.Error().Err(err).Msg("Config reload failed, keeping previous settings")
	}
}

func (d *Daemon) setStopped() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

// Stop stops the daemon service gracefully
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	ctx := tracing.WithOperation(tracing.NewRequestContext(context.Background()), "daemon.stop")
	logger := tracing.LoggerFromContext(ctx, d.logger.GetZerolog())
	logger.Info().Msg("Stopping walletlink daemon")

	// Stop config watcher
	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop config watcher")
		}
	}

	// Cancel context so a running refresh returns early
	d.cancel()
	d.eventLoop.Stop(5 * time.Second)

	// Stop gateway server
	if d.gatewayServer != nil {
		if err := d.gatewayServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop gateway server")
		}
	}

	// Release provider subscriptions, then the transport
	if err := d.manager.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close wallet manager")
	}
	if err := d.source.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close provider source")
	}

	// Stop lifecycle manager
	if err := d.lifecycle.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	if d.shutdownTracing != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.shutdownTracing(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to shutdown tracing")
		}
		cancel()
		d.shutdownTracing = nil
	}

	// Close audit logger
	d.closeAudit()

	logger.Info().Msg("Daemon stopped successfully")

	return nil
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running: d.running,
	}

	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
	}

	return status
}

// Wait waits for SIGINT or SIGTERM and stops the daemon
func (d *Daemon) Wait() {
	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Wait for signal
	sig := <-sigChan
	d.logger.Info().Str("signal", sig.String()).Msg("Received signal")

	// Stop daemon
	if err := d.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop daemon")
	}
}

// GetConfig returns the daemon configuration
func (d *Daemon) GetConfig() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

// GetLogger returns the daemon logger
func (d *Daemon) GetLogger() *logger.Logger {
	return d.logger
}

// GetWalletManager returns the wallet manager
func (d *Daemon) GetWalletManager() *wallet.Manager {
	return d.manager
}

// GetGatewayServer returns the gateway server, nil when disabled
func (d *Daemon) GetGatewayServer() *gateway.Server {
	return d.gatewayServer
}

// GetHookManager returns the hook manager
func (d *Daemon) GetHookManager() *hooks.Manager {
	return d.hookManager
}

// Status represents daemon status
type Status struct {
	Running   bool
	Uptime    time.Duration
	StartTime time.Time
}
