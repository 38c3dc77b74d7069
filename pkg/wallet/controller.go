package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/walletlink/internal/observability"
	"github.com/harun/walletlink/internal/tracing"
	"github.com/harun/walletlink/pkg/provider"
)

// Operation names used for spans, metrics and audit actions.
const (
	OpConnect     = "connect"
	OpDisconnect  = "disconnect"
	OpSwitchChain = "switch_chain"
	OpAddToken    = "add_token"
)

const (
	DefaultPromptTimeout  = 2 * time.Minute
	DefaultRequestTimeout = 15 * time.Second
)

// Locator yields a fresh provider handle for each operation.
type Locator interface {
	Locate(ctx context.Context) (provider.Handle, bool)
}

// Token describes an ERC20 asset to register with the wallet.
type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	Image    string `json:"image,omitempty"`
}

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	Locator  Locator
	Store    *Store
	Messages Messages
	// PromptTimeout bounds requests that may show a wallet prompt.
	PromptTimeout time.Duration
	// RequestTimeout bounds silent requests.
	RequestTimeout time.Duration
	Logger         zerolog.Logger
}

// Controller runs the user-initiated wallet operations. Operations return
// nothing; their outcome is observed through the Store.
type Controller struct {
	locator        Locator
	store          *Store
	messages       Messages
	promptTimeout  time.Duration
	requestTimeout time.Duration
	logger         zerolog.Logger
}

// NewController creates a Controller.
func NewController(cfg ControllerConfig) *Controller {
	c := &Controller{
		locator:        cfg.Locator,
		store:          cfg.Store,
		messages:       cfg.Messages,
		promptTimeout:  cfg.PromptTimeout,
		requestTimeout: cfg.RequestTimeout,
		logger:         cfg.Logger.With().Str("component", "controller").Logger(),
	}
	if c.store == nil {
		c.store = NewStore()
	}
	if c.messages == (Messages{}) {
		c.messages = DefaultMessages("")
	}
	if c.promptTimeout == 0 {
		c.promptTimeout = DefaultPromptTimeout
	}
	if c.requestTimeout == 0 {
		c.requestTimeout = DefaultRequestTimeout
	}
	return c
}

// Store returns the store the controller writes to.
func (c *Controller) Store() *Store {
	return c.store
}

// Connect requests account access and records the connected account and
// chain.
func (c *Controller) Connect(ctx context.Context) {
	ctx, op := c.begin(ctx, OpConnect)

	handle, ok := c.locate(ctx)
	if !ok {
		c.store.Update(ErrorPatch(c.messages.NotInstalled))
		op.fail(unavailable(c.messages.NotInstalled))
		return
	}

	op.meta["provider"] = handle.ID()
	op.meta["aggregated"] = handle.Aggregated()
	c.store.Update(Patch{IsConnecting: boolean(true), Error: str("")})
	c.activate(ctx, handle)

	promptCtx, cancel := c.timeout(ctx, true)
	accounts, perr := provider.Accounts(promptCtx, handle, true)
	cancel()
	if perr == nil && (len(accounts) == 0 || accounts[0] == "") {
		perr = &provider.Error{Kind: provider.KindProviderFailure, Message: c.messages.NoAccounts}
	}

	var chainID string
	if perr == nil {
		reqCtx, cancel := c.timeout(ctx, false)
		chainID, perr = provider.ChainID(reqCtx, handle)
		cancel()
	}

	if perr != nil {
		msg := c.connectMessage(perr)
		c.store.Update(Patch{
			Account:      str(""),
			ChainID:      str(""),
			IsConnected:  boolean(false),
			IsConnecting: boolean(false),
			Error:        str(msg),
		})
		op.fail(perr)
		return
	}

	c.store.Update(Patch{
		Account:      str(accounts[0]),
		ChainID:      str(chainID),
		IsConnected:  boolean(true),
		IsConnecting: boolean(false),
		Error:        str(""),
	})
	op.meta["account"] = accounts[0]
	op.meta["chain_id"] = chainID
	op.succeed()
}

func (c *Controller) connectMessage(perr *provider.Error) string {
	switch perr.Kind {
	case provider.KindUserRejected:
		return c.messages.UserRejected
	case provider.KindRequestPending:
		return c.messages.RequestPending
	case provider.KindTimeout:
		return c.messages.ConnectTimeout
	}
	if strings.TrimSpace(perr.Message) != "" {
		return perr.Message
	}
	return c.messages.ConnectFailed
}

// Disconnect clears the session, then asks the wallet to drop the account
// permission. Provider failures are logged only.
func (c *Controller) Disconnect(ctx context.Context) {
	ctx, op := c.begin(ctx, OpDisconnect)
	c.store.Reset()

	handle, ok := c.locate(ctx)
	if !ok {
		op.succeed()
		return
	}

	params := []interface{}{map[string]interface{}{"eth_accounts": map[string]interface{}{}}}

	reqCtx, cancel := c.timeout(ctx, false)
	res := provider.Call(reqCtx, handle, provider.MethodRevokePermissions, params)
	cancel()
	if res.OK() {
		op.meta["method"] = provider.MethodRevokePermissions
		op.succeed()
		return
	}

	logger := tracing.LoggerFromContext(ctx, c.logger)
	logger.Debug().Str("reason", res.Err.Message).Msg("Permission revoke failed, requesting permissions instead")

	promptCtx, cancel := c.timeout(ctx, true)
	fallback := provider.Call(promptCtx, handle, provider.MethodRequestPermissions, params)
	cancel()
	if !fallback.OK() {
		logger.Info().Str("reason", fallback.Err.Message).Msg("Wallet permissions left unchanged")
		op.meta["provider_error"] = fallback.Err.Message
		op.succeed()
		return
	}

	op.meta["method"] = provider.MethodRequestPermissions
	op.succeed()
}

// SwitchChain asks the wallet to switch to chainID (hex or decimal). The
// new chain is recorded when the wallet emits chainChanged.
func (c *Controller) SwitchChain(ctx context.Context, chainID string) {
	ctx, op := c.begin(ctx, OpSwitchChain, attribute.String("wallet.chain_id", chainID))
	op.meta["chain_id"] = chainID

	handle, ok := c.locate(ctx)
	if !ok {
		c.store.Update(ErrorPatch(c.messages.SwitchUnavailable))
		op.fail(unavailable(c.messages.SwitchUnavailable))
		return
	}

	normalized, err := provider.NormalizeChainID(chainID)
	if err != nil {
		msg := fmt.Sprintf(c.messages.InvalidChainID, chainID)
		c.store.Update(ErrorPatch(msg))
		op.fail(&provider.Error{Kind: provider.KindProviderFailure, Message: msg})
		return
	}

	c.activate(ctx, handle)

	promptCtx, cancel := c.timeout(ctx, true)
	res := provider.Call(promptCtx, handle, provider.MethodSwitchChain, []interface{}{
		map[string]string{"chainId": normalized},
	})
	cancel()
	if !res.OK() {
		msg := fmt.Sprintf(c.messages.SwitchFailed, res.Err.Message)
		if res.Err.Kind == provider.KindUnrecognizedChain {
			msg = c.messages.ChainNotAdded
		}
		c.store.Update(ErrorPatch(msg))
		op.fail(res.Err)
		return
	}

	op.succeed()
}

// AddToken asks the wallet to track an ERC20 token.
func (c *Controller) AddToken(ctx context.Context, token Token) {
	ctx, op := c.begin(ctx, OpAddToken, attribute.String("wallet.token", token.Symbol))
	op.meta["address"] = token.Address
	op.meta["symbol"] = token.Symbol

	handle, ok := c.locate(ctx)
	if !ok {
		c.store.Update(ErrorPatch(c.messages.TokenUnavailable))
		op.fail(unavailable(c.messages.TokenUnavailable))
		return
	}

	if msg := c.validateToken(token); msg != "" {
		c.store.Update(ErrorPatch(msg))
		op.fail(&provider.Error{Kind: provider.KindProviderFailure, Message: msg})
		return
	}

	options := map[string]interface{}{
		"address":  common.HexToAddress(token.Address).Hex(),
		"symbol":   token.Symbol,
		"decimals": token.Decimals,
	}
	if token.Image != "" {
		options["image"] = token.Image
	}

	promptCtx, cancel := c.timeout(ctx, true)
	res := provider.Call(promptCtx, handle, provider.MethodWatchAsset, map[string]interface{}{
		"type":    "ERC20",
		"options": options,
	})
	cancel()
	if !res.OK() {
		c.store.Update(ErrorPatch(fmt.Sprintf(c.messages.AddTokenFailed, res.Err.Message)))
		op.fail(res.Err)
		return
	}

	if string(res.Value) == "false" {
		op.meta["added"] = false
		op.logger.Info().Str("symbol", token.Symbol).Msg("Token was not added by the wallet")
	}
	op.succeed()
}

func (c *Controller) validateToken(token Token) string {
	if !common.IsHexAddress(token.Address) {
		return fmt.Sprintf(c.messages.InvalidToken, token.Address)
	}
	if strings.TrimSpace(token.Symbol) == "" {
		return fmt.Sprintf(c.messages.InvalidTokenField, "symbol is required")
	}
	if token.Decimals < 0 || token.Decimals > 255 {
		return fmt.Sprintf(c.messages.InvalidTokenField, "decimals must be between 0 and 255")
	}
	return ""
}

func (c *Controller) locate(ctx context.Context) (provider.Handle, bool) {
	if c.locator == nil {
		return provider.Handle{}, false
	}
	return c.locator.Locate(ctx)
}

func (c *Controller) activate(ctx context.Context, handle provider.Handle) {
	reqCtx, cancel := c.timeout(ctx, false)
	defer cancel()
	if err := handle.Activate(reqCtx); err != nil {
		logger := tracing.LoggerFromContext(ctx, c.logger)
		logger.Debug().Err(err).Str("provider", handle.ID()).Msg("Provider activation failed")
	}
}

func (c *Controller) timeout(ctx context.Context, prompt bool) (context.Context, context.CancelFunc) {
	d := c.requestTimeout
	if prompt {
		d = c.promptTimeout
	}
	if d < 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func unavailable(message string) *provider.Error {
	return &provider.Error{Kind: provider.KindUnavailable, Message: message}
}

// operation carries the span, timer and audit metadata of one call.
type operation struct {
	ctx    context.Context
	name   string
	start  time.Time
	meta   map[string]interface{}
	logger zerolog.Logger
	end    func(err *provider.Error)
}

func (c *Controller) begin(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *operation) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracing.StartOperation(ctx, name, attrs...)

	op := &operation{
		ctx:    ctx,
		name:   name,
		start:  time.Now(),
		meta:   make(map[string]interface{}),
		logger: tracing.LoggerFromContext(ctx, c.logger),
	}
	op.end = func(err *provider.Error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Message)
			span.SetAttributes(attribute.String("wallet.error_kind", err.Kind.String()))
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
	return ctx, op
}

func (op *operation) succeed() {
	observability.RecordOperation(op.name, time.Since(op.start), true)
	observability.RecordWalletAudit(op.ctx, "wallet."+op.name, actor(op.ctx), "success", op.meta)
	op.logger.Debug().Dur("duration", time.Since(op.start)).Msg("Wallet operation completed")
	op.end(nil)
}

func (op *operation) fail(err *provider.Error) {
	observability.RecordOperation(op.name, time.Since(op.start), false)
	observability.RecordProviderError(err.Kind.String())

	op.meta["error"] = err.Message
	op.meta["error_kind"] = err.Kind.String()
	if err.Code != 0 {
		op.meta["error_code"] = err.Code
	}
	observability.RecordWalletAudit(op.ctx, "wallet."+op.name, actor(op.ctx), "failure", op.meta)

	op.logger.Warn().
		Str("kind", err.Kind.String()).
		Int("code", err.Code).
		Str("reason", err.Message).
		Msg("Wallet operation failed")
	op.end(err)
}

func actor(ctx context.Context) string {
	if id := tracing.GetClientID(ctx); id != "" {
		return id
	}
	return "local"
}
