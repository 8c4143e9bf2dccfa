package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"postern/internal/capability"
	"postern/internal/config"
	"postern/internal/gateway"
	"postern/internal/oauth"
	"postern/internal/server"
	"postern/pkg/logging"
)

// Options controls application bootstrap.
type Options struct {
	// ConfigPath overrides the default config file location.
	ConfigPath string

	// Debug forces debug-level logging regardless of configuration.
	Debug bool

	// Version is the build version advertised to MCP clients.
	Version string
}

// Application owns all gateway state. Everything mutable lives behind this
// struct; tests construct isolated instances.
type Application struct {
	cfg     config.Config
	opts    Options
	manager *oauth.Manager

	cache    *capability.Cache
	registry *capability.Registry
	gateway  *gateway.Server
	front    *server.Server
	watcher  *ConfigWatcher

	refreshCh chan struct{}

	// advertised is the last tool name set pushed to clients, used to
	// suppress redundant list_changed notifications.
	advertised []string
}

// New loads configuration and wires the application together. The returned
// Application is not yet serving; call Run.
func New(opts Options) (*Application, error) {
	logging.InitForCLI(logging.LevelInfo, os.Stdout)

	if opts.ConfigPath == "" {
		path, err := config.GetDefaultConfigPath()
		if err != nil {
			return nil, err
		}
		opts.ConfigPath = path
	}

	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if opts.Debug {
		level = logging.LevelDebug
	}
	logging.Init(level, os.Stdout, cfg.JSONLogs)

	a := &Application{
		cfg:       cfg,
		opts:      opts,
		refreshCh: make(chan struct{}, 1),
	}

	if cfg.OAuth.Issuer != "" {
		metadata := oauth.NewMetadataCache(cfg.OAuth.Issuer, nil)
		client := oauth.NewTokenClient(cfg.OAuth.ClientID, metadata, nil)
		a.manager = oauth.NewManager(metadata, client, cfg.OAuth.RefreshWindow())
		a.manager.SetRequestedScopes(cfg.OAuth.Scopes)
	}

	discoveryClient := capability.NewClient(
		cfg.Backend.BaseURL,
		cfg.Backend.DiscoveryPath,
		cfg.Discovery.Timeout(),
	)
	a.cache = capability.NewCache(discoveryClient, cfg.Discovery.CacheTTL())
	a.registry = capability.NewRegistry(capability.NewCompiler())

	invoker := gateway.NewInvoker(cfg.Backend.BaseURL, cfg.Backend.InvokePath, cfg.Backend.Timeout())

	var tokens gateway.TokenProvider = anonymousTokens{}
	var authTools *gateway.AuthToolProvider
	var binder gateway.SessionBinder
	if a.manager != nil {
		tokens = a.manager
		authTools = gateway.NewAuthToolProvider(a.manager)
		binder = a.manager
	}

	dispatcher := gateway.NewDispatcher(a.registry, tokens, invoker)

	var onExpire func(string)
	if a.manager != nil {
		onExpire = a.manager.ReleaseSession
	}
	sessions := gateway.NewSessionRegistry(cfg.Gateway.SessionTTL(), cfg.Gateway.MaxSessions, onExpire)

	a.gateway = gateway.NewServer(cfg.Gateway, dispatcher, a.registry, sessions, authTools, binder, opts.Version)

	if cfg.Gateway.Transport == config.TransportStreamableHTTP {
		var verifier server.TokenVerifier
		if a.manager != nil {
			verifier = a.manager
		}
		a.front = server.New(server.Options{
			Gateway:    cfg.Gateway,
			Verifier:   verifier,
			Issuer:     cfg.OAuth.Issuer,
			Scopes:     cfg.OAuth.Scopes,
			MCPHandler: a.gateway.Handler(),
			Health: func() server.HealthState {
				return server.HealthState{
					Status:   "ok",
					Tools:    a.registry.Len(),
					Sessions: a.gateway.SessionCount(),
				}
			},
		})
	}

	if opts.ConfigPath != "" {
		watcher, err := NewConfigWatcher(opts.ConfigPath, a.ForceRefresh)
		if err != nil {
			logging.Warn("Bootstrap", "Config watcher disabled: %v", err)
		} else {
			a.watcher = watcher
		}
	}

	return a, nil
}

// Config returns the loaded configuration.
func (a *Application) Config() config.Config { return a.cfg }

// ForceRefresh schedules an immediate discovery cycle. Safe to call from
// any goroutine; coalesces when one is already pending.
func (a *Application) ForceRefresh() {
	select {
	case a.refreshCh <- struct{}{}:
	default:
	}
}

// refresh runs one discovery cycle and re-advertises tools when the set
// changed. The first cycle (startup) propagates every failure; later cycles
// keep the previous registry on failure.
func (a *Application) refresh(ctx context.Context, forceFresh bool) error {
	defs, err := a.cache.Get(ctx, "", forceFresh)
	if err != nil {
		return err
	}
	if err := a.registry.Build(defs); err != nil {
		return err
	}

	if a.manager != nil {
		// Request a token broad enough for everything the backend declares,
		// on top of the configured scopes.
		scopes := append([]string{}, a.cfg.OAuth.Scopes...)
		for _, s := range capability.ExtractRequiredScopes(defs) {
			if !containsString(scopes, s) {
				scopes = append(scopes, s)
			}
		}
		a.manager.SetRequestedScopes(scopes)
	}

	names := a.registry.Names()
	if !reflect.DeepEqual(names, a.advertised) {
		a.gateway.RegisterCapabilities()
		a.advertised = names
	}
	return nil
}

// Run starts the gateway and blocks until ctx is cancelled or a SIGINT or
// SIGTERM arrives, then shuts everything down in order.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.refresh(ctx, true); err != nil {
		return fmt.Errorf("initial tool discovery failed: %w", err)
	}

	if err := a.gateway.Start(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	if a.front != nil {
		go func() {
			if err := a.front.Start(); err != nil {
				errCh <- err
			}
		}()
	}

	if a.watcher != nil {
		a.watcher.Start()
	}

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logging.Warn("App", "sd_notify failed: %v", err)
	} else if sent {
		logging.Debug("App", "Notified systemd: ready")
	}
	logging.Info("App", "Gateway running with %d tools", a.registry.Len())

	interval := a.cfg.Discovery.CacheTTL()
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-errCh:
			runErr = err
			break loop
		case <-ticker.C:
			if err := a.refresh(ctx, false); err != nil {
				logging.Warn("App", "Periodic discovery failed, keeping current tools: %v", err)
			}
		case <-a.refreshCh:
			logging.Info("App", "Forced tool refresh requested")
			if err := a.refresh(ctx, true); err != nil {
				logging.Warn("App", "Forced discovery failed, keeping current tools: %v", err)
			}
		}
	}

	daemon.SdNotify(false, daemon.SdNotifyStopping)
	a.shutdown()
	return runErr
}

// shutdown stops components in reverse dependency order.
func (a *Application) shutdown() {
	logging.Info("App", "Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.front != nil {
		if err := a.front.Shutdown(shutdownCtx); err != nil {
			logging.Warn("App", "HTTP shutdown: %v", err)
		}
	}
	if err := a.gateway.Stop(shutdownCtx); err != nil {
		logging.Warn("App", "Gateway shutdown: %v", err)
	}
	if a.manager != nil {
		a.manager.Stop()
	}
	logging.Info("App", "Shutdown complete")
}

// anonymousTokens is the TokenProvider used when no OAuth issuer is
// configured: every call proceeds without a bearer token.
type anonymousTokens struct{}

func (anonymousTokens) GetToken(ctx context.Context, sessionID string) string { return "" }
func (anonymousTokens) GetTokenScopes(sessionID string) []string              { return nil }
func (anonymousTokens) RefreshSessionToken(ctx context.Context, sessionID string) error {
	return oauth.NewAuthenticationError("Session not authenticated")
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
