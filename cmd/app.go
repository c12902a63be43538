// File: cmd/app.go
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/oil-cli/internal/config"
	"github.com/xkilldash9x/oil-cli/internal/executor"
	"github.com/xkilldash9x/oil-cli/internal/formatter"
	"github.com/xkilldash9x/oil-cli/internal/intent"
	"github.com/xkilldash9x/oil-cli/internal/network"
	"github.com/xkilldash9x/oil-cli/internal/observability"
	"github.com/xkilldash9x/oil-cli/internal/resolver"
	"github.com/xkilldash9x/oil-cli/internal/scanner"
	"github.com/xkilldash9x/oil-cli/internal/store"
)

// appComponents holds the initialized services behind one command run.
type appComponents struct {
	Scanner   *scanner.Manager
	Executor  *executor.Executor
	Formatter *formatter.Formatter
	Proxy     *network.Proxy
	History   *store.History
}

// Shutdown gracefully closes all components.
func (ac *appComponents) Shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if ac.Proxy != nil {
		if err := ac.Proxy.Stop(shutdownCtx); err != nil {
			observability.GetLogger().Warn("Error during capture proxy shutdown", zap.Error(err))
		}
	}
	if ac.Scanner != nil {
		if err := ac.Scanner.Close(shutdownCtx); err != nil {
			observability.GetLogger().Warn("Error during browser shutdown", zap.Error(err))
		}
	}
	// History last: the executor records through it until the loop stops,
	// and Close drains the pending rows before closing the pool.
	ac.History.Close()
}

// initializeApp handles dependency injection for the interactive loop and
// the script commands. The browser launch and the history connection are
// independent and slow, so they run concurrently; either failure aborts
// the other.
func initializeApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*appComponents, error) {
	components := &appComponents{Formatter: formatter.New()}
	components.Scanner = scanner.NewManager(cfg, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := components.Scanner.Start(gctx); err != nil {
			return fmt.Errorf("failed to launch browser session: %w", err)
		}
		return nil
	})
	if cfg.History.DSN != "" {
		g.Go(func() error {
			pool, err := pgxpool.New(gctx, cfg.History.DSN)
			if err != nil {
				return fmt.Errorf("failed to connect to history database: %w", err)
			}
			h, err := store.NewHistory(gctx, pool, logger)
			if err != nil {
				pool.Close()
				return err
			}
			components.History = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		components.Shutdown()
		return nil, err
	}

	// Optional capture proxy for non-CDP traffic.
	if cfg.Network.Proxy.Enabled {
		proxy, err := network.NewProxy(cfg.Network.Proxy, components.Scanner.Capture(), cfg.Network.ProxyRateLimit, logger)
		if err != nil {
			components.Shutdown()
			return nil, fmt.Errorf("failed to initialize capture proxy: %w", err)
		}
		if err := proxy.Start(); err != nil {
			components.Shutdown()
			return nil, fmt.Errorf("failed to start capture proxy: %w", err)
		}
		components.Proxy = proxy
	}

	// Target resolution. The manager doubles as the live selector
	// evaluator for css()/xpath() targets.
	pol := resolver.DefaultPolicy()
	if cfg.Resolver.PolicyVersion != 0 && cfg.Resolver.PolicyVersion != pol.Version {
		logger.Warn("unknown resolver policy version, using current",
			zap.Int("requested", cfg.Resolver.PolicyVersion),
			zap.Int("current", pol.Version))
	}
	res := resolver.New(pol, components.Scanner, logger)

	// Intent registry; packs are discovered lazily from the packs dir.
	reg := intent.New(cfg.Intents.PacksDir, logger)

	// Saved session states, signed at rest. An unusable state dir
	// disables the feature rather than the whole CLI.
	var states executor.StateStore
	if cfg.State.Dir != "" {
		ss, err := store.NewStateStore(cfg.State, logger)
		if err != nil {
			logger.Warn("session state persistence disabled", zap.Error(err))
		} else {
			states = ss
		}
	}

	var history executor.History
	if components.History != nil {
		history = components.History
	}
	components.Executor = executor.New(cfg, components.Scanner, res, reg, history, states, logger)
	return components, nil
}
