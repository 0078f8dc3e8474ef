package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/auth"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/config"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/db/bunx"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/gateway"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/migrations"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/repository"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/server"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/sessionstore"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/sessionstore/memstore"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/telemetry"
)

var devMode bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Squircle server",
	Long: `Starts the HTTP server with the session gateway (/auth) and the ideas API (/api).

With --dev the in-process session store is used, the schema is migrated on start,
and a demo organization with an admin member is seeded; a ready-to-use session
token for that member is logged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		shutdownTelemetry, err := telemetry.Init(ctx, cfg.Observability, Version, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown failed", zap.Error(err))
			}
		}()

		db, err := bunx.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)
		logger.Info("connected to database", zap.String("type", string(bunx.DetectDatabaseType(cfg.DatabaseURL))))

		if devMode || bunx.IsInMemory(cfg.DatabaseURL) {
			group, err := migrations.Apply(ctx, db)
			if err != nil {
				return fmt.Errorf("failed to apply migrations: %w", err)
			}
			logger.Info("schema migrated", zap.Int64("group_id", group.ID))
		}

		metrics, err := telemetry.NewGatewayMetrics()
		if err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}

		stores, err := newStoreProvider(cfg, metrics)
		if err != nil {
			return err
		}

		members := repository.NewBunMemberRepository(db)
		ideas := repository.NewBunIdeaRepository(db)

		authn := gateway.NewAuthenticator(stores, logger, metrics)
		gate := gateway.NewGate(authn)
		protocols, err := gateway.NewProtocols(authn, members, gateway.Options{
			AppURL:                 cfg.AppURL,
			DashboardPath:          cfg.DashboardPath,
			LoginPath:              cfg.LoginPath,
			ReauthPath:             cfg.ReauthPath,
			CreateOrganizationPath: cfg.CreateOrganizationPath,
		})
		if err != nil {
			return fmt.Errorf("configure session protocols: %w", err)
		}

		api, err := server.NewAPIHandlers(server.APIDependencies{
			Stores:        stores,
			Authenticator: authn,
			Gate:          gate,
			Protocols:     protocols,
			Members:       members,
			Ideas:         ideas,
			Logger:        logger,
			AppURL:        cfg.AppURL,
			DashboardPath: cfg.DashboardPath,
		})
		if err != nil {
			return fmt.Errorf("configure api handlers: %w", err)
		}

		corsOpts := server.DefaultCORSOptions(cfg.CORSAllowedOrigins)
		handler := server.NewH2CHandler(server.RouterOptions{
			Auth: server.NewAuthHandlers(protocols, auth.CookieOptions{
				Path:   "/",
				Domain: cfg.Cookie.Domain,
				Secure: cfg.Cookie.Secure,
			}),
			API:         api,
			Logger:      logger,
			CORSOptions: &corsOpts,
		})

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting server",
				zap.String("addr", cfg.ServerAddr),
				zap.String("app_url", cfg.AppURL),
				zap.String("session_store", cfg.SessionStore),
				zap.Bool("dev", devMode),
			)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("shutting down gracefully", zap.String("signal", sig.String()))

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			logger.Info("server stopped")
			return nil
		}
	},
}

// newStoreProvider builds the process-wide session store handle. The remote
// client is constructed lazily on first use; the in-process store is built
// and seeded immediately so its demo token can be logged.
func newStoreProvider(cfg *config.Config, metrics *telemetry.GatewayMetrics) (*sessionstore.Provider, error) {
	if devMode || cfg.SessionStore == config.SessionStoreMemory {
		mem, err := memstore.New(memstore.WithSessionTTL(24 * time.Hour))
		if err != nil {
			return nil, fmt.Errorf("create in-process session store: %w", err)
		}
		if err := seedDevStore(mem); err != nil {
			return nil, err
		}
		return sessionstore.StaticProvider(mem), nil
	}

	opts := sessionstore.HTTPClientOptions{
		BaseURL:    cfg.Stytch.BaseURL(),
		ProjectID:  cfg.Stytch.ProjectID,
		Secret:     cfg.Stytch.Secret,
		Timeout:    cfg.Stytch.Timeout,
		MaxRetries: cfg.Stytch.MaxRetries,
		Logger:     logger.Named("sessionstore"),
		Metrics:    metrics,
	}
	return sessionstore.NewProvider(func() (sessionstore.Store, error) {
		return sessionstore.NewHTTPClient(opts)
	}), nil
}

// seedDevStore creates a demo organization with an admin and a member and
// logs their session tokens.
func seedDevStore(mem *memstore.Store) error {
	org := mem.CreateOrganization(sessionstore.Organization{OrganizationName: "Squircle Demo"})

	admin, err := mem.CreateMember(org.OrganizationID, "admin@squircle.dev", "Demo Admin", sessionstore.RoleAdmin)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	member, err := mem.CreateMember(org.OrganizationID, "member@squircle.dev", "Demo Member")
	if err != nil {
		return fmt.Errorf("seed member: %w", err)
	}

	for _, m := range []*sessionstore.Member{admin, member} {
		token, err := mem.StartSession(m.MemberID, sessionstore.AuthMethodMagicLink)
		if err != nil {
			return fmt.Errorf("seed session for %s: %w", m.EmailAddress, err)
		}
		logger.Info("dev session ready",
			zap.String("organization_id", org.OrganizationID),
			zap.String("member_id", m.MemberID),
			zap.String("email", m.EmailAddress),
			zap.String("cookie", auth.SessionCookieName+"="+token),
		)
	}

	discovery := mem.StartDiscovery("member@squircle.dev", "Demo Member", sessionstore.AuthMethodMagicLink)
	logger.Info("dev discovery ready",
		zap.String("organization_id", org.OrganizationID),
		zap.String("cookie", auth.IntermediateTokenCookieName+"="+discovery),
	)
	return nil
}

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Use the in-process session store with seeded demo data")
	rootCmd.AddCommand(serveCmd)
}
