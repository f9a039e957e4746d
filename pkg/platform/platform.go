package platform

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/txn2/plotwatch/internal/server"
	"github.com/txn2/plotwatch/pkg/admin"
	"github.com/txn2/plotwatch/pkg/auth"
	"github.com/txn2/plotwatch/pkg/database/migrate"
	"github.com/txn2/plotwatch/pkg/discord"
	"github.com/txn2/plotwatch/pkg/health"
	"github.com/txn2/plotwatch/pkg/interaction"
	"github.com/txn2/plotwatch/pkg/mcptools"
	"github.com/txn2/plotwatch/pkg/pagination"
	"github.com/txn2/plotwatch/pkg/pagination/sqlstore"
	"github.com/txn2/plotwatch/pkg/paissadb"
	"github.com/txn2/plotwatch/pkg/render"
	"github.com/txn2/plotwatch/pkg/telemetry"
)

const (
	readHeaderTimeout = 10 * time.Second
	slogKeyError      = "error"
)

// Platform is the running bot: the Discord gateway, the session manager and
// the HTTP surface.
type Platform struct {
	config    *Config
	lifecycle *Lifecycle
	started   time.Time

	db      *sql.DB
	dialect migrate.Dialect
	ownsDB  bool
	store   pagination.DurableStore

	source  pagination.DatasetSource
	gateway Gateway
	hub     *interaction.Hub
	manager *pagination.Manager
	bot     *discord.Bot
	health  *health.Checker
	handler http.Handler
}

// New creates a platform. Nothing is started until Start or Run.
func New(ctx context.Context, opts ...Option) (*Platform, error) {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}
	if options.Config == nil {
		return nil, errors.New("config is required")
	}
	if options.Now == nil {
		options.Now = time.Now
	}

	p := &Platform{
		config:    options.Config,
		lifecycle: NewLifecycle(),
		started:   options.Now(),
		health:    health.NewChecker(),
	}
	if err := p.initStore(ctx, options); err != nil {
		return nil, err
	}
	if err := p.initSessions(options); err != nil {
		_ = p.closeDB()
		return nil, err
	}
	if err := p.initHTTP(options); err != nil {
		_ = p.closeDB()
		return nil, err
	}
	p.registerHooks()
	return p, nil
}

// initStore opens the database, or keeps sessions in memory.
func (p *Platform) initStore(ctx context.Context, opts *Options) error {
	if opts.DB != nil {
		p.db, p.dialect = opts.DB, opts.Dialect
	} else {
		db, dialect, err := OpenDatabase(ctx, p.config.Database)
		if err != nil {
			return err
		}
		p.db, p.dialect, p.ownsDB = db, dialect, db != nil
	}

	if p.db == nil {
		slog.Warn("platform: no database configured, sessions will not survive a restart")
		p.store = pagination.NewMemoryRowStore()
		return nil
	}

	store, err := sqlstore.New(p.db, p.dialect)
	if err != nil {
		_ = p.closeDB()
		return fmt.Errorf("creating session store: %w", err)
	}
	p.store = store
	p.health.AddProbe("database", p.db.PingContext)
	return nil
}

// initSessions builds the dataset client, the session manager and the bot.
func (p *Platform) initSessions(opts *Options) error {
	cfg := p.config

	p.gateway = opts.Gateway
	if p.gateway == nil {
		if cfg.Discord.Token == "" {
			return ErrMissingToken
		}
		s, err := discord.NewSession(cfg.Discord.Token)
		if err != nil {
			return err
		}
		p.gateway = discordGateway{s}
	}

	p.source = opts.Source
	if p.source == nil {
		p.source = paissadb.New(paissadb.Config{
			BaseURL:    cfg.PaissaDB.BaseURL,
			UserAgent:  cfg.PaissaDB.UserAgent,
			Timeout:    cfg.PaissaDB.Timeout,
			MaxElapsed: cfg.PaissaDB.MaxElapsed,
		})
	}

	p.hub = interaction.NewHub(cfg.Pagination.QueueSize)
	manager, err := pagination.NewManager(pagination.Config{
		PageSize:  cfg.Pagination.PageSize,
		Retention: cfg.Pagination.Retention,
		Now:       opts.Now,
	}, pagination.Deps{
		Source: p.source,
		Renderer: render.NewRenderer(render.Config{
			PageSize: cfg.Pagination.PageSize,
			Color:    cfg.Discord.Color,
			Now:      opts.Now,
		}),
		Editor:     discord.NewEditor(p.gateway),
		Store:      p.store,
		Subscriber: p.hub,
	})
	if err != nil {
		return fmt.Errorf("creating session manager: %w", err)
	}
	p.manager = manager

	p.bot = discord.NewBot(discord.Config{
		GuildID:        cfg.Discord.GuildID,
		Color:          cfg.Discord.Color,
		CommandTimeout: cfg.Discord.CommandTimeout,
	}, p.gateway, p.manager, p.hub)
	return nil
}

// initHTTP mounts health, admin and MCP routes. The admin API requires an
// admin bearer token when a signing key is configured.
func (p *Platform) initHTTP(opts *Options) error {
	var authMiddle func(http.Handler) http.Handler
	if key := p.config.Admin.SigningKey; key != "" {
		tokens, err := auth.NewTokenService(auth.TokenConfig{
			Issuer:     p.config.Admin.Issuer,
			SigningKey: []byte(key),
			Now:        opts.Now,
		})
		if err != nil {
			return fmt.Errorf("creating admin token service: %w", err)
		}
		authMiddle = auth.RequireRole(tokens, auth.RoleAdmin)
	} else {
		slog.Warn("platform: admin.signing_key not set, admin API is unauthenticated")
	}

	tools := mcptools.New(p.source, p.config.Pagination.PageSize, opts.Now)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", p.health.LivenessHandler())
	mux.HandleFunc("GET /readyz", p.health.ReadinessHandler())
	mux.Handle("/api/v1/admin/", admin.NewHandler(admin.Deps{
		Sessions: p.manager,
		Now:      opts.Now,
		Started:  p.started,
	}, authMiddle))
	mux.Handle("/mcp", server.Handler(server.New(tools)))
	p.handler = mux
	return nil
}

// registerHooks orders startup: telemetry, schema, gateway, then session
// restore. Shutdown runs in reverse.
func (p *Platform) registerHooks() {
	var shutdownTelemetry func(context.Context) error
	p.lifecycle.Append(Hook{
		Name: "telemetry",
		OnStart: func(ctx context.Context) error {
			var err error
			shutdownTelemetry, err = telemetry.Setup(ctx, telemetry.Config{
				Endpoint:    p.config.Telemetry.OTLPEndpoint,
				ServiceName: p.config.Telemetry.ServiceName,
				Version:     server.Version,
			})
			return err
		},
		OnStop: func(ctx context.Context) error {
			if shutdownTelemetry == nil {
				return nil
			}
			return shutdownTelemetry(ctx)
		},
	})

	p.lifecycle.Append(Hook{
		Name: "database",
		OnStart: func(context.Context) error {
			if p.db == nil {
				return nil
			}
			return migrate.Run(p.db, p.dialect)
		},
		OnStop: func(context.Context) error {
			return p.closeDB()
		},
	})

	p.lifecycle.Append(Hook{
		Name: "sessions",
		OnStart: func(ctx context.Context) error {
			if _, err := p.manager.Restore(ctx); err != nil {
				return err
			}
			p.manager.StartSweepRoutine(p.config.Pagination.SweepInterval)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return errors.Join(p.manager.Close(), p.hub.Close(ctx))
		},
	})

	// Interactions are taken only once restored sessions are subscribed.
	var removeHandler func()
	p.lifecycle.Append(Hook{
		Name: "discord",
		OnStart: func(ctx context.Context) error {
			removeHandler = p.gateway.AddHandler(p.bot.HandleInteraction)
			if err := p.gateway.Open(); err != nil {
				return fmt.Errorf("opening discord gateway: %w", err)
			}
			if !p.config.Discord.SkipRegister {
				if err := p.bot.RegisterCommands(ctx, p.gateway.ApplicationID()); err != nil {
					_ = p.gateway.Close()
					return err
				}
			}
			p.health.SetReady()
			return nil
		},
		OnStop: func(context.Context) error {
			p.health.SetDraining()
			if removeHandler != nil {
				removeHandler()
			}
			p.bot.Close()
			return p.gateway.Close()
		},
	})
}

// Start runs the startup hooks.
func (p *Platform) Start(ctx context.Context) error {
	return p.lifecycle.Start(ctx)
}

// Stop runs the shutdown hooks.
func (p *Platform) Stop(ctx context.Context) error {
	return p.lifecycle.Stop(ctx)
}

// Run starts the platform, serves HTTP until ctx is cancelled or the
// listener fails, then shuts everything down.
func (p *Platform) Run(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              p.config.Server.Address,
		Handler:           p.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("platform: http listening", "address", srv.Addr, "version", server.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		p.health.SetDraining()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.config.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http: %w", err)
		}
		return nil
	})
	runErr := g.Wait()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.config.Server.ShutdownTimeout)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		slog.Error("platform: shutdown failed", slogKeyError, err)
		return errors.Join(runErr, err)
	}
	slog.Info("platform: stopped")
	return runErr
}

// Close releases resources held by a platform that was never started.
func (p *Platform) Close() error {
	if p.lifecycle.IsStarted() {
		return p.Stop(context.Background())
	}
	return p.closeDB()
}

func (p *Platform) closeDB() error {
	if !p.ownsDB || p.db == nil {
		return nil
	}
	p.ownsDB = false
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Config returns the platform configuration.
func (p *Platform) Config() *Config { return p.config }

// Handler returns the HTTP handler serving health, admin and MCP routes.
func (p *Platform) Handler() http.Handler { return p.handler }

// Manager returns the session manager.
func (p *Platform) Manager() *pagination.Manager { return p.manager }

// Health returns the readiness checker.
func (p *Platform) Health() *health.Checker { return p.health }
