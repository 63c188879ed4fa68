// Package server initializes and runs the member portal server. It opens the
// relational store and the token store, runs migrations, wires the directory,
// mail and alerting collaborators into the services, and starts the HTTP
// server with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/netsoclabs/memberd/internal/logging"
	"github.com/netsoclabs/memberd/internal/server/config"
	"github.com/netsoclabs/memberd/internal/server/creds"
	"github.com/netsoclabs/memberd/internal/server/directory"
	"github.com/netsoclabs/memberd/internal/server/homedir"
	"github.com/netsoclabs/memberd/internal/server/httpapi"
	"github.com/netsoclabs/memberd/internal/server/notify"
	"github.com/netsoclabs/memberd/internal/server/repomanager"
	"github.com/netsoclabs/memberd/internal/server/repositories/tokens"
	"github.com/netsoclabs/memberd/internal/server/services"
)

type App struct {
	config       *config.Config
	logger       logging.Logger
	db           *sql.DB
	tokenDB      *sql.DB
	registration *services.RegistrationService
	login        *services.LoginService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("opening member store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging member store: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	tokenDB, err := sql.Open("sqlite", cfg.TokenDBPath)
	if err != nil {
		return nil, fmt.Errorf("opening token store: %w", err)
	}
	tokenRepo := tokens.NewSQLRepository(tokenDB, cfg.TokenTTL, logger)
	if err := tokenRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("preparing token store: %w", err)
	}

	issuer := creds.NewCryptIssuer()
	registry := directory.NewLDAPRegistry(cfg, issuer, logger)
	mailer := notify.NewSMTPMailer(cfg.SMTPAddr, cfg.MailFrom, cfg.SMTPUser, cfg.SMTPPassword)
	alerter := notify.NewWebhookAlerter(cfg.AlertWebhookURL)
	homedirs := homedir.NewSSHInitializer(cfg.SSHHost)

	registration := services.NewRegistrationService(db, rm, tokenRepo, registry, mailer, alerter, homedirs, logger, cfg)
	login := services.NewLoginService(registry, issuer, logger, cfg)

	return &App{
		config:       cfg,
		logger:       logger,
		db:           db,
		tokenDB:      tokenDB,
		registration: registration,
		login:        login,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	handler := httpapi.NewHandler(app.registration, app.login, app.logger)
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, handler, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing member store", "error", err)
	}
	if err := app.tokenDB.Close(); err != nil {
		app.logger.Error(ctx, "closing token store", "error", err)
	}
}
