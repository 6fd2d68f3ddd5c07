// Package server wires the nosuite backend: bootstrap gate, credential
// store, token service, storage engine, realtime hub, optional S3 replica
// and allow-list database, then runs the HTTP and gRPC health servers until
// a signal arrives.
package server

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/nosuite/internal/cryptox"
	"github.com/dmitrijs2005/nosuite/internal/logging"
	"github.com/dmitrijs2005/nosuite/internal/server/auth"
	"github.com/dmitrijs2005/nosuite/internal/server/bootstrap"
	"github.com/dmitrijs2005/nosuite/internal/server/config"
	"github.com/dmitrijs2005/nosuite/internal/server/credentials"
	"github.com/dmitrijs2005/nosuite/internal/server/httpapi"
	"github.com/dmitrijs2005/nosuite/internal/server/paths"
	"github.com/dmitrijs2005/nosuite/internal/server/realtime"
	"github.com/dmitrijs2005/nosuite/internal/server/replica"
	"github.com/dmitrijs2005/nosuite/internal/server/repositories/allowlist"
	"github.com/dmitrijs2005/nosuite/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/nosuite/internal/server/services"
	"github.com/dmitrijs2005/nosuite/internal/server/storage"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/nosuite/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger

	gate       *bootstrap.Gate
	engine     *storage.Engine
	realtime   *realtime.Server
	replicator *replica.Replicator
	db         *sql.DB
	http       *httpapi.Server
	health     *gs.HealthServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.New(os.Stdout, c.LogFormat, c.LogLevel)

	var legacyIV []byte
	if c.LegacyIV != "" {
		iv, err := hex.DecodeString(c.LegacyIV)
		if err != nil {
			return nil, fmt.Errorf("legacy iv: %w", err)
		}
		legacyIV = iv
	}
	cipher, err := cryptox.NewCipher(legacyIV)
	if err != nil {
		return nil, fmt.Errorf("cipher init error: %w", err)
	}

	gate, err := bootstrap.NewGate(c.AdminDeviceID, c.AdminVerification, cipher)
	if err != nil {
		return nil, fmt.Errorf("gate init error: %w", err)
	}

	resolver, err := paths.NewResolver(c.UsersRoot)
	if err != nil {
		return nil, fmt.Errorf("users root: %w", err)
	}

	plaintext := cryptox.NewPlaintextAccounts(c.PlaintextEmails()...)
	users := credentials.NewStore(resolver, cipher, plaintext, logger)
	tokens := auth.NewTokenService(gate, users, cipher, c.AuthorizedDomain, c.EnforceDeviceBinding, logger)

	app := &App{config: c, logger: logger, gate: gate}

	allow, err := app.initAllowList(ctx, resolver)
	if err != nil {
		return nil, err
	}

	app.engine = storage.NewEngine(resolver, cipher, plaintext, c.StorageWorkers, logger)
	hub := realtime.NewHub(logger)
	app.engine.AddNotifier(hub)

	if c.S3Bucket != "" {
		client, err := replica.NewS3Client(ctx, replica.Options{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			Prefix:       c.S3Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 init error: %w", err)
		}
		app.replicator = replica.NewReplicator(client, c.S3Bucket, c.S3Prefix, resolver, logger)
		app.engine.AddNotifier(app.replicator)
	}

	authService := services.NewAuthService(gate, users, tokens, allow, c, logger)
	storageService := services.NewStorageService(gate, tokens, app.engine, logger)
	app.realtime = realtime.NewServer(hub, storageService, c.MaxMessageBytes, logger)

	api := httpapi.NewAPI(gate, authService, storageService, app.realtime, c.AuthServer, c.MaxMessageBytes, logger)
	app.http = httpapi.NewServer(c.HTTPAddr, api.Router(), logger)

	if c.HealthAddr != "" {
		app.health = gs.NewHealthServer(c.HealthAddr, logger)
		gate.OnReady(app.health.SetReady)
	}

	return app, nil
}

// initAllowList picks the allow-list backend. With a database the JSON files
// found under the users root are imported once at startup.
func (app *App) initAllowList(ctx context.Context, resolver *paths.Resolver) (allowlist.Repository, error) {
	files := allowlist.NewFileRepository(resolver.UsersRoot())
	if app.config.DatabaseDSN == "" {
		return files, nil
	}

	db, err := repomanager.Open(ctx, app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	n, err := rm.ImportAllowLists(ctx, db, files, allowlist.BetaAccess, allowlist.Testers)
	if err != nil {
		return nil, fmt.Errorf("import allow-lists: %w", err)
	}
	app.logger.Info(ctx, "allow-lists imported", "rows", n)

	return rm.AllowList(db), nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run blocks until a signal arrives or a server fails, then waits for
// every component to stop.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app... waiting for POST /start")

	app.initSignalHandler(cancelFunc)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.http.Run(ctx)
	})

	if app.health != nil {
		g.Go(func() error {
			return app.health.Run(ctx)
		})
	}

	if app.replicator != nil {
		g.Go(func() error {
			app.replicator.Run(ctx)
			return nil
		})
	}

	g.Go(func() error {
		app.engine.RunReaper(ctx, app.config.TempFileTTL/2, app.config.TempFileTTL)
		return nil
	})

	err := g.Wait()
	app.realtime.Close()
	app.realtime.Wait()

	if app.db != nil {
		if cerr := app.db.Close(); cerr != nil {
			app.logger.Error(context.Background(), "db close", "error", cerr)
		}
	}

	app.logger.Info(context.Background(), "App stopped")
	return err
}
