// SmartThings NG - SmartThings cloud bridge daemon
//
// This is the main entry point for the smartthingsng daemon. It connects a
// SmartThings SmartApp installation to local consumers:
//   - MQTT entity presentation (Home Assistant discovery convention)
//   - REST API and WebSocket hub for UI clients
//   - Optional InfluxDB attribute history
//
// The SmartThings cloud pushes device events to the webhook endpoint; the
// broker keeps per-device status snapshots and fans updates out to the
// presenters.
//
// The migrate subcommand (up, down, status) runs schema maintenance against
// the configured database without starting the daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/DSorlov/smartthingsng/migrations"

	"github.com/google/uuid"
	smartthings "github.com/tj-smith47/smartthings-go"

	"github.com/DSorlov/smartthingsng/internal/api"
	"github.com/DSorlov/smartthingsng/internal/broker"
	"github.com/DSorlov/smartthingsng/internal/entity"
	"github.com/DSorlov/smartthingsng/internal/infrastructure/config"
	"github.com/DSorlov/smartthingsng/internal/infrastructure/database"
	"github.com/DSorlov/smartthingsng/internal/infrastructure/influxdb"
	"github.com/DSorlov/smartthingsng/internal/infrastructure/logging"
	"github.com/DSorlov/smartthingsng/internal/infrastructure/mqtt"
	"github.com/DSorlov/smartthingsng/internal/installation"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// "smartthingsng migrate [up|down|status]" runs schema maintenance
	// against the configured database instead of starting the daemon.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		action := ""
		if len(os.Args) > 2 {
			action = os.Args[2]
		}
		if err := runMigrate(ctx, action); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting SmartThings NG",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Installation store, seeded from config on first boot
	repo := installation.NewSQLiteRepository(db.DB)
	if err := seedInstallation(ctx, repo, cfg, log); err != nil {
		return fmt.Errorf("seeding installation: %w", err)
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT presentation disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start the API server before setup so the webhook endpoint can answer
	// PING and CONFIRMATION lifecycles while the installation comes online.
	srv, err := api.New(api.Deps{
		Config:        cfg.API,
		WS:            cfg.WebSocket,
		Security:      cfg.Security,
		SmartThings:   cfg.SmartThings,
		Logger:        log,
		Installations: repo,
		Version:       version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Bring the installation online, retrying until it succeeds or the
	// daemon is stopped.
	b, err := setupLoop(ctx, cfg, repo, influxClient, log)
	if err != nil {
		return err
	}

	b.Connect(ctx)
	defer b.Disconnect()
	srv.SetBroker(b)

	// Present entities over MQTT
	if mqttClient != nil {
		presenter := entity.NewPresenter(mqttClient, b, entity.Platforms(), log)
		if err := presenter.Start(ctx); err != nil {
			return fmt.Errorf("starting MQTT presenter: %w", err)
		}
		defer presenter.Stop()
		log.Info("MQTT presenter started", "entities", presenter.EntityCount())
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. MQTT presenter
	// 2. Broker
	// 3. API server
	// 4. InfluxDB (if enabled)
	// 5. MQTT (if enabled)
	// 6. Database

	log.Info("SmartThings NG stopped")
	return nil
}

// seedInstallation creates an installation record from config on first boot.
// Later boots, and installations onboarded through the webhook INSTALL
// lifecycle, leave the stored record authoritative.
func seedInstallation(ctx context.Context, repo installation.Repository, cfg *config.Config, log *logging.Logger) error {
	st := cfg.SmartThings
	if st.InstalledAppID == "" || st.RefreshToken == "" {
		return nil
	}

	_, err := repo.GetByInstalledAppID(ctx, st.InstalledAppID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, installation.ErrNotFound) {
		return err
	}

	inst := &installation.Installation{
		ID:             uuid.NewString(),
		AppID:          st.AppID,
		InstalledAppID: st.InstalledAppID,
		LocationID:     st.LocationID,
		RefreshToken:   st.RefreshToken,
	}
	if createErr := repo.Create(ctx, inst); createErr != nil {
		return createErr
	}
	log.Info("installation seeded from config", "installed_app_id", st.InstalledAppID)
	return nil
}

// loadInstallation picks the installation to bring online: the one named in
// config when set, otherwise the first stored record.
func loadInstallation(ctx context.Context, repo installation.Repository, cfg *config.Config) (*installation.Installation, error) {
	if id := cfg.SmartThings.InstalledAppID; id != "" {
		return repo.GetByInstalledAppID(ctx, id)
	}

	list, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, installation.ErrNotFound
	}
	return &list[0], nil
}

// setupLoop attempts installation setup until it succeeds, retrying with the
// configured delay. Revoked credentials remove the stored installation; the
// loop then waits for re-onboarding through the webhook INSTALL lifecycle.
func setupLoop(ctx context.Context, cfg *config.Config, repo installation.Repository, recorder *influxdb.Client, log *logging.Logger) (*broker.DeviceBroker, error) {
	oauth := &smartthings.OAuthConfig{
		ClientID:     cfg.SmartThings.ClientID,
		ClientSecret: cfg.SmartThings.ClientSecret,
	}

	retryDelay := cfg.GetSetupRetryDelay()
	for {
		b, err := attemptSetup(ctx, cfg, repo, oauth, recorder, log)
		if err == nil {
			return b, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		switch {
		case errors.Is(err, installation.ErrNotFound), errors.Is(err, installation.ErrNoTokens):
			log.Info("no usable installation stored; waiting for webhook onboarding",
				"retry_in", retryDelay)
		case errors.Is(err, broker.ErrAuthRevoked):
			log.Error("installation authorization revoked; re-onboard through the SmartApp",
				"retry_in", retryDelay)
		default:
			log.Warn("installation setup failed, will retry",
				"error", err, "retry_in", retryDelay)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}

// attemptSetup runs one setup pass: load the stored installation, rotate its
// token pair through the installation token store, and hand over to the
// broker's setup sequence.
func attemptSetup(ctx context.Context, cfg *config.Config, repo installation.Repository, oauth *smartthings.OAuthConfig, recorder *influxdb.Client, log *logging.Logger) (*broker.DeviceBroker, error) {
	inst, err := loadInstallation(ctx, repo, cfg)
	if err != nil {
		return nil, err
	}

	// Rotate tokens up front so setup always starts with a live access
	// token; a stored one has usually expired across restarts.
	store := installation.NewTokenStore(repo, inst.InstalledAppID)
	resp, err := rotateTokens(ctx, store, oauth, smartthings.RefreshTokens)
	if err != nil {
		return nil, err
	}

	client, err := smartthings.NewClient(resp.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating SmartThings client: %w", err)
	}

	params := broker.SetupParams{
		API:                  client,
		Store:                repo,
		OAuth:                oauth,
		Platforms:            entity.BrokerPlatforms(entity.Platforms()),
		Logger:               log,
		AppID:                inst.AppID,
		InstalledAppID:       inst.InstalledAppID,
		LocationID:           inst.LocationID,
		RefreshToken:         resp.RefreshToken,
		TokenRefreshInterval: cfg.GetTokenRefreshInterval(),
	}
	if recorder != nil {
		params.Recorder = recorder
	}

	return broker.Setup(ctx, params)
}

// refreshFunc matches smartthings.RefreshTokens.
type refreshFunc func(ctx context.Context, cfg *smartthings.OAuthConfig, refreshToken string) (*smartthings.TokenResponse, error)

// rotateTokens loads the stored token pair through the token store,
// exchanges the refresh token for a new pair, and persists the rotated
// pair before returning it.
func rotateTokens(ctx context.Context, store *installation.TokenStore, oauth *smartthings.OAuthConfig, refresh refreshFunc) (*smartthings.TokenResponse, error) {
	stored, err := store.LoadTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading stored tokens: %w", err)
	}

	resp, err := refresh(ctx, oauth, stored.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("refreshing tokens: %w", err)
	}

	if err := store.SaveTokens(ctx, resp); err != nil {
		return nil, fmt.Errorf("persisting rotated tokens: %w", err)
	}
	return resp, nil
}

// runMigrate opens the configured database and applies one schema
// maintenance action.
func runMigrate(ctx context.Context, action string) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Read-mostly maintenance path

	return applyMigrateAction(ctx, db, action, os.Stdout)
}

// applyMigrateAction dispatches a migrate subcommand action. An empty
// action applies pending migrations.
func applyMigrateAction(ctx context.Context, db *database.DB, action string, out io.Writer) error {
	switch action {
	case "", "up":
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "migrations applied")
		return nil
	case "down":
		if err := db.MigrateDown(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "rolled back most recent migration")
		return nil
	case "status":
		applied, pending, err := db.GetMigrationStatus(ctx)
		if err != nil {
			return err
		}
		for _, m := range applied {
			fmt.Fprintf(out, "applied  %s  %s\n", m.Version, m.AppliedAt.Format(time.RFC3339))
		}
		for _, m := range pending {
			fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
		}
		if len(applied)+len(pending) == 0 {
			fmt.Fprintln(out, "no migrations")
		}
		return nil
	default:
		return fmt.Errorf("unknown migrate action %q (want up, down or status)", action)
	}
}

// getConfigPath returns the configuration file path.
// Uses SMARTTHINGSNG_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SMARTTHINGSNG_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
