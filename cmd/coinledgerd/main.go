package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/MarkoPoloResearchLab/coinledger/internal/catalog"
	"github.com/MarkoPoloResearchLab/coinledger/internal/httpserver"
	"github.com/MarkoPoloResearchLab/coinledger/internal/identity"
	"github.com/MarkoPoloResearchLab/coinledger/internal/metrics"
	"github.com/MarkoPoloResearchLab/coinledger/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/coinledger/pkg/coinledger"
	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	flagDatabaseURL    = "database-url"
	flagListenAddr     = "listen-addr"
	flagJWTSigningKey  = "jwt-signing-key"
	flagJWTIssuer      = "jwt-issuer"
	flagCatalogPath    = "catalog-path"
	flagAdminIDs       = "admin-ids"
	flagAllowedOrigins = "allowed-origins"

	configKeyDatabaseURL    = "database_url"
	configKeyListenAddr     = "listen_addr"
	configKeyJWTSigningKey  = "jwt_signing_key"
	configKeyJWTIssuer      = "jwt_issuer"
	configKeyCatalogPath    = "catalog_path"
	configKeyAdminIDs       = "admin_ids"
	configKeyAllowedOrigins = "allowed_origins"

	defaultDatabaseURL = "sqlite:///tmp/coinledger.db"
	defaultListenAddr  = ":8080"
)

type runtimeConfig struct {
	DatabaseURL    string
	ListenAddr     string
	JWTSigningKey  string
	JWTIssuer      string
	CatalogPath    string
	AdminIDs       []string
	AllowedOrigins []string
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "coinledgerd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "coinledgerd",
		Short:         "Coin ledger HTTP server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL or SQLite connection string")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.Flags().String(flagJWTSigningKey, "", "HS256 signing key for bearer tokens")
	cmd.Flags().String(flagJWTIssuer, "coinledger", "Expected JWT issuer")
	cmd.Flags().String(flagCatalogPath, "", "Path to a coin package catalog file (built-in catalog when empty)")
	cmd.Flags().String(flagAdminIDs, "", "Comma-delimited admin user ids")
	cmd.Flags().String(flagAllowedOrigins, "", "Comma-delimited CORS origins")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	bindings := map[string]string{
		configKeyDatabaseURL:    "DATABASE_URL",
		configKeyListenAddr:     "LISTEN_ADDR",
		configKeyJWTSigningKey:  "JWT_SIGNING_KEY",
		configKeyJWTIssuer:      "JWT_ISSUER",
		configKeyCatalogPath:    "CATALOG_PATH",
		configKeyAdminIDs:       "ADMIN_IDS",
		configKeyAllowedOrigins: "ALLOWED_ORIGINS",
	}
	for configKey, envName := range bindings {
		if err := viper.BindEnv(configKey, envName); err != nil {
			return err
		}
	}
	flags := map[string]string{
		configKeyDatabaseURL:    flagDatabaseURL,
		configKeyListenAddr:     flagListenAddr,
		configKeyJWTSigningKey:  flagJWTSigningKey,
		configKeyJWTIssuer:      flagJWTIssuer,
		configKeyCatalogPath:    flagCatalogPath,
		configKeyAdminIDs:       flagAdminIDs,
		configKeyAllowedOrigins: flagAllowedOrigins,
	}
	for configKey, flagName := range flags {
		if err := viper.BindPFlag(configKey, cmd.Flags().Lookup(flagName)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	cfg.JWTSigningKey = viper.GetString(configKeyJWTSigningKey)
	cfg.JWTIssuer = viper.GetString(configKeyJWTIssuer)
	cfg.CatalogPath = viper.GetString(configKeyCatalogPath)
	cfg.AdminIDs = splitList(viper.GetString(configKeyAdminIDs))
	cfg.AllowedOrigins = httpserver.ParseAllowedOrigins(viper.GetString(configKeyAllowedOrigins))

	if cfg.JWTSigningKey == "" {
		return fmt.Errorf("jwt signing key is required")
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer cleanup()

	store := gormstore.New(gormDB)
	if err := store.Migrate(); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	packageCatalog, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("catalog load: %w", err)
	}
	directory := identity.NewDirectory(cfg.AdminIDs, nil)

	clock := func() time.Time { return time.Now().UTC() }
	service, err := coinledger.NewService(store, packageCatalog, directory, clock,
		coinledger.WithOperationLogger(&operationObserver{logger: logger}))
	if err != nil {
		return fmt.Errorf("service init: %w", err)
	}

	serverConfig := httpserver.Config{
		ListenAddr:     cfg.ListenAddr,
		AllowedOrigins: cfg.AllowedOrigins,
		JWTSigningKey:  cfg.JWTSigningKey,
		JWTIssuer:      cfg.JWTIssuer,
	}
	if err := serverConfig.Validate(); err != nil {
		return err
	}
	return httpserver.Run(ctx, serverConfig, service, logger)
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(path)
}

// operationObserver fans domain operation events out to zap and prometheus.
type operationObserver struct {
	logger *zap.Logger
}

func (observer *operationObserver) LogOperation(ctx context.Context, entry coinledger.OperationLog) {
	metrics.RecordOperation(entry.Operation, entry.Status)
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
		zap.String("user_id", entry.UserID),
		zap.Int64("amount", entry.Amount),
	}
	if entry.CounterpartyID != "" {
		fields = append(fields, zap.String("counterparty_id", entry.CounterpartyID))
	}
	if entry.RequestID != "" {
		fields = append(fields, zap.String("request_id", entry.RequestID))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
		observer.logger.Warn("ledger operation failed", fields...)
		return
	}
	observer.logger.Info("ledger operation", fields...)
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, err
	}

	var db *gorm.DB
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), &gorm.Config{})
	default:
		return nil, nil, fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		parsed, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := parsed.Path
		if path == "" {
			path = parsed.Host
		}
		if path == "" || path == "/" {
			path = "coinledger.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
