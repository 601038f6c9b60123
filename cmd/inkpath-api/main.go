package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/inkpath/backend/internal/accounts"
	"github.com/inkpath/backend/internal/auth"
	"github.com/inkpath/backend/internal/authoring"
	"github.com/inkpath/backend/internal/config"
	"github.com/inkpath/backend/internal/database"
	"github.com/inkpath/backend/internal/identifier"
	"github.com/inkpath/backend/internal/logging"
	"github.com/inkpath/backend/internal/server"
	"github.com/inkpath/backend/internal/stories"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "inkpath-api",
		Short: "Inkpath branching stories backend service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	var revoke bool
	promoteCmd := &cobra.Command{
		Use:   "promote-admin <username>",
		Short: "Grant or revoke the admin flag of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPromoteAdmin(cmd.Context(), args[0], !revoke)
		},
	}
	promoteCmd.Flags().BoolVar(&revoke, "revoke", false, "Clear the admin flag instead of setting it")

	rootCmd.AddCommand(serveCmd, promoteCmd)
	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("environment", defaults.GetString("app.environment"), "Runtime environment (development, production)")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Persistence backend (sqlite, mongo)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("mongo-uri", "", "MongoDB connection URI")
	cmd.PersistentFlags().String("mongo-database", defaults.GetString("mongo.database"), "MongoDB database name")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Token signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "app.environment", "environment")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "mongo.uri", "mongo-uri")
	bindFlag(cmd, "mongo.database", "mongo-database")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

// storeSet holds the backend-specific stores and releases their connections.
type storeSet struct {
	accounts accounts.Store
	stories  stories.Store
	close    func() error
}

func openStores(ctx context.Context, appConfig config.AppConfig, logger *zap.Logger) (storeSet, error) {
	switch appConfig.DatabaseDriver {
	case config.DriverMongo:
		client, db, err := database.OpenMongo(ctx, appConfig.MongoURI, appConfig.MongoDatabase, logger)
		if err != nil {
			return storeSet{}, err
		}
		return storeSet{
			accounts: accounts.NewMongoStore(db, time.Now),
			stories:  stories.NewMongoStore(db, time.Now),
			close: func() error {
				disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return client.Disconnect(disconnectCtx)
			},
		}, nil
	case config.DriverSQLite:
		db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
		if err != nil {
			return storeSet{}, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return storeSet{}, err
		}
		return storeSet{
			accounts: accounts.NewGormStore(db),
			stories:  stories.NewGormStore(db),
			close:    sqlDB.Close,
		}, nil
	default:
		return storeSet{}, fmt.Errorf("unsupported database driver %q", appConfig.DatabaseDriver)
	}
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.Environment)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if appConfig.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	stores, err := openStores(ctx, appConfig, logger)
	if err != nil {
		return err
	}
	defer stores.close() //nolint:errcheck

	tokenManager, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        appConfig.TokenIssuer,
		Audience:      appConfig.TokenAudience,
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}

	ids := identifier.NewUUIDProvider()
	accountService, err := accounts.NewService(accounts.ServiceConfig{
		Store:      stores.accounts,
		IDProvider: ids,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	storyService, err := stories.NewService(stories.ServiceConfig{
		Store:  stores.stories,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	authoringService, err := authoring.NewService(authoring.ServiceConfig{
		Accounts:   stores.accounts,
		Stories:    stores.stories,
		IDProvider: ids,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenManager: tokenManager,
		Accounts:     accountService,
		Stories:      storyService,
		Authoring:    authoringService,
		Logger:       logger,
		ExposeStacks: !appConfig.IsProduction(),
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("environment", appConfig.Environment),
			zap.String("database_driver", appConfig.DatabaseDriver))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runPromoteAdmin(ctx context.Context, username string, admin bool) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.Environment)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	stores, err := openStores(ctx, appConfig, logger)
	if err != nil {
		return err
	}
	defer stores.close() //nolint:errcheck

	accountService, err := accounts.NewService(accounts.ServiceConfig{
		Store:      stores.accounts,
		IDProvider: identifier.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	account, err := accountService.PromoteAdmin(ctx, username, admin)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "%s admin=%t\n", account.Username, account.Admin)
	return nil
}
