package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/MarcoPoloResearchLab/podium/internal/config"
	"github.com/MarcoPoloResearchLab/podium/internal/database"
	"github.com/MarcoPoloResearchLab/podium/internal/logging"
	"github.com/MarcoPoloResearchLab/podium/internal/voting"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// application holds the configuration shared by every command of one invocation.
type application struct {
	viper   *viper.Viper
	cfgFile string
	envFile string
}

func newRootCommand() *cobra.Command {
	app := &application{viper: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:               "podium",
		Short:             "Podium voting service",
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.initConfig()
		},
	}

	app.setupFlags(rootCmd)

	rootCmd.AddCommand(
		newServeCommand(app),
		newMigrateCommand(app),
		newCategoryCommand(app),
		newCompetitorCommand(app),
		newVoteCommand(app),
		newResultsCommand(app),
		newWinnerCommand(app),
	)
	return rootCmd
}

func (app *application) setupFlags(cmd *cobra.Command) {
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&app.cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&app.envFile, "env-file", ".env", "Path to a dotenv file loaded before reading the environment")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (postgres, sqlite)")
	cmd.PersistentFlags().String("database-dsn", "", "Database connection descriptor (overrides PODIUM_DATABASE_DSN and DATABASE_URL)")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")

	app.bindFlag(cmd, "http.address", "http-address")
	app.bindFlag(cmd, "database.driver", "database-driver")
	app.bindFlag(cmd, "database.dsn", "database-dsn")
	app.bindFlag(cmd, "log.level", "log-level")
}

func (app *application) bindFlag(cmd *cobra.Command, key, flag string) {
	if err := app.viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func (app *application) initConfig() error {
	if err := config.LoadDotEnv(app.envFile); err != nil {
		return err
	}
	if app.cfgFile == "" {
		return nil
	}
	app.viper.SetConfigFile(app.cfgFile)
	if err := app.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", app.cfgFile, err)
	}
	return nil
}

// services bundles what a command needs for one invocation.
type services struct {
	config     config.AppConfig
	logger     *zap.Logger
	db         *gorm.DB
	repository *voting.Repository
	tallies    *voting.TallyEngine
}

// open loads configuration, connects to the store and wires the voting services.
func (app *application) open() (*services, func(), error) {
	appConfig, err := config.Load(app.viper)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	db, err := database.Open(database.Options{
		Driver: appConfig.DatabaseDriver,
		DSN:    appConfig.DatabaseDSN,
	}, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	cleanup := func() {
		_ = sqlDB.Close()
		_ = logger.Sync()
	}

	repository, err := voting.NewRepository(voting.RepositoryConfig{Database: db, Logger: logger})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	tallies, err := voting.NewTallyEngine(voting.TallyEngineConfig{Database: db, Logger: logger})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return &services{
		config:     appConfig,
		logger:     logger,
		db:         db,
		repository: repository,
		tallies:    tallies,
	}, cleanup, nil
}

// withServices opens the services, runs fn and reports rejections as warnings. Warnings
// leave the store unchanged and do not fail the command.
func (app *application) withServices(cmd *cobra.Command, fn func(ctx context.Context, rt *services, out io.Writer) error) error {
	rt, cleanup, err := app.open()
	if err != nil {
		return err
	}
	defer cleanup()

	err = fn(cmd.Context(), rt, cmd.OutOrStdout())
	if err != nil && voting.IsWarning(err) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", voting.ErrorMessage(err))
		return nil
	}
	return err
}
