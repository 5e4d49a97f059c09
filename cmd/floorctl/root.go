package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/floor-allocation/internal/config"
	"github.com/iliyamo/floor-allocation/internal/database"
	"github.com/iliyamo/floor-allocation/internal/floor"
)

var (
	// Global flags
	verbose     bool
	jsonOut     bool
	floorConfig string
)

var rootCmd = &cobra.Command{
	Use:   "floorctl",
	Short: "Administer the donation floor inventory",
	Long: `floorctl manages the floor cell inventory behind the allocation API.
It creates the schema, seeds the grid, reports occupancy, repairs
orphaned cells and mints operator tokens.

Database settings come from the same environment variables as the
server (DB_DRIVER, SQLITE_PATH, DB_HOST, ...); a .env file is honoured.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&floorConfig, "floor-config", "", "Floor layout YAML (defaults to $FLOOR_CONFIG, then built-in)")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env bundles what every database command needs.
type env struct {
	db      *sql.DB
	dialect database.Dialect
	svc     *floor.Service
	log     *zap.Logger
}

func (e *env) Close() {
	_ = e.log.Sync()
	_ = e.db.Close()
}

// openEnv connects to the configured store, migrates it and builds the
// floor service.
func openEnv(ctx context.Context) (*env, error) {
	cfg := config.LoadStore()
	if floorConfig != "" {
		cfg.FloorConfig = floorConfig
	}
	fc, err := config.LoadFloorConfig(cfg.FloorConfig)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	db, d, err := database.OpenConfigured(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}
	if err := database.Migrate(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, err
	}
	svc := floor.NewService(db, d, fc, floor.WithLogger(logger))
	return &env{db: db, dialect: d, svc: svc, log: logger}, nil
}

func newLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zc.Build()
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
