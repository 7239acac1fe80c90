package main

import (
	"context"
	"errors"
	"log"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/ammar0144/docs4go/pkg/config"
	"github.com/ammar0144/docs4go/pkg/db"
)

var (
	configFlag string
	manager    *db.Manager
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Schema migration tool for the docs4go MySQL document store",
	Long: `Schema migration tool for the docs4go MySQL document store.
Applies the embedded documents table migrations using golang-migrate.
Connection settings come from the config file and DOCS4GO_DATABASE_* variables.`,
	PersistentPreRun:  setupDatabase,
	PersistentPostRun: closeDatabase,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Run:   runUp,
}

var downCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Rollback migrations",
	Long:  `Rollback the specified number of migrations (default: 1).`,
	Args:  cobra.MaximumNArgs(1),
	Run:   runDown,
}

var gotoCmd = &cobra.Command{
	Use:   "goto <version>",
	Short: "Migrate to a specific version",
	Args:  cobra.ExactArgs(1),
	Run:   runGoto,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show current migration version",
	Run:   runVersion,
}

var forceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Force set migration version (use with caution)",
	Long:  `Force set the migration version without running migrations. Use with caution.`,
	Args:  cobra.ExactArgs(1),
	Run:   runForce,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to a docs4go YAML config file")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
	rootCmd.AddCommand(gotoCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(forceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Failed to execute command: %v", err)
	}
}

func setupDatabase(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	manager, err = db.NewManager(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := manager.Ping(context.Background()); err != nil {
		_ = manager.Close()
		log.Fatalf("Failed to reach database: %v", err)
	}

	dbConfig := manager.Config()
	log.Printf("Connected to database: %s@%s:%d/%s",
		dbConfig.Username,
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.Database)
}

func closeDatabase(cmd *cobra.Command, args []string) {
	if manager != nil {
		_ = manager.Close()
	}
}

func newMigrator() *migrate.Migrate {
	m, err := db.NewMigrator(manager)
	if err != nil {
		log.Fatalf("Failed to create migrate instance: %v", err)
	}
	return m
}

func runUp(cmd *cobra.Command, args []string) {
	m := newMigrator()

	err := m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Migration up failed: %v", err)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		log.Println("No migrations to apply")
	} else {
		log.Println("Migration up completed successfully")
	}
}

func runDown(cmd *cobra.Command, args []string) {
	steps := 1 // Default: rollback 1 migration
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			log.Fatalf("Invalid step count %q", args[0])
		}
		steps = n
	}

	m := newMigrator()

	err := m.Steps(-steps)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Migration down failed: %v", err)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		log.Println("No migrations to rollback")
	} else {
		log.Printf("Migration down completed successfully (rolled back %d migration(s))", steps)
	}
}

func runGoto(cmd *cobra.Command, args []string) {
	version, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		log.Fatalf("Invalid version %q", args[0])
	}

	m := newMigrator()

	err = m.Migrate(uint(version))
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Migration goto failed: %v", err)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		log.Printf("Already at version %d", version)
	} else {
		log.Printf("Migration goto %d completed successfully", version)
	}
}

func runVersion(cmd *cobra.Command, args []string) {
	m := newMigrator()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		log.Println("Current version: No migrations applied yet")
		return
	}
	if err != nil {
		log.Fatalf("Failed to get version: %v", err)
	}

	if dirty {
		log.Printf("Current version: %d (dirty - migration may have failed)", version)
	} else {
		log.Printf("Current version: %d", version)
	}
}

func runForce(cmd *cobra.Command, args []string) {
	version, err := strconv.Atoi(args[0])
	if err != nil {
		log.Fatalf("Invalid version %q", args[0])
	}

	m := newMigrator()

	if err := m.Force(version); err != nil {
		log.Fatalf("Migration force failed: %v", err)
	}

	log.Printf("Migration forced to version %d", version)
}
