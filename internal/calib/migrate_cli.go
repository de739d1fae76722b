package calib

import (
	"fmt"
	"os"

	"github.com/banshee-data/camerad/internal/monitoring"
)

// RunMigrateCommand handles the 'migrate' subcommand dispatching.
func RunMigrateCommand(args []string, dbPath, migrationsDir string) {
	if len(args) < 1 {
		PrintMigrateHelp()
		os.Exit(1)
	}

	action := args[0]

	// Open without schema initialization: migrations manage the schema.
	store, err := OpenBare(dbPath)
	if err != nil {
		monitoring.Logf("Failed to connect to database: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	switch action {
	case "up":
		monitoring.Logf("Running migrations...")
		if err := store.MigrateUp(migrationsDir); err != nil {
			monitoring.Logf("Migration up failed: %v", err)
			os.Exit(1)
		}
		monitoring.Logf("All migrations applied successfully")
		printVersion(store, migrationsDir)

	case "down":
		monitoring.Logf("Rolling back one migration...")
		if err := store.MigrateDown(migrationsDir); err != nil {
			monitoring.Logf("Migration down failed: %v", err)
			os.Exit(1)
		}
		monitoring.Logf("Migration rolled back successfully")
		printVersion(store, migrationsDir)

	case "status":
		version, dirty, err := store.MigrateVersion(migrationsDir)
		if err != nil {
			monitoring.Logf("Failed to get migration status: %v", err)
			os.Exit(1)
		}
		latest, latestErr := GetLatestMigrationVersion(migrationsDir)

		fmt.Println("=== Migration Status ===")
		fmt.Printf("Current version: %d\n", version)
		fmt.Printf("Dirty: %v\n", dirty)
		if latestErr == nil {
			fmt.Printf("Latest available: %d\n", latest)
		}
		if dirty {
			fmt.Println()
			fmt.Println("WARNING: database is in a dirty state. A migration failed")
			fmt.Println("mid-execution; inspect the database, fix any issues, then run:")
			fmt.Println("  camerad migrate force <version>")
		}

	case "version":
		if len(args) < 2 {
			monitoring.Logf("Usage: camerad migrate version <version_number>")
			os.Exit(1)
		}
		var target uint
		if _, err := fmt.Sscanf(args[1], "%d", &target); err != nil {
			monitoring.Logf("Invalid version number: %s", args[1])
			os.Exit(1)
		}
		monitoring.Logf("Migrating to version %d...", target)
		if err := store.MigrateTo(migrationsDir, target); err != nil {
			monitoring.Logf("Migration to version %d failed: %v", target, err)
			os.Exit(1)
		}
		monitoring.Logf("Migrated to version %d successfully", target)

	case "force":
		if len(args) < 2 {
			monitoring.Logf("Usage: camerad migrate force <version_number>")
			os.Exit(1)
		}
		var target int
		if _, err := fmt.Sscanf(args[1], "%d", &target); err != nil {
			monitoring.Logf("Invalid version number: %s", args[1])
			os.Exit(1)
		}
		fmt.Printf("WARNING: forcing migration version to %d\n", target)
		fmt.Println("This should only be used to recover from a dirty migration state.")
		fmt.Print("Continue? [y/N]: ")

		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			monitoring.Logf("Aborted")
			os.Exit(0)
		}
		if err := store.MigrateForce(migrationsDir, target); err != nil {
			monitoring.Logf("Force migration failed: %v", err)
			os.Exit(1)
		}
		monitoring.Logf("Migration version forced to %d", target)

	case "baseline":
		if len(args) < 2 {
			monitoring.Logf("Usage: camerad migrate baseline <version_number>")
			os.Exit(1)
		}
		var target uint
		if _, err := fmt.Sscanf(args[1], "%d", &target); err != nil {
			monitoring.Logf("Invalid version number: %s", args[1])
			os.Exit(1)
		}
		monitoring.Logf("Baselining database at version %d...", target)
		if err := store.BaselineAtVersion(target); err != nil {
			monitoring.Logf("Baseline failed: %v", err)
			os.Exit(1)
		}
		monitoring.Logf("Database baselined at version %d", target)

	case "help":
		PrintMigrateHelp()

	default:
		fmt.Printf("Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp()
		os.Exit(1)
	}
}

func printVersion(store *Store, migrationsDir string) {
	version, dirty, _ := store.MigrateVersion(migrationsDir)
	monitoring.Logf("Current version: %d (dirty: %v)", version, dirty)
}

// PrintMigrateHelp displays the help message for the migrate command.
func PrintMigrateHelp() {
	fmt.Println("Calibration Database Migration Commands")
	fmt.Println()
	fmt.Println("Usage: camerad migrate <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up              Apply all pending migrations")
	fmt.Println("  down            Rollback one migration")
	fmt.Println("  status          Show current migration status and version")
	fmt.Println("  version <N>     Migrate to specific version N")
	fmt.Println("  force <N>       Force migration version to N (recovery only)")
	fmt.Println("  baseline <N>    Set migration version to N without running migrations")
	fmt.Println("  help            Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  camerad migrate up")
	fmt.Println("  camerad migrate status")
	fmt.Println("  camerad migrate baseline 2")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -calib-db <path>      Path to database file (default: calibration.db)")
	fmt.Println("  -migrations <path>    Path to migrations directory (default: internal/calib/migrations)")
}
