package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"riddlehunt/internal/config"
	"riddlehunt/internal/database"
	"riddlehunt/internal/logging"
	"riddlehunt/internal/models"
	"riddlehunt/internal/service"
)

func main() {
	// Define subcommands
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	resetCmd := flag.NewFlagSet("reset-period", flag.ExitOnError)

	exportOutput := exportCmd.String("output", "", "Output file path (default: backup_YYYYMMDD_HHMMSS.json)")

	importInput := importCmd.String("input", "", "Input file path (required)")
	importClear := importCmd.Bool("clear", false, "Clear existing game state before import (WARNING: destructive)")
	importYes := importCmd.Bool("yes", false, "Skip the confirmation prompt for -clear")

	resetPeriod := resetCmd.String("period", "", "Period to reset: week or month (required)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		db := openDatabase(ctx, cfg, logger)
		defer db.Close()
		handleExport(ctx, service.NewBackupService(db, logger), *exportOutput, logger)

	case "import":
		importCmd.Parse(os.Args[2:])
		if *importInput == "" {
			fmt.Fprintln(os.Stderr, "Error: -input flag is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		if *importClear && !*importYes && !confirm("WARNING: This will delete all existing game state. Type 'yes' to confirm: ") {
			logger.Info().Msg("import cancelled")
			return
		}
		db := openDatabase(ctx, cfg, logger)
		defer db.Close()
		handleImport(ctx, service.NewBackupService(db, logger), *importInput, *importClear, logger)

	case "reset-period":
		resetCmd.Parse(os.Args[2:])
		period, err := models.ParsePeriod(*resetPeriod)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error: -period must be week or month")
			resetCmd.PrintDefaults()
			os.Exit(1)
		}
		db := openDatabase(ctx, cfg, logger)
		defer db.Close()
		handleReset(ctx, service.NewLeaderboardService(db, logger), period, logger)

	default:
		printUsage()
		os.Exit(1)
	}
}

// openDatabase connects and brings the schema up to date
func openDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *database.DB {
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}
	if _, err := db.RunMigrations(ctx); err != nil {
		db.Close()
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}
	return db
}

func handleExport(ctx context.Context, backups *service.BackupService, outputPath string, logger zerolog.Logger) {
	// Generate default filename if not provided
	if outputPath == "" {
		outputPath = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
	}

	if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal().Err(err).Str("dir", dir).Msg("failed to create output directory")
		}
	}

	if _, err := backups.Export(ctx, outputPath); err != nil {
		logger.Fatal().Err(err).Msg("export failed")
	}

	if info, err := os.Stat(outputPath); err == nil {
		logger.Info().Str("path", outputPath).Int64("bytes", info.Size()).Msg("export complete")
	}
}

func handleImport(ctx context.Context, backups *service.BackupService, inputPath string, clearExisting bool, logger zerolog.Logger) {
	if _, err := os.Stat(inputPath); err != nil {
		logger.Fatal().Err(err).Str("path", inputPath).Msg("cannot read input file")
	}

	if err := backups.Import(ctx, inputPath, clearExisting); err != nil {
		logger.Fatal().Err(err).Msg("import failed")
	}
	logger.Info().Str("path", inputPath).Bool("cleared", clearExisting).Msg("import complete")
}

func handleReset(ctx context.Context, leaderboard *service.LeaderboardService, period models.Period, logger zerolog.Logger) {
	removed, err := leaderboard.ResetPeriod(ctx, period)
	if err != nil {
		logger.Fatal().Err(err).Str("period", string(period)).Msg("reset failed")
	}
	logger.Info().Str("period", string(period)).Int64("removed", removed).Msg("period reset complete")
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(answer) == "yes"
}

func printUsage() {
	fmt.Println("Riddlehunt maintenance tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  backup export [options]         Export game state to a JSON file")
	fmt.Println("  backup import [options]         Import game state from a JSON file")
	fmt.Println("  backup reset-period [options]   Clear a leaderboard period")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -output <file>    Output file path (default: backup_YYYYMMDD_HHMMSS.json)")
	fmt.Println()
	fmt.Println("Import Options:")
	fmt.Println("  -input <file>     Input file path (required)")
	fmt.Println("  -clear            Clear existing game state before import (WARNING: destructive)")
	fmt.Println("  -yes              Do not prompt before clearing")
	fmt.Println()
	fmt.Println("Reset Options:")
	fmt.Println("  -period <name>    week or month")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DB_TYPE          Database type: sqlite, postgres, or mysql (default: sqlite)")
	fmt.Println("  DB_PATH          SQLite database path (default: ./riddlehunt.db)")
	fmt.Println("  DATABASE_URL     PostgreSQL or MySQL connection URL")
}
