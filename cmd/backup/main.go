package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"foxfamily/internal/config"
	"foxfamily/internal/models"
	"foxfamily/internal/store"
)

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	exportOutput := exportCmd.String("output", "", "Output file path (default: backup_YYYYMMDD_HHMMSS.json)")

	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importInput := importCmd.String("input", "", "Input file path (required)")
	importClear := importCmd.Bool("clear", false, "Replace existing data instead of merging (WARNING: destructive)")

	migrateCmd := flag.NewFlagSet("migrate", flag.ExitOnError)
	migrateTo := migrateCmd.String("to", "", "Target backend: file or sqlite (required)")
	migratePath := migrateCmd.String("path", "", "Target store path (default: backend default in DATA_DIR)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()
	logger := zap.NewNop()
	if cfg.Debug {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			log.Fatalf("Failed to build logger: %v", err)
		}
	}

	st, err := openStore(cfg.StoreBackend, cfg.StorePath, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		handleExport(st, *exportOutput)

	case "import":
		importCmd.Parse(os.Args[2:])
		if *importInput == "" {
			fmt.Println("Error: -input flag is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		handleImport(st, *importInput, *importClear)

	case "migrate":
		migrateCmd.Parse(os.Args[2:])
		if *migrateTo != "file" && *migrateTo != "sqlite" {
			fmt.Println("Error: -to must be \"file\" or \"sqlite\"")
			migrateCmd.PrintDefaults()
			os.Exit(1)
		}
		handleMigrate(st, cfg, *migrateTo, *migratePath, logger)

	default:
		printUsage()
		os.Exit(1)
	}
}

func openStore(backend, path string, logger *zap.Logger) (store.Store, error) {
	switch backend {
	case "file":
		return store.NewFileStore(path, logger), nil
	case "sqlite":
		return store.NewSQLiteStore(path, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func handleExport(st store.Store, outputPath string) {
	if outputPath == "" {
		outputPath = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
	}
	if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create output directory: %v", err)
		}
	}

	snap, err := st.Load()
	if err != nil {
		log.Fatalf("Failed to load snapshot: %v", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		log.Fatalf("Failed to serialize snapshot: %v", err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		log.Fatalf("Failed to write %s: %v", outputPath, err)
	}

	log.Printf("Exported %d families, %d users to %s (%d bytes)",
		len(snap.Families), len(snap.Users), outputPath, len(data))
}

func handleImport(st store.Store, inputPath string, clear bool) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", inputPath, err)
	}
	incoming := models.NewSnapshot()
	if err := json.Unmarshal(data, incoming); err != nil {
		log.Fatalf("Failed to parse %s: %v", inputPath, err)
	}
	incoming.Normalize()

	target := incoming
	if clear {
		fmt.Print("WARNING: This will replace all existing data. Type 'yes' to confirm: ")
		var confirmation string
		fmt.Scanln(&confirmation)
		if confirmation != "yes" {
			log.Println("Import cancelled")
			return
		}
	} else {
		// Merge: incoming entries win on id collision, everything else is
		// kept.
		existing, err := st.Load()
		if err != nil {
			log.Fatalf("Failed to load existing snapshot: %v", err)
		}
		for id, fam := range incoming.Families {
			existing.Families[id] = fam
		}
		for id, user := range incoming.Users {
			existing.Users[id] = user
		}
		target = existing
	}

	if err := st.Save(target); err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	log.Printf("Import complete: %d families, %d users", len(target.Families), len(target.Users))
}

func handleMigrate(src store.Store, cfg *config.Config, toBackend, toPath string, logger *zap.Logger) {
	if toBackend == cfg.StoreBackend && (toPath == "" || toPath == cfg.StorePath) {
		log.Fatalf("Source and target are the same %s store", toBackend)
	}
	if toPath == "" {
		toPath = filepath.Join(cfg.DataDir, "foxfamily_db.json")
		if toBackend == "sqlite" {
			toPath = filepath.Join(cfg.DataDir, "foxfamily.db")
		}
	}

	dst, err := openStore(toBackend, toPath, logger)
	if err != nil {
		log.Fatalf("Failed to open target store: %v", err)
	}
	defer dst.Close()

	snap, err := src.Load()
	if err != nil {
		log.Fatalf("Failed to load source snapshot: %v", err)
	}
	if err := dst.Save(snap); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Printf("Migrated %d families, %d users to %s store at %s",
		len(snap.Families), len(snap.Users), toBackend, toPath)
}

func printUsage() {
	fmt.Println("FoxFamily Snapshot Backup Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  backup export [options]     Export the snapshot to a JSON file")
	fmt.Println("  backup import [options]     Import a snapshot JSON file")
	fmt.Println("  backup migrate [options]    Copy the snapshot to another backend")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -output <file>    Output file path (default: backup_YYYYMMDD_HHMMSS.json)")
	fmt.Println()
	fmt.Println("Import Options:")
	fmt.Println("  -input <file>     Input file path (required)")
	fmt.Println("  -clear            Replace existing data instead of merging (WARNING: destructive)")
	fmt.Println()
	fmt.Println("Migrate Options:")
	fmt.Println("  -to <backend>     Target backend: file or sqlite (required)")
	fmt.Println("  -path <file>      Target store path (default: backend default in DATA_DIR)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  STORE_BACKEND    Source backend: file or sqlite (default: file)")
	fmt.Println("  STORE_PATH       Source store path")
	fmt.Println("  DATA_DIR         Data directory (default: .)")
}
