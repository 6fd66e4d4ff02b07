package main

import (
	"flag"
	"fmt"
	"os"

	"satbank/internal/config"
	"satbank/internal/database"
	"satbank/internal/jsonstore"
	"satbank/internal/logger"
	"satbank/internal/repository"

	"go.uber.org/zap"
)

// Creates the SQLite schema and optionally performs the one-time migration
// of a legacy JSON store into it. Legacy-format handling lives here, in a
// separate utility, so the store core never special-cases old files.
func main() {
	dbPath := flag.String("db", "", "path of the SQLite database to create or migrate")
	fromJSON := flag.String("from-json", "", "optional JSON store to import into the database")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Initialize(cfg.Logger); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	l := logger.Get()

	target := *dbPath
	if target == "" {
		target = cfg.Store.Path
	}
	if target == "" {
		l.Fatal("No database path given; pass -db or set store.path in the config")
	}

	db, err := database.NewSQLXSQLiteDB(target)
	if err != nil {
		l.Fatal("Failed to open database", zap.String("path", target), zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		l.Fatal("Failed to run migrations", zap.Error(err))
	}
	l.Info("Schema ready", zap.String("path", target))

	if *fromJSON == "" {
		return
	}

	store := jsonstore.New(*fromJSON)
	questions, err := store.LoadAll()
	if err != nil {
		l.Fatal("Failed to load JSON store", zap.String("path", *fromJSON), zap.Error(err))
	}

	adapter := repository.NewQuestionDatabaseAdapter(db)
	imported := 0
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			l.Warn("Skipping invalid question", zap.String("uid", q.UID), zap.Error(err))
			continue
		}
		existing, err := adapter.GetByUID(q.UID)
		if err != nil {
			l.Fatal("Failed to probe for existing question", zap.String("uid", q.UID), zap.Error(err))
		}
		if err := adapter.Save(q, existing == nil); err != nil {
			l.Fatal("Failed to import question", zap.String("uid", q.UID), zap.Error(err))
		}
		imported++
	}
	l.Info("Import finished",
		zap.String("from", *fromJSON),
		zap.String("to", target),
		zap.Int("imported", imported),
		zap.Int("skipped", len(questions)-imported))
}
