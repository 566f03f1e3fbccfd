package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: migrate [up|down] [dir]")
		os.Exit(2)
	}

	direction := os.Args[1]
	dir := "migrations"
	if len(os.Args) > 2 {
		dir = os.Args[2]
	}

	cfg := config.Load()
	log := logger.New(&cfg.Logger)

	db, err := database.Connect(&cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	applied, err := run(context.Background(), db, dir, direction)
	if err != nil {
		log.WithError(err).Fatal("Migration failed")
	}
	log.WithFields(map[string]interface{}{
		"direction": direction,
		"applied":   applied,
	}).Info("Migrations completed")
}

// run применяет все файлы направления по порядку имён; down идёт в обратном порядке.
func run(ctx context.Context, db *database.DB, dir, direction string) (int, error) {
	files, err := collectMigrations(dir, direction)
	if err != nil {
		return 0, err
	}

	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return 0, fmt.Errorf("read migration %s: %w", filepath.Base(path), err)
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return 0, fmt.Errorf("execute migration %s: %w", filepath.Base(path), err)
		}
	}
	return len(files), nil
}

// collectMigrations возвращает пути файлов *.up.sql или *.down.sql в порядке применения
func collectMigrations(dir, direction string) ([]string, error) {
	if direction != "up" && direction != "down" {
		return nil, fmt.Errorf("direction must be 'up' or 'down', got %q", direction)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migration directory: %w", err)
	}

	suffix := "." + direction + ".sql"
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}

	sort.Strings(files)
	if direction == "down" {
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}
	return files, nil
}
