package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"garantias.org/internal/migrate"
	"garantias.org/internal/obs"
	"garantias.org/ops/migrations"
)

func main() {
	log.SetFlags(0)
	var (
		dsn      = flag.String("dsn", os.Getenv("GARANTIAS_PG_DSN"), "PostgreSQL DSN")
		dir      = flag.String("dir", "", "Read sql/ and seeds/ from this directory instead of the embedded files")
		timeout  = flag.Duration("timeout", 30*time.Second, "Overall timeout")
		logLevel = flag.String("log-level", "info", "Log level")
	)
	flag.Parse()

	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|seed|status]")
	}

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or GARANTIAS_PG_DSN")
	}
	logger, err := obs.NewLogger(*logLevel, "console")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	var source fs.FS = migrations.FS
	if *dir != "" {
		source = os.DirFS(*dir)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	mgr := migrate.NewManager(db, source, migrate.WithLogger(logger))

	switch flag.Arg(0) {
	case "up":
		var applied []string
		applied, err = mgr.Up(ctx)
		logger.Info("migrations applied", zap.Strings("names", applied))
	case "down":
		var name string
		name, err = mgr.Down(ctx)
		if err == nil {
			logger.Info("migration reverted", zap.String("name", name))
		}
	case "seed":
		var applied []string
		applied, err = mgr.Seed(ctx)
		logger.Info("seeds applied", zap.Strings("names", applied))
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		logger.Fatal("unknown command", zap.String("command", flag.Arg(0)))
	}
	if err != nil {
		logger.Fatal("migrate failed", zap.String("command", flag.Arg(0)), zap.Error(err))
	}
}
