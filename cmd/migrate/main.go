package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"

	"github.com/ignite/crm-quality/internal/repository/postgres"
)

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	dir := "migrations"
	listOnly := false
	for _, a := range os.Args[1:] {
		if a == "--list" {
			listOnly = true
		} else {
			dir = a
		}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("ping: %v", err)
	}
	log.Println("Connected to database")

	migrator := postgres.NewMigrator(db)

	if listOnly {
		applied, err := migrator.Applied(ctx)
		if err != nil {
			log.Fatal(err)
		}
		for name := range applied {
			fmt.Println(" ", name)
		}
		fmt.Printf("Total: %d applied\n", len(applied))
		return
	}

	migrations, err := postgres.LoadMigrations(dir)
	if err != nil {
		log.Fatal(err)
	}

	report, err := migrator.Apply(ctx, migrations)
	for _, name := range report.Skipped {
		fmt.Printf("  %s ... already applied\n", name)
	}
	for _, name := range report.Applied {
		fmt.Printf("  %s ... OK\n", name)
	}
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	log.Printf("Done: %d applied, %d skipped", len(report.Applied), len(report.Skipped))
}
