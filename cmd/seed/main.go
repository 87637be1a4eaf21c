package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"math/rand"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/ignite/crm-quality/internal/repository/postgres"
)

func main() {
	count := flag.Int("n", 500, "number of customers to insert")
	sparsity := flag.Float64("sparsity", 0.35, "probability an optional field is left empty")
	seedValue := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("ping: %v", err)
	}

	rng := rand.New(rand.NewSource(*seedValue))
	seed := postgres.GenerateSeed(rng, *count, time.Now(), *sparsity)

	start := time.Now()
	if err := postgres.NewSeedWriter(db).Write(ctx, seed); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
	log.Printf("Inserted %d customers in %s (seed %d)", len(seed), time.Since(start).Round(time.Millisecond), *seedValue)
}
