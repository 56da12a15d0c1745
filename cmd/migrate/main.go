package main

import (
	"context"
	"log"
	"os"

	"popdash/adapters/postgres"
)

// migrate creates the response cache schema and drops expired entries.
func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: migrate <postgres|sqlite3> <database_url>")
	}

	driver := os.Args[1]
	databaseURL := os.Args[2]

	ctx := context.Background()
	repo, err := postgres.OpenResponseCache(ctx, driver, databaseURL)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	defer repo.Close()

	purged, err := repo.PurgeExpired(ctx)
	if err != nil {
		log.Fatalf("Failed to purge expired responses: %v", err)
	}
	log.Printf("Schema up to date on %s, purged %d expired responses", driver, purged)
}
