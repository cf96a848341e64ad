package main

import (
	"flag"
	"log"
	"os"

	"github.com/baxromumarov/job-finder/internal/store"
)

func main() {
	dbURL := flag.String("db", os.Getenv("DATABASE_URL"), "Database URL")
	schema := flag.String("schema", "internal/store/schema.sql", "Path to schema file")
	flag.Parse()

	if *dbURL == "" {
		log.Fatal("Database URL required (-db flag or DATABASE_URL)")
	}

	db, err := store.NewStore(*dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(*schema); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Migrations executed successfully")
}
