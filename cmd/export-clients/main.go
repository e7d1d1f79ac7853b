package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"cehupo-sync/internal/config"
	"cehupo-sync/internal/database"
	"cehupo-sync/internal/export"
	"cehupo-sync/internal/repository"
)

// Dumps the client roster to XLSX and, optionally, all visits to CSV.
func main() {
	rosterPath := flag.String("roster", "clients.xlsx", "output path for the client roster XLSX")
	visitsPath := flag.String("visits", "", "optional output path for the visits CSV")
	flag.Parse()

	cfg := config.Load()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	clients, err := repository.NewClientsRepo(db).LoadAll(ctx)
	if err != nil {
		log.Fatalf("Failed to load clients: %v", err)
	}
	if err := export.WriteClientRoster(clients, *rosterPath); err != nil {
		log.Fatalf("Failed to write roster: %v", err)
	}
	fmt.Printf("Wrote %d clients to %s\n", len(clients), *rosterPath)

	if *visitsPath == "" {
		return
	}
	visits, err := repository.NewVisitsRepo(db).LoadAll(ctx)
	if err != nil {
		log.Fatalf("Failed to load visits: %v", err)
	}
	if err := export.WriteVisitsCSV(visits, *visitsPath); err != nil {
		log.Fatalf("Failed to write visits: %v", err)
	}
	fmt.Printf("Wrote %d visits to %s\n", len(visits), *visitsPath)
}
