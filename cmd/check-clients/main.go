package main

import (
	"fmt"
	"log"
	"strings"

	"cehupo-sync/internal/config"
	"cehupo-sync/internal/database"
)

// One-off inspection script: lists clients that have never been correlated
// with a CeHuPo customer, and local name collisions that would make a sync
// run report them as ambiguous.
func main() {
	cfg := config.Load()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("=== Clients without a CeHuPo ID ===")

	rows, err := db.Query(`
		SELECT id, first_name, last_name, COALESCE(email, '')
		FROM clients
		WHERE cehupo_id IS NULL
		ORDER BY last_name, first_name
	`)
	if err != nil {
		log.Fatalf("Failed to query clients: %v", err)
	}
	defer rows.Close()

	unlinked := 0
	for rows.Next() {
		var id, first, last, email string
		if err := rows.Scan(&id, &first, &last, &email); err != nil {
			log.Fatalf("Failed to scan client: %v", err)
		}
		unlinked++
		fmt.Printf("  %s  %s %s  %s\n", id, last, first, email)
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("Failed to read clients: %v", err)
	}
	fmt.Printf("Total: %d\n\n", unlinked)

	fmt.Println("=== Duplicate normalized names ===")

	dupRows, err := db.Query(`
		SELECT lower(trim(first_name)) || ' ' || lower(trim(last_name)) AS norm,
		       count(*) AS n,
		       string_agg(id::text, ', ' ORDER BY id) AS ids
		FROM clients
		GROUP BY norm
		HAVING count(*) > 1
		ORDER BY n DESC, norm
	`)
	if err != nil {
		log.Fatalf("Failed to query duplicates: %v", err)
	}
	defer dupRows.Close()

	dups := 0
	for dupRows.Next() {
		var norm, ids string
		var n int
		if err := dupRows.Scan(&norm, &n, &ids); err != nil {
			log.Fatalf("Failed to scan duplicate: %v", err)
		}
		dups++
		fmt.Printf("  %-40s x%d\n    %s\n", norm, n, ids)
	}
	if err := dupRows.Err(); err != nil {
		log.Fatalf("Failed to read duplicates: %v", err)
	}
	if dups == 0 {
		fmt.Println("  none")
	}
	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("%d unlinked clients, %d duplicated names\n", unlinked, dups)
}
