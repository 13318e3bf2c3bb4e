//go:build ignore

package main

import (
	"context"
	"fmt"
	"os"

	"bwitty-orders/internal/config"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

// Connects with the DB_* settings and prints the applied migration version
// and the order count per status.
//
//	go run scripts/check_db.go
func main() {
	_ = godotenv.Load()
	dbCfg, _ := config.LoadDatabase()

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbCfg.ConnectionString())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	var dbName string
	if err := conn.QueryRow(ctx, "SELECT current_database()").Scan(&dbName); err != nil {
		fmt.Fprintf(os.Stderr, "QueryRow failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Successfully connected to database: %s\n", dbName)

	var version int64
	var dirty bool
	if err := conn.QueryRow(ctx, "SELECT version, dirty FROM schema_migrations").Scan(&version, &dirty); err != nil {
		fmt.Fprintf(os.Stderr, "No migrations applied: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Migration version: %d (dirty: %t)\n", version, dirty)

	rows, err := conn.Query(ctx, "SELECT status, COUNT(*) FROM orders GROUP BY status ORDER BY status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	defer rows.Close()

	fmt.Println("\nOrders by status:")
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("  - %s: %d\n", status, count)
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Rows failed: %v\n", err)
		os.Exit(1)
	}
}
