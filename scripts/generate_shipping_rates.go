//go:build ignore

package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"bwitty-orders/internal/shipping"
)

// Writes the built-in rate table to data/shipping as plain and gzipped JSON,
// ready to be edited and uploaded to the rates bucket.
//
//	go run scripts/generate_shipping_rates.go
func main() {
	dataDir := "data/shipping"

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	table := shipping.DefaultTable()
	if err := table.Validate(); err != nil {
		log.Fatalf("Built-in rate table is invalid: %v", err)
	}

	raw, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode rate table: %v", err)
	}

	plain := filepath.Join(dataDir, "rates.json")
	if err := os.WriteFile(plain, append(raw, '\n'), 0644); err != nil {
		log.Fatalf("Failed to write %s: %v", plain, err)
	}
	fmt.Printf("Created %s\n", plain)

	compressed := filepath.Join(dataDir, "rates.json.gz")
	if err := writeGzip(compressed, raw); err != nil {
		log.Fatalf("Failed to write %s: %v", compressed, err)
	}
	fmt.Printf("Created %s\n", compressed)

	fmt.Printf("\nDomestic country: %s\n", table.DomesticCountry)
	fmt.Printf("International rows: %d\n", len(table.International))
	fmt.Println("\nPoint SHIPPING_RATES_FILE at either file to load it on startup.")
}

func writeGzip(filePath string, data []byte) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	if _, err := gzipWriter.Write(data); err != nil {
		return fmt.Errorf("failed to write rate table: %w", err)
	}
	return gzipWriter.Close()
}
