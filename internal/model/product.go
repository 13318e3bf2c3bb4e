package model

import "time"

// Product is a catalogue entry. Prices are whole naira.
type Product struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Price       int64     `json:"price" db:"price"`
	Category    string    `json:"category" db:"category"`
	Image       string    `json:"image" db:"image"`
	WeightGrams int64     `json:"weightGrams" db:"weight_grams"`
	Stock       int       `json:"stock" db:"stock"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
