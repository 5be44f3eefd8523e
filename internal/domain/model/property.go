package model

import "time"

// PropertyStatus describes the listing state of a property.
type PropertyStatus string

const (
	// PropertyStatusAvailable means the property is listed for sale or rent.
	PropertyStatusAvailable PropertyStatus = "available"
	// PropertyStatusReserved means a deal is in progress.
	PropertyStatusReserved PropertyStatus = "reserved"
	// PropertyStatusSold means the property was sold.
	PropertyStatusSold PropertyStatus = "sold"
)

// Property is the listing record rendered into spec sheet PDFs. The full
// listing lifecycle (CRUD, media, search) is owned by the web application;
// this service only reads it.
type Property struct {
	ID           string         `json:"id"            db:"id"`
	Title        string         `json:"title"         db:"title"`
	Description  string         `json:"description"   db:"description"`
	Address      string         `json:"address"       db:"address"`
	District     string         `json:"district"      db:"district"`
	City         string         `json:"city"          db:"city"`
	PostalCode   string         `json:"postal_code"   db:"postal_code"`
	Kind         string         `json:"kind"          db:"kind"`
	Bedrooms     int            `json:"bedrooms"      db:"bedrooms"`
	Suites       int            `json:"suites"        db:"suites"`
	ParkingSpots int            `json:"parking_spots" db:"parking_spots"`
	AreaM2       float64        `json:"area_m2"       db:"area_m2"`
	Price        float64        `json:"price"         db:"price"`
	Status       PropertyStatus `json:"status"        db:"status"`
	CreatedAt    time.Time      `json:"created_at"    db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"    db:"updated_at"`
}
