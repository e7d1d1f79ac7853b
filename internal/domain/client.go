package domain

import "time"

// Client canonical local client record (clients table).
// Created by manual entry or by the sync engine on first unmatched import;
// the sync path only ever fills empty fields, it never overwrites or deletes.
type Client struct {
	ID string `db:"id"` // UUID, PRIMARY KEY

	FirstName string `db:"first_name"` // VARCHAR, NOT NULL
	LastName  string `db:"last_name"`  // VARCHAR, NOT NULL

	DateOfBirth *time.Time `db:"date_of_birth"` // DATE, nullable

	// Correlation key to the portal's customer id. Unique when present.
	ExternalID *int64 `db:"cehupo_id"` // INTEGER, nullable, UNIQUE

	// Optional profile fields, all nullable. Hand-corrected local values
	// take precedence over portal data.
	Gender           string     `db:"gender"`            // VARCHAR, nullable
	VisaNumber       string     `db:"visa_number"`       // VARCHAR, nullable
	VisaType         string     `db:"visa_type"`         // VARCHAR, nullable
	Email            string     `db:"email"`             // VARCHAR, nullable
	CzechPhone       string     `db:"czech_phone"`       // VARCHAR, nullable
	UkrainianPhone   string     `db:"ukrainian_phone"`   // VARCHAR, nullable
	CzechAddress     string     `db:"czech_address"`     // VARCHAR, nullable
	CzechCity        string     `db:"czech_city"`        // VARCHAR, nullable
	HomeAddress      string     `db:"home_address"`      // VARCHAR, nullable
	RegistrationDate *time.Time `db:"registration_date"` // DATE, nullable
	ArrivalDate      *time.Time `db:"arrival_date"`      // DATE, nullable
	Notes            string     `db:"notes"`             // TEXT, nullable

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// FullName display helper, "First Last".
func (c *Client) FullName() string {
	return c.FirstName + " " + c.LastName
}
