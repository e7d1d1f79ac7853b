// Package repository implements the narrow read/write contract the sync
// engine holds against the local datastore.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cehupo-sync/internal/domain"

	"github.com/google/uuid"
)

// clientColumns maps canonical remote field names onto clients columns.
// Field names were chosen to match the schema, so the map is the identity;
// it still exists so an unknown field can never reach SQL by accident.
var clientColumns = map[string]string{
	domain.FieldGender:           "gender",
	domain.FieldVisaNumber:       "visa_number",
	domain.FieldVisaType:         "visa_type",
	domain.FieldEmail:            "email",
	domain.FieldCzechPhone:       "czech_phone",
	domain.FieldUkrainianPhone:   "ukrainian_phone",
	domain.FieldCzechAddress:     "czech_address",
	domain.FieldCzechCity:        "czech_city",
	domain.FieldHomeAddress:      "home_address",
	domain.FieldRegistrationDate: "registration_date",
	domain.FieldArrivalDate:      "arrival_date",
	domain.FieldNotes:            "notes",
}

// fillOrder deterministic column ordering for generated SQL.
var fillOrder = []string{
	domain.FieldGender,
	domain.FieldVisaNumber,
	domain.FieldVisaType,
	domain.FieldEmail,
	domain.FieldCzechPhone,
	domain.FieldUkrainianPhone,
	domain.FieldCzechAddress,
	domain.FieldCzechCity,
	domain.FieldHomeAddress,
	domain.FieldRegistrationDate,
	domain.FieldArrivalDate,
	domain.FieldNotes,
}

// ClientsRepo clients table access.
type ClientsRepo struct {
	db *sql.DB
}

func NewClientsRepo(db *sql.DB) *ClientsRepo {
	return &ClientsRepo{db: db}
}

// LoadAll reads every client for the per-run index snapshot.
func (r *ClientsRepo) LoadAll(ctx context.Context) ([]domain.Client, error) {
	query := `
		SELECT
			id::text,
			first_name,
			last_name,
			date_of_birth,
			cehupo_id,
			COALESCE(gender, '') AS gender,
			COALESCE(visa_number, '') AS visa_number,
			COALESCE(visa_type, '') AS visa_type,
			COALESCE(email, '') AS email,
			COALESCE(czech_phone, '') AS czech_phone,
			COALESCE(ukrainian_phone, '') AS ukrainian_phone,
			COALESCE(czech_address, '') AS czech_address,
			COALESCE(czech_city, '') AS czech_city,
			COALESCE(home_address, '') AS home_address,
			registration_date,
			arrival_date,
			COALESCE(notes, '') AS notes
		FROM clients
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load clients: %w", err)
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		var (
			c                domain.Client
			dob              sql.NullTime
			externalID       sql.NullInt64
			registrationDate sql.NullTime
			arrivalDate      sql.NullTime
		)
		err := rows.Scan(
			&c.ID,
			&c.FirstName,
			&c.LastName,
			&dob,
			&externalID,
			&c.Gender,
			&c.VisaNumber,
			&c.VisaType,
			&c.Email,
			&c.CzechPhone,
			&c.UkrainianPhone,
			&c.CzechAddress,
			&c.CzechCity,
			&c.HomeAddress,
			&registrationDate,
			&arrivalDate,
			&c.Notes,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		if dob.Valid {
			c.DateOfBirth = &dob.Time
		}
		if externalID.Valid {
			v := externalID.Int64
			c.ExternalID = &v
		}
		if registrationDate.Valid {
			c.RegistrationDate = &registrationDate.Time
		}
		if arrivalDate.Valid {
			c.ArrivalDate = &arrivalDate.Time
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clients: %w", err)
	}

	return clients, nil
}

// InsertClient inserts a new client inside the caller's transaction and
// returns the generated id.
func (r *ClientsRepo) InsertClient(ctx context.Context, tx *sql.Tx, c *domain.Client) (string, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	query := `
		INSERT INTO clients (
			id, first_name, last_name, date_of_birth, cehupo_id,
			gender, visa_number, visa_type, email,
			czech_phone, ukrainian_phone, czech_address, czech_city,
			home_address, registration_date, arrival_date, notes,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW(), NOW())
	`

	_, err := tx.ExecContext(ctx, query,
		c.ID,
		c.FirstName,
		c.LastName,
		nullTime(c.DateOfBirth),
		nullInt64(c.ExternalID),
		nullString(c.Gender),
		nullString(c.VisaNumber),
		nullString(c.VisaType),
		nullString(c.Email),
		nullString(c.CzechPhone),
		nullString(c.UkrainianPhone),
		nullString(c.CzechAddress),
		nullString(c.CzechCity),
		nullString(c.HomeAddress),
		nullTime(c.RegistrationDate),
		nullTime(c.ArrivalDate),
		nullString(c.Notes),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert client: %w", err)
	}

	return c.ID, nil
}

// currentFillState reads the fillable columns of one client row, locking it
// for the rest of the transaction.
func (r *ClientsRepo) currentFillState(ctx context.Context, tx *sql.Tx, clientID string) (map[string]bool, error) {
	query := `
		SELECT
			gender, visa_number, visa_type, email,
			czech_phone, ukrainian_phone, czech_address, czech_city,
			home_address, registration_date::text, arrival_date::text, notes
		FROM clients
		WHERE id = $1
		FOR UPDATE
	`

	values := make([]sql.NullString, len(fillOrder))
	dest := make([]any, len(fillOrder))
	for i := range values {
		dest[i] = &values[i]
	}

	if err := tx.QueryRowContext(ctx, query, clientID).Scan(dest...); err != nil {
		return nil, fmt.Errorf("failed to read client %s: %w", clientID, err)
	}

	empty := make(map[string]bool, len(fillOrder))
	for i, field := range fillOrder {
		empty[field] = !values[i].Valid || values[i].String == ""
	}
	return empty, nil
}

// FillEmptyFields writes each provided field whose column is currently
// NULL or blank, leaving every non-empty value untouched, and returns the
// canonical names actually written. Remote data supplements local data; it
// never overwrites it.
func (r *ClientsRepo) FillEmptyFields(ctx context.Context, tx *sql.Tx, clientID string, fields map[string]string) ([]string, error) {
	if len(fields) == 0 {
		return nil, nil
	}

	empty, err := r.currentFillState(ctx, tx, clientID)
	if err != nil {
		return nil, err
	}

	var (
		filled []string
		setSQL string
		args   []any
		argN   = 1
	)
	for _, field := range fillOrder {
		value, present := fields[field]
		if !present || value == "" || !empty[field] {
			continue
		}
		column, ok := clientColumns[field]
		if !ok {
			continue
		}
		if setSQL != "" {
			setSQL += ", "
		}
		setSQL += fmt.Sprintf("%s = $%d", column, argN)
		args = append(args, value)
		argN++
		filled = append(filled, field)
	}
	if len(filled) == 0 {
		return nil, nil
	}

	setSQL += ", updated_at = NOW()"
	args = append(args, clientID)
	query := fmt.Sprintf("UPDATE clients SET %s WHERE id = $%d", setSQL, argN)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fill client %s: %w", clientID, err)
	}

	return filled, nil
}

// SetExternalID backfills the portal correlation key for a matched client
// that does not carry one yet. Existing links are never repointed.
func (r *ClientsRepo) SetExternalID(ctx context.Context, tx *sql.Tx, clientID string, externalID int64) error {
	query := `
		UPDATE clients
		SET cehupo_id = $1, updated_at = NOW()
		WHERE id = $2 AND cehupo_id IS NULL
	`
	if _, err := tx.ExecContext(ctx, query, externalID, clientID); err != nil {
		return fmt.Errorf("failed to set external id for client %s: %w", clientID, err)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullInt64(i *int64) any {
	if i == nil {
		return nil
	}
	return *i
}
