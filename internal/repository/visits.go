package repository

import (
	"context"
	"database/sql"
	"fmt"

	"cehupo-sync/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// VisitsRepo visits table access.
type VisitsRepo struct {
	db *sql.DB
}

func NewVisitsRepo(db *sql.DB) *VisitsRepo {
	return &VisitsRepo{db: db}
}

// VisitKeys returns the natural keys of every stored visit of a client,
// read inside the caller's transaction so merge-time dedup sees committed
// and in-transaction rows alike.
func (r *VisitsRepo) VisitKeys(ctx context.Context, tx *sql.Tx, clientID string) (map[domain.VisitKey]bool, error) {
	query := `
		SELECT visit_date::text, notes_fingerprint
		FROM visits
		WHERE client_id = $1
	`

	rows, err := tx.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load visit keys for client %s: %w", clientID, err)
	}
	defer rows.Close()

	keys := make(map[domain.VisitKey]bool)
	for rows.Next() {
		var date, fingerprint string
		if err := rows.Scan(&date, &fingerprint); err != nil {
			return nil, fmt.Errorf("failed to scan visit key: %w", err)
		}
		keys[domain.VisitKey{ClientID: clientID, Date: date, Fingerprint: fingerprint}] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate visit keys: %w", err)
	}

	return keys, nil
}

// LoadAll returns every stored visit, ordered by client and date. Used by
// export tooling, not by the sync path.
func (r *VisitsRepo) LoadAll(ctx context.Context) ([]domain.Visit, error) {
	query := `
		SELECT id, client_id, visit_date, duration_minutes,
		       COALESCE(reason_tags, '{}'), COALESCE(notes, ''),
		       notes_fingerprint, created_at
		FROM visits
		ORDER BY client_id, visit_date
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load visits: %w", err)
	}
	defer rows.Close()

	var visits []domain.Visit
	for rows.Next() {
		var v domain.Visit
		var duration sql.NullInt64
		if err := rows.Scan(
			&v.ID, &v.ClientID, &v.Date, &duration,
			pq.Array(&v.ReasonTags), &v.Notes,
			&v.NotesFingerprint, &v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		if duration.Valid {
			d := int(duration.Int64)
			v.DurationMinutes = &d
		}
		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate visits: %w", err)
	}

	return visits, nil
}

// InsertVisit inserts one visit row inside the caller's transaction.
func (r *VisitsRepo) InsertVisit(ctx context.Context, tx *sql.Tx, v *domain.Visit) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.NotesFingerprint == "" {
		v.NotesFingerprint = domain.NotesFingerprint(v.Notes)
	}

	query := `
		INSERT INTO visits (
			id, client_id, visit_date, duration_minutes,
			reason_tags, notes, notes_fingerprint, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`

	var duration any
	if v.DurationMinutes != nil {
		duration = *v.DurationMinutes
	}

	_, err := tx.ExecContext(ctx, query,
		v.ID,
		v.ClientID,
		v.Date,
		duration,
		pq.Array(v.ReasonTags),
		nullString(v.Notes),
		v.NotesFingerprint,
	)
	if err != nil {
		return fmt.Errorf("failed to insert visit for client %s: %w", v.ClientID, err)
	}

	return nil
}
