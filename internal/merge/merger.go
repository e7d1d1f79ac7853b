// Package merge applies resolved remote records to the local datastore
// under the fill-empty policy, one transaction per entity.
package merge

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"cehupo-sync/internal/domain"
	"cehupo-sync/internal/repository"

	"go.uber.org/zap"
)

// Outcome datastore effect of merging one remote record.
type Outcome struct {
	ClientID     string
	CreatedNew   bool
	FieldsFilled []string
	VisitsAdded  int
}

// Merger turns match results into datastore mutations. All writes for one
// entity happen in a single transaction; a mid-transaction failure rolls
// back that entity only.
type Merger struct {
	db      *sql.DB
	clients *repository.ClientsRepo
	visits  *repository.VisitsRepo
	logger  *zap.Logger
}

func NewMerger(db *sql.DB, clients *repository.ClientsRepo, visits *repository.VisitsRepo, logger *zap.Logger) *Merger {
	return &Merger{db: db, clients: clients, visits: visits, logger: logger}
}

// Apply merges one remote record according to its match result.
//   - Matched: fill empty client fields, backfill the external id, insert
//     visits whose natural key is absent.
//   - Unmatched: insert a new client with everything the portal knows, plus
//     all of its visits.
//   - Ambiguous: no mutation at all; candidates go to the report instead.
func (m *Merger) Apply(ctx context.Context, rec *domain.RemoteRecord, match domain.MatchResult) (*Outcome, error) {
	switch match.Kind {
	case domain.MatchAmbiguous:
		return &Outcome{}, nil
	case domain.MatchMatched:
		return m.applyMatched(ctx, rec, match.ClientID)
	default:
		return m.applyUnmatched(ctx, rec)
	}
}

func (m *Merger) applyMatched(ctx context.Context, rec *domain.RemoteRecord, clientID string) (*Outcome, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("merge customer %d: begin: %w", rec.RemoteID, err)
	}
	defer tx.Rollback()

	if err := m.clients.SetExternalID(ctx, tx, clientID, rec.RemoteID); err != nil {
		return nil, fmt.Errorf("merge customer %d: %w", rec.RemoteID, err)
	}

	filled, err := m.clients.FillEmptyFields(ctx, tx, clientID, rec.Fields)
	if err != nil {
		return nil, fmt.Errorf("merge customer %d: %w", rec.RemoteID, err)
	}

	added, err := m.insertMissingVisits(ctx, tx, clientID, rec.Visits)
	if err != nil {
		return nil, fmt.Errorf("merge customer %d: %w", rec.RemoteID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("merge customer %d: commit: %w", rec.RemoteID, err)
	}

	m.logger.Debug("merged matched customer",
		zap.Int64("remote_id", rec.RemoteID),
		zap.String("client_id", clientID),
		zap.Strings("fields_filled", filled),
		zap.Int("visits_added", added),
	)

	return &Outcome{ClientID: clientID, FieldsFilled: filled, VisitsAdded: added}, nil
}

func (m *Merger) applyUnmatched(ctx context.Context, rec *domain.RemoteRecord) (*Outcome, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("merge customer %d: begin: %w", rec.RemoteID, err)
	}
	defer tx.Rollback()

	client := clientFromRemote(rec)
	clientID, err := m.clients.InsertClient(ctx, tx, client)
	if err != nil {
		return nil, fmt.Errorf("merge customer %d: %w", rec.RemoteID, err)
	}

	// Client is brand new, every visit is new with it.
	added := 0
	for i := range rec.Visits {
		v := visitFromRemote(clientID, &rec.Visits[i])
		if err := m.visits.InsertVisit(ctx, tx, v); err != nil {
			return nil, fmt.Errorf("merge customer %d: %w", rec.RemoteID, err)
		}
		added++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("merge customer %d: commit: %w", rec.RemoteID, err)
	}

	m.logger.Info("imported new customer",
		zap.Int64("remote_id", rec.RemoteID),
		zap.String("client_id", clientID),
		zap.Int("visits_added", added),
	)

	return &Outcome{ClientID: clientID, CreatedNew: true, VisitsAdded: added}, nil
}

// insertMissingVisits inserts every remote visit whose natural key
// (client, date, notes fingerprint) is not already present.
func (m *Merger) insertMissingVisits(ctx context.Context, tx *sql.Tx, clientID string, remote []domain.RemoteVisit) (int, error) {
	if len(remote) == 0 {
		return 0, nil
	}

	existing, err := m.visits.VisitKeys(ctx, tx, clientID)
	if err != nil {
		return 0, err
	}

	added := 0
	for i := range remote {
		key := domain.NewVisitKey(clientID, remote[i].Date, remote[i].Notes)
		if existing[key] {
			continue
		}
		existing[key] = true // a duplicate row within one page is inserted once

		if err := m.visits.InsertVisit(ctx, tx, visitFromRemote(clientID, &remote[i])); err != nil {
			return 0, err
		}
		added++
	}

	return added, nil
}

// clientFromRemote builds the insert payload for a first-time import.
func clientFromRemote(rec *domain.RemoteRecord) *domain.Client {
	first, last := rec.FirstName, rec.LastName
	if first == "" && last == "" {
		first, last = splitPortalName(rec.DisplayName)
	}

	externalID := rec.RemoteID
	c := &domain.Client{
		FirstName:   first,
		LastName:    last,
		DateOfBirth: rec.DateOfBirth,
		ExternalID:  &externalID,
	}

	c.Gender, _ = rec.Field(domain.FieldGender)
	c.VisaNumber, _ = rec.Field(domain.FieldVisaNumber)
	c.VisaType, _ = rec.Field(domain.FieldVisaType)
	c.Email, _ = rec.Field(domain.FieldEmail)
	c.CzechPhone, _ = rec.Field(domain.FieldCzechPhone)
	c.UkrainianPhone, _ = rec.Field(domain.FieldUkrainianPhone)
	c.CzechAddress, _ = rec.Field(domain.FieldCzechAddress)
	c.CzechCity, _ = rec.Field(domain.FieldCzechCity)
	c.HomeAddress, _ = rec.Field(domain.FieldHomeAddress)
	c.Notes, _ = rec.Field(domain.FieldNotes)

	if v, ok := rec.Field(domain.FieldRegistrationDate); ok {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			c.RegistrationDate = &t
		}
	}
	if v, ok := rec.Field(domain.FieldArrivalDate); ok {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			c.ArrivalDate = &t
		}
	}

	return c
}

func visitFromRemote(clientID string, rv *domain.RemoteVisit) *domain.Visit {
	return &domain.Visit{
		ClientID:         clientID,
		Date:             rv.Date,
		DurationMinutes:  rv.DurationMinutes,
		ReasonTags:       rv.ReasonTags,
		Notes:            rv.Notes,
		NotesFingerprint: domain.NotesFingerprint(rv.Notes),
	}
}

// splitPortalName breaks a portal display name apart. The portal lists
// customers as "Last First", so the final token is the given name and the
// rest is the family name.
func splitPortalName(display string) (first, last string) {
	parts := strings.Fields(display)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	default:
		return parts[len(parts)-1], strings.Join(parts[:len(parts)-1], " ")
	}
}
