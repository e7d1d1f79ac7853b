package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Visit one recorded visit of a client (visits table).
// Natural key is (ClientID, Date, NotesFingerprint); the sync path never
// updates or deletes visits, it only inserts rows whose key is absent.
type Visit struct {
	ID       string `db:"id"`        // UUID, PRIMARY KEY
	ClientID string `db:"client_id"` // UUID, NOT NULL, FK clients(id)

	Date             time.Time `db:"visit_date"`        // DATE, NOT NULL
	DurationMinutes  *int      `db:"duration_minutes"`  // INTEGER, nullable
	ReasonTags       []string  `db:"reason_tags"`       // TEXT[], nullable
	Notes            string    `db:"notes"`             // TEXT, nullable
	NotesFingerprint string    `db:"notes_fingerprint"` // CHAR(64), NOT NULL

	CreatedAt time.Time `db:"created_at"`
}

// VisitKey natural key used to deduplicate visit ingestion.
type VisitKey struct {
	ClientID    string
	Date        string // YYYY-MM-DD
	Fingerprint string
}

// NewVisitKey builds the natural key for a client/date/notes combination.
func NewVisitKey(clientID string, date time.Time, notes string) VisitKey {
	return VisitKey{
		ClientID:    clientID,
		Date:        date.Format("2006-01-02"),
		Fingerprint: NotesFingerprint(notes),
	}
}

// NotesFingerprint hashes visit notes into a stable hex digest. Whitespace
// runs are folded and case is ignored so cosmetic edits on the portal side
// do not produce duplicate visits.
func NotesFingerprint(notes string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(notes), " "))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
