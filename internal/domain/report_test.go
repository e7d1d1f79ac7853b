package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSyncReport_RecordCounters(t *testing.T) {
	r := NewSyncReport()

	r.Record(EntityOutcome{
		RemoteID: 10, Status: OutcomeSuccess, Fetched: true,
		FieldsFilled: []string{FieldEmail, FieldCzechCity}, VisitsAdded: 2,
	})
	r.Record(EntityOutcome{
		RemoteID: 11, Status: OutcomeSuccess, Fetched: true,
		CreatedNew: true, VisitsAdded: 1,
	})
	r.Record(EntityOutcome{
		RemoteID: 12, Status: OutcomeAmbiguous, Fetched: true,
		CandidateIDs: []string{"b", "c"},
	})
	r.Record(EntityOutcome{RemoteID: 13, Status: OutcomeSkipped})
	r.Record(EntityOutcome{
		RemoteID: 14, Status: OutcomeError, Fetched: true,
		Warnings: []string{"w1", "w2"}, Err: "parse: boom",
	})

	assert.Equal(t, 4, r.Fetched)
	assert.Equal(t, 1, r.Matched)
	assert.Equal(t, 1, r.UnmatchedNew)
	assert.Equal(t, 1, r.Ambiguous)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, 1, r.Errors)
	assert.Equal(t, 3, r.VisitsInserted)
	assert.Equal(t, 2, r.ParseWarnings)
	assert.Equal(t, 1, r.FieldsUpdated[FieldEmail])
	assert.Equal(t, 1, r.FieldsUpdated[FieldCzechCity])
	assert.Len(t, r.Outcomes, 5)
}

func TestNotesFingerprint_Normalizes(t *testing.T) {
	base := NotesFingerprint("Prodloužení víza")

	assert.Equal(t, base, NotesFingerprint("  prodloužení   VÍZA "))
	assert.NotEqual(t, base, NotesFingerprint("prodloužení visa"))
	assert.Len(t, base, 64)
}

func TestNewVisitKey(t *testing.T) {
	key := NewVisitKey("client-a", time.Date(2023, 4, 5, 15, 30, 0, 0, time.UTC), "note")

	assert.Equal(t, "client-a", key.ClientID)
	assert.Equal(t, "2023-04-05", key.Date)
	assert.Equal(t, NotesFingerprint("note"), key.Fingerprint)
}
