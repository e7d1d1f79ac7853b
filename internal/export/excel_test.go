package export

import (
	"path/filepath"
	"testing"
	"time"

	"cehupo-sync/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReport(t *testing.T) {
	report := domain.NewSyncReport()
	report.Record(domain.EntityOutcome{
		RemoteID: 10, DisplayName: "Novak Jan",
		Status: domain.OutcomeSuccess, Strategy: domain.StrategyName, Fetched: true,
		ClientID: "a", FieldsFilled: []string{domain.FieldEmail}, VisitsAdded: 1,
	})
	report.Record(domain.EntityOutcome{
		RemoteID: 11, DisplayName: "Kovalenko Olena",
		Status: domain.OutcomeAmbiguous, Fetched: true,
		CandidateIDs: []string{"b", "c"},
	})
	report.FinishedAt = report.StartedAt.Add(time.Minute)

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteReport(report, path))

	f, err := ReportWorkbook(report)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Outcomes")
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + two outcomes

	assert.Equal(t, ReportOutcomeHeader, rows[0][:len(ReportOutcomeHeader)])
	assert.Equal(t, "10", rows[1][0])
	assert.Equal(t, "Novak Jan", rows[1][1])
	assert.Equal(t, "success", rows[1][2])
	assert.Equal(t, "11", rows[2][0])
	assert.Equal(t, "ambiguous", rows[2][2])
	assert.Equal(t, "b, c", rows[2][8])

	summary, err := f.GetRows("Summary")
	require.NoError(t, err)
	assert.NotEmpty(t, summary)
}

func TestWriteClientRoster(t *testing.T) {
	dob := time.Date(1985, 5, 1, 0, 0, 0, 0, time.UTC)
	externalID := int64(101)
	clients := []domain.Client{
		{ID: "a", FirstName: "Jan", LastName: "Novak", DateOfBirth: &dob, ExternalID: &externalID, Email: "jan@example.com"},
		{ID: "b", FirstName: "Olena", LastName: "Kovalenko"},
	}

	path := filepath.Join(t.TempDir(), "clients.xlsx")
	require.NoError(t, WriteClientRoster(clients, path))

	f, err := RosterWorkbook(clients)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Clients")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "a", rows[1][0])
	assert.Equal(t, "1985-05-01", rows[1][3])
	assert.Equal(t, "101", rows[1][4])
	assert.Equal(t, "b", rows[2][0])
}
