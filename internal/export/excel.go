// Package export renders run reports and the client roster as files for
// operators. It sits outside the sync engine: the engine only produces the
// SyncReport value.
package export

import (
	"fmt"
	"strings"
	"time"

	"cehupo-sync/internal/domain"

	"github.com/xuri/excelize/v2"
)

// ReportOutcomeHeader columns of the per-entity outcome sheet.
var ReportOutcomeHeader = []string{
	"Remote ID",
	"Display Name",
	"Status",
	"Strategy",
	"Client ID",
	"Created New",
	"Fields Filled",
	"Visits Added",
	"Candidates",
	"Suggestions",
	"Warnings",
	"Error",
}

// RosterHeader columns of the client roster sheet.
var RosterHeader = []string{
	"ID",
	"First Name",
	"Last Name",
	"Date Of Birth",
	"CeHuPo ID",
	"Visa Number",
	"Visa Type",
	"Email",
	"Czech Phone",
	"Ukrainian Phone",
	"Czech City",
}

// ReportWorkbook builds an XLSX with a summary sheet and one row per
// processed entity.
func ReportWorkbook(report *domain.SyncReport) (*excelize.File, error) {
	f := excelize.NewFile()

	summary := "Summary"
	index, err := f.NewSheet(summary)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	rows := [][]any{
		{"Started", report.StartedAt.Format("2006-01-02 15:04:05")},
		{"Finished", report.FinishedAt.Format("2006-01-02 15:04:05")},
		{"Duration", report.Duration().Round(time.Second).String()},
		{"Fetched", report.Fetched},
		{"Matched", report.Matched},
		{"Ambiguous", report.Ambiguous},
		{"New clients", report.UnmatchedNew},
		{"Skipped", report.Skipped},
		{"Errors", report.Errors},
		{"Visits inserted", report.VisitsInserted},
		{"Parse warnings", report.ParseWarnings},
		{"Aborted", report.Aborted},
		{"Abort reason", report.AbortReason},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summary, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	outcomes := "Outcomes"
	if _, err := f.NewSheet(outcomes); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	header := make([]any, len(ReportOutcomeHeader))
	for i, h := range ReportOutcomeHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(outcomes, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, o := range report.Outcomes {
		row := []any{
			o.RemoteID,
			o.DisplayName,
			string(o.Status),
			o.Strategy,
			o.ClientID,
			o.CreatedNew,
			strings.Join(o.FieldsFilled, ", "),
			o.VisitsAdded,
			strings.Join(o.CandidateIDs, ", "),
			strings.Join(o.Suggestions, ", "),
			strings.Join(o.Warnings, " | "),
			o.Err,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(outcomes, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write outcome row: %w", err)
		}
	}

	return f, nil
}

// WriteReport saves the report workbook to path.
func WriteReport(report *domain.SyncReport, path string) error {
	f, err := ReportWorkbook(report)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report to %s: %w", path, err)
	}
	return nil
}

// RosterWorkbook builds an XLSX of the current client roster.
func RosterWorkbook(clients []domain.Client) (*excelize.File, error) {
	f := excelize.NewFile()

	sheet := "Clients"
	index, err := f.NewSheet(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	header := make([]any, len(RosterHeader))
	for i, h := range RosterHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i := range clients {
		c := &clients[i]
		dob := ""
		if c.DateOfBirth != nil {
			dob = c.DateOfBirth.Format("2006-01-02")
		}
		externalID := ""
		if c.ExternalID != nil {
			externalID = fmt.Sprintf("%d", *c.ExternalID)
		}
		row := []any{
			c.ID, c.FirstName, c.LastName, dob, externalID,
			c.VisaNumber, c.VisaType, c.Email,
			c.CzechPhone, c.UkrainianPhone, c.CzechCity,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write client row: %w", err)
		}
	}

	return f, nil
}

// WriteClientRoster saves the roster workbook to path.
func WriteClientRoster(clients []domain.Client, path string) error {
	f, err := RosterWorkbook(clients)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save roster to %s: %w", path, err)
	}
	return nil
}
