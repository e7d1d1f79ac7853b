// Package scrape turns raw portal pages into RemoteRecord values. It is
// pure: no network, no database, fixtures in, values out.
package scrape

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"cehupo-sync/internal/domain"

	"golang.org/x/net/html"
)

var viewCustomerHref = regexp.MustCompile(`/viewcustomer/(\d+)`)

// ParseEntityList extracts the customer enumeration from the portal's list
// page (table#TableCustomer). Rows without a detail link are skipped with a
// warning; the listing is the source of remote ids for a run.
func ParseEntityList(page string) ([]domain.ListedEntity, []string, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse list page: %w", err)
	}

	table := findByID(doc, "table", "TableCustomer")
	if table == nil {
		return nil, nil, fmt.Errorf("customer table not found on list page")
	}

	var (
		entities []domain.ListedEntity
		warnings []string
	)
	for _, row := range tableRows(table) {
		cells := childElements(row, "td")
		if len(cells) < 7 {
			continue
		}

		link := findElement(cells[1], "a")
		if link == nil {
			warnings = append(warnings, fmt.Sprintf("list row %q has no detail link", normalizeSpace(textWithBreaks(cells[1]))))
			continue
		}
		m := viewCustomerHref.FindStringSubmatch(attrValue(link, "href"))
		if m == nil {
			warnings = append(warnings, fmt.Sprintf("list row %q has an unrecognized detail link", normalizeSpace(textWithBreaks(link))))
			continue
		}
		remoteID, _ := strconv.ParseInt(m[1], 10, 64)

		entities = append(entities, domain.ListedEntity{
			RemoteID:    remoteID,
			DisplayName: normalizeSpace(textWithBreaks(link)),
			Gender:      normalizeSpace(textWithBreaks(cells[2])),
			DateOfBirth: normalizeSpace(textWithBreaks(cells[3])),
			VisaNumber:  normalizeSpace(textWithBreaks(cells[5])),
			City:        normalizeSpace(textWithBreaks(cells[6])),
		})
	}

	return entities, warnings, nil
}

// ParseEntityDetail extracts one RemoteRecord from a customer detail page.
// Attributes come from the labelled info sections (div.invoice-col) with a
// form-input fallback; visit history comes from table#visit. Absent fields
// stay absent, blank values are never stored.
func ParseEntityDetail(page string, remoteID int64) (*domain.RemoteRecord, []string, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse detail page: %w", err)
	}

	rec := &domain.RemoteRecord{
		RemoteID: remoteID,
		Fields:   make(map[string]string),
	}
	var warnings []string

	for _, section := range findByClass(doc, "div", "invoice-col") {
		parseLabelledSection(textWithBreaks(section), rec, &warnings)
	}

	parseFormFallback(doc, rec)

	if visitTable := findByID(doc, "table", "visit"); visitTable != nil {
		rec.Visits, warnings = parseVisitTable(visitTable, warnings)
	}

	if rec.DisplayName == "" && len(rec.Fields) == 0 && len(rec.Visits) == 0 {
		return nil, warnings, fmt.Errorf("page for customer %d does not look like a detail page", remoteID)
	}

	return rec, warnings, nil
}

// parseLabelledSection scans one "label: value" info block. Values run to
// the end of their line. Date-typed fields are normalized to ISO form.
func parseLabelledSection(text string, rec *domain.RemoteRecord, warnings *[]string) {
	for _, line := range strings.Split(text, "\n") {
		line = normalizeSpace(line)
		if line == "" {
			continue
		}

		if rec.DateOfBirth == nil {
			if value, ok := labelValue(line, "Дата рождения:"); ok && value != "" {
				if dob, err := parsePortalDate(value); err == nil {
					rec.DateOfBirth = &dob
				} else {
					*warnings = append(*warnings, fmt.Sprintf("customer %d: %v", rec.RemoteID, err))
				}
				continue
			}
		}

		for _, fm := range detailFields {
			if fm.Label == "" {
				continue
			}
			value, ok := labelValue(line, fm.Label)
			if !ok || value == "" {
				continue
			}
			if dateFields[fm.Canonical] {
				t, err := parsePortalDate(value)
				if err != nil {
					*warnings = append(*warnings, fmt.Sprintf("customer %d field %s: %v", rec.RemoteID, fm.Canonical, err))
					continue
				}
				value = t.Format("2006-01-02")
			}
			if _, exists := rec.Fields[fm.Canonical]; !exists {
				rec.Fields[fm.Canonical] = value
			}
		}
	}
}

// labelValue returns the text following label on the line.
func labelValue(line, label string) (string, bool) {
	idx := strings.Index(line, label)
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(line[idx+len(label):]), true
}

// parseFormFallback fills attributes from form inputs when the labelled
// sections did not carry them, and recovers the display name from the edit
// form's name fields.
func parseFormFallback(doc *html.Node, rec *domain.RemoteRecord) {
	var first, last string

	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || (n.Data != "input" && n.Data != "textarea") {
			return
		}
		name := strings.ToLower(attrValue(n, "name"))
		if name == "" {
			return
		}
		value := strings.TrimSpace(attrValue(n, "value"))
		if value == "" && n.Data == "textarea" {
			value = normalizeSpace(textWithBreaks(n))
		}
		if value == "" {
			return
		}

		switch {
		case strings.Contains(name, "firstname"):
			first = value
		case strings.Contains(name, "lastname") || strings.Contains(name, "surname"):
			last = value
		case strings.Contains(name, "birth") || strings.Contains(name, "dob"):
			if rec.DateOfBirth == nil {
				if dob, err := parsePortalDate(value); err == nil {
					rec.DateOfBirth = &dob
				}
			}
		default:
			for _, fm := range detailFields {
				if fm.InputName == "" || !strings.Contains(name, fm.InputName) {
					continue
				}
				if _, exists := rec.Fields[fm.Canonical]; !exists && !dateFields[fm.Canonical] {
					rec.Fields[fm.Canonical] = value
				}
				break
			}
		}
	})

	if first != "" || last != "" {
		rec.FirstName = first
		rec.LastName = last
		if rec.DisplayName == "" {
			rec.DisplayName = normalizeSpace(first + " " + last)
		}
	}
}

// parseVisitTable reads the visit history rows: number, date, comma
// separated reasons, notes, time spent. Rows with a missing or unparseable
// date are dropped with a warning, never guessed.
func parseVisitTable(table *html.Node, warnings []string) ([]domain.RemoteVisit, []string) {
	var visits []domain.RemoteVisit

	for _, row := range tableRows(table) {
		cells := childElements(row, "td")
		if len(cells) < 5 {
			continue
		}

		dateText := normalizeSpace(textWithBreaks(cells[1]))
		date, err := parsePortalDate(dateText)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("visit row dropped: %v", err))
			continue
		}

		var reasons []string
		for _, r := range strings.Split(textWithBreaks(cells[2]), ",") {
			if r = normalizeSpace(r); r != "" {
				reasons = append(reasons, r)
			}
		}

		visit := domain.RemoteVisit{
			Date:       date,
			ReasonTags: reasons,
			Notes:      normalizeSpace(textWithBreaks(cells[3])),
		}
		if minutes, err := parseTimeSpent(normalizeSpace(textWithBreaks(cells[4]))); err == nil {
			visit.DurationMinutes = &minutes
		}

		visits = append(visits, visit)
	}

	return visits, warnings
}
