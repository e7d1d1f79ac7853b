package scrape

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cehupo-sync/internal/domain"
)

// fieldMapping binds one portal label (or form input name) to a canonical
// attribute. The portal renders labels in Russian; the same table serves
// every detail page so there is exactly one place to extend when the portal
// grows a field.
type fieldMapping struct {
	Label     string // "label:" prefix inside an info section
	InputName string // fallback form input/textarea name, "" when none
	Canonical string
}

var detailFields = []fieldMapping{
	{Label: "Дата регистрации:", Canonical: domain.FieldRegistrationDate},
	{Label: "Примечание:", Canonical: domain.FieldNotes},
	{Label: "Дата приезда в чехию:", Canonical: domain.FieldArrivalDate},
	{Label: "Тип визы:", InputName: "visa_type", Canonical: domain.FieldVisaType},
	{Label: "Номер визы:", InputName: "visa", Canonical: domain.FieldVisaNumber},
	{Label: "Город:", Canonical: domain.FieldCzechCity},
	{Label: "Улица:", InputName: "address", Canonical: domain.FieldCzechAddress},
	{Label: "Телефон CZ:", InputName: "phone_cz", Canonical: domain.FieldCzechPhone},
	{Label: "Телефон UA:", InputName: "phone_ua", Canonical: domain.FieldUkrainianPhone},
	{Label: "Email:", InputName: "email", Canonical: domain.FieldEmail},
	{Label: "Домашний адрес:", Canonical: domain.FieldHomeAddress},
	{Label: "Пол:", InputName: "gender", Canonical: domain.FieldGender},
}

// dateFields are stored as ISO dates after parsing the portal's
// day-month-year form; unparseable values are dropped, never guessed.
var dateFields = map[string]bool{
	domain.FieldRegistrationDate: true,
	domain.FieldArrivalDate:      true,
}

// normalizeSpace folds whitespace runs and trims.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParseDate parses the portal's DD.MM.YYYY format. A bare ISO date is
// accepted too since some portal exports already use it.
func ParseDate(s string) (time.Time, error) {
	return parsePortalDate(s)
}

func parsePortalDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.Parse("2.1.2006", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("02.01.2006", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// parseTimeSpent converts the visit table's HH:MM:SS duration to whole
// minutes. Seconds are truncated.
func parseTimeSpent(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("unparseable duration %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("unparseable duration %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("unparseable duration %q", s)
	}
	return h*60 + m, nil
}
