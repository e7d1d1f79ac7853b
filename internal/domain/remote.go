package domain

import "time"

// Canonical attribute names for RemoteRecord.Fields. One field-mapping
// table in the scraper produces these; the merger maps them onto client
// columns. Keeping the set closed here is what lets many near-identical
// extraction paths collapse into one parser.
const (
	FieldGender           = "gender"
	FieldVisaNumber       = "visa_number"
	FieldVisaType         = "visa_type"
	FieldEmail            = "email"
	FieldCzechPhone       = "czech_phone"
	FieldUkrainianPhone   = "ukrainian_phone"
	FieldCzechAddress     = "czech_address"
	FieldCzechCity        = "czech_city"
	FieldHomeAddress      = "home_address"
	FieldRegistrationDate = "registration_date"
	FieldArrivalDate      = "arrival_date"
	FieldNotes            = "notes"
)

// RemoteRecord one parsed snapshot of a portal customer detail page.
// Immutable once constructed; produced fresh on every fetch.
type RemoteRecord struct {
	RemoteID    int64
	DisplayName string // unparsed full name as the portal renders it

	// FirstName/LastName are set when the detail page's edit form carries
	// split name fields; otherwise only DisplayName is known and its token
	// order is the portal's ("Last First").
	FirstName string
	LastName  string

	DateOfBirth *time.Time

	// Fields holds every extractable attribute keyed by the canonical names
	// above. Absent keys mean "not present on the page"; blank values are
	// never stored, so the merge policy sees both cases as no information.
	Fields map[string]string

	Visits []RemoteVisit
}

// Field returns the value and whether the attribute was present on the page.
func (r *RemoteRecord) Field(name string) (string, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// RemoteVisit one row of the portal's visit history table.
type RemoteVisit struct {
	Date            time.Time
	ReasonTags      []string
	Notes           string
	DurationMinutes *int
}

// ListedEntity one row of the portal's customer enumeration page.
type ListedEntity struct {
	RemoteID    int64
	DisplayName string
	Gender      string
	DateOfBirth string // raw portal format, parsed later on the detail page
	VisaNumber  string
	City        string
}
