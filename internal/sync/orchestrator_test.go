package sync

import (
	"context"
	"fmt"
	"sort"
	stdsync "sync"
	"testing"

	"cehupo-sync/internal/domain"
	"cehupo-sync/internal/merge"
	"cehupo-sync/internal/portal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakePortal implements PortalClient against canned pages. expire holds,
// per remote id, how many fetches still come back as the sign-in page.
type fakePortal struct {
	mu         stdsync.Mutex
	gen        uint64
	failed     bool
	failReauth bool
	logins     int
	listing    string
	details    map[int64]string
	expire     map[int64]int
}

func (p *fakePortal) Authenticate(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	return nil
}

func (p *fakePortal) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

func (p *fakePortal) Reauthenticate(ctx context.Context, sinceGen uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failed {
		return portal.ErrSessionFailed
	}
	if p.gen > sinceGen {
		return nil
	}
	p.logins++
	if p.failReauth {
		p.failed = true
		return portal.ErrSessionFailed
	}
	p.gen++
	return nil
}

func (p *fakePortal) ListEntities(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failed {
		return "", portal.ErrSessionFailed
	}
	return p.listing, nil
}

func (p *fakePortal) FetchEntityDetail(ctx context.Context, remoteID int64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failed {
		return "", portal.ErrSessionFailed
	}
	if p.expire[remoteID] > 0 {
		p.expire[remoteID]--
		return "", portal.ErrSessionExpired
	}
	page, ok := p.details[remoteID]
	if !ok {
		return "", &portal.HTTPError{Status: 404}
	}
	return page, nil
}

type fakeLoader struct {
	clients []domain.Client
}

func (l *fakeLoader) LoadAll(ctx context.Context) ([]domain.Client, error) {
	return l.clients, nil
}

// fakeApplier mirrors the real merger's contract: ambiguous results mutate
// nothing, matched results fill every provided field, unmatched results
// create a client.
type fakeApplier struct {
	mu      stdsync.Mutex
	applied []domain.MatchKind
}

func (a *fakeApplier) Apply(ctx context.Context, rec *domain.RemoteRecord, res domain.MatchResult) (*merge.Outcome, error) {
	a.mu.Lock()
	a.applied = append(a.applied, res.Kind)
	a.mu.Unlock()

	switch res.Kind {
	case domain.MatchAmbiguous:
		return &merge.Outcome{}, nil
	case domain.MatchMatched:
		var filled []string
		for f := range rec.Fields {
			filled = append(filled, f)
		}
		sort.Strings(filled)
		return &merge.Outcome{ClientID: res.ClientID, FieldsFilled: filled, VisitsAdded: len(rec.Visits)}, nil
	default:
		return &merge.Outcome{ClientID: fmt.Sprintf("new-%d", rec.RemoteID), CreatedNew: true, VisitsAdded: len(rec.Visits)}, nil
	}
}

func listingPage(rows ...domain.ListedEntity) string {
	page := `<html><body><table id="TableCustomer"><tbody>`
	for i, r := range rows {
		page += fmt.Sprintf(
			`<tr><td>%d</td><td><a href="/customer/viewcustomer/%d">%s</a></td><td>%s</td><td>%s</td><td></td><td>%s</td><td>%s</td></tr>`,
			i+1, r.RemoteID, r.DisplayName, r.Gender, r.DateOfBirth, r.VisaNumber, r.City,
		)
	}
	return page + `</tbody></table></body></html>`
}

func detailPage(email string) string {
	return fmt.Sprintf(
		`<html><body><div class="invoice-col"><p>Email: %s</p></div></body></html>`,
		email,
	)
}

func newTestOrchestrator(p *fakePortal, loader *fakeLoader, applier *fakeApplier, opts Options) *Orchestrator {
	if opts.MaxConcurrent == 0 {
		opts.MaxConcurrent = 2
	}
	return NewOrchestrator(p, loader, applier, opts, zap.NewNop())
}

func outcomeFor(report *domain.SyncReport, remoteID int64) *domain.EntityOutcome {
	for i := range report.Outcomes {
		if report.Outcomes[i].RemoteID == remoteID {
			return &report.Outcomes[i]
		}
	}
	return nil
}

func TestRun_MatchedAmbiguousAndNew(t *testing.T) {
	p := &fakePortal{
		listing: listingPage(
			domain.ListedEntity{RemoteID: 10, DisplayName: "Novak Jan"},
			domain.ListedEntity{RemoteID: 11, DisplayName: "Kovalenko Olena"},
			domain.ListedEntity{RemoteID: 12, DisplayName: "Shevchenko Petro"},
		),
		details: map[int64]string{
			10: detailPage("jan@example.com"),
			11: detailPage("olena@example.com"),
			12: detailPage("petro@example.com"),
		},
	}
	loader := &fakeLoader{clients: []domain.Client{
		{ID: "a", FirstName: "Jan", LastName: "Novak"},
		{ID: "b", FirstName: "Olena", LastName: "Kovalenko"},
		{ID: "c", FirstName: "Olena", LastName: "Kovalenko"},
	}}
	applier := &fakeApplier{}

	report, err := newTestOrchestrator(p, loader, applier, Options{}).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 1, report.Matched)
	assert.Equal(t, 1, report.Ambiguous)
	assert.Equal(t, 1, report.UnmatchedNew)
	assert.Equal(t, 0, report.Errors)
	assert.False(t, report.Aborted)

	matched := outcomeFor(report, 10)
	require.NotNil(t, matched)
	assert.Equal(t, domain.OutcomeSuccess, matched.Status)
	assert.Equal(t, "a", matched.ClientID)
	assert.Equal(t, domain.StrategyName, matched.Strategy)
	assert.Contains(t, matched.FieldsFilled, domain.FieldEmail)

	ambiguous := outcomeFor(report, 11)
	require.NotNil(t, ambiguous)
	assert.Equal(t, domain.OutcomeAmbiguous, ambiguous.Status)
	assert.ElementsMatch(t, []string{"b", "c"}, ambiguous.CandidateIDs)
	assert.Empty(t, ambiguous.ClientID)

	created := outcomeFor(report, 12)
	require.NotNil(t, created)
	assert.Equal(t, domain.OutcomeSuccess, created.Status)
	assert.True(t, created.CreatedNew)
}

func TestRun_SecondPassMatchesByExternalID(t *testing.T) {
	p := &fakePortal{
		listing: listingPage(domain.ListedEntity{RemoteID: 12, DisplayName: "Shevchenko Petro"}),
		details: map[int64]string{12: detailPage("petro@example.com")},
	}
	applier := &fakeApplier{}

	// First run: nobody matches, a new client is created.
	loader := &fakeLoader{}
	report, err := newTestOrchestrator(p, loader, applier, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.UnmatchedNew)

	// Second run against a store that now carries the imported client:
	// the external id links them without touching the name heuristics.
	externalID := int64(12)
	loader = &fakeLoader{clients: []domain.Client{
		{ID: "new-12", FirstName: "Petro", LastName: "Shevchenko", ExternalID: &externalID},
	}}
	report, err = newTestOrchestrator(p, loader, applier, Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Matched)
	assert.Equal(t, 0, report.UnmatchedNew)
	out := outcomeFor(report, 12)
	require.NotNil(t, out)
	assert.Equal(t, domain.StrategyExternalID, out.Strategy)
	assert.False(t, out.CreatedNew)
}

func TestRun_ReauthenticatesOnceAndRetries(t *testing.T) {
	p := &fakePortal{
		listing: listingPage(domain.ListedEntity{RemoteID: 10, DisplayName: "Novak Jan"}),
		details: map[int64]string{10: detailPage("jan@example.com")},
		expire:  map[int64]int{10: 1},
	}
	loader := &fakeLoader{clients: []domain.Client{{ID: "a", FirstName: "Jan", LastName: "Novak"}}}
	applier := &fakeApplier{}

	report, err := newTestOrchestrator(p, loader, applier, Options{}).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, p.logins)
	assert.Equal(t, 1, report.Matched)
	assert.Equal(t, 0, report.Errors)
}

func TestRun_SecondExpiryIsAnError(t *testing.T) {
	p := &fakePortal{
		listing: listingPage(domain.ListedEntity{RemoteID: 10, DisplayName: "Novak Jan"}),
		details: map[int64]string{10: detailPage("jan@example.com")},
		expire:  map[int64]int{10: 2}, // still the sign-in page after re-login
	}
	loader := &fakeLoader{}
	applier := &fakeApplier{}

	report, err := newTestOrchestrator(p, loader, applier, Options{}).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, p.logins)
	assert.Equal(t, 1, report.Errors)

	out := outcomeFor(report, 10)
	require.NotNil(t, out)
	assert.Equal(t, domain.OutcomeError, out.Status)
	assert.Contains(t, out.Err, "fetch")
	assert.Empty(t, applier.applied)
}

func TestRun_TerminalSessionFailure(t *testing.T) {
	p := &fakePortal{
		listing: listingPage(
			domain.ListedEntity{RemoteID: 10, DisplayName: "Novak Jan"},
			domain.ListedEntity{RemoteID: 11, DisplayName: "Kovalenko Olena"},
			domain.ListedEntity{RemoteID: 12, DisplayName: "Shevchenko Petro"},
		),
		details:    map[int64]string{},
		expire:     map[int64]int{10: 9, 11: 9, 12: 9},
		failReauth: true,
	}
	loader := &fakeLoader{}
	applier := &fakeApplier{}

	report, err := newTestOrchestrator(p, loader, applier, Options{MaxConcurrent: 1}).Run(context.Background())

	require.NoError(t, err)
	assert.Len(t, report.Outcomes, 3)
	assert.Equal(t, 3, report.Errors+report.Skipped)
	assert.Equal(t, 0, report.Matched+report.UnmatchedNew+report.Ambiguous)
	assert.Empty(t, applier.applied)
}

func TestRun_ClientLimit(t *testing.T) {
	p := &fakePortal{
		listing: listingPage(
			domain.ListedEntity{RemoteID: 10, DisplayName: "Novak Jan"},
			domain.ListedEntity{RemoteID: 11, DisplayName: "Kovalenko Olena"},
			domain.ListedEntity{RemoteID: 12, DisplayName: "Shevchenko Petro"},
		),
		details: map[int64]string{
			10: detailPage("jan@example.com"),
			11: detailPage("olena@example.com"),
			12: detailPage("petro@example.com"),
		},
	}
	loader := &fakeLoader{}
	applier := &fakeApplier{}

	report, err := newTestOrchestrator(p, loader, applier, Options{ClientLimit: 2}).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, report.Fetched)
	assert.Len(t, report.Outcomes, 2)
}

func TestRun_CancelledContextAborts(t *testing.T) {
	p := &fakePortal{
		listing: listingPage(domain.ListedEntity{RemoteID: 10, DisplayName: "Novak Jan"}),
		details: map[int64]string{10: detailPage("jan@example.com")},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newTestOrchestrator(p, &fakeLoader{}, &fakeApplier{}, Options{}).Run(ctx)

	assert.Error(t, err)
	assert.True(t, report.Aborted)
}

func TestSupplementFromListing(t *testing.T) {
	rec := &domain.RemoteRecord{
		RemoteID: 7,
		Fields:   map[string]string{domain.FieldCzechCity: "Ostrava"},
	}
	supplementFromListing(rec, domain.ListedEntity{
		RemoteID:    7,
		DisplayName: "Novak Jan",
		Gender:      "M",
		DateOfBirth: "01.05.1985",
		VisaNumber:  "VZ1",
		City:        "Praha",
	})

	assert.Equal(t, "Novak Jan", rec.DisplayName)
	require.NotNil(t, rec.DateOfBirth)
	assert.Equal(t, "M", rec.Fields[domain.FieldGender])
	assert.Equal(t, "VZ1", rec.Fields[domain.FieldVisaNumber])
	// The detail page's value wins over the listing's.
	assert.Equal(t, "Ostrava", rec.Fields[domain.FieldCzechCity])
}
