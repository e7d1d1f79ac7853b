// Package sync drives a reconciliation run against the CeHuPo portal:
// enumerate remote customers, then fetch, parse, resolve and merge each one
// under bounded concurrency.
package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"sync/atomic"
	"time"

	"cehupo-sync/internal/domain"
	"cehupo-sync/internal/match"
	"cehupo-sync/internal/merge"
	"cehupo-sync/internal/portal"
	"cehupo-sync/internal/scrape"

	"go.uber.org/zap"
)

// PortalClient is the remote portal boundary: login, enumeration, detail
// fetches and single-flight recovery from session expiry.
type PortalClient interface {
	Authenticate(ctx context.Context) error
	Generation() uint64
	Reauthenticate(ctx context.Context, sinceGen uint64) error
	ListEntities(ctx context.Context) (string, error)
	FetchEntityDetail(ctx context.Context, remoteID int64) (string, error)
}

// ClientLoader loads the full local client snapshot for the run index.
type ClientLoader interface {
	LoadAll(ctx context.Context) ([]domain.Client, error)
}

// Applier applies one resolved record to the datastore.
type Applier interface {
	Apply(ctx context.Context, rec *domain.RemoteRecord, res domain.MatchResult) (*merge.Outcome, error)
}

// Options run tuning.
type Options struct {
	MaxConcurrent int
	RequestDelay  time.Duration
	ClientLimit   int // >0 caps processed entities (test runs)
}

// Orchestrator coordinates one end-to-end sync run.
type Orchestrator struct {
	portal  PortalClient
	clients ClientLoader
	merger  Applier
	opts    Options
	logger  *zap.Logger
}

func NewOrchestrator(p PortalClient, clients ClientLoader, merger Applier, opts Options, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{portal: p, clients: clients, merger: merger, opts: opts, logger: logger}
}

// Run executes one full reconciliation. Authentication failure at the start
// is fatal; everything after that is isolated per entity, and partial
// progress survives any abort because each entity commits independently.
func (o *Orchestrator) Run(ctx context.Context) (*domain.SyncReport, error) {
	report := domain.NewSyncReport()
	defer func() { report.FinishedAt = time.Now() }()

	locals, err := o.clients.LoadAll(ctx)
	if err != nil {
		report.Aborted = true
		report.AbortReason = "loading local clients failed"
		return report, fmt.Errorf("load local clients: %w", err)
	}
	index := match.NewIndex(locals)
	resolver := match.NewResolver(index)
	o.logger.Info("local index loaded", zap.Int("clients", index.Size()))

	if err := o.portal.Authenticate(ctx); err != nil {
		report.Aborted = true
		report.AbortReason = "portal authentication failed"
		return report, fmt.Errorf("portal authentication: %w", err)
	}

	gate := NewGate(o.opts.MaxConcurrent, o.opts.RequestDelay)

	entities, err := o.fetchListing(ctx, gate)
	if err != nil {
		report.Aborted = true
		report.AbortReason = "customer listing failed"
		return report, err
	}
	if o.opts.ClientLimit > 0 && len(entities) > o.opts.ClientLimit {
		o.logger.Info("limiting run", zap.Int("limit", o.opts.ClientLimit), zap.Int("listed", len(entities)))
		entities = entities[:o.opts.ClientLimit]
	}
	o.logger.Info("customer listing fetched", zap.Int("entities", len(entities)))

	// sessionFailed flips when a worker observes the session's terminal
	// state; no further tasks are scheduled after that.
	var sessionFailed atomic.Bool

	outcomes := make(chan domain.EntityOutcome, len(entities))
	var wg stdsync.WaitGroup

	for i, ent := range entities {
		if ctx.Err() != nil || sessionFailed.Load() {
			report.Aborted = true
			if ctx.Err() != nil {
				report.AbortReason = "cancelled"
			} else {
				report.AbortReason = "portal session failed"
			}
			for _, rest := range entities[i:] {
				outcomes <- domain.EntityOutcome{
					RemoteID:    rest.RemoteID,
					DisplayName: rest.DisplayName,
					Status:      domain.OutcomeSkipped,
				}
			}
			break
		}

		wg.Add(1)
		go func(ent domain.ListedEntity) {
			defer wg.Done()
			out, terminal := o.processEntity(ctx, gate, resolver, ent)
			if terminal {
				sessionFailed.Store(true)
			}
			outcomes <- out
		}(ent)
	}

	wg.Wait()
	close(outcomes)
	for out := range outcomes {
		report.Record(out)
	}

	o.logger.Info("sync run finished",
		zap.Int("fetched", report.Fetched),
		zap.Int("matched", report.Matched),
		zap.Int("ambiguous", report.Ambiguous),
		zap.Int("new_clients", report.UnmatchedNew),
		zap.Int("visits_inserted", report.VisitsInserted),
		zap.Int("errors", report.Errors),
		zap.Bool("aborted", report.Aborted),
	)

	return report, nil
}

// fetchListing retrieves and parses the customer enumeration page. The
// listing call is gated and recovers from expiry like any other fetch.
func (o *Orchestrator) fetchListing(ctx context.Context, gate *Gate) ([]domain.ListedEntity, error) {
	release, err := gate.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("customer listing: %w", err)
	}
	defer release()

	page, err := o.fetchWithReauth(ctx, func() (string, error) {
		return o.portal.ListEntities(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("customer listing: %w", err)
	}

	entities, warnings, err := scrape.ParseEntityList(page)
	if err != nil {
		return nil, fmt.Errorf("customer listing: %w", err)
	}
	for _, w := range warnings {
		o.logger.Warn("customer listing", zap.String("warning", w))
	}
	return entities, nil
}

// processEntity runs the full per-entity pipeline: gate, fetch, parse,
// resolve, merge. Every failure path yields an explicit outcome; nothing is
// swallowed. The second return value reports that the portal session hit
// its terminal state, which stops the scheduling of further tasks.
func (o *Orchestrator) processEntity(ctx context.Context, gate *Gate, resolver *match.Resolver, ent domain.ListedEntity) (domain.EntityOutcome, bool) {
	out := domain.EntityOutcome{RemoteID: ent.RemoteID, DisplayName: ent.DisplayName}

	release, err := gate.Acquire(ctx)
	if err != nil {
		out.Status = domain.OutcomeSkipped
		return out, false
	}
	defer release()

	page, err := o.fetchWithReauth(ctx, func() (string, error) {
		return o.portal.FetchEntityDetail(ctx, ent.RemoteID)
	})
	if err != nil {
		out.Status = domain.OutcomeError
		out.Err = fmt.Sprintf("fetch: %v", err)
		return out, errors.Is(err, portal.ErrSessionFailed)
	}
	out.Fetched = true

	rec, warnings, err := scrape.ParseEntityDetail(page, ent.RemoteID)
	out.Warnings = warnings
	if err != nil {
		out.Status = domain.OutcomeError
		out.Err = fmt.Sprintf("parse: %v", err)
		return out, false
	}
	supplementFromListing(rec, ent)

	res := resolver.Resolve(rec)
	out.Strategy = res.Strategy
	out.CandidateIDs = res.CandidateIDs
	out.Suggestions = res.Suggestions

	merged, err := o.merger.Apply(ctx, rec, res)
	if err != nil {
		out.Status = domain.OutcomeError
		out.Err = fmt.Sprintf("merge: %v", err)
		return out, false
	}

	if res.Kind == domain.MatchAmbiguous {
		out.Status = domain.OutcomeAmbiguous
		return out, false
	}

	out.Status = domain.OutcomeSuccess
	out.ClientID = merged.ClientID
	out.CreatedNew = merged.CreatedNew
	out.FieldsFilled = merged.FieldsFilled
	out.VisitsAdded = merged.VisitsAdded
	return out, false
}

// fetchWithReauth recovers from one session expiry: re-authenticate (single
// flight across workers) and retry the fetch exactly once. A second expiry
// propagates as the task's error.
func (o *Orchestrator) fetchWithReauth(ctx context.Context, fetch func() (string, error)) (string, error) {
	gen := o.portal.Generation()

	page, err := fetch()
	if !errors.Is(err, portal.ErrSessionExpired) {
		return page, err
	}

	if rerr := o.portal.Reauthenticate(ctx, gen); rerr != nil {
		return "", rerr
	}
	return fetch()
}

// supplementFromListing backfills attributes the detail page did not carry
// with the ones the enumeration row showed.
func supplementFromListing(rec *domain.RemoteRecord, ent domain.ListedEntity) {
	if rec.DisplayName == "" {
		rec.DisplayName = ent.DisplayName
	}
	if rec.DateOfBirth == nil && ent.DateOfBirth != "" {
		if dob, err := scrape.ParseDate(ent.DateOfBirth); err == nil {
			rec.DateOfBirth = &dob
		}
	}
	if _, ok := rec.Fields[domain.FieldVisaNumber]; !ok && ent.VisaNumber != "" {
		rec.Fields[domain.FieldVisaNumber] = ent.VisaNumber
	}
	if _, ok := rec.Fields[domain.FieldCzechCity]; !ok && ent.City != "" {
		rec.Fields[domain.FieldCzechCity] = ent.City
	}
	if _, ok := rec.Fields[domain.FieldGender]; !ok && ent.Gender != "" {
		rec.Fields[domain.FieldGender] = ent.Gender
	}
}
