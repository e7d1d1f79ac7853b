package match

import (
	"sort"
	"time"

	"cehupo-sync/internal/domain"

	"github.com/agnivade/levenshtein"
)

// maxSuggestionDistance bounds the edit distance for near-miss hints.
const maxSuggestionDistance = 2

// maxSuggestions caps how many hints an unmatched record carries.
const maxSuggestions = 5

// Resolver applies the identity-matching strategies in order; the first
// decisive one wins. It never guesses: several equally-valid name candidates
// yield an ambiguous result for manual resolution.
type Resolver struct {
	index *Index
}

func NewResolver(index *Index) *Resolver {
	return &Resolver{index: index}
}

// Resolve maps a RemoteRecord to zero or one local client.
//
// Strategy 1: external id. A client already linked to this portal id is
// authoritative and short-circuits everything else.
// Strategy 2: normalized display name, both token orders, refined by date
// of birth when both sides carry one.
func (r *Resolver) Resolve(rec *domain.RemoteRecord) domain.MatchResult {
	if clientID, ok := r.index.ByExternalID(rec.RemoteID); ok {
		return domain.Matched(clientID, domain.StrategyExternalID)
	}

	normalized := NormalizeName(rec.DisplayName)
	if normalized == "" {
		return domain.Unmatched()
	}

	candidates := r.compatibleCandidates(normalized, rec)

	switch len(candidates) {
	case 1:
		return domain.Matched(candidates[0], domain.StrategyName)
	case 0:
		result := domain.Unmatched()
		result.Suggestions = r.suggestions(normalized)
		return result
	default:
		return domain.Ambiguous(candidates)
	}
}

// compatibleCandidates returns name matches that do not conflict on date of
// birth. A candidate with a different recorded birth date is a different
// person regardless of the name.
func (r *Resolver) compatibleCandidates(normalized string, rec *domain.RemoteRecord) []string {
	var out []string
	for _, id := range r.index.ByName(normalized) {
		c := r.index.Client(id)
		if c == nil {
			continue
		}
		if rec.DateOfBirth != nil && c.DateOfBirth != nil && !sameDay(*rec.DateOfBirth, *c.DateOfBirth) {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// suggestions lists clients whose indexed name is within a small edit
// distance of the remote name. Purely informational, never decisive.
func (r *Resolver) suggestions(normalized string) []string {
	type hint struct {
		id       string
		distance int
	}
	var hints []hint
	seen := make(map[string]bool)

	for _, name := range r.index.names() {
		d := levenshtein.ComputeDistance(normalized, name)
		if d == 0 || d > maxSuggestionDistance {
			continue
		}
		for _, id := range r.index.ByName(name) {
			if seen[id] {
				continue
			}
			seen[id] = true
			hints = append(hints, hint{id: id, distance: d})
		}
	}

	sort.Slice(hints, func(i, j int) bool {
		if hints[i].distance != hints[j].distance {
			return hints[i].distance < hints[j].distance
		}
		return hints[i].id < hints[j].id
	})
	if len(hints) > maxSuggestions {
		hints = hints[:maxSuggestions]
	}

	out := make([]string, len(hints))
	for i, h := range hints {
		out[i] = h.id
	}
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
