package domain

// Match strategies, recorded in outcomes so operators can audit how a
// remote record was linked.
const (
	StrategyExternalID = "external_id"
	StrategyName       = "name"
)

// MatchKind discriminates MatchResult variants.
type MatchKind int

const (
	MatchUnmatched MatchKind = iota
	MatchMatched
	MatchAmbiguous
)

// MatchResult outcome of resolving one RemoteRecord against the local index.
// Computed per run, never persisted.
type MatchResult struct {
	Kind     MatchKind
	ClientID string // set when Kind == MatchMatched
	Strategy string // set when Kind == MatchMatched

	// CandidateIDs carries every equally-valid client for an ambiguous
	// match. The engine never guesses among them.
	CandidateIDs []string

	// Suggestions are near-miss client ids for unmatched records, ranked by
	// name edit distance. Informational only.
	Suggestions []string
}

// Matched builds a decisive match result.
func Matched(clientID, strategy string) MatchResult {
	return MatchResult{Kind: MatchMatched, ClientID: clientID, Strategy: strategy}
}

// Ambiguous builds an ambiguous result carrying all candidates.
func Ambiguous(candidateIDs []string) MatchResult {
	return MatchResult{Kind: MatchAmbiguous, CandidateIDs: candidateIDs}
}

// Unmatched builds a no-candidate result.
func Unmatched() MatchResult {
	return MatchResult{Kind: MatchUnmatched}
}
