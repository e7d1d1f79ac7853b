// Package match resolves remote portal records to local clients.
package match

import (
	"sort"
	"strings"

	"cehupo-sync/internal/domain"
)

// Index is the in-memory snapshot of all local clients built once per run.
// Names are indexed in both token orders because the portal lists
// "Last First" while the local store keeps first/last split, and manual
// entries do not always agree on which is which. The snapshot is not
// refreshed mid-run: merges only add rows or fill empty fields, so match
// keys computed at load time stay valid.
type Index struct {
	byExternalID map[int64]string
	byName       map[string][]string
	clients      map[string]*domain.Client
}

// NormalizeName trims, folds whitespace and lowercases a display name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// NewIndex builds the lookup structures from a full client load.
func NewIndex(clients []domain.Client) *Index {
	idx := &Index{
		byExternalID: make(map[int64]string),
		byName:       make(map[string][]string),
		clients:      make(map[string]*domain.Client, len(clients)),
	}

	for i := range clients {
		c := &clients[i]
		idx.clients[c.ID] = c

		if c.ExternalID != nil {
			idx.byExternalID[*c.ExternalID] = c.ID
		}

		first := NormalizeName(c.FirstName)
		last := NormalizeName(c.LastName)
		if first == "" && last == "" {
			continue
		}
		idx.addName(first+" "+last, c.ID)
		if first != last {
			idx.addName(last+" "+first, c.ID)
		}
	}

	return idx
}

func (idx *Index) addName(key, clientID string) {
	key = strings.TrimSpace(key)
	for _, existing := range idx.byName[key] {
		if existing == clientID {
			return
		}
	}
	idx.byName[key] = append(idx.byName[key], clientID)
}

// ByExternalID returns the client linked to a portal id, if any.
func (idx *Index) ByExternalID(remoteID int64) (string, bool) {
	id, ok := idx.byExternalID[remoteID]
	return id, ok
}

// ByName returns every client indexed under the normalized name.
func (idx *Index) ByName(normalized string) []string {
	return idx.byName[normalized]
}

// Client returns the snapshot row for an id.
func (idx *Index) Client(id string) *domain.Client {
	return idx.clients[id]
}

// Size number of clients in the snapshot.
func (idx *Index) Size() int {
	return len(idx.clients)
}

// names returns all indexed name keys, sorted for deterministic iteration.
func (idx *Index) names() []string {
	keys := make([]string, 0, len(idx.byName))
	for k := range idx.byName {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
