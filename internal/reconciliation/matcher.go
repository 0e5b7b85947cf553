package reconciliation

import (
	"github.com/fortuna/hockeysync/internal/store"
)

// AttachOfficials assigns the officials recorded for m's id. Matches with no
// entry get an empty list.
func AttachOfficials(m *store.Match, officials map[string][]*store.Official) {
	m.SetOfficials(officials[m.ID])
}

// Assignment links an official to a match.
type Assignment struct {
	MatchID  string
	Official *store.Official
}

// GroupOfficials builds the match id to officials mapping from flat
// assignments, keeping assignment order and dropping repeated officials per
// match.
func GroupOfficials(assignments []Assignment) map[string][]*store.Official {
	grouped := make(map[string][]*store.Official)
	seen := make(map[string]map[string]bool)

	for _, a := range assignments {
		if a.MatchID == "" || a.Official == nil {
			continue
		}
		if seen[a.MatchID] == nil {
			seen[a.MatchID] = make(map[string]bool)
		}
		if seen[a.MatchID][a.Official.ID] {
			continue
		}
		seen[a.MatchID][a.Official.ID] = true
		grouped[a.MatchID] = append(grouped[a.MatchID], a.Official)
	}

	return grouped
}
