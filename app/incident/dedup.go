package incident

import (
	"cmp"
	"slices"
)

// Dedup collapses incidents sharing an ID into one record per ID, resolved
// by source priority. The result is sorted by ID.
func Dedup(incidents []Incident) []Incident {
	groups := make(map[string][]Incident)
	for _, inc := range incidents {
		groups[inc.ID] = append(groups[inc.ID], inc)
	}

	out := make([]Incident, 0, len(groups))
	for _, group := range groups {
		out = append(out, resolve(group))
	}

	slices.SortFunc(out, func(a, b Incident) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Resolve merges two reports of the same incident. On a full tie the
// existing record wins.
func Resolve(existing, incoming Incident) Incident {
	return resolve([]Incident{existing, incoming})
}

// resolve keeps the highest-priority record whole and only fills its empty
// descriptive fields from the others, in rank order.
func resolve(group []Incident) Incident {
	ranked := slices.Clone(group)
	slices.SortStableFunc(ranked, func(a, b Incident) int {
		return cmp.Or(
			cmp.Compare(b.SourceType.Priority(), a.SourceType.Priority()),
			cmp.Compare(a.Source, b.Source),
			cmp.Compare(a.URL, b.URL),
		)
	})

	winner := ranked[0].Clone()
	for _, other := range ranked[1:] {
		winner.Summary = cmp.Or(winner.Summary, other.Summary)
		winner.Body = cmp.Or(winner.Body, other.Body)
		winner.Source = cmp.Or(winner.Source, other.Source)
		winner.Notes = cmp.Or(winner.Notes, other.Notes)
		if winner.PublishedAt.IsZero() {
			winner.PublishedAt = other.PublishedAt
		}
	}
	return winner
}
