package service

import (
	"fmt"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/mizutanik/shiori/internal/domain"
)

// List returns library entries, fuzzy-filtered by title when query is
// non-empty and ranked best match first. An empty query lists everything
// sorted by last build time, newest first.
func (s *Service) List(query string) ([]domain.LibraryEntry, error) {
	entries, err := s.store.List()
	if err != nil {
		return nil, fmt.Errorf("list library: %w", err)
	}

	if query == "" {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].LastBuiltAt.After(entries[j].LastBuiltAt)
		})
		return entries, nil
	}

	titles := make([]string, len(entries))
	for i, e := range entries {
		titles[i] = e.Title
	}
	matches := fuzzy.RankFindFold(query, titles)
	sort.Sort(matches)

	out := make([]domain.LibraryEntry, 0, len(matches))
	for _, m := range matches {
		out = append(out, entries[m.OriginalIndex])
	}
	return out, nil
}
