package lorebook

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/mrlokans/loremaster/internal/entities"
)

// Stats summarizes the entries of the active book.
type Stats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Constant int `json:"constant"`
	Tokens   int `json:"tokens"`
}

// Filter returns the entries whose comment, content, or any primary key
// contains query, ignoring case. An empty query matches everything.
func Filter(entries []entities.Entry, query string) []entities.Entry {
	result := make([]entities.Entry, 0, len(entries))
	if query == "" {
		return append(result, entries...)
	}

	term := strings.ToLower(query)
	for _, entry := range entries {
		if matches(entry, term) {
			result = append(result, entry)
		}
	}
	return result
}

func matches(entry entities.Entry, term string) bool {
	if strings.Contains(strings.ToLower(entry.Comment), term) {
		return true
	}
	if strings.Contains(strings.ToLower(entry.Content), term) {
		return true
	}
	for _, key := range entry.Key {
		if strings.Contains(strings.ToLower(key), term) {
			return true
		}
	}
	return false
}

// ComputeStats counts entries and estimates tokens as a quarter of each
// entry's content length in characters, rounded per entry.
func ComputeStats(entries []entities.Entry) Stats {
	stats := Stats{Total: len(entries)}
	for _, entry := range entries {
		if entry.Enabled {
			stats.Active++
		}
		if entry.Constant {
			stats.Constant++
		}
		if entry.Content != "" {
			stats.Tokens += EstimateTokens(entry.Content)
		}
	}
	return stats
}

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	return int(math.Round(float64(utf8.RuneCountInString(text)) / 4))
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	st := s.state
	st.Library = copyLibrary(s.state.Library)
	st.Entries = copyEntries(s.state.Entries)
	return st
}

// Subscribe registers fn to receive a snapshot after every state change and
// returns a function that removes it. fn runs on the goroutine that changed
// the state and must not call back into mutating Store methods.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// FilteredEntries returns the active entries matching the search query.
func (s *Store) FilteredEntries() []entities.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Filter(s.state.Entries, s.state.SearchQuery)
}

// Stats summarizes the active entries.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ComputeStats(s.state.Entries)
}

// HasLorebook reports whether a book is active.
func (s *Store) HasLorebook() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CurrentLorebookID != ""
}
