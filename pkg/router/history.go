package router

import (
	"net/url"
	"sync"

	"github.com/vango-dev/waypoint/pkg/routepath"
)

// Location is the live view of the current URL. The router reads the query
// string and fragment from it on every match, cached or not.
type Location interface {
	// Query returns the current query parameters. Each call returns a
	// fresh value.
	Query() url.Values

	// Fragment returns the current fragment without the leading "#".
	Fragment() string
}

// History records navigations in the host's history stack.
type History interface {
	Push(url string, state any)
	Replace(url string, state any)
}

// HistoryEntry is one entry of a MemoryHistory.
type HistoryEntry struct {
	URL   string
	State any
}

// MemoryHistory is an in-process history stack. It implements both
// Location and History and is what the router uses when the host does not
// supply its own.
type MemoryHistory struct {
	mu      sync.RWMutex
	entries []HistoryEntry
	index   int
}

// NewMemoryHistory creates a history whose only entry is initial.
func NewMemoryHistory(initial string) *MemoryHistory {
	if initial == "" {
		initial = "/"
	}
	return &MemoryHistory{entries: []HistoryEntry{{URL: initial}}}
}

// Push adds an entry after the current one, dropping any forward entries.
func (h *MemoryHistory) Push(u string, state any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.index+1], HistoryEntry{URL: u, State: state})
	h.index = len(h.entries) - 1
}

// Replace overwrites the current entry.
func (h *MemoryHistory) Replace(u string, state any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.index] = HistoryEntry{URL: u, State: state}
}

// Back moves to the previous entry. It reports false at the start of history.
func (h *MemoryHistory) Back() bool {
	return h.Go(-1)
}

// Forward moves to the next entry. It reports false at the end of history.
func (h *MemoryHistory) Forward() bool {
	return h.Go(1)
}

// Go moves delta entries through history. It reports false, and does
// nothing, when the target is out of range.
func (h *MemoryHistory) Go(delta int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	next := h.index + delta
	if next < 0 || next >= len(h.entries) {
		return false
	}
	h.index = next
	return true
}

// Current returns the current entry.
func (h *MemoryHistory) Current() HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.entries[h.index]
}

// Len returns the number of entries.
func (h *MemoryHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Pathname returns the path part of the current entry.
func (h *MemoryHistory) Pathname() string {
	path, _, _ := routepath.SplitLocation(h.Current().URL)
	return path
}

// Query implements Location.
func (h *MemoryHistory) Query() url.Values {
	_, query, _ := routepath.SplitLocation(h.Current().URL)
	// ParseQuery keeps every pair it could parse.
	values, _ := url.ParseQuery(query)
	return values
}

// Fragment implements Location.
func (h *MemoryHistory) Fragment() string {
	_, _, fragment := routepath.SplitLocation(h.Current().URL)
	return fragment
}

// staticLocation is a fixed Location, used to resolve a URL without
// touching history.
type staticLocation struct {
	query    string
	fragment string
}

func (l staticLocation) Query() url.Values {
	values, _ := url.ParseQuery(l.query)
	return values
}

func (l staticLocation) Fragment() string { return l.fragment }
