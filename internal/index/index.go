// Package index owns the daemon's in-memory set of indexed file paths and
// answers fuzzy queries against it. The entry set is rebuilt wholesale by an
// external file lister and guarded by a single read/write lock: rebuilds are
// exclusive, queries run concurrently with each other.
package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/midoBB/qs-daemon/internal/logging"
	"github.com/midoBB/qs-daemon/internal/protocol"
)

var idxLog = logging.ForComponent(logging.CompIndex)

// DefaultLimit is the result cap used when a search request carries none.
const DefaultLimit = 100

// Entry is one indexed file: its absolute path and its home-relative
// display form. Entries are immutable; rebuilds replace the whole set.
type Entry struct {
	Path        string
	DisplayPath string
}

// Index is the single source of truth for search and status queries.
// Exactly one instance exists per daemon process.
type Index struct {
	mu          sync.RWMutex
	entries     []Entry
	lastUpdated time.Time

	root string
	home string
	list ListFunc
}

// New builds an empty index. root is the directory handed to the lister and
// home is the prefix replaced by "~" in display paths; empty values fall
// back to the user's home directory, or /home when that is unresolvable.
// A nil list uses the fd-backed lister.
func New(root, home string, list ListFunc) *Index {
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil && h != "" {
			home = h
		} else {
			home = "/home"
		}
	}
	if root == "" {
		root = home
	}
	if list == nil {
		list = FDList
	}
	return &Index{root: root, home: home, list: list}
}

// Update rebuilds the entry set from the lister. On success the entries are
// replaced atomically and the freshness timestamp advances; on failure the
// previous entries remain untouched. Runs under the exclusive lock so no
// reader observes a half-replaced set.
func (ix *Index) Update(ctx context.Context) (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	paths, err := ix.list(ctx, ix.root)
	if err != nil {
		return 0, err
	}

	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		entries = append(entries, Entry{Path: p, DisplayPath: displayPath(p, ix.home)})
	}

	ix.entries = entries
	ix.lastUpdated = time.Now()
	idxLog.Info("index_updated", slog.Int("files", len(entries)))
	return len(entries), nil
}

// Search ranks entries against query and returns at most limit results plus
// the total entry count. An empty query is browse mode: the first limit
// entries in index order, score 0, no matches. A non-empty query scores
// every entry's filename, ranks the full set by descending score (stable,
// ties keep scan order) and truncates afterwards.
func (ix *Index) Search(query string, limit int) ([]protocol.SearchResult, int) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	total := len(ix.entries)
	if limit < 0 {
		limit = 0
	}

	if query == "" {
		n := min(limit, total)
		results := make([]protocol.SearchResult, 0, n)
		for _, e := range ix.entries[:n] {
			results = append(results, protocol.SearchResult{
				Path:        e.Path,
				DisplayPath: e.DisplayPath,
				Matches:     []protocol.SearchMatch{},
				Score:       0,
			})
		}
		return results, total
	}

	matches := fuzzy.FindFromNoSort(query, entrySource(ix.entries))

	results := make([]protocol.SearchResult, 0, len(matches))
	for _, m := range matches {
		e := ix.entries[m.Index]
		offset := filenameOffset(e.DisplayPath)
		sm := make([]protocol.SearchMatch, 0, len(m.MatchedIndexes))
		for _, idx := range m.MatchedIndexes {
			sm = append(sm, protocol.SearchMatch{CharIndex: idx + offset})
		}
		results = append(results, protocol.SearchResult{
			Path:        e.Path,
			DisplayPath: e.DisplayPath,
			Matches:     sm,
			Score:       m.Score,
		})
	}

	// Rank the whole match set before truncating; the stable sort keeps
	// equal scores in scan order.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, total
}

// Len returns the current entry count.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// LastUpdated returns the last successful rebuild time in epoch seconds,
// 0 when the index has never been built.
func (ix *Index) LastUpdated() int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.lastUpdated.IsZero() {
		return 0
	}
	return ix.lastUpdated.Unix()
}

// entrySource adapts the entry slice to fuzzy.Source. Matching runs against
// the final path segment only; offsets are translated back to the display
// path by the caller.
type entrySource []Entry

func (s entrySource) String(i int) string { return filepath.Base(s[i].DisplayPath) }
func (s entrySource) Len() int            { return len(s) }

// filenameOffset is the index just past the last path separator in a
// display path, 0 when there is none. Filename-relative match offsets are
// shifted by this amount so highlighting applies to the full display path.
func filenameOffset(displayPath string) int {
	if i := strings.LastIndex(displayPath, "/"); i >= 0 {
		return i + 1
	}
	return 0
}

func displayPath(path, home string) string {
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
