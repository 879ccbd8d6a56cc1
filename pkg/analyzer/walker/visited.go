package walker

import (
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const visitedShards = 64

// VisitedSet is a concurrency-safe set of file paths. Paths are spread over
// independently locked shards by hash.
type VisitedSet struct {
	shards [visitedShards]visitedShard
}

type visitedShard struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

// NewVisitedSet creates an empty set.
func NewVisitedSet() *VisitedSet {
	v := &VisitedSet{}
	for i := range v.shards {
		v.shards[i].paths = make(map[string]struct{})
	}
	return v
}

func (v *VisitedSet) shard(path string) *visitedShard {
	return &v.shards[xxhash.Sum64String(path)%visitedShards]
}

// Insert adds path and reports whether this call added it. Exactly one of
// any number of concurrent inserts of the same path returns true.
func (v *VisitedSet) Insert(path string) bool {
	s := v.shard(path)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.paths[path]; ok {
		return false
	}
	s.paths[path] = struct{}{}
	return true
}

// Seed adds paths without reporting.
func (v *VisitedSet) Seed(paths ...string) {
	for _, p := range paths {
		v.Insert(p)
	}
}

// Contains reports whether path is in the set.
func (v *VisitedSet) Contains(path string) bool {
	s := v.shard(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.paths[path]
	return ok
}

// Len returns the number of paths in the set.
func (v *VisitedSet) Len() int {
	n := 0
	for i := range v.shards {
		s := &v.shards[i]
		s.mu.Lock()
		n += len(s.paths)
		s.mu.Unlock()
	}
	return n
}

// Paths returns a sorted snapshot of the set.
func (v *VisitedSet) Paths() []string {
	var out []string
	for i := range v.shards {
		s := &v.shards[i]
		s.mu.Lock()
		for p := range s.paths {
			out = append(out, p)
		}
		s.mu.Unlock()
	}
	sort.Strings(out)
	return out
}
