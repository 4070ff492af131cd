package cache

import (
	"context"
	"sort"
	"sync"
)

// Cache is an in-memory transcript store indexed by chromosome. It is filled
// by a loader and then queried; queries are safe for concurrent use.
type Cache struct {
	transcripts map[string][]*Transcript
	byID        map[string]*Transcript

	mu    sync.Mutex
	trees map[string]*IntervalTree // built on first query per chromosome
}

// New creates a new empty cache.
func New() *Cache {
	return &Cache{
		transcripts: make(map[string][]*Transcript),
		byID:        make(map[string]*Transcript),
		trees:       make(map[string]*IntervalTree),
	}
}

// AddTranscript adds a transcript to the cache.
func (c *Cache) AddTranscript(t *Transcript) {
	c.transcripts[t.Chrom] = append(c.transcripts[t.Chrom], t)
	c.byID[t.ID] = t

	c.mu.Lock()
	delete(c.trees, t.Chrom)
	c.mu.Unlock()
}

// FindTranscripts returns all transcripts overlapping [start, end] on chrom.
func (c *Cache) FindTranscripts(_ context.Context, chrom string, start, end int64) ([]*Transcript, error) {
	c.mu.Lock()
	tree, ok := c.trees[chrom]
	if !ok {
		tree = BuildIntervalTree(c.transcripts[chrom])
		c.trees[chrom] = tree
	}
	c.mu.Unlock()

	return tree.FindRange(start, end), nil
}

// GetTranscript returns a specific transcript by ID, or nil if not found.
func (c *Cache) GetTranscript(_ context.Context, id string) (*Transcript, error) {
	return c.byID[id], nil
}

// TranscriptCount returns the total number of transcripts in the cache.
func (c *Cache) TranscriptCount() int {
	return len(c.byID)
}

// Chromosomes returns a sorted list of chromosomes in the cache.
func (c *Cache) Chromosomes() []string {
	chroms := make([]string, 0, len(c.transcripts))
	for chrom := range c.transcripts {
		chroms = append(chroms, chrom)
	}
	sort.Strings(chroms)
	return chroms
}

// FindTranscriptsByChrom returns all transcripts for a chromosome.
func (c *Cache) FindTranscriptsByChrom(chrom string) []*Transcript {
	return c.transcripts[chrom]
}
