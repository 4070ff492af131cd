package cache

import (
	"cmp"
	"slices"
	"sort"
)

// IntervalTree answers overlap queries over an immutable set of transcripts.
// Entries are sorted by start and carry a running maximum of their ends, so
// a query is a binary search followed by a backward scan that stops as soon
// as no earlier transcript can reach the query.
type IntervalTree struct {
	spans []span
}

type span struct {
	start, end int64
	reach      int64 // max end over spans[0..i]
	tx         *Transcript
}

// BuildIntervalTree indexes transcripts by their genomic extent. Ties on
// start keep input order.
func BuildIntervalTree(transcripts []*Transcript) *IntervalTree {
	spans := make([]span, len(transcripts))
	for i, t := range transcripts {
		spans[i] = span{start: t.Start, end: t.End, tx: t}
	}
	slices.SortStableFunc(spans, func(a, b span) int { return cmp.Compare(a.start, b.start) })

	var reach int64
	for i := range spans {
		reach = max(reach, spans[i].end)
		spans[i].reach = reach
	}
	return &IntervalTree{spans: spans}
}

// FindOverlaps returns the transcripts covering pos.
func (t *IntervalTree) FindOverlaps(pos int64) []*Transcript {
	return t.FindRange(pos, pos)
}

// FindRange returns the transcripts intersecting the closed range
// [start, end] in order of transcript start.
func (t *IntervalTree) FindRange(start, end int64) []*Transcript {
	n := sort.Search(len(t.spans), func(i int) bool { return t.spans[i].start > end })

	var hits []*Transcript
	for i := n - 1; i >= 0 && t.spans[i].reach >= start; i-- {
		if t.spans[i].end >= start {
			hits = append(hits, t.spans[i].tx)
		}
	}
	slices.Reverse(hits)
	return hits
}
