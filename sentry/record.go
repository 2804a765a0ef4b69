// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package sentry

import (
	"sort"
)

// span is a half-open byte range [Start, End) of the sentry content
// that has been received.
type span struct {
	Start int64 `cbor:"start"`
	End   int64 `cbor:"end"`
}

// record is the stored representation of one account's sentry.
// Content is allocated at the declared total size up front; Spans
// tracks which parts of it hold real data.
type record struct {
	Name      string `cbor:"name"`
	TotalSize int64  `cbor:"total_size"`
	Content   []byte `cbor:"content"`
	Spans     []span `cbor:"spans"`
	Complete  bool   `cbor:"complete"`
	Hash      []byte `cbor:"hash,omitempty"`
}

// addSpan records that [start, end) has been written, merging with
// any overlapping or adjacent spans so the list stays sorted and
// disjoint.
func (r *record) addSpan(start, end int64) {
	merged := span{Start: start, End: end}
	keep := r.Spans[:0]
	for _, existing := range r.Spans {
		if existing.End < merged.Start || existing.Start > merged.End {
			keep = append(keep, existing)
			continue
		}
		if existing.Start < merged.Start {
			merged.Start = existing.Start
		}
		if existing.End > merged.End {
			merged.End = existing.End
		}
	}
	keep = append(keep, merged)
	sort.Slice(keep, func(i, j int) bool { return keep[i].Start < keep[j].Start })
	r.Spans = keep
}

// covered reports whether the spans cover the whole declared size.
func (r *record) covered() bool {
	if r.TotalSize == 0 {
		return false
	}
	return len(r.Spans) == 1 && r.Spans[0].Start == 0 && r.Spans[0].End >= r.TotalSize
}
