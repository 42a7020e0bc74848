// Package frame implements the immutable, schema-tagged, partitioned
// columnar table (spec §3's "Frame") and the one-row statistics frame used
// to anchor binning. A Frame wraps Arrow record batches; it never mutates
// a batch it was handed, matching the "intermediate operator outputs exist
// only for the duration of one transform call" lifecycle rule.
package frame

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/rulego/dataframe/schema"
)

// Frame is an ordered sequence of partitions, each an ordered sequence of
// record batches, all sharing one schema.
type Frame struct {
	Schema     schema.Schema
	Partitions [][]arrow.Record
}

// New builds a Frame from partitions of pre-built Arrow records. Every
// batch's schema must equal s; New does not defensively re-validate this
// on the hot path, callers that accept untrusted batches should check
// first (the engine itself only ever builds batches it derived from a
// validated schema).
func New(s schema.Schema, partitions [][]arrow.Record) *Frame {
	return &Frame{Schema: s, Partitions: partitions}
}

// NewSinglePartition builds a Frame holding one partition made of the
// given batches, the common case for stats frames and operator output.
func NewSinglePartition(s schema.Schema, batches []arrow.Record) *Frame {
	return New(s, [][]arrow.Record{batches})
}

// NumRows sums the row count of every batch in every partition.
func (f *Frame) NumRows() int64 {
	var n int64
	for _, part := range f.Partitions {
		for _, b := range part {
			n += b.NumRows()
		}
	}
	return n
}

// Release drops the Frame's reference to every underlying Arrow record.
// Safe to call more than once.
func (f *Frame) Release() {
	for _, part := range f.Partitions {
		for _, b := range part {
			b.Release()
		}
	}
}

// AsStats validates that f has the StatsFrame shape required by spec §3:
// exactly one partition, containing exactly one batch, of exactly one
// row. Mirrors the original implementation's explicit shape check (spec
// §11 of SPEC_FULL.md) rather than panicking on a malformed caller input.
func (f *Frame) AsStats() (arrow.Record, error) {
	if len(f.Partitions) != 1 || len(f.Partitions[0]) != 1 || f.Partitions[0][0].NumRows() != 1 {
		return nil, fmt.Errorf("statistics frame must have exactly 1 partition, 1 batch, 1 row")
	}
	return f.Partitions[0][0], nil
}

// PartitionIter is the pull-based "lazy sequence of batches" protocol
// every physical operator speaks (spec §4.3/§5): Next suspends at
// whatever point the operator needs to wait on upstream work, and
// observes ctx so a transform is cancellable at any suspension point.
type PartitionIter interface {
	// Next returns the next batch in the current partition, or ok=false
	// at partition end. Any non-nil error aborts the transform.
	Next(ctx context.Context) (rec arrow.Record, ok bool, err error)
}

// sliceIter adapts a plain slice of batches into a PartitionIter, the
// base case every Scan operator bottoms out on.
type sliceIter struct {
	batches []arrow.Record
	pos     int
}

// NewSliceIter returns a PartitionIter over an in-memory batch slice.
func NewSliceIter(batches []arrow.Record) PartitionIter {
	return &sliceIter{batches: batches}
}

func (s *sliceIter) Next(ctx context.Context) (arrow.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if s.pos >= len(s.batches) {
		return nil, false, nil
	}
	rec := s.batches[s.pos]
	s.pos++
	return rec, true, nil
}

// Collect drains every batch of iter into a slice. Used by the execution
// driver to assemble one partition's worth of operator output.
func Collect(ctx context.Context, iter PartitionIter) ([]arrow.Record, error) {
	var out []arrow.Record
	for {
		rec, ok, err := iter.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, rec)
	}
}
