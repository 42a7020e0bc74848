package frame

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/rulego/dataframe/schema"
)

// RecordBuilder accumulates one column builder per field and assembles a
// single arrow.Record, the shape every operator that materializes new
// rows (Project, HashGroupBy, RowNumber, ...) builds its output through.
type RecordBuilder struct {
	schema   schema.Schema
	columns  []ColumnBuilder
}

// NewRecordBuilder allocates one ColumnBuilder per field of s.
func NewRecordBuilder(mem memory.Allocator, s schema.Schema) (*RecordBuilder, error) {
	cols := make([]ColumnBuilder, len(s.Fields))
	for i, f := range s.Fields {
		b, err := NewColumnBuilder(mem, f.Type)
		if err != nil {
			return nil, err
		}
		cols[i] = b
	}
	return &RecordBuilder{schema: s, columns: cols}, nil
}

// Column returns the builder for field i.
func (r *RecordBuilder) Column(i int) ColumnBuilder { return r.columns[i] }

// NewRecord finalizes every column builder into one arrow.Record. All
// columns must have appended the same number of rows.
func (r *RecordBuilder) NewRecord() (arrow.Record, error) {
	arrays := make([]arrow.Array, len(r.columns))
	var nrows int64
	for i, c := range r.columns {
		a, err := c.NewArray()
		if err != nil {
			return nil, err
		}
		arrays[i] = a
		nrows = int64(a.Len())
	}
	return array.NewRecord(r.schema.ToArrow(), arrays, nrows), nil
}

// Release frees every column builder.
func (r *RecordBuilder) Release() {
	for _, c := range r.columns {
		c.Release()
	}
}
