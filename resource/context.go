package resource

import "context"

type tableKey struct{}

// WithTable returns a context carrying t.
func WithTable(ctx context.Context, t *Table) context.Context {
	return context.WithValue(ctx, tableKey{}, t)
}

// FromContext returns the table carried by ctx. Without one it returns a
// closed table, so Insert yields the invalid handle 0.
func FromContext(ctx context.Context) *Table {
	if t, ok := ctx.Value(tableKey{}).(*Table); ok {
		return t
	}
	return closedTable
}

var closedTable = &Table{closed: true}
