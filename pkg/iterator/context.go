package iterator

import (
	"context"
)

// Context represents a single execution of a query.
// It is both a standard context.Context and the query-time handles needed to
// evaluate an iterator tree, such as which storage the tree reads from.
type Context struct {
	context.Context

	// Storage is the primitive storage collaborator backing linkage and
	// all-set iterators and the VIP rewrite.
	Storage Storage
}

// NewContext wraps a standard context with the given storage.
func NewContext(ctx context.Context, storage Storage) *Context {
	return &Context{Context: ctx, Storage: storage}
}
