// This package provides the composable iterators that form quarry's
// query-execution core. It should depend on as few other packages as
// possible, as iterators get passed around a lot and import loops are a pain.
//
// The underlying philosophy is that a read query is evaluated as a tree of
// iterators over the totally-ordered space of primitive IDs. Each iterator
// represents a logical set of primitives; leaves (fixed sets, linkage scans,
// the all- and null-sets) come from the storage collaborator, and composite
// iterators combine them with set operations.
//
// The centerpiece is the AND iterator: the conjunction of independent
// subconditions. It picks, at runtime and under a caller-supplied work
// budget, which subcondition drives enumeration (the producer) and which
// merely test candidates (the checkers), using a statistical sampling
// contest. All long-running operations are cooperative: they charge work
// against a Budget and return ErrSuspended, retaining their position, when
// the budget runs out. The whole tree serializes to a textual cursor so
// paginated queries can resume exactly where they left off.
package iterator
