package iterator

// Storage is the interface the query core consumes from the primitive
// storage engine. The engine itself (tiled bitmap and gmap files in the
// production server) is an external collaborator; this package only ever
// reads sorted posting lists from it.
type Storage interface {
	// Horizon returns the exclusive upper bound of allocated primitive IDs.
	Horizon() ID

	// Count returns the total number of primitives in the store.
	Count() int64

	// Linkage returns the sorted posting list of primitives whose given
	// linkage field equals endpoint.
	Linkage(field Linkage, endpoint ID) (Postings, error)

	// VIP returns the indexed posting list for the combination of an
	// endpoint linkage and a typeguid, when the store maintains one. The
	// boolean is false when no such index exists for the pair.
	VIP(field Linkage, endpoint ID, typeGUID ID) (Postings, bool, error)
}

// Postings is a sorted, random-access list of primitive IDs, ascending.
type Postings interface {
	// Len returns the number of IDs in the list.
	Len() int64

	// At returns the ID at the given position. Positions run [0, Len()).
	At(pos int64) ID

	// Seek returns the smallest position whose ID is >= id, or Len() when
	// every ID is smaller.
	Seek(id ID) int64
}
