package iterator

import (
	"slices"
	"sort"
)

// memPostings is a Postings over a sorted ID slice.
type memPostings []ID

func (m memPostings) Len() int64    { return int64(len(m)) }
func (m memPostings) At(p int64) ID { return m[p] }
func (m memPostings) Seek(id ID) int64 {
	return int64(sort.Search(len(m), func(i int) bool { return m[i] >= id }))
}

type vipKey struct {
	field    Linkage
	endpoint ID
	typeGUID ID
}

type linkKey struct {
	field    Linkage
	endpoint ID
}

// MemStorage is an in-memory Storage over explicit posting lists. It backs
// the package's own tests and is useful anywhere a real store is overkill.
type MemStorage struct {
	horizon  ID
	count    int64
	linkages map[linkKey]memPostings
	vips     map[vipKey]memPostings
}

var _ Storage = &MemStorage{}

// NewMemStorage returns an empty store with the given ID horizon and total
// primitive count.
func NewMemStorage(horizon ID, count int64) *MemStorage {
	return &MemStorage{
		horizon:  horizon,
		count:    count,
		linkages: map[linkKey]memPostings{},
		vips:     map[vipKey]memPostings{},
	}
}

// SetLinkage installs the posting list for field=endpoint. The input is
// copied and sorted.
func (m *MemStorage) SetLinkage(field Linkage, endpoint ID, ids ...ID) *MemStorage {
	m.linkages[linkKey{field, endpoint}] = sortedPostings(ids)
	return m
}

// SetVIP installs the indexed posting list for (field=endpoint, typeguid).
func (m *MemStorage) SetVIP(field Linkage, endpoint, typeGUID ID, ids ...ID) *MemStorage {
	m.vips[vipKey{field, endpoint, typeGUID}] = sortedPostings(ids)
	return m
}

func sortedPostings(ids []ID) memPostings {
	owned := slices.Clone(ids)
	slices.Sort(owned)
	return memPostings(slices.Compact(owned))
}

func (m *MemStorage) Horizon() ID { return m.horizon }

func (m *MemStorage) Count() int64 { return m.count }

func (m *MemStorage) Linkage(field Linkage, endpoint ID) (Postings, error) {
	return m.linkages[linkKey{field, endpoint}], nil
}

func (m *MemStorage) VIP(field Linkage, endpoint ID, typeGUID ID) (Postings, bool, error) {
	p, ok := m.vips[vipKey{field, endpoint, typeGUID}]
	return p, ok, nil
}
