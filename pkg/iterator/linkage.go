package iterator

import (
	"fmt"
	"io"
)

// postingsCursor walks a sorted storage posting list in either direction.
// It is the shared traversal core of the LinkScan and VIP iterators.
type postingsCursor struct {
	pos     int64 // index of the next ID to yield
	started bool
	eof     bool
}

func (c *postingsCursor) reset(dir Direction, p Postings) {
	c.started = false
	c.eof = false
	if p == nil {
		c.pos = 0
		return
	}
	if dir == Backward {
		c.pos = p.Len() - 1
	} else {
		c.pos = 0
	}
}

func (c *postingsCursor) next(dir Direction, p Postings) (ID, bool) {
	if c.eof {
		return 0, false
	}
	if c.started {
		if dir == Backward {
			c.pos--
		} else {
			c.pos++
		}
	}
	c.started = true
	if c.pos < 0 || c.pos >= p.Len() {
		c.eof = true
		return 0, false
	}
	return p.At(c.pos), true
}

func (c *postingsCursor) find(dir Direction, p Postings, id ID) (ID, bool) {
	i := p.Seek(id)
	if dir == Backward {
		if i >= p.Len() || p.At(i) != id {
			i--
		}
		if i < 0 {
			c.eof = true
			return 0, false
		}
	} else if i >= p.Len() {
		c.eof = true
		return 0, false
	}
	c.pos = i
	c.started = true
	c.eof = false
	return p.At(i), true
}

func postingsContain(p Postings, id ID) bool {
	i := p.Seek(id)
	return i < p.Len() && p.At(i) == id
}

// LinkScan iterates the primitives whose given linkage field equals a fixed
// endpoint, straight off a storage posting list.
type LinkScan struct {
	dir      Direction
	field    Linkage
	endpoint ID

	postings Postings
	cursor   postingsCursor
}

var _ Iterator = &LinkScan{}

// NewLinkScan returns an iterator over all primitives whose field links to
// endpoint.
func NewLinkScan(dir Direction, field Linkage, endpoint ID) *LinkScan {
	return &LinkScan{dir: dir, field: field, endpoint: endpoint}
}

func (l *LinkScan) load(ctx *Context) error {
	if l.postings != nil {
		return nil
	}
	p, err := ctx.Storage.Linkage(l.field, l.endpoint)
	if err != nil {
		return err
	}
	l.postings = p
	l.cursor.reset(l.dir, p)
	return nil
}

func (l *LinkScan) Next(ctx *Context, budget *Budget) (ID, error) {
	if err := budget.Check("linkscan.next"); err != nil {
		return 0, suspended("linkscan.next", err)
	}
	budget.Charge(2)
	if err := l.load(ctx); err != nil {
		return 0, err
	}
	id, ok := l.cursor.next(l.dir, l.postings)
	if !ok {
		return 0, ErrNotFound
	}
	return id, nil
}

func (l *LinkScan) Find(ctx *Context, id ID, budget *Budget) (ID, error) {
	if err := budget.Check("linkscan.find"); err != nil {
		return 0, suspended("linkscan.find", err)
	}
	budget.Charge(3)
	if err := l.load(ctx); err != nil {
		return 0, err
	}
	found, ok := l.cursor.find(l.dir, l.postings, id)
	if !ok {
		return 0, ErrNotFound
	}
	return found, nil
}

func (l *LinkScan) Check(ctx *Context, id ID, budget *Budget) (bool, error) {
	if err := budget.Check("linkscan.check"); err != nil {
		return false, suspended("linkscan.check", err)
	}
	budget.Charge(3)
	if err := l.load(ctx); err != nil {
		return false, err
	}
	return postingsContain(l.postings, id), nil
}

func (l *LinkScan) Statistics(ctx *Context, budget *Budget) (Stats, error) {
	if err := l.load(ctx); err != nil {
		return Stats{}, err
	}
	return Stats{
		NextCost:    2,
		CheckCost:   3,
		FindCost:    3,
		HasFindCost: true,
		N:           l.postings.Len(),
		Sorted:      true,
	}, nil
}

func (l *LinkScan) Clone() Iterator {
	return &LinkScan{dir: l.dir, field: l.field, endpoint: l.endpoint, postings: l.postings, cursor: l.cursor}
}

func (l *LinkScan) Reset() {
	l.cursor.reset(l.dir, l.postings)
}

func (l *LinkScan) Freeze(w io.Writer, flags FreezeFlag) error {
	return freezeSections(w, flags, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "linkage:%c%s=%d", dirChar(l.dir), l.field, l.endpoint)
		return err
	}, func(w io.Writer) error {
		var last ID
		if l.cursor.started && !l.cursor.eof && l.postings != nil &&
			l.cursor.pos >= 0 && l.cursor.pos < l.postings.Len() {
			last = l.postings.At(l.cursor.pos)
		}
		return writeLeafPosition(w, l.cursor.started, l.cursor.eof, last)
	}, nil)
}

func (l *LinkScan) Explain() Explain {
	return Explain{Name: "LinkScan", Info: fmt.Sprintf("LinkScan(%s=%d)", l.field, l.endpoint)}
}

func (l *LinkScan) PrimitiveSummary() (Summary, bool) {
	psum := Summary{Complete: true}
	switch l.field {
	case LinkageTypeGUID:
		psum.HasTypeGUID = true
		psum.TypeGUID = l.endpoint
	case LinkageLeft:
		psum.HasLeft = true
		psum.Left = l.endpoint
	case LinkageRight:
		psum.HasRight = true
		psum.Right = l.endpoint
	case LinkageScope:
		psum.HasScope = true
		psum.Scope = l.endpoint
	}
	return psum, true
}

func (l *LinkScan) RangeEstimate() RangeEstimate {
	if l.postings == nil || l.postings.Len() == 0 {
		return RangeEstimate{Low: IDMin, High: IDMax, N: maxInt64}
	}
	return RangeEstimate{
		Low:  l.postings.At(0),
		High: l.postings.At(l.postings.Len()-1) + 1,
		N:    l.postings.Len(),
	}
}

func (l *LinkScan) Direction() Direction { return l.dir }

func (l *LinkScan) Subiterators() []Iterator { return nil }

// Field returns the linkage field this scan constrains.
func (l *LinkScan) Field() Linkage { return l.field }

// Endpoint returns the endpoint this scan constrains its field to.
func (l *LinkScan) Endpoint() ID { return l.endpoint }

func (l *LinkScan) String() string {
	return fmt.Sprintf("linkage[%s=%d]", l.field, l.endpoint)
}

// VIP is a specialized indexed iterator combining an endpoint linkage with a
// typeguid constraint, produced by the VIP optimizer rewrite when the store
// maintains such an index.
type VIP struct {
	dir      Direction
	field    Linkage
	endpoint ID
	typeGUID ID

	postings Postings
	cursor   postingsCursor
}

var _ Iterator = &VIP{}

// NewVIP returns the indexed iterator for (field=endpoint, typeguid), or
// false when the store has no such index.
func NewVIP(ctx *Context, dir Direction, field Linkage, endpoint, typeGUID ID) (*VIP, bool, error) {
	p, ok, err := ctx.Storage.VIP(field, endpoint, typeGUID)
	if err != nil || !ok {
		return nil, false, err
	}
	v := &VIP{dir: dir, field: field, endpoint: endpoint, typeGUID: typeGUID, postings: p}
	v.cursor.reset(dir, p)
	return v, true, nil
}

func (v *VIP) load(ctx *Context) error {
	if v.postings != nil {
		return nil
	}
	p, ok, err := ctx.Storage.VIP(v.field, v.endpoint, v.typeGUID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	v.postings = p
	v.cursor.reset(v.dir, p)
	return nil
}

func (v *VIP) Next(ctx *Context, budget *Budget) (ID, error) {
	if err := budget.Check("vip.next"); err != nil {
		return 0, suspended("vip.next", err)
	}
	budget.Charge(2)
	if err := v.load(ctx); err != nil {
		return 0, err
	}
	id, ok := v.cursor.next(v.dir, v.postings)
	if !ok {
		return 0, ErrNotFound
	}
	return id, nil
}

func (v *VIP) Find(ctx *Context, id ID, budget *Budget) (ID, error) {
	if err := budget.Check("vip.find"); err != nil {
		return 0, suspended("vip.find", err)
	}
	budget.Charge(2)
	if err := v.load(ctx); err != nil {
		return 0, err
	}
	found, ok := v.cursor.find(v.dir, v.postings, id)
	if !ok {
		return 0, ErrNotFound
	}
	return found, nil
}

func (v *VIP) Check(ctx *Context, id ID, budget *Budget) (bool, error) {
	if err := budget.Check("vip.check"); err != nil {
		return false, suspended("vip.check", err)
	}
	budget.Charge(2)
	if err := v.load(ctx); err != nil {
		return false, err
	}
	return postingsContain(v.postings, id), nil
}

func (v *VIP) Statistics(ctx *Context, budget *Budget) (Stats, error) {
	if err := v.load(ctx); err != nil {
		return Stats{}, err
	}
	return Stats{
		NextCost:    2,
		CheckCost:   2,
		FindCost:    2,
		HasFindCost: true,
		N:           v.postings.Len(),
		Sorted:      true,
	}, nil
}

func (v *VIP) Clone() Iterator {
	return &VIP{dir: v.dir, field: v.field, endpoint: v.endpoint, typeGUID: v.typeGUID, postings: v.postings, cursor: v.cursor}
}

func (v *VIP) Reset() {
	v.cursor.reset(v.dir, v.postings)
}

func (v *VIP) Freeze(w io.Writer, flags FreezeFlag) error {
	return freezeSections(w, flags, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "vip:%c%s=%d+%d", dirChar(v.dir), v.field, v.endpoint, v.typeGUID)
		return err
	}, func(w io.Writer) error {
		var last ID
		if v.cursor.started && !v.cursor.eof && v.postings != nil &&
			v.cursor.pos >= 0 && v.cursor.pos < v.postings.Len() {
			last = v.postings.At(v.cursor.pos)
		}
		return writeLeafPosition(w, v.cursor.started, v.cursor.eof, last)
	}, nil)
}

func (v *VIP) Explain() Explain {
	return Explain{Name: "VIP", Info: fmt.Sprintf("VIP(%s=%d, typeguid=%d)", v.field, v.endpoint, v.typeGUID)}
}

func (v *VIP) PrimitiveSummary() (Summary, bool) {
	psum := Summary{Complete: true, HasTypeGUID: true, TypeGUID: v.typeGUID}
	switch v.field {
	case LinkageLeft:
		psum.HasLeft = true
		psum.Left = v.endpoint
	case LinkageRight:
		psum.HasRight = true
		psum.Right = v.endpoint
	case LinkageScope:
		psum.HasScope = true
		psum.Scope = v.endpoint
	case LinkageTypeGUID:
		// A typeguid VIP over a typeguid linkage would be degenerate; keep
		// the endpoint as the authoritative typeguid.
		psum.TypeGUID = v.endpoint
	}
	return psum, true
}

func (v *VIP) RangeEstimate() RangeEstimate {
	if v.postings == nil || v.postings.Len() == 0 {
		return RangeEstimate{Low: IDMin, High: IDMax, N: maxInt64}
	}
	return RangeEstimate{
		Low:  v.postings.At(0),
		High: v.postings.At(v.postings.Len()-1) + 1,
		N:    v.postings.Len(),
	}
}

func (v *VIP) Direction() Direction { return v.dir }

func (v *VIP) Subiterators() []Iterator { return nil }

func (v *VIP) String() string {
	return fmt.Sprintf("vip[%s=%d+%d]", v.field, v.endpoint, v.typeGUID)
}
