package iterator

import (
	"strings"

	"github.com/quarry-db/quarry/internal/logging"
	"github.com/quarry-db/quarry/pkg/quarryerrors"
)

// Thaw reconstructs an iterator from the cursor text produced by Freeze with
// the same flags. The set section is mandatory and parsed strictly: any
// syntax error there fails with a CursorSyntaxError. The position and state
// sections are best-effort overlays: if either cannot be parsed or no longer
// applies (the store changed under the cursor), the iterator degrades to a
// reset over the same set rather than failing. Trailing sections beyond
// those selected by flags are ignored, so newer writers stay readable.
func Thaw(ctx *Context, text string, flags FreezeFlag) (Iterator, error) {
	if flags&FreezeSet == 0 {
		return nil, quarryerrors.NewCursorSyntaxError(text, 0, "cursor cannot be thawed without its set section")
	}

	sections := splitTopLevel(text, '/')
	if len(sections) == 0 {
		return nil, quarryerrors.NewCursorSyntaxError(text, 0, "empty cursor")
	}

	idx := 0
	setSec := sections[idx]
	idx++

	var posSec, stateSec *cursorSection
	if flags&FreezePosition != 0 && idx < len(sections) {
		posSec = &sections[idx]
		idx++
	}
	if flags&FreezeState != 0 && idx < len(sections) {
		stateSec = &sections[idx]
		idx++
	}
	// Sections past those we asked for are extensions; skip them.

	it, err := thawSet(ctx, text, setSec)
	if err != nil {
		return nil, err
	}

	if err := thawOverlay(ctx, text, it, posSec, stateSec); err != nil {
		thawFallbacksCount.Inc()
		logging.Warn().Err(err).Msg("cursor position/state no longer applies; resuming from a reset iterator")
		it.Reset()
	}
	return it, nil
}

type cursorSection struct {
	text string
	off  int // offset of this section within the full cursor
}

// splitTopLevel splits on sep outside any (), [], or {} nesting.
func splitTopLevel(s string, sep byte) []cursorSection {
	var out []cursorSection
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case sep:
			if depth == 0 {
				out = append(out, cursorSection{text: s[start:i], off: start})
				start = i + 1
			}
		}
	}
	out = append(out, cursorSection{text: s[start:], off: start})
	return out
}

// cursorScanner is a strict left-to-right scanner over one cursor fragment,
// reporting syntax errors with offsets into the full cursor text.
type cursorScanner struct {
	full string
	base int
	s    string
	pos  int
}

func newScanner(full string, sec cursorSection) *cursorScanner {
	return &cursorScanner{full: full, base: sec.off, s: sec.text}
}

func (sc *cursorScanner) errf(format string, args ...any) error {
	return quarryerrors.NewCursorSyntaxError(sc.full, sc.base+sc.pos, format, args...)
}

func (sc *cursorScanner) done() bool { return sc.pos >= len(sc.s) }

func (sc *cursorScanner) peek() byte {
	if sc.done() {
		return 0
	}
	return sc.s[sc.pos]
}

func (sc *cursorScanner) next() byte {
	c := sc.s[sc.pos]
	sc.pos++
	return c
}

func (sc *cursorScanner) expect(lit string) error {
	if !strings.HasPrefix(sc.s[sc.pos:], lit) {
		return sc.errf("expected %q", lit)
	}
	sc.pos += len(lit)
	return nil
}

func (sc *cursorScanner) readUint64() (uint64, error) {
	start := sc.pos
	var v uint64
	for !sc.done() && sc.peek() >= '0' && sc.peek() <= '9' {
		d := uint64(sc.next() - '0')
		if v > (^uint64(0)-d)/10 {
			sc.pos = start
			return 0, sc.errf("number out of range")
		}
		v = v*10 + d
	}
	if sc.pos == start {
		return 0, sc.errf("expected a number")
	}
	return v, nil
}

func (sc *cursorScanner) readInt64() (int64, error) {
	v, err := sc.readUint64()
	if err != nil {
		return 0, err
	}
	if v > uint64(maxInt64) {
		return 0, sc.errf("number out of range")
	}
	return int64(v), nil
}

func (sc *cursorScanner) readID() (ID, error) {
	v, err := sc.readUint64()
	return ID(v), err
}

// readUntil returns the text up to (not including) the first of the given
// delimiters at nesting depth zero, or the rest of the fragment.
func (sc *cursorScanner) readUntil(delims string) string {
	depth := 0
	start := sc.pos
	for !sc.done() {
		c := sc.peek()
		if depth == 0 && strings.IndexByte(delims, c) >= 0 {
			break
		}
		switch c {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		}
		sc.pos++
	}
	return sc.s[start:sc.pos]
}

// readBlock consumes a balanced open...close block and returns its interior.
func (sc *cursorScanner) readBlock(open, close byte) (cursorSection, error) {
	if sc.peek() != open {
		return cursorSection{}, sc.errf("expected %q", string(open))
	}
	sc.pos++
	start := sc.pos
	depth := 1
	for !sc.done() {
		c := sc.next()
		switch c {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return cursorSection{text: sc.s[start : sc.pos-1], off: sc.base + start}, nil
			}
		}
	}
	sc.pos = start
	return cursorSection{}, sc.errf("unterminated %q block", string(open))
}

func (sc *cursorScanner) readDir() (Direction, error) {
	if sc.done() {
		return Forward, sc.errf("expected a direction")
	}
	dir, ok := dirFromChar(sc.next())
	if !ok {
		sc.pos--
		return Forward, sc.errf("unknown direction character %q", string(sc.peek()))
	}
	return dir, nil
}

// readRange parses "<low>" or "<low>-<high>".
func (sc *cursorScanner) readRange() (ID, ID, error) {
	low, err := sc.readID()
	if err != nil {
		return 0, 0, err
	}
	high := IDMax
	if sc.peek() == '-' {
		sc.pos++
		high, err = sc.readID()
		if err != nil {
			return 0, 0, err
		}
	}
	return low, high, nil
}

func parseLinkage(name string) (Linkage, bool) {
	switch name {
	case "typeguid":
		return LinkageTypeGUID, true
	case "left":
		return LinkageLeft, true
	case "right":
		return LinkageRight, true
	case "scope":
		return LinkageScope, true
	default:
		return 0, false
	}
}

// thawSet parses a set fragment and rebuilds the iterator definition.
func thawSet(ctx *Context, full string, sec cursorSection) (Iterator, error) {
	sc := newScanner(full, sec)
	kind := sc.readUntil(":")
	if err := sc.expect(":"); err != nil {
		return nil, err
	}

	switch kind {
	case "null":
		return NewNull(Forward), nil

	case "all":
		dir, err := sc.readDir()
		if err != nil {
			return nil, err
		}
		low, high, err := sc.readRange()
		if err != nil {
			return nil, err
		}
		return NewAll(dir, low, high), nil

	case "fixed":
		return thawFixedSet(sc)

	case "linkage":
		dir, err := sc.readDir()
		if err != nil {
			return nil, err
		}
		name := sc.readUntil("=")
		if err := sc.expect("="); err != nil {
			return nil, err
		}
		field, ok := parseLinkage(name)
		if !ok {
			return nil, sc.errf("unknown linkage field %q", name)
		}
		endpoint, err := sc.readID()
		if err != nil {
			return nil, err
		}
		return NewLinkScan(dir, field, endpoint), nil

	case "vip":
		return thawVIPSet(ctx, sc)

	case "sort":
		dir, err := sc.readDir()
		if err != nil {
			return nil, err
		}
		childSec, err := sc.readBlock('(', ')')
		if err != nil {
			return nil, err
		}
		child, err := thawSet(ctx, full, childSec)
		if err != nil {
			return nil, err
		}
		return NewSort(dir, child), nil

	case "and":
		return thawAndSet(ctx, full, sc)

	default:
		return nil, sc.errf("unknown iterator kind %q", kind)
	}
}

func thawFixedSet(sc *cursorScanner) (Iterator, error) {
	dir, err := sc.readDir()
	if err != nil {
		return nil, err
	}
	count, err := sc.readInt64()
	if err != nil {
		return nil, err
	}
	if err := sc.expect(":"); err != nil {
		return nil, err
	}
	ids := make([]ID, 0, count)
	for !sc.done() {
		id, err := sc.readID()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
		if sc.peek() == ',' {
			sc.pos++
		}
	}
	if int64(len(ids)) != count {
		return nil, sc.errf("fixed set declared %d ids but listed %d", count, len(ids))
	}
	return NewFixed(dir, ids...), nil
}

func thawVIPSet(ctx *Context, sc *cursorScanner) (Iterator, error) {
	dir, err := sc.readDir()
	if err != nil {
		return nil, err
	}
	name := sc.readUntil("=")
	if err := sc.expect("="); err != nil {
		return nil, err
	}
	field, ok := parseLinkage(name)
	if !ok {
		return nil, sc.errf("unknown linkage field %q", name)
	}
	endpoint, err := sc.readID()
	if err != nil {
		return nil, err
	}
	if err := sc.expect("+"); err != nil {
		return nil, err
	}
	typeGUID, err := sc.readID()
	if err != nil {
		return nil, err
	}

	if ctx != nil && ctx.Storage != nil {
		vip, found, err := NewVIP(ctx, dir, field, endpoint, typeGUID)
		if err != nil {
			return nil, err
		}
		if found {
			return vip, nil
		}
	}

	// The index the cursor referenced no longer exists; rebuild the same set
	// as a conjunction of plain scans.
	and := NewAnd(0, IDMin, IDMax, dir, "")
	if err := and.AddSubcondition(NewLinkScan(dir, field, endpoint)); err != nil {
		return nil, err
	}
	if err := and.AddSubcondition(NewLinkScan(dir, LinkageTypeGUID, typeGUID)); err != nil {
		return nil, err
	}
	return and.Commit(ctx)
}

func thawAndSet(ctx *Context, full string, sc *cursorScanner) (Iterator, error) {
	dir, err := sc.readDir()
	if err != nil {
		return nil, err
	}
	low, high, err := sc.readRange()
	if err != nil {
		return nil, err
	}
	if err := sc.expect(":"); err != nil {
		return nil, err
	}
	nHint, err := sc.readInt64()
	if err != nil {
		return nil, err
	}
	if err := sc.expect(":"); err != nil {
		return nil, err
	}
	ordering := sc.readUntil("([")
	if ordering == "-" {
		ordering = ""
	}

	and := NewAnd(nHint, low, high, dir, ordering)
	for sc.peek() == '(' {
		childSec, err := sc.readBlock('(', ')')
		if err != nil {
			return nil, err
		}
		child, err := thawSet(ctx, full, childSec)
		if err != nil {
			return nil, err
		}
		if err := and.AddSubcondition(child); err != nil {
			return nil, err
		}
	}
	if sc.peek() == '[' {
		// The producer marker is advisory; the state overlay (or a fresh
		// contest) decides the producer on this side.
		if _, err := sc.readBlock('[', ']'); err != nil {
			return nil, err
		}
	}
	if !sc.done() {
		return nil, sc.errf("trailing garbage after AND definition")
	}
	return and.Commit(ctx)
}

// thawOverlay applies the position and state sections to the rebuilt
// iterator. Any returned error means the overlay does not apply; the caller
// degrades to a reset.
func thawOverlay(ctx *Context, full string, it Iterator, posSec, stateSec *cursorSection) error {
	if posSec == nil && stateSec == nil {
		return nil
	}

	if a, ok := it.(*And); ok {
		return thawAndOverlay(ctx, full, a, posSec, stateSec)
	}
	if posSec == nil {
		return nil
	}
	return thawLeafPosition(ctx, full, it, *posSec)
}

// thawLeafPosition applies a leaf position token: "-", "*", or the last
// yielded ID, which the leaf repositions onto.
func thawLeafPosition(ctx *Context, full string, it Iterator, sec cursorSection) error {
	sc := newScanner(full, sec)
	switch sc.peek() {
	case '-', 0:
		return nil
	case '*':
		return exhaustLeaf(it)
	}
	last, err := sc.readID()
	if err != nil {
		return err
	}

	switch v := it.(type) {
	case *Fixed:
		found, err := v.Find(nil, last, NewBudget(4))
		if err != nil || found != last {
			return sc.errf("recorded position %d is not in the fixed set", last)
		}
		return nil
	case *All:
		v.started = true
		v.eof = false
		v.last = last
		return nil
	case *LinkScan:
		if err := v.load(ctx); err != nil {
			return err
		}
		found, ok := v.cursor.find(v.dir, v.postings, last)
		if !ok || found != last {
			return sc.errf("recorded position %d is no longer in the posting list", last)
		}
		return nil
	case *VIP:
		if err := v.load(ctx); err != nil {
			return err
		}
		found, ok := v.cursor.find(v.dir, v.postings, last)
		if !ok || found != last {
			return sc.errf("recorded position %d is no longer in the posting list", last)
		}
		return nil
	case *Sort:
		// The sort buffer does not survive freezing; replay is the only way
		// back to the recorded position.
		return sc.errf("sorted positions cannot be thawed without refilling")
	default:
		return sc.errf("position token for an iterator without positions")
	}
}

func exhaustLeaf(it Iterator) error {
	switch v := it.(type) {
	case *Fixed:
		v.started = true
		v.eof = true
	case *All:
		v.started = true
		v.eof = true
	case *LinkScan:
		v.cursor.started = true
		v.cursor.eof = true
	case *VIP:
		v.cursor.started = true
		v.cursor.eof = true
	case *Null:
		// Always exhausted.
	case *Sort:
		v.started = true
		v.eof = true
		v.filled = true
	}
	return nil
}

// thawedAndState is the fully parsed state section, applied atomically only
// after the whole section parses.
type thawedAndState struct {
	preStats  bool
	savedPool int64

	stats       Stats
	producer    int
	cacheOffset int
	entries     []cacheEntry
	cacheEOF    bool
}

func thawAndOverlay(ctx *Context, full string, a *And, posSec, stateSec *cursorSection) error {
	p := a.plan
	if p.replacement != nil {
		return quarryerrors.NewCursorSyntaxError(full, 0, "AND cursor re-committed to a different iterator type")
	}

	if stateSec != nil && stateSec.text != "-" && stateSec.text != "" {
		st, err := parseAndState(full, *stateSec, len(p.subs))
		if err != nil {
			return err
		}
		applyAndState(p, st)
		if !st.preStats && st.cacheOffset <= len(p.cache.entries) {
			// The position section, when present, refines this below.
			a.cacheOffset = st.cacheOffset
			a.cacheOffsetValid = true
			if st.cacheOffset > 0 {
				a.lastID = p.cache.entries[st.cacheOffset-1].id
				a.hasLast = true
			}
		}
	}

	if posSec == nil {
		return nil
	}
	return thawAndPosition(full, a, *posSec)
}

func parseAndState(full string, sec cursorSection, subCount int) (*thawedAndState, error) {
	sc := newScanner(full, sec)

	// Leading child position blocks are advisory; the frontier is re-derived
	// from the last cached ID.
	for sc.peek() == '(' {
		if _, err := sc.readBlock('(', ')'); err != nil {
			return nil, err
		}
	}
	if err := sc.expect(":"); err != nil {
		return nil, err
	}
	// An optional slow-check block, also advisory: pending membership probes
	// restart on the thawed side.
	if strings.HasPrefix(sc.s[sc.pos:], "slow") {
		sc.readUntil(":")
		if err := sc.expect(":"); err != nil {
			return nil, err
		}
	}

	st := &thawedAndState{}
	if strings.HasPrefix(sc.s[sc.pos:], "stat:") {
		sc.pos += len("stat:")
		saved, err := sc.readInt64()
		if err != nil {
			return nil, err
		}
		st.preStats = true
		st.savedPool = saved
		return st, parseAndStateTail(sc)
	}

	var err error
	if st.stats.CheckCost, err = sc.readInt64(); err != nil {
		return nil, err
	}
	if err := sc.expect(":"); err != nil {
		return nil, err
	}
	if st.stats.NextCost, err = sc.readInt64(); err != nil {
		return nil, err
	}
	if sc.peek() == '+' {
		sc.pos++
		if st.stats.FindCost, err = sc.readInt64(); err != nil {
			return nil, err
		}
		st.stats.HasFindCost = true
	}
	if err := sc.expect(":"); err != nil {
		return nil, err
	}
	if st.stats.N, err = sc.readInt64(); err != nil {
		return nil, err
	}
	if err := sc.expect(":"); err != nil {
		return nil, err
	}
	if st.producer, err = readIntField(sc); err != nil {
		return nil, err
	}
	if st.producer < 0 || st.producer >= subCount {
		return nil, sc.errf("producer index %d out of range", st.producer)
	}
	if err := sc.expect(":"); err != nil {
		return nil, err
	}
	if st.cacheOffset, err = readIntField(sc); err != nil {
		return nil, err
	}
	if err := sc.expect(":"); err != nil {
		return nil, err
	}

	// Cache list: "-" for empty-and-open, else id@cost entries with an
	// optional trailing "$" for a complete cache.
	if sc.peek() == '-' {
		sc.pos++
	} else {
		for !sc.done() && sc.peek() != ':' {
			if sc.peek() == '$' {
				sc.pos++
				st.cacheEOF = true
				break
			}
			id, err := sc.readID()
			if err != nil {
				return nil, err
			}
			if err := sc.expect("@"); err != nil {
				return nil, err
			}
			cost, err := sc.readInt64()
			if err != nil {
				return nil, err
			}
			st.entries = append(st.entries, cacheEntry{id: id, cost: cost})
			if sc.peek() == ',' {
				sc.pos++
			}
		}
	}
	return st, parseAndStateTail(sc)
}

// parseAndStateTail consumes the trailing call-state and process-state
// fields. Both are advisory: a thawed handle re-enters through whichever
// façade operation the caller invokes next.
func parseAndStateTail(sc *cursorScanner) error {
	if err := sc.expect(":"); err != nil {
		return err
	}
	call, err := readIntField(sc)
	if err != nil {
		return err
	}
	if call > int(callStatistics) {
		return sc.errf("unknown call state %d", call)
	}
	if err := sc.expect(":"); err != nil {
		return err
	}
	sc.readUntil("")
	return nil
}

func readIntField(sc *cursorScanner) (int, error) {
	v, err := sc.readInt64()
	if err != nil {
		return 0, err
	}
	if v > int64(maxIntValue) {
		return 0, sc.errf("number out of range")
	}
	return int(v), nil
}

const maxIntValue = int(^uint(0) >> 1)

func applyAndState(p *andPlan, st *thawedAndState) {
	if st.preStats {
		p.savedPool = st.savedPool
		return
	}

	p.producer = st.producer
	p.stats = st.stats
	p.stats.Sorted = p.dir != Unordered
	p.statsDone = true
	p.statsGatherIdx = len(p.subs)

	cache := &resultCache{entries: st.entries, eof: st.cacheEOF}
	if !st.cacheEOF {
		ps := p.newProcessState(st.producer)
		if n := len(st.entries); n > 0 {
			// Resume the frontier strictly after the last cached result.
			last := st.entries[n-1].id
			resume, ok := idAfter(p.dir, last)
			if !ok {
				cache.eof = true
			} else {
				ps.resume = resume
				ps.hasResume = true
				ps.state = runInit
			}
		}
		cache.ps = ps
	}
	p.cache = cache

	p.checkOrder = p.orderExcluding(st.producer)
	p.checkOrderVersion++
}

// idAfter returns the ID strictly after id in direction order, or false at
// the edge of the ID space.
func idAfter(dir Direction, id ID) (ID, bool) {
	if dir == Backward {
		if id == IDMin {
			return 0, false
		}
		return id - 1, true
	}
	if id == IDMax {
		return 0, false
	}
	return id + 1, true
}

func thawAndPosition(full string, a *And, sec cursorSection) error {
	p := a.plan
	sc := newScanner(full, sec)

	switch sc.peek() {
	case '-', 0:
		return nil

	case '*':
		a.eof = true
		a.cacheOffsetValid = false
		return nil

	case '[':
		inner, err := sc.readBlock('[', ']')
		if err != nil {
			return err
		}
		isc := newScanner(full, inner)
		if err := isc.expect("RESUME "); err != nil {
			return err
		}
		target, err := isc.readID()
		if err != nil {
			return err
		}
		a.pendingFind = target
		a.hasPendingFind = true
		a.call = callFind
		return nil

	case '(':
		if err := sc.expect("(cache)"); err != nil {
			return err
		}
		offset, err := readIntField(sc)
		if err != nil {
			return err
		}
		if !p.statsDone || p.cache == nil || offset > len(p.cache.entries) {
			return sc.errf("cache offset %d beyond the thawed cache", offset)
		}
		a.cacheOffset = offset
		a.cacheOffsetValid = true
		if offset > 0 {
			a.lastID = p.cache.entries[offset-1].id
			a.hasLast = true
		}
		return nil

	default:
		last, err := sc.readID()
		if err != nil {
			return err
		}
		a.thawedLast = last
		a.hasThawedLast = true
		a.lastID = last
		a.hasLast = true
		a.cacheOffsetValid = false
		return nil
	}
}
