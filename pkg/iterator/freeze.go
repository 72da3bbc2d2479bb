package iterator

import (
	"fmt"
	"io"

	"github.com/jzelinskie/stringz"
)

// Cursor text is three sections joined by "/": set, position, state. Freeze
// writes only the sections its flags select; a section an iterator has
// nothing to say about is written as "-". Thaw tolerates (and ignores)
// trailing sections it does not recognize, so newer writers can extend the
// format without breaking older readers.

type sectionFunc func(w io.Writer) error

// freezeSections writes the selected sections, joined by "/". A nil section
// function writes the placeholder "-".
func freezeSections(w io.Writer, flags FreezeFlag, set, pos, state sectionFunc) error {
	sections := []struct {
		flag FreezeFlag
		fn   sectionFunc
	}{
		{FreezeSet, set},
		{FreezePosition, pos},
		{FreezeState, state},
	}

	first := true
	for _, s := range sections {
		if flags&s.flag == 0 {
			continue
		}
		if !first {
			if _, err := io.WriteString(w, "/"); err != nil {
				return err
			}
		}
		first = false
		if s.fn == nil {
			if _, err := io.WriteString(w, "-"); err != nil {
				return err
			}
			continue
		}
		if err := s.fn(w); err != nil {
			return err
		}
	}
	return nil
}

// dirChar encodes a direction as a single cursor byte. Unordered and
// OrderingDriven walk ascending internally and thaw back through the set
// prefix, so they share the forward glyph.
func dirChar(dir Direction) byte {
	if dir == Backward {
		return '<'
	}
	return '>'
}

func dirFromChar(c byte) (Direction, bool) {
	switch c {
	case '>':
		return Forward, true
	case '<':
		return Backward, true
	default:
		return Forward, false
	}
}

// formatRange renders [low, high); an unbounded high is elided.
func formatRange(low, high ID) string {
	if high == IDMax {
		return fmt.Sprintf("%d", low)
	}
	return fmt.Sprintf("%d-%d", low, high)
}

// writeLeafPosition writes the shared leaf position token: "-" for a fresh
// iterator, "*" for an exhausted one, otherwise the last yielded ID. Thaw
// resumes at the element after the recorded ID.
func writeLeafPosition(w io.Writer, started, eof bool, last ID) error {
	switch {
	case eof:
		_, err := io.WriteString(w, "*")
		return err
	case !started:
		_, err := io.WriteString(w, "-")
		return err
	default:
		_, err := fmt.Fprintf(w, "%d", last)
		return err
	}
}

// freeze writes the AND's cursor sections.
//
// Set:      and:<dir><low>[-<high>]:<nHint>:<ordering>(<child set>)...[pro:<i>]
// Position: "-" | "*" | "[RESUME <id>]" | "(cache)<offset>" | <last id>
// State:    (<child pos>)...:<body>:<call>:<process>
//
// The body is "stat:<saved>" while the contest is still undecided (zero
// child blocks precede it), else
// <check>:<next>[+<find>]:<n>:<pro>:<offset>:<cache>, where <cache> is the
// comma-joined id@cost entries of the shared result cache, terminated by
// "$" when the cache holds the complete output, or "-" when empty and open.
// The child blocks carry the cached frontier's positions and the trailing
// <process> token the handle's private traversal; both are advisory on thaw,
// which re-derives the frontier from the last cached ID.
func (a *And) freeze(w io.Writer, flags FreezeFlag) error {
	p := a.plan
	if p.replacement != nil {
		return p.replacement.Freeze(w, flags)
	}

	return freezeSections(w, flags, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "and:%c%s:%d:%s",
			dirChar(p.dir), formatRange(p.low, p.high), p.nHint,
			stringz.DefaultEmpty(p.ordering, "-"))
		if err != nil {
			return err
		}
		for _, sub := range p.subs {
			if _, err := io.WriteString(w, "("); err != nil {
				return err
			}
			if err := sub.it.Freeze(w, FreezeSet); err != nil {
				return err
			}
			if _, err := io.WriteString(w, ")"); err != nil {
				return err
			}
		}
		if p.statsDone {
			if _, err := fmt.Fprintf(w, "[pro:%d]", p.producer); err != nil {
				return err
			}
		}
		return nil
	}, func(w io.Writer) error {
		switch {
		case a.eof:
			_, err := io.WriteString(w, "*")
			return err
		case a.hasPendingFind:
			_, err := fmt.Fprintf(w, "[RESUME %d]", a.pendingFind)
			return err
		case a.hasThawedLast:
			_, err := fmt.Fprintf(w, "%d", a.thawedLast)
			return err
		case a.cacheOffsetValid && a.cacheOffset > 0:
			_, err := fmt.Fprintf(w, "(cache)%d", a.cacheOffset)
			return err
		case a.hasLast:
			_, err := fmt.Fprintf(w, "%d", a.lastID)
			return err
		default:
			_, err := io.WriteString(w, "-")
			return err
		}
	}, func(w io.Writer) error {
		if !p.statsDone {
			// The contest does not survive freezing; only the saved budget
			// pool does, and the contest restarts on thaw.
			_, err := fmt.Fprintf(w, ":stat:%d:%d:-", p.savedPool, a.call)
			return err
		}

		// The cached frontier's child positions.
		c := p.cache
		if c.ps != nil {
			for _, child := range c.ps.subIts {
				if _, err := io.WriteString(w, "("); err != nil {
					return err
				}
				if err := child.Freeze(w, FreezePosition); err != nil {
					return err
				}
				if _, err := io.WriteString(w, ")"); err != nil {
					return err
				}
			}
		}

		if _, err := fmt.Fprintf(w, ":%d:%d", p.stats.CheckCost, p.stats.NextCost); err != nil {
			return err
		}
		if p.stats.HasFindCost {
			if _, err := fmt.Fprintf(w, "+%d", p.stats.FindCost); err != nil {
				return err
			}
		}
		offset := 0
		if a.cacheOffsetValid {
			offset = a.cacheOffset
		}
		if _, err := fmt.Fprintf(w, ":%d:%d:%d:", p.stats.N, p.producer, offset); err != nil {
			return err
		}

		if len(c.entries) == 0 && !c.eof {
			if _, err := io.WriteString(w, "-"); err != nil {
				return err
			}
		} else {
			for i, entry := range c.entries {
				sep := ""
				if i > 0 {
					sep = ","
				}
				if _, err := fmt.Fprintf(w, "%s%d@%d", sep, entry.id, entry.cost); err != nil {
					return err
				}
			}
			if c.eof {
				sep := ""
				if len(c.entries) > 0 {
					sep = ","
				}
				if _, err := fmt.Fprintf(w, "%s$", sep); err != nil {
					return err
				}
			}
		}

		// The handle's private traversal is recovered coarsely from the
		// position section; the process token is a placeholder.
		_, err := fmt.Fprintf(w, ":%d:-", a.call)
		return err
	})
}
