package loader

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/ritzau/merge-assist/pkg/model"
)

// Validate checks a decoded file and returns every problem found, or nil.
func Validate(f *File) error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	graphs := make(map[string]bool)
	for gi, g := range f.Graphs {
		where := fmt.Sprintf("graph %q", g.Name)
		if g.Name == "" {
			where = fmt.Sprintf("graph #%d", gi)
			add("%s: missing name", where)
		} else if graphs[g.Name] {
			add("%s: duplicate graph name", where)
		}
		graphs[g.Name] = true

		// node id -> pins by name and direction
		pins := make(map[string]map[pinKey]bool)
		for ni, n := range g.Nodes {
			if n.ID == "" {
				add("%s: node #%d: missing id", where, ni)
				continue
			}
			if _, dup := pins[n.ID]; dup {
				add("%s: duplicate node id %q", where, n.ID)
				continue
			}
			if n.Class == "" {
				add("%s: node %q: missing class", where, n.ID)
			}
			pins[n.ID] = make(map[pinKey]bool)
			for _, p := range n.Pins {
				if p.Name == "" {
					add("%s: node %q: pin without name", where, n.ID)
					continue
				}
				key := pinKey{name: p.Name, dir: normalDirection(p.Direction)}
				if pins[n.ID][key] {
					add("%s: node %q: duplicate %s pin %q", where, n.ID, key.dir, p.Name)
					continue
				}
				if _, err := model.ParseDirection(p.Direction); err != nil {
					add("%s: node %q: pin %q: %v", where, n.ID, p.Name, err)
				}
				pins[n.ID][key] = true
			}
		}

		for li, l := range g.Links {
			for _, end := range []PinAddress{l.From, l.To} {
				nodePins, ok := pins[end.Node]
				if !ok {
					add("%s: link #%d: unknown node %q", where, li, end.Node)
					continue
				}
				switch n := matchingPins(nodePins, end); {
				case n == 0:
					add("%s: link #%d: node %q has no pin %q", where, li, end.Node, end.Pin)
				case n > 1:
					add("%s: link #%d: pin %s.%s needs a direction", where, li, end.Node, end.Pin)
				}
			}
			if l.From == l.To {
				add("%s: link #%d: pin %s.%s linked to itself", where, li, l.From.Node, l.From.Pin)
			}
		}
	}
	return result.ErrorOrNil()
}

type pinKey struct {
	name, dir string
}

// normalDirection spells a valid direction the way Encode does and leaves
// anything else as written.
func normalDirection(s string) string {
	if d, err := model.ParseDirection(s); err == nil {
		return d.String()
	}
	return s
}

// matchingPins counts the pins of a node that end can refer to.
func matchingPins(nodePins map[pinKey]bool, end PinAddress) int {
	if end.Direction != "" {
		if nodePins[pinKey{name: end.Pin, dir: normalDirection(end.Direction)}] {
			return 1
		}
		return 0
	}
	n := 0
	for k := range nodePins {
		if k.name == end.Pin {
			n++
		}
	}
	return n
}
