// Package conflict correlates the remote and local diffs of a graph into one
// ordered change list.
package conflict

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/ritzau/merge-assist/pkg/diff"
)

// MergeState records which side of an entry is applied to the target.
type MergeState int

const (
	StateBase MergeState = iota
	StateRemote
	StateLocal
)

func (s MergeState) String() string {
	switch s {
	case StateBase:
		return "base"
	case StateRemote:
		return "remote"
	case StateLocal:
		return "local"
	default:
		return fmt.Sprintf("MergeState(%d)", int(s))
	}
}

// MarshalText renders the state by name.
func (s MergeState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *MergeState) UnmarshalText(b []byte) error {
	v, err := ParseMergeState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseMergeState parses "base", "remote" or "local".
func ParseMergeState(s string) (MergeState, error) {
	switch s {
	case "base":
		return StateBase, nil
	case "remote":
		return StateRemote, nil
	case "local":
		return StateLocal, nil
	}
	return 0, fmt.Errorf("unknown merge state %q", s)
}

// Entry is one row of a change list: a remote diff, a local diff, or both
// when they conflict.
type Entry struct {
	Label    string
	Color    diff.Color
	Remote   diff.Result // NoDifference for local-only rows
	Local    diff.Result // NoDifference for remote-only rows
	Conflict bool
	State    MergeState
}

// Kind returns the kind the entry sorts by: the remote kind when present.
func (e *Entry) Kind() diff.Kind {
	if e.Remote.Kind != diff.NoDifference {
		return e.Remote.Kind
	}
	return e.Local.Kind
}

// HasRemote reports whether the entry carries a remote diff.
func (e *Entry) HasRemote() bool {
	return !e.Remote.IsZero()
}

// HasLocal reports whether the entry carries a local diff.
func (e *Entry) HasLocal() bool {
	return !e.Local.IsZero()
}

// Side returns the diff applied in the given state. Base has none.
func (e *Entry) Side(state MergeState) (diff.Result, bool) {
	switch state {
	case StateRemote:
		return e.Remote, e.HasRemote()
	case StateLocal:
		return e.Local, e.HasLocal()
	}
	return diff.Result{}, false
}

// Touches reports whether moving the entry to state would change the target:
// the side exists and is not the current state.
func (e *Entry) Touches(state MergeState) bool {
	if state == e.State {
		return false
	}
	if state == StateBase {
		return true
	}
	_, ok := e.Side(state)
	return ok
}

// Conflicts reports whether a remote and a local diff touch the same element
// in a mutually exclusive way.
//
// They conflict when they share a non-nil old node and either one removes a
// node or both touch the same old pin (nil meaning the whole node), unless one
// of them is a move. Independently of node identity, two diffs of the same
// non-nil old pin always conflict.
func Conflicts(remote, local diff.Result) bool {
	if remote.OldNode != nil && remote.OldNode == local.OldNode {
		removal := remote.Kind == diff.NodeRemoved || local.Kind == diff.NodeRemoved
		move := remote.Kind == diff.NodeMoved || local.Kind == diff.NodeMoved
		samePin := remote.OldPin == local.OldPin
		return (removal || samePin) && !move
	}
	return remote.OldPin != nil && remote.OldPin == local.OldPin
}

// ConflictLabel formats the label of a conflicting entry.
func ConflictLabel(local, remote diff.Result) string {
	return fmt.Sprintf("CONFLICT: '%s' conflicts with '%s'", local.Label, remote.Label)
}

// BuildChangeList merges the remote and local diffs of a graph. Every remote
// diff is paired with the first local diff it conflicts with that is not
// already paired. Remaining local diffs become local-only entries. The list is
// stable-sorted by kind.
func BuildChangeList(remoteDiffs, localDiffs []diff.Result) []*Entry {
	consumed := make([]bool, len(localDiffs))
	entries := make([]*Entry, 0, len(remoteDiffs)+len(localDiffs))

	for _, remote := range remoteDiffs {
		partner := -1
		for i, local := range localDiffs {
			if !consumed[i] && Conflicts(remote, local) {
				partner = i
				break
			}
		}

		entry := &Entry{
			Label:  remote.Label,
			Color:  remote.Color,
			Remote: remote,
			State:  StateBase,
		}
		if partner >= 0 {
			consumed[partner] = true
			entry.Local = localDiffs[partner]
			entry.Conflict = true
			entry.Label = ConflictLabel(entry.Local, remote)
		}
		entries = append(entries, entry)
	}

	for i, local := range localDiffs {
		if consumed[i] {
			continue
		}
		entries = append(entries, &Entry{
			Label: local.Label,
			Color: local.Color,
			Local: local,
			State: StateBase,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Kind() < entries[j].Kind()
	})
	return entries
}

// Summary counts the rows of a change list.
type Summary struct {
	Total     int `json:"total"`
	Remote    int `json:"remote"`
	Local     int `json:"local"`
	Conflicts int `json:"conflicts"`
	Applied   int `json:"applied"`
}

// Summarize counts remote-only, local-only and conflicting entries, and how
// many entries have a side applied.
func Summarize(entries []*Entry) Summary {
	return Summary{
		Total:     len(entries),
		Remote:    lo.CountBy(entries, func(e *Entry) bool { return e.HasRemote() && !e.Conflict }),
		Local:     lo.CountBy(entries, func(e *Entry) bool { return e.HasLocal() && !e.Conflict }),
		Conflicts: lo.CountBy(entries, func(e *Entry) bool { return e.Conflict }),
		Applied:   lo.CountBy(entries, func(e *Entry) bool { return e.State != StateBase }),
	}
}

// HasConflicts reports whether any entry conflicts.
func HasConflicts(entries []*Entry) bool {
	return lo.SomeBy(entries, func(e *Entry) bool { return e.Conflict })
}
