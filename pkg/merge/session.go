package merge

import (
	"context"
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/ritzau/merge-assist/pkg/conflict"
	"github.com/ritzau/merge-assist/pkg/cycles"
	"github.com/ritzau/merge-assist/pkg/logging"
	"github.com/ritzau/merge-assist/pkg/model"
)

var (
	ErrSessionClosed = errors.New("merge session is closed")
	ErrNoSuchGraph   = errors.New("no such graph")
	ErrNoSuchChange  = errors.New("no such change")
	ErrCannotApply   = errors.New("cannot apply change")
)

// Policy decides how AutoMerge resolves conflicting changes.
type Policy int

const (
	PolicyBase Policy = iota
	PolicyRemote
	PolicyLocal
)

func (p Policy) String() string {
	switch p {
	case PolicyBase:
		return "base"
	case PolicyRemote:
		return "remote"
	case PolicyLocal:
		return "local"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses "base", "remote" or "local".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "base":
		return PolicyBase, nil
	case "remote", "theirs":
		return PolicyRemote, nil
	case "local", "mine":
		return PolicyLocal, nil
	}
	return 0, fmt.Errorf("unknown merge policy %q", s)
}

// Options configures a Session.
type Options struct {
	// Graphs limits the session to graph names matching any of these
	// doublestar patterns. Empty means every graph.
	Graphs []string

	// OnGraphChanged is called after a structural change of a target graph.
	OnGraphChanged func(graph string)

	// OnStatus is called after every successful operation.
	OnStatus func(Status)
}

// Position addresses one change of a session.
type Position struct {
	Graph  int `json:"graph"`
	Change int `json:"change"`
}

// GraphStatus summarizes one merged graph.
type GraphStatus struct {
	Name           string           `json:"name"`
	ExistsInBase   bool             `json:"existsInBase"`
	ExistsInRemote bool             `json:"existsInRemote"`
	ExistsInLocal  bool             `json:"existsInLocal"`
	Modified       bool             `json:"modified"`
	Changes        conflict.Summary `json:"changes"`
	// Cycles counts link cycles in the target graph.
	Cycles int `json:"cycles"`
}

// Status summarizes a session.
type Status struct {
	ID     string        `json:"id"`
	Closed bool          `json:"closed"`
	Graphs []GraphStatus `json:"graphs"`
	Cursor *Position     `json:"cursor,omitempty"`
}

// Session merges every graph of three revisions of a document, with one
// Transaction per graph. It is not safe for concurrent use.
type Session struct {
	id     string
	ctx    context.Context
	opts   Options
	target *model.Document

	transactions []*Transaction
	cursor       *Position
	closed       bool
}

// NewSession starts a merge of the graphs of base, remote and local. Any of
// the documents may be nil.
func NewSession(ctx context.Context, base, remote, local *model.Document, opts Options) (*Session, error) {
	for _, pattern := range opts.Graphs {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid graph pattern %q", pattern)
		}
	}

	id := uuid.New().String()
	s := &Session{
		id:     id,
		ctx:    logging.WithSessionID(ctx, id),
		opts:   opts,
		target: model.NewDocument(documentName(base, remote, local)),
	}

	for _, name := range model.UnionGraphNames(base, remote, local) {
		if !s.selected(name) {
			continue
		}
		baseGraph, remoteGraph, localGraph := base.Graph(name), remote.Graph(name), local.Graph(name)
		target := s.target.NewGraph(name, originOf(baseGraph, remoteGraph, localGraph))
		s.transactions = append(s.transactions, NewTransaction(name, baseGraph, remoteGraph, localGraph, target))
		if opts.OnGraphChanged != nil {
			target.Subscribe(func(g *model.Graph) { opts.OnGraphChanged(g.Name) })
		}
	}

	logging.InfoContext(s.ctx, "merge session started",
		"document", s.target.Name,
		"graphs", len(s.transactions),
		"conflicts", s.conflictCount(),
	)
	return s, nil
}

func documentName(docs ...*model.Document) string {
	for _, d := range docs {
		if d != nil && d.Name != "" {
			return d.Name
		}
	}
	return "merged"
}

func (s *Session) selected(name string) bool {
	if len(s.opts.Graphs) == 0 {
		return true
	}
	return lo.SomeBy(s.opts.Graphs, func(pattern string) bool {
		ok, _ := doublestar.Match(pattern, name)
		return ok
	})
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Context returns the session's logging context.
func (s *Session) Context() context.Context { return s.ctx }

// Transactions returns the per-graph transactions in graph order.
func (s *Session) Transactions() []*Transaction { return s.transactions }

// Closed reports whether the session was finished or cancelled.
func (s *Session) Closed() bool { return s.closed }

// Transaction returns the transaction of the named graph.
func (s *Session) Transaction(name string) (*Transaction, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	t, ok := lo.Find(s.transactions, func(t *Transaction) bool { return t.Name() == name })
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchGraph, name)
	}
	return t, nil
}

// Change returns one entry of a graph's change list.
func (s *Session) Change(graph string, index int) (*Transaction, *conflict.Entry, error) {
	t, err := s.Transaction(graph)
	if err != nil {
		return nil, nil, err
	}
	changes := t.Changes()
	if index < 0 || index >= len(changes) {
		return nil, nil, fmt.Errorf("%w: %s #%d", ErrNoSuchChange, graph, index)
	}
	return t, changes[index], nil
}

// ApplyRemote applies the remote side of a change.
func (s *Session) ApplyRemote(graph string, index int) error {
	return s.Resolve(graph, index, conflict.StateRemote)
}

// ApplyLocal applies the local side of a change.
func (s *Session) ApplyLocal(graph string, index int) error {
	return s.Resolve(graph, index, conflict.StateLocal)
}

// Revert returns a change to its base state.
func (s *Session) Revert(graph string, index int) error {
	return s.Resolve(graph, index, conflict.StateBase)
}

// Resolve moves a change to the given state.
func (s *Session) Resolve(graph string, index int, state conflict.MergeState) error {
	t, e, err := s.Change(graph, index)
	if err != nil {
		return err
	}

	var ok bool
	switch state {
	case conflict.StateRemote:
		ok = t.ApplyRemote(e)
	case conflict.StateLocal:
		ok = t.ApplyLocal(e)
	default:
		ok = t.Revert(e)
	}
	if !ok {
		logging.DebugContext(s.ctx, "change not applied",
			"graph", graph, "index", index, "state", state, "reason", t.FailureReason())
		return fmt.Errorf("%w: %s #%d to %s: %s", ErrCannotApply, graph, index, state, t.FailureReason())
	}

	s.cursor = &Position{Graph: s.graphIndex(t), Change: index}
	s.publish()
	return nil
}

// Availability reports which states a change can be moved to right now.
type Availability struct {
	Remote bool `json:"remote"`
	Local  bool `json:"local"`
	Base   bool `json:"base"`
}

// Available runs the dry-run queries for a change.
func (s *Session) Available(graph string, index int) (Availability, error) {
	t, e, err := s.Change(graph, index)
	if err != nil {
		return Availability{}, err
	}
	return Availability{
		Remote: t.CanApplyRemote(e),
		Local:  t.CanApplyLocal(e),
		Base:   t.CanRevert(e),
	}, nil
}

func (s *Session) graphIndex(t *Transaction) int {
	return lo.IndexOf(s.transactions, t)
}

func (s *Session) positions(filter func(*conflict.Entry) bool) []Position {
	var out []Position
	for gi, t := range s.transactions {
		for ci, e := range t.Changes() {
			if filter == nil || filter(e) {
				out = append(out, Position{Graph: gi, Change: ci})
			}
		}
	}
	return out
}

func before(a, b Position) bool {
	if a.Graph != b.Graph {
		return a.Graph < b.Graph
	}
	return a.Change < b.Change
}

// Current returns the cursor, if any change has been selected.
func (s *Session) Current() (Position, bool) {
	if s.cursor == nil {
		return Position{}, false
	}
	return *s.cursor, true
}

// Select moves the cursor to a change.
func (s *Session) Select(graph string, index int) (Position, error) {
	t, _, err := s.Change(graph, index)
	if err != nil {
		return Position{}, err
	}
	s.cursor = &Position{Graph: s.graphIndex(t), Change: index}
	return *s.cursor, nil
}

// Next moves the cursor to the next change across all graphs.
func (s *Session) Next() (Position, bool) { return s.step(nil, true) }

// Prev moves the cursor to the previous change.
func (s *Session) Prev() (Position, bool) { return s.step(nil, false) }

// NextConflict moves the cursor to the next conflicting change.
func (s *Session) NextConflict() (Position, bool) {
	return s.step(func(e *conflict.Entry) bool { return e.Conflict }, true)
}

// PrevConflict moves the cursor to the previous conflicting change.
func (s *Session) PrevConflict() (Position, bool) {
	return s.step(func(e *conflict.Entry) bool { return e.Conflict }, false)
}

func (s *Session) step(filter func(*conflict.Entry) bool, forward bool) (Position, bool) {
	if s.closed {
		return Position{}, false
	}
	candidates := s.positions(filter)
	if len(candidates) == 0 {
		return Position{}, false
	}

	var next *Position
	switch {
	case s.cursor == nil && forward:
		next = &candidates[0]
	case s.cursor == nil:
		next = &candidates[len(candidates)-1]
	case forward:
		for i := range candidates {
			if before(*s.cursor, candidates[i]) {
				next = &candidates[i]
				break
			}
		}
	default:
		for i := len(candidates) - 1; i >= 0; i-- {
			if before(candidates[i], *s.cursor) {
				next = &candidates[i]
				break
			}
		}
	}
	if next == nil {
		return Position{}, false
	}
	pos := *next
	s.cursor = &pos
	return pos, true
}

// AutoMergeResult reports what AutoMerge did.
type AutoMergeResult struct {
	Applied   int `json:"applied"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Conflicts int `json:"conflicts"`
}

// AutoMerge applies every change that is still in its base state. Changes
// with a single side get that side; conflicts are resolved by policy, and left
// alone under PolicyBase. Changes whose effect already holds in the target are
// skipped. Changes that cannot be applied yet are retried until a pass makes
// no progress.
func (s *Session) AutoMerge(policy Policy) (AutoMergeResult, error) {
	if s.closed {
		return AutoMergeResult{}, ErrSessionClosed
	}

	var res AutoMergeResult
	type pending struct {
		t *Transaction
		e *conflict.Entry
	}
	var queue []pending
	for _, t := range s.transactions {
		for _, e := range t.Changes() {
			if e.Conflict {
				res.Conflicts++
			}
			if e.State != conflict.StateBase {
				res.Skipped++
				continue
			}
			if e.Conflict && policy == PolicyBase {
				res.Skipped++
				continue
			}
			queue = append(queue, pending{t: t, e: e})
		}
	}

	sideOf := func(p pending) conflict.MergeState {
		switch {
		case p.e.Conflict && policy == PolicyLocal:
			return conflict.StateLocal
		case p.e.Conflict, p.e.HasRemote():
			return conflict.StateRemote
		default:
			return conflict.StateLocal
		}
	}

	for len(queue) > 0 {
		var retry []pending
		for _, p := range queue {
			side := sideOf(p)
			switch {
			case p.t.EffectHolds(p.e, side):
				// The twin row of a link change, or a link that went with
				// its node, already did the work.
				res.Skipped++
			case p.t.applySide(p.e, side):
				res.Applied++
			default:
				retry = append(retry, p)
			}
		}
		if len(retry) == len(queue) {
			break
		}
		queue = retry
	}
	res.Failed = len(queue)

	logging.InfoContext(s.ctx, "auto merge finished",
		"policy", policy,
		"applied", res.Applied,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
	s.publish()
	return res, nil
}

// Status summarizes the session.
func (s *Session) Status() Status {
	st := Status{ID: s.id, Closed: s.closed, Cursor: s.cursor}
	for _, t := range s.transactions {
		st.Graphs = append(st.Graphs, GraphStatus{
			Name:           t.Name(),
			ExistsInBase:   t.ExistsInBase(),
			ExistsInRemote: t.ExistsInRemote(),
			ExistsInLocal:  t.ExistsInLocal(),
			Modified:       t.Modified(),
			Changes:        conflict.Summarize(t.Changes()),
			Cycles:         len(cycles.FindLinkCycles(t.Target())),
		})
	}
	return st
}

func (s *Session) conflictCount() int {
	return lo.SumBy(s.transactions, func(t *Transaction) int {
		return conflict.Summarize(t.Changes()).Conflicts
	})
}

func (s *Session) publish() {
	if s.opts.OnStatus != nil {
		s.opts.OnStatus(s.Status())
	}
}

// Finish ends the session and returns the merged document.
func (s *Session) Finish() (*model.Document, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	s.closed = true
	logging.InfoContext(s.ctx, "merge session finished", "graphs", len(s.transactions))
	s.publish()
	return s.target, nil
}

// Cancel ends the session and discards the target document.
func (s *Session) Cancel() error {
	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true
	s.target = nil
	s.transactions = nil
	s.cursor = nil
	logging.InfoContext(s.ctx, "merge session cancelled")
	s.publish()
	return nil
}
