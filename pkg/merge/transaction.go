// Package merge applies and reverts the changes of a three-way graph merge
// against a target graph.
package merge

import (
	"fmt"
	"sort"

	"github.com/ritzau/merge-assist/pkg/conflict"
	"github.com/ritzau/merge-assist/pkg/diff"
	"github.com/ritzau/merge-assist/pkg/logging"
	"github.com/ritzau/merge-assist/pkg/model"
)

// Transaction owns the target graph of one merged graph. The target starts as
// a clone of base and is only mutated through the transaction's apply and
// revert operations. A Transaction is not safe for concurrent use.
type Transaction struct {
	name string

	base   *model.Graph
	remote *model.Graph
	local  *model.Graph
	target *model.Graph

	inBase   bool
	inRemote bool
	inLocal  bool

	baseToTarget map[*model.Node]*model.Node
	remoteToBase map[*model.Node]*model.Node
	localToBase  map[*model.Node]*model.Node
	added        map[*model.Node]*model.Node // node added from remote/local -> its copy in target

	changes     []*conflict.Entry
	remoteCount int
	localCount  int

	baseFingerprint string
	reason          string
}

// NewTransaction diffs remote and local against base and clones base into
// target. A nil base is treated as an empty graph; a nil remote or local
// contributes no changes. If target is nil a new graph is created.
func NewTransaction(name string, base, remote, local, target *model.Graph) *Transaction {
	t := &Transaction{
		name:     name,
		base:     base,
		remote:   remote,
		local:    local,
		target:   target,
		inBase:   base != nil,
		inRemote: remote != nil,
		inLocal:  local != nil,
		added:    make(map[*model.Node]*model.Node),
	}

	if t.base == nil {
		t.base = model.NewGraph(name, originOf(remote, local))
	}
	if t.target == nil {
		t.target = model.NewGraph(name, t.base.OriginID)
	}
	t.baseToTarget = t.base.CloneInto(t.target)
	t.baseFingerprint = model.Fingerprint(t.base)

	var remoteDiffs, localDiffs []diff.Result
	remoteDiffs, t.remoteToBase = sideDiffs(t.base, remote)
	localDiffs, t.localToBase = sideDiffs(t.base, local)
	t.remoteCount = len(remoteDiffs)
	t.localCount = len(localDiffs)

	t.changes = conflict.BuildChangeList(remoteDiffs, localDiffs)

	logging.Debug("merge transaction created",
		"graph", name,
		"remoteDiffs", t.remoteCount,
		"localDiffs", t.localCount,
		"changes", len(t.changes),
	)
	return t
}

func originOf(graphs ...*model.Graph) string {
	for _, g := range graphs {
		if g != nil {
			return g.OriginID
		}
	}
	return ""
}

// sideDiffs diffs one revision against base. Results are stable-sorted by
// kind and the node map points from the revision to base.
func sideDiffs(base, side *model.Graph) ([]diff.Result, map[*model.Node]*model.Node) {
	if side == nil {
		return nil, map[*model.Node]*model.Node{}
	}
	d := diff.DiffGraphs(base, side)
	results := d.Results
	sort.SliceStable(results, func(i, j int) bool { return results[i].Kind < results[j].Kind })
	return results, d.NodeMap()
}

// Name returns the name of the merged graph.
func (t *Transaction) Name() string { return t.name }

// Target returns the graph being merged into.
func (t *Transaction) Target() *model.Graph { return t.target }

// Base returns the base revision. It is never nil.
func (t *Transaction) Base() *model.Graph { return t.base }

// Remote returns the remote revision, or nil.
func (t *Transaction) Remote() *model.Graph { return t.remote }

// Local returns the local revision, or nil.
func (t *Transaction) Local() *model.Graph { return t.local }

// Changes returns the change list in display order.
func (t *Transaction) Changes() []*conflict.Entry { return t.changes }

// ExistsInBase reports whether the graph exists in the base revision.
func (t *Transaction) ExistsInBase() bool { return t.inBase }

// ExistsInRemote reports whether the graph exists in the remote revision.
func (t *Transaction) ExistsInRemote() bool { return t.inRemote }

// ExistsInLocal reports whether the graph exists in the local revision.
func (t *Transaction) ExistsInLocal() bool { return t.inLocal }

// HasRemoteChanges reports whether remote differs from base.
func (t *Transaction) HasRemoteChanges() bool { return t.remoteCount > 0 }

// HasLocalChanges reports whether local differs from base.
func (t *Transaction) HasLocalChanges() bool { return t.localCount > 0 }

// HasConflicts reports whether any change conflicts.
func (t *Transaction) HasConflicts() bool { return conflict.HasConflicts(t.changes) }

// Modified reports whether the target currently differs from base.
func (t *Transaction) Modified() bool {
	return model.Fingerprint(t.target) != t.baseFingerprint
}

// FailureReason describes why the last failed operation failed.
func (t *Transaction) FailureReason() string { return t.reason }

// FindNodeInTargetGraph resolves a node of any of the revisions to its
// counterpart in the target. Nodes already in the target resolve to
// themselves, nodes added by an applied change resolve through the added
// map, and everything else goes through base.
func (t *Transaction) FindNodeInTargetGraph(n *model.Node) (*model.Node, bool) {
	if n == nil {
		return nil, false
	}
	if t.target.Contains(n) {
		return n, true
	}
	if found, ok := t.added[n]; ok {
		return found, t.target.Contains(found)
	}

	g := n.Graph()
	if g == nil {
		return nil, false
	}

	var baseNode *model.Node
	switch g {
	case t.base:
		baseNode = n
	case t.local:
		baseNode = t.localToBase[n]
	case t.remote:
		baseNode = t.remoteToBase[n]
	}
	if baseNode == nil {
		return nil, false
	}

	found, ok := t.baseToTarget[baseNode]
	if !ok || !t.target.Contains(found) {
		return nil, false
	}
	return found, true
}

// ApplyRemote applies the remote side of e. A local side that is applied is
// reverted first. It fails without changing anything if the remote side is
// already applied or cannot be applied.
func (t *Transaction) ApplyRemote(e *conflict.Entry) bool {
	return t.applySide(e, conflict.StateRemote)
}

// ApplyLocal applies the local side of e.
func (t *Transaction) ApplyLocal(e *conflict.Entry) bool {
	return t.applySide(e, conflict.StateLocal)
}

// Revert returns e to the base state. It succeeds trivially when nothing is
// applied.
func (t *Transaction) Revert(e *conflict.Entry) bool {
	t.reason = ""
	if e.State == conflict.StateBase {
		return true
	}
	d, ok := e.Side(e.State)
	if !ok {
		return t.fail("entry has no %s change", e.State)
	}
	if !t.revertDiff(d, true) {
		return false
	}
	e.State = conflict.StateBase
	return true
}

// CanApplyRemote reports whether ApplyRemote would succeed. It never mutates
// the target or the identity maps.
func (t *Transaction) CanApplyRemote(e *conflict.Entry) bool {
	return t.canApplySide(e, conflict.StateRemote)
}

// CanApplyLocal reports whether ApplyLocal would succeed.
func (t *Transaction) CanApplyLocal(e *conflict.Entry) bool {
	return t.canApplySide(e, conflict.StateLocal)
}

// CanRevert reports whether Revert would succeed.
func (t *Transaction) CanRevert(e *conflict.Entry) bool {
	t.reason = ""
	if e.State == conflict.StateBase {
		return true
	}
	d, ok := e.Side(e.State)
	if !ok {
		return t.fail("entry has no %s change", e.State)
	}
	return t.revertDiff(d, false)
}

// EffectHolds reports whether the given side of e already shows in the
// target without e being applied. A link change between two existing nodes
// is listed once from each endpoint, so once one row is applied the other
// holds. Only link changes are considered; other kinds report false.
func (t *Transaction) EffectHolds(e *conflict.Entry, side conflict.MergeState) bool {
	d, ok := e.Side(side)
	if !ok || e.State == side {
		return false
	}
	reason := t.reason
	defer func() { t.reason = reason }()

	_, source, ok := t.findPinInTarget(d.OldPin)
	if !ok {
		return false
	}
	switch d.Kind {
	case diff.LinkRemoved:
		if d.LinkTargetOld == nil {
			return false
		}
		owner, ok := t.FindNodeInTargetGraph(d.LinkTargetOld.OwningNode())
		return !ok || linkedCounterpart(source, d.LinkTargetOld, owner) == nil
	case diff.LinkAdded:
		_, other, ok := t.findPinInTarget(d.LinkTargetNew)
		return ok && source.IsLinkedTo(other)
	}
	return false
}

func (t *Transaction) applySide(e *conflict.Entry, side conflict.MergeState) bool {
	if !t.canApplySide(e, side) {
		logging.Debug("cannot apply change",
			"graph", t.name, "side", side, "kind", e.Kind(), "reason", t.reason)
		return false
	}

	if e.State != conflict.StateBase && !t.Revert(e) {
		// canApplySide already proved the revert possible.
		panic(fmt.Sprintf("merge: revert of %s change failed after a successful dry run: %s", e.State, t.reason))
	}

	d, _ := e.Side(side)
	if !t.applyDiff(d, true) {
		panic(fmt.Sprintf("merge: apply of %s failed after a successful dry run: %s", d.Kind, t.reason))
	}
	e.State = side
	logging.Debug("change applied", "graph", t.name, "side", side, "kind", d.Kind)
	return true
}

func (t *Transaction) canApplySide(e *conflict.Entry, side conflict.MergeState) bool {
	t.reason = ""
	if e.State == side {
		return t.fail("%s change is already applied", side)
	}
	d, ok := e.Side(side)
	if !ok {
		return t.fail("entry has no %s change", side)
	}
	if e.State == conflict.StateBase {
		return t.applyDiff(d, false)
	}

	applied, _ := e.Side(e.State)
	if !t.revertDiff(applied, false) {
		return false
	}
	f := t.fork()
	if !f.revertDiff(applied, true) {
		return t.fail("%s", f.reason)
	}
	if !f.applyDiff(d, false) {
		return t.fail("%s", f.reason)
	}
	return true
}

// fork returns a scratch copy of the transaction with its own target and
// identity maps, used to evaluate a revert followed by an apply.
func (t *Transaction) fork() *Transaction {
	target, mapping := t.target.Clone()
	f := &Transaction{
		name:         t.name,
		base:         t.base,
		remote:       t.remote,
		local:        t.local,
		target:       target,
		remoteToBase: t.remoteToBase,
		localToBase:  t.localToBase,
		baseToTarget: make(map[*model.Node]*model.Node, len(t.baseToTarget)),
		added:        make(map[*model.Node]*model.Node, len(t.added)),
	}
	for from, to := range t.baseToTarget {
		if copied, ok := mapping[to]; ok {
			f.baseToTarget[from] = copied
		}
	}
	for from, to := range t.added {
		if copied, ok := mapping[to]; ok {
			f.added[from] = copied
		}
	}
	return f
}

func (t *Transaction) applyDiff(d diff.Result, write bool) bool {
	h, ok := handlers[d.Kind]
	if !ok {
		return t.fail("no handler for %s", d.Kind)
	}
	return t.run(h.apply, d, write)
}

func (t *Transaction) revertDiff(d diff.Result, write bool) bool {
	h, ok := handlers[d.Kind]
	if !ok {
		return t.fail("no handler for %s", d.Kind)
	}
	return t.run(h.revert, d, write)
}

func (t *Transaction) run(fn handlerFunc, d diff.Result, write bool) bool {
	if !fn(t, d, write) {
		return false
	}
	if write && d.Kind.IsStructural() {
		t.target.NotifyGraphChanged()
	}
	return true
}

func (t *Transaction) fail(format string, args ...any) bool {
	t.reason = fmt.Sprintf(format, args...)
	return false
}
