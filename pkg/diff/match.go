package diff

import (
	"slices"
	"sort"

	"github.com/samber/lo"

	"github.com/ritzau/merge-assist/pkg/model"
)

// MatchStrategy selects the node matching passes to run.
type MatchStrategy uint8

const (
	MatchExact MatchStrategy = 1 << iota
	MatchApproximate

	MatchAll = MatchExact | MatchApproximate
)

// Has reports whether all bits of flag are set.
func (s MatchStrategy) Has(flag MatchStrategy) bool {
	return s&flag == flag
}

// matchGreedy pairs every old item with the first remaining new item
// accepted by pred. Matched items are removed from both pools, which keep the
// relative order of what is left.
func matchGreedy[T any](oldPool, newPool []T, pred func(T, T) bool) (pairs [][2]T, oldLeft, newLeft []T) {
	oldLeft = make([]T, 0, len(oldPool))
	newLeft = slices.Clone(newPool)
	for _, o := range oldPool {
		idx := slices.IndexFunc(newLeft, func(n T) bool { return pred(o, n) })
		if idx < 0 {
			oldLeft = append(oldLeft, o)
			continue
		}
		pairs = append(pairs, [2]T{o, newLeft[idx]})
		newLeft = slices.Delete(newLeft, idx, idx+1)
	}
	return pairs, oldLeft, newLeft
}

// FindNodeMatches pairs the nodes of two graphs. Exact matching runs first so
// approximate matches never displace exact ones. The returned unmatched slices
// keep graph order.
func FindNodeMatches(oldGraph, newGraph *model.Graph, strategy MatchStrategy) (matches []NodeMatch, unmatchedOld, unmatchedNew []*model.Node) {
	unmatchedOld = graphNodes(oldGraph)
	unmatchedNew = graphNodes(newGraph)

	if strategy.Has(MatchExact) {
		var exact []NodeMatch
		exact, unmatchedOld, unmatchedNew = FindExactNodeMatches(unmatchedOld, unmatchedNew)
		matches = append(matches, exact...)
	}

	if strategy.Has(MatchApproximate) {
		var approx []NodeMatch
		approx, unmatchedOld, unmatchedNew = FindApproximateNodeMatches(unmatchedOld, unmatchedNew)
		matches = append(matches, approx...)
	}

	return matches, unmatchedOld, unmatchedNew
}

func graphNodes(g *model.Graph) []*model.Node {
	if g == nil {
		return nil
	}
	return g.Nodes()
}

// FindExactNodeMatches greedily pairs nodes by identity, in old-node order
// with first fit on the new nodes.
func FindExactNodeMatches(oldNodes, newNodes []*model.Node) ([]NodeMatch, []*model.Node, []*model.Node) {
	pairs, oldLeft, newLeft := matchGreedy(oldNodes, newNodes, model.IsExactMatch)
	return toNodeMatches(pairs), oldLeft, newLeft
}

type nodeBucketKey struct {
	class string
	title string
}

type candidate struct {
	oldIdx int
	newIdx int
	score  int
}

// FindApproximateNodeMatches pairs nodes of the same class and display title
// by similarity. Inside every bucket each old/new pair is scored by its diff
// count and the best scoring pairs are accepted greedily. Ties are broken by
// old pool index, then new pool index. Buckets are visited in order of first
// appearance in oldNodes.
func FindApproximateNodeMatches(oldNodes, newNodes []*model.Node) ([]NodeMatch, []*model.Node, []*model.Node) {
	keyOf := func(n *model.Node) nodeBucketKey { return nodeBucketKey{class: n.Class, title: n.Title} }

	newByKey := make(map[nodeBucketKey][]int)
	for i, n := range newNodes {
		k := keyOf(n)
		newByKey[k] = append(newByKey[k], i)
	}

	var bucketOrder []nodeBucketKey
	oldByKey := make(map[nodeBucketKey][]int)
	for i, n := range oldNodes {
		k := keyOf(n)
		if _, seen := oldByKey[k]; !seen {
			bucketOrder = append(bucketOrder, k)
		}
		oldByKey[k] = append(oldByKey[k], i)
	}

	usedOld := make(map[int]bool)
	usedNew := make(map[int]bool)
	var matches []NodeMatch

	for _, k := range bucketOrder {
		newIdxs, ok := newByKey[k]
		if !ok {
			continue
		}

		var candidates []candidate
		for _, oi := range oldByKey[k] {
			for _, ni := range newIdxs {
				counter := NewCountingSet()
				DiffNodes(oldNodes[oi], newNodes[ni], counter)
				candidates = append(candidates, candidate{oldIdx: oi, newIdx: ni, score: counter.Found()})
			}
		}

		sort.Slice(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if a.score != b.score {
				return a.score < b.score
			}
			if a.oldIdx != b.oldIdx {
				return a.oldIdx < b.oldIdx
			}
			return a.newIdx < b.newIdx
		})

		for len(candidates) > 0 {
			best := candidates[0]
			matches = append(matches, NodeMatch{Old: oldNodes[best.oldIdx], New: newNodes[best.newIdx]})
			usedOld[best.oldIdx] = true
			usedNew[best.newIdx] = true
			candidates = lo.Filter(candidates, func(c candidate, _ int) bool {
				return c.oldIdx != best.oldIdx && c.newIdx != best.newIdx
			})
		}
	}

	oldLeft := lo.Filter(oldNodes, func(_ *model.Node, i int) bool { return !usedOld[i] })
	newLeft := lo.Filter(newNodes, func(_ *model.Node, i int) bool { return !usedNew[i] })
	return matches, oldLeft, newLeft
}

// FindPinMatches pairs the visible pins of two nodes by name.
func FindPinMatches(oldNode, newNode *model.Node) (matches []PinMatch, unmatchedOld, unmatchedNew []*model.Pin) {
	isVisible := func(p *model.Pin, _ int) bool { return p != nil && !p.Hidden }
	oldPins := lo.Filter(oldNode.Pins(), isVisible)
	newPins := lo.Filter(newNode.Pins(), isVisible)

	pairs, oldLeft, newLeft := matchGreedy(oldPins, newPins, func(o, n *model.Pin) bool {
		return o.Name == n.Name
	})
	for _, p := range pairs {
		matches = append(matches, PinMatch{Old: p[0], New: p[1]})
	}
	return matches, oldLeft, newLeft
}

// FindLinkMatches pairs the links of two pins. Link targets are identified by
// direction, pin name and a weak match of their owning nodes, which tolerates
// node id churn.
func FindLinkMatches(oldPin, newPin *model.Pin) (matches []LinkMatch, unmatchedOld, unmatchedNew []Link) {
	linksOf := func(p *model.Pin) []Link {
		return lo.Map(p.LinkedTo(), func(target *model.Pin, _ int) Link {
			return Link{Source: p, Target: target}
		})
	}

	pairs, oldLeft, newLeft := matchGreedy(linksOf(oldPin), linksOf(newPin), func(o, n Link) bool {
		return o.Target.Direction == n.Target.Direction &&
			o.Target.Name == n.Target.Name &&
			model.IsWeakMatch(o.Target.OwningNode(), n.Target.OwningNode())
	})
	for _, p := range pairs {
		matches = append(matches, LinkMatch{Old: p[0], New: p[1]})
	}
	return matches, oldLeft, newLeft
}

func toNodeMatches(pairs [][2]*model.Node) []NodeMatch {
	return lo.Map(pairs, func(p [2]*model.Node, _ int) NodeMatch {
		return NodeMatch{Old: p[0], New: p[1]}
	})
}
