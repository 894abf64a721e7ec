package model

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"lukechampine.com/blake3"
)

// Fingerprint returns a digest of the user-visible state of g: nodes, visible
// and hidden pins, defaults and links. It does not depend on node or pin order or on
// handle values, so a graph and its clone share a fingerprint.
func Fingerprint(g *Graph) string {
	if g == nil {
		return ""
	}

	nodeLines := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		pinLines := make([]string, 0, len(n.pins))
		for _, p := range n.pins {
			pinLines = append(pinLines, fmt.Sprintf("  pin %s|%s|%s|%t|%q|%q|%q\n",
				p.Name, p.Direction, p.Type, p.Hidden, p.DefaultValue, p.DefaultText, p.DefaultObject))
		}
		sort.Strings(pinLines)

		var b strings.Builder
		fmt.Fprintf(&b, "node %s|%s|%s|%s|%g|%g|%q\n", n.Class, n.ID, n.Name, n.Title, n.X, n.Y, n.Comment)
		for _, line := range pinLines {
			b.WriteString(line)
		}
		nodeLines = append(nodeLines, b.String())
	}
	sort.Strings(nodeLines)

	linkLines := make([]string, 0)
	for _, pair := range g.Links() {
		a, b := pinKey(pair[0]), pinKey(pair[1])
		if b < a {
			a, b = b, a
		}
		linkLines = append(linkLines, a+" -- "+b)
	}
	sort.Strings(linkLines)

	h := blake3.New(32, nil)
	for _, line := range nodeLines {
		h.Write([]byte(line))
	}
	for _, line := range linkLines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func pinKey(p *Pin) string {
	n := p.OwningNode()
	return fmt.Sprintf("%s/%s.%s:%s", n.Class, n.ID, p.Name, p.Direction)
}
