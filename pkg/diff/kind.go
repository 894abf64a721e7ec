package diff

import "fmt"

// Kind is the type of a single difference. The declaration order is also the
// display and sort priority of change lists.
type Kind int

const (
	NoDifference Kind = iota
	NodeRemoved
	NodeAdded
	PinRemoved
	PinAdded
	PinDefaultValueChanged
	LinkRemoved
	LinkAdded
	NodeMoved
	NodeCommentChanged
)

var kindNames = map[Kind]string{
	NoDifference:           "NO_DIFFERENCE",
	NodeRemoved:            "NODE_REMOVED",
	NodeAdded:              "NODE_ADDED",
	PinRemoved:             "PIN_REMOVED",
	PinAdded:               "PIN_ADDED",
	PinDefaultValueChanged: "PIN_DEFAULT_VALUE_CHANGED",
	LinkRemoved:            "LINK_REMOVED",
	LinkAdded:              "LINK_ADDED",
	NodeMoved:              "NODE_MOVED",
	NodeCommentChanged:     "NODE_COMMENT_CHANGED",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText renders the kind by name for JSON and YAML output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name as written by MarshalText.
func (k *Kind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown diff kind %q", b)
}

// IsStructural reports whether applying the kind adds or removes nodes or
// pins, which requires a graph-changed notification.
func (k Kind) IsStructural() bool {
	switch k {
	case NodeRemoved, NodeAdded, PinRemoved, PinAdded:
		return true
	}
	return false
}

// IsRemoval reports whether the kind removes something.
func (k Kind) IsRemoval() bool {
	return k == NodeRemoved || k == PinRemoved || k == LinkRemoved
}

// IsCosmetic reports whether the kind only affects presentation.
func (k Kind) IsCosmetic() bool {
	return k == NodeMoved || k == NodeCommentChanged
}

// Color is a display color in RRGGBB hex notation.
type Color string

const (
	ColorNone       Color = ""
	ColorSoftRed    Color = "F44336"
	ColorSoftGreen  Color = "4CAF50"
	ColorSoftBlue   Color = "2196F3"
	ColorSoftYellow Color = "FFE4B5"
)

// ColorFor returns the display color used for diffs of kind k.
func ColorFor(k Kind) Color {
	switch k {
	case NodeRemoved, PinRemoved:
		return ColorSoftRed
	case NodeAdded, PinAdded:
		return ColorSoftGreen
	case PinDefaultValueChanged, LinkRemoved, LinkAdded:
		return ColorSoftBlue
	case NodeMoved, NodeCommentChanged:
		return ColorSoftYellow
	}
	return ColorNone
}
