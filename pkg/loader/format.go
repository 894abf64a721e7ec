package loader

// File is the on-disk shape of a document. Links are listed once per graph,
// from an output pin to an input pin, and address pins by node id and pin
// name. A node may carry an input and an output pin of the same name; links
// to either then give the pin's direction too.
type File struct {
	Name   string      `yaml:"name"`
	Graphs []GraphFile `yaml:"graphs"`
}

type GraphFile struct {
	Name   string     `yaml:"name"`
	Origin string     `yaml:"origin,omitempty"`
	Nodes  []NodeFile `yaml:"nodes"`
	Links  []LinkFile `yaml:"links,omitempty"`
}

type NodeFile struct {
	ID      string    `yaml:"id"`
	Class   string    `yaml:"class"`
	Name    string    `yaml:"name,omitempty"`
	Title   string    `yaml:"title,omitempty"`
	X       float64   `yaml:"x"`
	Y       float64   `yaml:"y"`
	Comment string    `yaml:"comment,omitempty"`
	Pins    []PinFile `yaml:"pins,omitempty"`
}

type PinFile struct {
	Name          string `yaml:"name"`
	Direction     string `yaml:"direction"`
	Category      string `yaml:"category"`
	SubCategory   string `yaml:"subCategory,omitempty"`
	Container     string `yaml:"container,omitempty"`
	Hidden        bool   `yaml:"hidden,omitempty"`
	DefaultValue  string `yaml:"default,omitempty"`
	DefaultText   string `yaml:"text,omitempty"`
	DefaultObject string `yaml:"object,omitempty"`
}

type LinkFile struct {
	From PinAddress `yaml:"from"`
	To   PinAddress `yaml:"to"`
}

// PinAddress names a pin as node id and pin name. Direction may be left out
// when the name alone is unambiguous on the node.
type PinAddress struct {
	Node      string `yaml:"node"`
	Pin       string `yaml:"pin"`
	Direction string `yaml:"direction,omitempty"`
}
