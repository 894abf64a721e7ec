// Package loader reads and writes documents as YAML. Paths ending in .zst are
// zstd compressed.
package loader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"github.com/ritzau/merge-assist/pkg/logging"
	"github.com/ritzau/merge-assist/pkg/model"
)

// ErrInvalidDocument wraps every validation failure.
var ErrInvalidDocument = errors.New("invalid document")

// Compressed reports whether path names a zstd compressed document.
func Compressed(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zst")
}

// Load reads a document from path.
func Load(path string) (*model.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if Compressed(path) {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open zstd stream %s: %w", path, err)
		}
		defer dec.Close()
		r = dec
	}

	doc, err := Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logging.Debug("document loaded", "path", path, "graphs", len(doc.Graphs()))
	return doc, nil
}

// LoadOptional is Load, except that an empty path yields a nil document.
// Merges without a common ancestor pass no base.
func LoadOptional(path string) (*model.Document, error) {
	if path == "" {
		return nil, nil
	}
	return Load(path)
}

// Save writes doc to path, replacing any existing file.
func Save(path string, doc *model.Document) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if !Compressed(path) {
		return Encode(f, doc)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("open zstd stream %s: %w", path, err)
	}
	if err := Encode(enc, doc); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Decode reads one YAML document and validates it.
func Decode(r io.Reader) (*model.Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if err := Validate(&f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return FromFile(&f), nil
}

// Encode writes doc as YAML.
func Encode(w io.Writer, doc *model.Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ToFile(doc)); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return enc.Close()
}

// FromFile builds a document from a validated file.
func FromFile(f *File) *model.Document {
	doc := model.NewDocument(f.Name)
	for _, gf := range f.Graphs {
		g := doc.NewGraph(gf.Name, gf.Origin)
		byID := make(map[string]*model.Node, len(gf.Nodes))
		for _, nf := range gf.Nodes {
			n := g.AddNode(nf.ID, nf.Class, nf.Name, nf.Title)
			n.X, n.Y = nf.X, nf.Y
			n.Comment = nf.Comment
			for _, pf := range nf.Pins {
				dir, _ := model.ParseDirection(pf.Direction)
				p := n.CreatePin(dir, model.PinType{
					Category:    pf.Category,
					SubCategory: pf.SubCategory,
					Container:   pf.Container,
				}, pf.Name)
				p.Hidden = pf.Hidden
				p.DefaultValue = pf.DefaultValue
				p.DefaultText = pf.DefaultText
				p.DefaultObject = pf.DefaultObject
			}
			byID[nf.ID] = n
		}
		for _, lf := range gf.Links {
			from := lf.From.resolve(byID)
			to := lf.To.resolve(byID)
			from.MakeLinkTo(to)
		}
	}
	return doc
}

// ToFile converts doc to its on-disk shape.
func ToFile(doc *model.Document) *File {
	f := &File{Name: doc.Name}
	for _, g := range doc.Graphs() {
		gf := GraphFile{Name: g.Name, Origin: g.OriginID, Nodes: []NodeFile{}}
		for _, n := range g.Nodes() {
			nf := NodeFile{
				ID:      n.ID,
				Class:   n.Class,
				Name:    n.Name,
				Title:   n.Title,
				X:       n.X,
				Y:       n.Y,
				Comment: n.Comment,
			}
			for _, p := range n.Pins() {
				nf.Pins = append(nf.Pins, PinFile{
					Name:          p.Name,
					Direction:     p.Direction.String(),
					Category:      p.Type.Category,
					SubCategory:   p.Type.SubCategory,
					Container:     p.Type.Container,
					Hidden:        p.Hidden,
					DefaultValue:  p.DefaultValue,
					DefaultText:   p.DefaultText,
					DefaultObject: p.DefaultObject,
				})
			}
			gf.Nodes = append(gf.Nodes, nf)
		}
		for _, l := range g.Links() {
			gf.Links = append(gf.Links, LinkFile{From: address(l[0]), To: address(l[1])})
		}
		f.Graphs = append(f.Graphs, gf)
	}
	return f
}

// address names p, with its direction only when the node has another pin
// of the same name.
func address(p *model.Pin) PinAddress {
	n := p.OwningNode()
	a := PinAddress{Node: n.ID, Pin: p.Name}
	for _, other := range n.Pins() {
		if other != p && other.Name == p.Name {
			a.Direction = p.Direction.String()
			break
		}
	}
	return a
}

func (a PinAddress) resolve(byID map[string]*model.Node) *model.Pin {
	n := byID[a.Node]
	if a.Direction == "" {
		return n.FindPinByName(a.Pin)
	}
	dir, _ := model.ParseDirection(a.Direction)
	return n.FindPin(a.Pin, dir)
}
