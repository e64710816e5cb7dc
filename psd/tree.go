package psd

import (
	"image"

	log "github.com/sirupsen/logrus"
)

type treeNode struct {
	record   *LayerRecord
	layer    RawLayer
	parent   *treeNode
	children []*treeNode
}

func (n *treeNode) add(c *treeNode) {
	c.parent = n
	n.children = append(n.children, c)
}

// buildTree nests the records (stored bottom first) into folders and returns
// the pre-order layer sequence, top of the stack first, plus the export tree
func buildTree(records []LayerRecord) ([]RawLayer, ExportTree) {
	root := &treeNode{}
	current := root
	for i := len(records) - 1; i >= 0; i-- {
		rec := &records[i]
		switch {
		case rec.Section.isFolder():
			node := &treeNode{record: rec}
			current.add(node)
			current = node
		case rec.Section == SectionBoundingMarker:
			if current.parent == nil {
				log.Warn("folder end marker without an open folder")
				continue
			}
			current = current.parent
		default:
			current.add(&treeNode{record: rec})
		}
	}
	if current != root {
		log.Warn("unterminated folder at the bottom of the stack")
	}

	var layers []RawLayer
	var walk func(n *treeNode, depth int)
	walk = func(n *treeNode, depth int) {
		for i, c := range n.children {
			c.layer = newRawLayer(c.record, depth)
			if c.record.Clipping == clippingNonBase {
				if base := clipBase(n.children[i+1:]); base != nil {
					b := c.layer.Base()
					b.ClipSource = base.Name
					b.HasClipSource = true
				}
			}
			layers = append(layers, c.layer)
			walk(c, depth+1)
		}
	}
	walk(root, 0)
	return layers, ExportTree{Children: exportChildren(root)}
}

// clipBase is the first sibling below a clipped layer that is not clipped itself
func clipBase(below []*treeNode) *LayerRecord {
	for _, s := range below {
		if s.record.Clipping != clippingNonBase {
			return s.record
		}
	}
	return nil
}

func newRawLayer(rec *LayerRecord, depth int) RawLayer {
	base := LayerBase{
		Name:    rec.Name,
		LayerID: rec.LayerID,
		Bounds:  rec.Bounds,
		Visible: rec.Visible(),
		Opacity: rec.Opacity,
		Clipped: rec.Clipping == clippingNonBase,
		Depth:   depth,
	}
	if rec.Section.isFolder() {
		return &ImageRecord{LayerBase: base, Group: true, Raster: rec.Raster}
	}
	if tt := rec.TypeTool; tt != nil {
		return &TextRecord{
			LayerBase:  base,
			Text:       tt.Text,
			Engine:     tt.Engine,
			Transform:  tt.Transform,
			Descriptor: tt.Descriptor,
		}
	}
	return &ImageRecord{LayerBase: base, Raster: rec.Raster}
}

// ExportTree is a nested summary of the layers, the shape consumers match
// text layers against
type ExportTree struct {
	Children []*ExportEntry
}

type ExportEntry struct {
	Type     string
	Name     string
	Visible  bool
	Opacity  float64
	Bounds   image.Rectangle
	Text     *ExportText
	Children []*ExportEntry
}

type ExportText struct {
	Value     string
	Font      ExportFont
	Transform Transform
}

type ExportFont struct {
	Name      string
	Sizes     []float64
	Colors    [][4]uint8
	Alignment []string
}

const (
	ExportLayer = "layer"
	ExportGroup = "group"
)

func exportChildren(n *treeNode) []*ExportEntry {
	entries := make([]*ExportEntry, 0, len(n.children))
	for _, c := range n.children {
		base := c.layer.Base()
		entry := &ExportEntry{
			Type:    ExportLayer,
			Name:    base.Name,
			Visible: base.Visible,
			Opacity: float64(base.Opacity) / 255,
			Bounds:  base.Bounds,
		}
		if c.record.Section.isFolder() {
			entry.Type = ExportGroup
			entry.Children = exportChildren(c)
		}
		if text, ok := c.layer.(*TextRecord); ok {
			entry.Text = exportText(text)
		}
		entries = append(entries, entry)
	}
	return entries
}

func exportText(t *TextRecord) *ExportText {
	font := ExportFont{
		Colors:    t.Engine.Colors(),
		Alignment: t.Engine.Alignment(),
	}
	if fonts := t.Engine.Fonts(); len(fonts) > 0 {
		font.Name = fonts[0]
	}
	for _, sheet := range t.Engine.StyleSheets() {
		if size, ok := asFloat(sheet["FontSize"]); ok {
			font.Sizes = append(font.Sizes, size)
		}
	}
	return &ExportText{Value: t.Text, Font: font, Transform: t.Transform}
}

// Walk visits every entry in pre-order
func (t ExportTree) Walk(fn func(e *ExportEntry, depth int)) {
	var walk func(entries []*ExportEntry, depth int)
	walk = func(entries []*ExportEntry, depth int) {
		for _, e := range entries {
			fn(e, depth)
			walk(e.Children, depth+1)
		}
	}
	walk(t.Children, 0)
}

// Find returns the first entry, in pre-order, with the given name
func (t ExportTree) Find(name string) *ExportEntry {
	var found *ExportEntry
	t.Walk(func(e *ExportEntry, _ int) {
		if found == nil && e.Name == name {
			found = e
		}
	})
	return found
}

// FindText is Find restricted to text entries
func (t ExportTree) FindText(name string) *ExportEntry {
	var found *ExportEntry
	t.Walk(func(e *ExportEntry, _ int) {
		if found == nil && e.Text != nil && e.Name == name {
			found = e
		}
	})
	return found
}
