package psd

import (
	"fmt"
	"math"
	"strings"
)

const (
	typeToolVersion = 1
	textVersion     = 50
	descriptorV16   = 16

	// FontCapsAll is the FontCaps value of all-caps text
	FontCapsAll = 2
)

var alignments = []string{"left", "right", "center", "justify"}

// TypeTool is the decoded 'TySh' block of a text layer
type TypeTool struct {
	Transform  Transform
	Text       string
	Descriptor *Descriptor
	Engine     EngineData
}

// ReadTypeTool decodes the payload of a 'TySh' additional info block
func ReadTypeTool(d *BinaryDeserializer) (tt *TypeTool, err error) {
	version, err := d.GetUInt16()
	if err != nil {
		return
	}
	if version != typeToolVersion {
		err = fmt.Errorf("%w: type tool version %d", ErrUnsupported, version)
		return
	}
	tt = &TypeTool{}
	m := []*float64{&tt.Transform.XX, &tt.Transform.XY, &tt.Transform.YX, &tt.Transform.YY, &tt.Transform.TX, &tt.Transform.TY}
	for _, f := range m {
		*f, err = d.GetFloat64()
		if err != nil {
			return
		}
	}
	tv, err := d.GetUInt16()
	if err != nil {
		return
	}
	dv, err := d.GetUInt32()
	if err != nil {
		return
	}
	if tv != textVersion || dv != descriptorV16 {
		err = fmt.Errorf("%w: text version %d, descriptor version %d", ErrUnsupported, tv, dv)
		return
	}
	tt.Descriptor, err = ReadDescriptor(d)
	if err != nil {
		return
	}
	tt.Text = strings.ReplaceAll(tt.Descriptor.Text("Txt "), "\x00", "")

	raw := tt.Descriptor.Bytes("EngineData")
	if raw == nil {
		tt.Engine = EngineData{}
		return
	}
	tt.Engine, err = ParseEngineData(raw)
	// the warp descriptor and text bounds follow; nothing here needs them
	return
}

// Fonts lists the font set names
func (e EngineData) Fonts() []string {
	var fonts []string
	for _, f := range asList(e.Lookup("ResourceDict", "FontSet")) {
		if name, ok := asString(lookup(f, "Name")); ok {
			fonts = append(fonts, name)
		}
	}
	return fonts
}

// StyleSheets returns the StyleSheetData of every style run, in run order
func (e EngineData) StyleSheets() []map[string]any {
	runs := asList(e.Lookup("EngineDict", "StyleRun", "RunArray"))
	sheets := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		sheets = append(sheets, asDict(lookup(run, "StyleSheet", "StyleSheetData")))
	}
	return sheets
}

// DefaultStyleSheet is the document's normal style sheet, which runs only override
func (e EngineData) DefaultStyleSheet() map[string]any {
	for _, root := range []string{"ResourceDict", "DocumentResources"} {
		if sheet := asDict(e.Lookup(root, "StyleSheetSet", 0, "StyleSheetData")); sheet != nil {
			return sheet
		}
	}
	return nil
}

// Colors returns the fill color of every run that sets one, as RGBA bytes
func (e EngineData) Colors() [][4]uint8 {
	var colors [][4]uint8
	for _, sheet := range e.StyleSheets() {
		values := asList(lookup(sheet, "FillColor", "Values"))
		if len(values) < 4 {
			continue
		}
		var argb [4]uint8
		for i := 0; i < 4; i++ {
			f, _ := asFloat(values[i])
			argb[i] = toByte(f)
		}
		colors = append(colors, [4]uint8{argb[1], argb[2], argb[3], argb[0]})
	}
	return colors
}

// Alignment returns the justification of every paragraph run
func (e EngineData) Alignment() []string {
	var result []string
	for _, run := range asList(e.Lookup("EngineDict", "ParagraphRun", "RunArray")) {
		j, _ := asFloat(lookup(run, "ParagraphSheet", "Properties", "Justification"))
		index := int(j)
		if index < 0 {
			index = 0
		}
		result = append(result, alignments[min(index, len(alignments)-1)])
	}
	return result
}

// EditorText is the text as stored by the engine
func (e EngineData) EditorText() string {
	s, _ := asString(e.Lookup("EngineDict", "Editor", "Text"))
	return s
}

// StyleValue looks a StyleSheetData key up in the sheet and then in the
// document default
func (e EngineData) StyleValue(sheet map[string]any, key string) (any, bool) {
	if v, ok := sheet[key]; ok {
		return v, true
	}
	if v, ok := e.DefaultStyleSheet()[key]; ok {
		return v, true
	}
	return nil, false
}

func toByte(f float64) uint8 {
	v := math.Floor(f*255 + 0.5)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
