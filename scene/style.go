package scene

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ddvk/psdscene/psd"
)

const defaultFontSize = 12

var upper = cases.Upper(language.Und)

// StyleRun is the editing style derived from a text layer
type StyleRun struct {
	// Text is the displayed text, caps already applied
	Text       string
	FontFamily string
	Fonts      []string
	FontSizePt int
	FillColor  color.NRGBA
	Bold       bool
	Uppercase  bool
	Alignment  string
}

// Fill formats the fill color the way style sheets write it
func (s StyleRun) Fill() string {
	c := s.FillColor
	return fmt.Sprintf("rgba(%d, %d, %d, %d)", c.R, c.G, c.B, c.A)
}

// Display applies the run's caps style to text
func (s StyleRun) Display(text string) string {
	if s.Uppercase {
		return upper.String(text)
	}
	return text
}

// FontSize scales a style sheet font size by the layer's horizontal scale,
// rounding half up
func FontSize(size, scale float64) int {
	return int(math.Floor(size*scale + 0.5))
}

// ExtractStyle derives the style of a text layer. The export entry with the
// layer's name supplies the transform; the second style run wins over the
// first.
func ExtractStyle(rec *psd.TextRecord, export psd.ExportTree) (StyleRun, error) {
	entry := export.FindText(rec.Name)
	if entry == nil {
		return StyleRun{}, &LayerMatchError{Layer: rec.Name, Err: ErrNoExportEntry}
	}
	sheets := rec.Engine.StyleSheets()
	if len(sheets) == 0 {
		return StyleRun{}, &LayerMatchError{Layer: rec.Name, Err: ErrNoStyleRun}
	}
	sheet := sheets[0]
	if len(sheets) > 1 {
		sheet = sheets[1]
	}

	scale := entry.Text.Transform.XX
	if scale == 0 {
		// a degenerate matrix carries no scale
		scale = 1
	}
	size := float64(defaultFontSize)
	if v, ok := rec.Engine.StyleValue(sheet, "FontSize"); ok {
		if f, ok := v.(float64); ok {
			size = f
		}
	}

	style := StyleRun{
		FontSizePt: FontSize(size, scale),
		FillColor:  color.NRGBA{A: 0xff},
		Alignment:  "left",
		Fonts:      rec.Engine.Fonts(),
	}
	style.FontFamily = strings.Join(style.Fonts, ", ")
	if v, ok := rec.Engine.StyleValue(sheet, "FontCaps"); ok {
		if f, ok := v.(float64); ok && int(f) == psd.FontCapsAll {
			style.Uppercase = true
		}
	}
	if v, ok := rec.Engine.StyleValue(sheet, "FauxBold"); ok {
		style.Bold, _ = v.(bool)
	}

	colors := rec.Engine.Colors()
	switch {
	case len(colors) > 1:
		style.FillColor = nrgba(colors[1])
	case len(colors) == 1:
		style.FillColor = nrgba(colors[0])
	}
	if alignment := rec.Engine.Alignment(); len(alignment) > 0 {
		style.Alignment = alignment[0]
	}
	style.Text = style.Display(rec.Text)
	return style, nil
}

func nrgba(c [4]uint8) color.NRGBA {
	return color.NRGBA{R: c[0], G: c[1], B: c[2], A: c[3]}
}
