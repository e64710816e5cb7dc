package psdtest

import (
	"bytes"
	"fmt"
	"strconv"

	"golang.org/x/text/encoding/unicode"
)

// Style is one style run of a text layer
type Style struct {
	FontSize float64
	FauxBold bool
	FontCaps int
	// Color is ARGB in 0..1, written only when SetColor is true
	Color    [4]float64
	SetColor bool
	// OmitFontSize leaves FontSize to the default style sheet
	OmitFontSize bool
}

// Engine describes the engine data block of a text layer
type Engine struct {
	Text            string
	Fonts           []string
	Runs            []Style
	Justification   []int
	DefaultFontSize float64
}

// Bytes renders the engine data in its text syntax
func (e Engine) Bytes() []byte {
	var b bytes.Buffer
	b.WriteString("\n\n<<\n\t/EngineDict\n\t<<\n")
	b.WriteString("\t\t/Editor\n\t\t<<\n\t\t\t/Text ")
	b.Write(engineString(e.Text))
	b.WriteString("\n\t\t>>\n")

	b.WriteString("\t\t/ParagraphRun\n\t\t<<\n\t\t\t/RunArray [\n")
	for _, j := range e.Justification {
		fmt.Fprintf(&b, "\t\t\t<<\n\t\t\t\t/ParagraphSheet\n\t\t\t\t<<\n\t\t\t\t\t/Properties\n\t\t\t\t\t<<\n\t\t\t\t\t\t/Justification %d\n\t\t\t\t\t>>\n\t\t\t\t>>\n\t\t\t>>\n", j)
	}
	b.WriteString("\t\t\t]\n\t\t>>\n")

	b.WriteString("\t\t/StyleRun\n\t\t<<\n\t\t\t/RunArray [\n")
	for _, s := range e.Runs {
		b.WriteString("\t\t\t<<\n\t\t\t\t/StyleSheet\n\t\t\t\t<<\n\t\t\t\t\t/StyleSheetData\n\t\t\t\t\t<<\n")
		b.WriteString("\t\t\t\t\t\t/Font 0\n")
		if !s.OmitFontSize {
			fmt.Fprintf(&b, "\t\t\t\t\t\t/FontSize %s\n", number(s.FontSize))
		}
		fmt.Fprintf(&b, "\t\t\t\t\t\t/FauxBold %t\n", s.FauxBold)
		fmt.Fprintf(&b, "\t\t\t\t\t\t/FontCaps %d\n", s.FontCaps)
		if s.SetColor {
			fmt.Fprintf(&b, "\t\t\t\t\t\t/FillColor\n\t\t\t\t\t\t<<\n\t\t\t\t\t\t\t/Type 1\n\t\t\t\t\t\t\t/Values [ %s %s %s %s ]\n\t\t\t\t\t\t>>\n",
				number(s.Color[0]), number(s.Color[1]), number(s.Color[2]), number(s.Color[3]))
		}
		b.WriteString("\t\t\t\t\t>>\n\t\t\t\t>>\n\t\t\t>>\n")
	}
	b.WriteString("\t\t\t]\n\t\t>>\n\t>>\n")

	b.WriteString("\t/ResourceDict\n\t<<\n\t\t/FontSet [\n")
	for _, f := range e.Fonts {
		b.WriteString("\t\t<<\n\t\t\t/Name ")
		b.Write(engineString(f))
		b.WriteString("\n\t\t\t/Script 0\n\t\t\t/FontType 1\n\t\t\t/Synthetic 0\n\t\t>>\n")
	}
	b.WriteString("\t\t]\n")
	if e.DefaultFontSize > 0 {
		fmt.Fprintf(&b, "\t\t/StyleSheetSet [\n\t\t<<\n\t\t\t/Name (Normal RGB)\n\t\t\t/StyleSheetData\n\t\t\t<<\n\t\t\t\t/FontSize %s\n\t\t\t>>\n\t\t>>\n\t\t]\n", number(e.DefaultFontSize))
	}
	b.WriteString("\t>>\n>>\n")
	return b.Bytes()
}

func number(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if f > 0 && f < 1 {
		// the engine writes fractions without the leading zero
		return s[1:]
	}
	return s
}

func engineString(s string) []byte {
	encoded, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		panic(err)
	}
	out := []byte{'('}
	for _, c := range encoded {
		if c == '(' || c == ')' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return append(out, ')')
}
