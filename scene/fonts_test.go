package scene

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
)

func TestFontResolver(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "Go-Regular.ttf"), goregular.TTF, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Broken.ttf"), []byte("nope"), 0o644))

	r := NewFontResolver([]string{dir}, false)

	face := r.Face([]string{"Missing", "go regular"}, 20)
	assert.NotEqual(t, basicfont.Face7x13, face)
	assert.Positive(t, face.Metrics().Ascent.Ceil())
	assert.Len(t, r.fonts, 1)

	assert.Equal(t, basicfont.Face7x13, r.Face([]string{"Broken"}, 20))
	assert.Equal(t, basicfont.Face7x13, r.Face([]string{"Go-Regular"}, 0))
	assert.True(t, r.missing["Missing"])
	assert.True(t, r.missing["Broken"])

	var nilResolver *FontResolver
	assert.Equal(t, basicfont.Face7x13, nilResolver.Face([]string{"Go-Regular"}, 12))
}
