package scene

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/adrg/sysfont"
	"github.com/golang/freetype/truetype"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// FontResolver maps the font names stored in text layers to TrueType faces.
// Configured directories are searched first, then the system fonts.
// Names that resolve to nothing get the built-in bitmap face.
type FontResolver struct {
	dirs   []string
	system bool

	mu      sync.Mutex
	scanned bool
	files   map[string]string
	finder  *sysfont.Finder
	fonts   map[string]*truetype.Font
	missing map[string]bool
}

func NewFontResolver(dirs []string, system bool) *FontResolver {
	return &FontResolver{
		dirs:    dirs,
		system:  system,
		files:   make(map[string]string),
		fonts:   make(map[string]*truetype.Font),
		missing: make(map[string]bool),
	}
}

func fontKey(name string) string {
	return strings.ToLower(strings.NewReplacer(" ", "", "-", "", "_", "").Replace(name))
}

// Face returns a face for the first name that resolves
func (r *FontResolver) Face(names []string, sizePt int) font.Face {
	if r == nil || sizePt <= 0 {
		return basicfont.Face7x13
	}
	for _, name := range names {
		if f := r.font(name); f != nil {
			return truetype.NewFace(f, &truetype.Options{
				Size:    float64(sizePt),
				DPI:     72,
				Hinting: font.HintingFull,
			})
		}
	}
	return basicfont.Face7x13
}

func (r *FontResolver) font(name string) *truetype.Font {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.missing[name] {
		return nil
	}
	r.scan()

	path, ok := r.files[fontKey(name)]
	if !ok && r.system {
		if r.finder == nil {
			r.finder = sysfont.NewFinder(&sysfont.FinderOpts{Extensions: []string{".ttf"}})
		}
		if match := r.finder.Match(name); match != nil {
			path = match.Filename
		}
	}
	if path == "" {
		log.WithField("font", name).Debug("no font file")
		r.missing[name] = true
		return nil
	}
	if f, ok := r.fonts[path]; ok {
		return f
	}
	b, err := os.ReadFile(path)
	if err == nil {
		var f *truetype.Font
		if f, err = truetype.Parse(b); err == nil {
			log.WithFields(log.Fields{"font": name, "file": path}).Debug("loaded font")
			r.fonts[path] = f
			return f
		}
	}
	log.WithField("font", name).Warnf("unusable font file %s: %v", path, err)
	r.missing[name] = true
	return nil
}

func (r *FontResolver) scan() {
	if r.scanned {
		return
	}
	r.scanned = true
	for _, dir := range r.dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".ttf") {
				return nil
			}
			key := fontKey(strings.TrimSuffix(d.Name(), filepath.Ext(path)))
			if _, seen := r.files[key]; !seen {
				r.files[key] = path
			}
			return nil
		})
		if err != nil {
			log.WithField("dir", dir).Warnf("font directory: %v", err)
		}
	}
	log.Debugf("found %d font files", len(r.files))
}
