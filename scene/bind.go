package scene

import (
	"image"
	"sync"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	xdraw "golang.org/x/image/draw"
)

type bindJob struct {
	node  *ImageNode
	value string
	img   *image.NRGBA
	err   error
}

// Bind applies label to value edits to every node with a matching name and
// returns the ids of the nodes that changed. A node already bound to the
// same value is left alone. Failures are per node: the node keeps its
// content and the error is returned next to the others.
func Bind(nodes []Node, values map[string]string) (updated []string, errs []error) {
	return BindEdits(nodes, values, values)
}

// BindEdits is Bind with separate edits for text and image nodes, so a text
// and an image layer sharing a name are edited independently
func BindEdits(nodes []Node, texts, images map[string]string) (updated []string, errs []error) {
	var jobs []*bindJob
	for _, n := range nodes {
		a := n.Attrs()
		switch node := n.(type) {
		case *TextNode:
			value, ok := texts[a.Name]
			if !ok || node.Source == value {
				continue
			}
			if !utf8.ValidString(value) {
				errs = append(errs, &InvalidFieldValueError{Label: a.Name, Err: ErrInvalidText})
				continue
			}
			node.Source = value
			node.Style.Text = node.Style.Display(value)
			updated = append(updated, a.ID)
		case *ImageNode:
			value, ok := images[a.Name]
			if !ok || node.Source == value {
				continue
			}
			jobs = append(jobs, &bindJob{node: node, value: value})
		}
	}

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job *bindJob) {
			defer wg.Done()
			job.img, job.err = job.decode()
		}(job)
	}
	wg.Wait()

	for _, job := range jobs {
		if job.err != nil {
			log.WithField("node", job.node.Name).Warn(job.err)
			errs = append(errs, job.err)
			continue
		}
		job.node.Image = job.img
		job.node.Source = job.value
		updated = append(updated, job.node.ID)
	}
	return
}

func (j *bindJob) decode() (*image.NRGBA, error) {
	b, err := DecodeDataURL(j.value)
	if err != nil {
		return nil, &InvalidFieldValueError{Label: j.node.Name, Err: err}
	}
	img, err := decodeImage(b)
	if err != nil {
		return nil, &ImageDecodeError{Node: j.node.Name, Err: err}
	}
	return fit(img, j.node.Width, j.node.Height), nil
}

// fit scales img to the node size so position and size never change
func fit(img *image.NRGBA, width, height int) *image.NRGBA {
	if img.Rect.Dx() == width && img.Rect.Dy() == height {
		return img
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}
