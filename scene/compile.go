package scene

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/ddvk/psdscene/psd"
)

// Compiled is the editable scene built from one decoded document.
// It is never mutated once returned; sessions work on clones of Nodes.
type Compiled struct {
	Document psd.Document
	Export   psd.ExportTree
	// Groups are in render order
	Groups []ClippingGroup
	// Nodes are painted in order: image nodes, then text nodes
	Nodes  []Node
	Fields Fields
	// Problems holds the layers that were dropped, with the reason
	Problems []error
	IDs      *IDMap
}

type rasterJob struct {
	node   *ImageNode
	raster *psd.Raster
	err    error
}

// Compile groups the layers, derives text styles and decodes every raster.
// Raster decodes run concurrently and all of them finish before the scene is
// returned. Layers that cannot be compiled are reported in Problems.
func Compile(ctx context.Context, file *psd.File) (*Compiled, error) {
	c := &Compiled{
		Document: file.Document,
		Export:   file.Export,
		Groups:   RenderOrder(GroupLayers(file.Layers)),
		IDs:      NewIDMap(),
	}

	var jobs []*rasterJob
	var texts []*TextNode
	for gi, g := range c.Groups {
		for _, l := range g.Layers {
			switch rec := l.(type) {
			case *psd.TextRecord:
				style, err := ExtractStyle(rec, file.Export)
				if err != nil {
					log.WithField("layer", rec.Name).Warnf("dropping text layer: %v", err)
					c.Problems = append(c.Problems, err)
					continue
				}
				texts = append(texts, &TextNode{
					NodeAttrs: newAttrs(&rec.LayerBase, gi),
					Style:     style,
					Source:    style.Text,
					Transform: rec.Transform,
				})
			case *psd.ImageRecord:
				if rec.Group || !rec.Visible || rec.Width() <= 0 || rec.Height() <= 0 || rec.Raster == nil {
					log.Tracef("skipping %v", rec)
					continue
				}
				jobs = append(jobs, &rasterJob{
					node:   &ImageNode{NodeAttrs: newAttrs(&rec.LayerBase, gi)},
					raster: rec.Raster,
				})
			}
		}
	}

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job *rasterJob) {
			defer wg.Done()
			job.err = job.decode()
		}(job)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, job := range jobs {
		if job.err != nil {
			log.WithField("layer", job.node.Name).Warn(job.err)
			c.Problems = append(c.Problems, job.err)
			continue
		}
		c.add(job.node)
		c.Fields.Images = append(c.Fields.Images, FieldBinding{Label: job.node.Name, Value: job.node.Source, Kind: ImageField})
	}
	for _, t := range texts {
		c.add(t)
		c.Fields.Texts = append(c.Fields.Texts, FieldBinding{Label: t.Name, Value: t.Source, Kind: TextField})
	}
	log.WithFields(log.Fields{
		"groups":   len(c.Groups),
		"nodes":    len(c.Nodes),
		"problems": len(c.Problems),
	}).Debug("compiled scene")
	return c, nil
}

func (j *rasterJob) decode() error {
	img, err := j.raster.Decode()
	if err != nil {
		return &ImageDecodeError{Node: j.node.Name, Err: err}
	}
	value, err := EncodeDataURL(img)
	if err != nil {
		return &ImageDecodeError{Node: j.node.Name, Err: err}
	}
	j.node.Image = img
	j.node.Source = value
	return nil
}

func (c *Compiled) add(n Node) {
	u, seq := c.IDs.Next()
	a := n.Attrs()
	a.ID, a.Seq = u.String(), seq
	c.Nodes = append(c.Nodes, n)
}
