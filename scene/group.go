package scene

import (
	"github.com/ddvk/psdscene/psd"
)

// ClippingGroup is a run of layers that renders through one clip source.
// The layers of the leading group, before any clip source is seen, have an
// empty ClipSource.
type ClippingGroup struct {
	ClipSource string
	Layers     []psd.RawLayer
}

// GroupLayers partitions the decoder's layer sequence into clipping groups.
// A layer naming a clip source other than the active one opens a new group;
// the layer whose own name equals the active clip source closes it. Groups
// keep input order and empty groups are left out, so concatenating the
// members gives back the input.
func GroupLayers(layers []psd.RawLayer) []ClippingGroup {
	var groups []ClippingGroup
	var current ClippingGroup
	var active string
	var hasActive bool

	flush := func(next string) {
		if len(current.Layers) > 0 {
			groups = append(groups, current)
		}
		current = ClippingGroup{ClipSource: next}
	}

	for _, l := range layers {
		b := l.Base()
		switch {
		case b.HasClipSource && (!hasActive || b.ClipSource != active):
			active, hasActive = b.ClipSource, true
			flush(active)
			current.Layers = append(current.Layers, l)
		case hasActive && b.Name == active:
			current.Layers = append(current.Layers, l)
			flush("")
		default:
			current.Layers = append(current.Layers, l)
		}
	}
	flush("")
	return groups
}

// RenderOrder reverses the groups, then the members of every group, which
// turns the top-first decoder order into painting order
func RenderOrder(groups []ClippingGroup) []ClippingGroup {
	out := make([]ClippingGroup, 0, len(groups))
	for i := len(groups) - 1; i >= 0; i-- {
		g := groups[i]
		layers := make([]psd.RawLayer, len(g.Layers))
		for j, l := range g.Layers {
			layers[len(layers)-1-j] = l
		}
		out = append(out, ClippingGroup{ClipSource: g.ClipSource, Layers: layers})
	}
	return out
}
