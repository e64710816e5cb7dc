package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ddvk/psdscene/scene"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [source]",
		Short: "Show the document, its scene nodes and editable fields",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.withSource(args)
			if err != nil {
				return err
			}
			session, err := openSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			doc, err := session.Document()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			format := "PSD"
			if doc.Version == 2 {
				format = "PSB"
			}
			fmt.Fprintln(out, renderTable("Document",
				[]string{"Format", "Width", "Height", "Aspect", "Depth", "Mode"},
				[][]string{{
					format,
					strconv.Itoa(doc.Width),
					strconv.Itoa(doc.Height),
					strconv.FormatFloat(doc.AspectRatio, 'f', 3, 64),
					strconv.Itoa(int(doc.Depth)),
					doc.ColorMode.String(),
				}},
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight}))

			fmt.Fprintln(out, renderTable("Nodes",
				[]string{"#", "Kind", "Name", "Bounds", "Visible", "Opacity", "Group", "Clip base"},
				nodeRows(session.Nodes()),
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight}))

			fmt.Fprintln(out, renderTable("Fields",
				[]string{"Label", "Kind", "Value"},
				fieldRows(session.Fields()),
				nil))

			for _, problem := range session.Problems() {
				fmt.Fprintf(out, "skipped: %v\n", problem)
			}
			return nil
		},
	}
}

func nodeRows(nodes []scene.Node) [][]string {
	rows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		a := n.Attrs()
		kind := "image"
		if _, ok := n.(*scene.TextNode); ok {
			kind = "text"
		}
		clip := ""
		if a.Clipped {
			clip = a.ClipBase
		}
		rows = append(rows, []string{
			strconv.FormatUint(a.Seq, 10),
			kind,
			a.Name,
			a.Bounds().String(),
			strconv.FormatBool(a.Visible),
			strconv.Itoa(int(a.Opacity)),
			strconv.Itoa(a.Group),
			clip,
		})
	}
	return rows
}

func fieldRows(fields scene.Fields) [][]string {
	var rows [][]string
	for _, f := range fields.Texts {
		rows = append(rows, []string{f.Label, string(f.Kind), f.Value})
	}
	for _, f := range fields.Images {
		rows = append(rows, []string{f.Label, string(f.Kind), humanize.Bytes(uint64(len(f.Value))) + " data url"})
	}
	return rows
}
