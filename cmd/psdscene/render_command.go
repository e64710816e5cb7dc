package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ddvk/psdscene/scene"
)

type renderOptions struct {
	output     string
	sets       []string
	images     []string
	fieldsFile string
}

// edits collects the field values in the order fields file, --set, --image
func (o *renderOptions) edits() ([]string, map[string]string, error) {
	var order []string
	values := make(map[string]string)
	add := func(m map[string]string) {
		for label, value := range m {
			if _, seen := values[label]; !seen {
				order = append(order, label)
			}
			values[label] = value
		}
	}

	if o.fieldsFile != "" {
		fromFile, err := readFieldsFile(o.fieldsFile)
		if err != nil {
			return nil, nil, err
		}
		add(fromFile)
	}
	sets, err := parseAssignments(o.sets)
	if err != nil {
		return nil, nil, err
	}
	add(sets)

	images, err := parseAssignments(o.images)
	if err != nil {
		return nil, nil, err
	}
	for label, path := range images {
		value, err := fileDataURL(path)
		if err != nil {
			return nil, nil, fmt.Errorf("image for %s: %w", label, err)
		}
		images[label] = value
	}
	add(images)
	return order, values, nil
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	opts := &renderOptions{}

	cmd := &cobra.Command{
		Use:   "render [source]",
		Short: "Apply field edits and export the flattened scene as PNG",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.withSource(args)
			if err != nil {
				return err
			}
			order, values, err := opts.edits()
			if err != nil {
				return err
			}
			session, err := openSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			for _, label := range order {
				if err := session.SetField(label, values[label]); err != nil {
					return err
				}
			}
			if len(order) > 0 {
				updated, err := session.Commit()
				logCommitErrors(err)
				log.WithField("updated", len(updated)).Info("edits applied")
			}

			out, err := session.Export()
			if err != nil {
				return err
			}
			if opts.output == "-" {
				_, err = cmd.OutOrStdout().Write(out.PNG)
				return err
			}
			if err := os.WriteFile(opts.output, out.PNG, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", opts.output, err)
			}
			log.WithFields(log.Fields{
				"size":   humanize.Bytes(uint64(len(out.PNG))),
				"digest": out.Digest[:16],
			}).Infof("wrote %s (%dx%d)", opts.output, out.Width, out.Height)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "PNG file to write, - for stdout")
	flags.StringArrayVar(&opts.sets, "set", nil, "Set a field, label=value")
	flags.StringArrayVar(&opts.images, "image", nil, "Replace an image field from a file, label=path")
	flags.StringVar(&opts.fieldsFile, "fields", "", "YAML fields file as printed by the fields command")
	cmd.MarkFlagRequired("output")
	return cmd
}

// logCommitErrors reports nodes that kept their previous content
func logCommitErrors(err error) {
	if err == nil {
		return
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		log.Warn(err)
		return
	}
	for _, e := range joined.Unwrap() {
		var decodeErr *scene.ImageDecodeError
		if errors.As(e, &decodeErr) {
			log.WithField("node", decodeErr.Node).Warn(decodeErr.Err)
			continue
		}
		log.Warn(e)
	}
}
