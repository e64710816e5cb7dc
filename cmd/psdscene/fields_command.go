package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ddvk/psdscene/scene"
)

func newFieldsCommand(ctx *commandContext) *cobra.Command {
	var omitImages bool

	cmd := &cobra.Command{
		Use:   "fields [source]",
		Short: "Print the editable fields as YAML, usable with render --fields",
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
			fields := session.Fields()
			if omitImages {
				for i := range fields.Images {
					fields.Images[i].Value = ""
				}
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(fields); err != nil {
				return fmt.Errorf("encode fields: %w", err)
			}
			return enc.Close()
		},
	}

	cmd.Flags().BoolVar(&omitImages, "omit-images", false, "Leave image values empty")
	return cmd
}

// readFieldsFile loads a fields document; empty values are left out
func readFieldsFile(path string) (map[string]string, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fields scene.Fields
	if err := yaml.Unmarshal(buf, &fields); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	values := fields.Values()
	for label, value := range values {
		if value == "" {
			delete(values, label)
		}
	}
	return values, nil
}
