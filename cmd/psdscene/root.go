package main

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ddvk/psdscene/config"
)

type commandContext struct {
	configPath    string
	logLevel      string
	fontDirs      []string
	noSystemFonts bool
	fetchTimeout  time.Duration

	cfg *config.Config
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "psdscene",
		Short:         "Turn layered PSD/PSB documents into editable scenes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["skipConfigLoad"] == "true" {
				return nil
			}
			return ctx.load(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path")
	flags.StringVar(&ctx.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringSliceVar(&ctx.fontDirs, "font-dir", nil, "Directory with .ttf fonts, repeatable")
	flags.BoolVar(&ctx.noSystemFonts, "no-system-fonts", false, "Only use fonts from --font-dir")
	flags.DurationVar(&ctx.fetchTimeout, "fetch-timeout", 0, "Timeout for fetching the document over http")

	rootCmd.AddCommand(newInspectCommand(ctx))
	rootCmd.AddCommand(newFieldsCommand(ctx))
	rootCmd.AddCommand(newRenderCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

// load reads the config file and environment, then applies the flags the
// user set explicitly
func (c *commandContext) load(flags *pflag.FlagSet) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = c.logLevel
	}
	if flags.Changed("font-dir") {
		cfg.Fonts.Dirs = c.fontDirs
	}
	if flags.Changed("no-system-fonts") {
		cfg.Fonts.System = !c.noSystemFonts
	}
	if flags.Changed("fetch-timeout") && c.fetchTimeout > 0 {
		cfg.Fetch.TimeoutSeconds = max(1, int(c.fetchTimeout.Round(time.Second)/time.Second))
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	log.SetLevel(level)
	c.cfg = cfg
	return nil
}

// withSource sets the source from the first argument and validates
func (c *commandContext) withSource(args []string) (*config.Config, error) {
	if len(args) > 0 {
		c.cfg.Source = args[0]
	}
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}
	return c.cfg, nil
}
