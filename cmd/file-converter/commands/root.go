// Package commands implements the file-converter CLI commands.
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spherical/file-converter/cmd/file-converter/ui"
	"github.com/spherical/file-converter/internal/config"
	"github.com/spherical/file-converter/internal/observability"
)

var version = "0.1.0"

var (
	cfgFile string
	verbose bool
	noColor bool

	cfg    *config.Config
	logger *observability.Logger
)

var rootCmd = &cobra.Command{
	Use:   "file-converter",
	Short: "Resize images and convert between images, PDF and DOCX",
	Long: `file-converter resizes and recompresses images to JPEG and converts files
between images, PDF and DOCX documents. Outputs are written to a directory, or
served over HTTP with the serve command.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.InitUI(noColor, verbose)

		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded

		// one-shot commands keep the terminal for progress output
		level := cfg.Observability.LogLevel
		switch {
		case verbose:
			level = "debug"
		case cmd.Name() != "serve":
			level = "warn"
		}
		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      cfg.Observability.LogFormat,
			ServiceName: cfg.Observability.ServiceName,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(resizeCmd, convertCmd, serveCmd, kindsCmd)
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
