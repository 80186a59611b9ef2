package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/app"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/export"
)

var (
	cfgFile string
	inmem   bool
	userID  string
	verbose bool

	cfg    *common.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "docextract",
	Short: "Extract structured, translated data from scanned documents",
	Long: `docextract renders PDFs and images to pages, asks a vision model for the
fields of the chosen document type, annotates every value with its language
and an English translation, and stores the merged result.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			if err := os.Setenv("CONFIG_FILE", cfgFile); err != nil {
				return err
			}
		}
		c, err := common.LoadConfig()
		if err != nil {
			return err
		}
		if verbose {
			c.Log.Level = "debug"
		}
		cfg = c
		logger = common.NewLogger(cfg.Log, os.Stderr)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file (overrides CONFIG_FILE)")
	rootCmd.PersistentFlags().BoolVar(&inmem, "inmem", false, "use an in-memory SQLite database")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "local", "owner of extractions and prompts")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// openApp builds the application. Commands that never call the model pass
// withModel=false and skip provider validation.
func openApp(ctx context.Context, withModel bool) (*app.App, error) {
	if withModel {
		if err := cfg.Validate(inmem); err != nil {
			return nil, err
		}
	}
	return app.New(ctx, cfg, logger, app.Options{InMemory: inmem, SkipModel: !withModel})
}

func docTypeFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "type", "t", "", "document type: loan, property, table or custom")
}

func parseDocType(s string) (constants.DocumentType, error) {
	t, err := constants.ParseDocumentType(s)
	if err != nil {
		return "", common.NewAppError(common.CodeInvalidInput, err.Error(), common.ErrInvalidInput)
	}
	return t, nil
}

func parseFormat(s string) (export.Format, error) {
	if s == "" {
		return export.FormatJSON, nil
	}
	return export.ParseFormat(s)
}
