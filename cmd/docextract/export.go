package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docextract/internal/common"
)

var (
	exportType       string
	exportFormat     string
	exportOutputPath string
)

var exportCmd = &cobra.Command{
	Use:   "export <extraction-id>",
	Short: "Download a stored extraction as json, csv or xlsx",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	docTypeFlag(exportCmd, &exportType)
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "json, csv or xlsx")
	exportCmd.Flags().StringVarP(&exportOutputPath, "output", "o", "", "output path (default <type>_extraction_<id>.<format>)")
	_ = exportCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return common.NewAppError(common.CodeInvalidInput, "extraction id must be a UUID", common.ErrInvalidInput)
	}
	docType, err := parseDocType(exportType)
	if err != nil {
		return err
	}
	format, err := parseFormat(exportFormat)
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	file, err := a.Exporter.Export(cmd.Context(), userID, docType, id, format)
	if err != nil {
		return err
	}
	out := exportOutputPath
	if out == "" {
		out = file.Name
	}
	if err := writeOutput(cmd.OutOrStdout(), out, file.Data); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%d bytes)\n", out, len(file.Data))
	return nil
}
