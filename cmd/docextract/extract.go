package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/export"
	"github.com/joseph-ayodele/docextract/internal/pipeline"
)

var (
	extractType       string
	extractPrompt     string
	extractSaveAs     string
	extractDefault    bool
	extractFormat     string
	extractOutputPath string
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract one PDF or image",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

func init() {
	docTypeFlag(extractCmd, &extractType)
	extractCmd.Flags().StringVarP(&extractPrompt, "prompt", "p", "", "custom extraction prompt")
	extractCmd.Flags().StringVar(&extractSaveAs, "save-prompt", "", "save --prompt under this name")
	extractCmd.Flags().BoolVar(&extractDefault, "default", false, "make the saved prompt the default for --type")
	extractCmd.Flags().StringVarP(&extractFormat, "format", "f", "json", "output format: json, csv or xlsx")
	extractCmd.Flags().StringVarP(&extractOutputPath, "output", "o", "", "write the result here instead of stdout")
	_ = extractCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docType, err := parseDocType(extractType)
	if err != nil {
		return err
	}
	format, err := parseFormat(extractFormat)
	if err != nil {
		return err
	}
	if extractSaveAs != "" && extractPrompt == "" {
		return common.NewAppError(common.CodeInvalidInput, "--save-prompt needs --prompt", common.ErrInvalidInput)
	}

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Processor.Process(ctx, pipeline.Request{
		UserID:         userID,
		Path:           args[0],
		DocumentType:   docType,
		CustomPrompt:   extractPrompt,
		SavePromptName: extractSaveAs,
		DefaultPrompt:  extractDefault,
	})
	if res == nil {
		return err
	}
	saveErr := err

	data, err := export.Render(res.Document, format)
	if err != nil {
		return err
	}
	if err := writeOutput(cmd.OutOrStdout(), extractOutputPath, data); err != nil {
		return err
	}

	printSummary(cmd.ErrOrStderr(), res)
	return saveErr
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func printSummary(w io.Writer, res *pipeline.Result) {
	fmt.Fprintf(w, "Pages: %d (failed %d)\n", len(res.Pages), res.FailedPages)
	for _, p := range res.Pages {
		if p.Err != nil {
			fmt.Fprintf(w, "- page %d: %s\n", p.Index+1, common.UserMessage(p.Err))
			continue
		}
		fmt.Fprintf(w, "- page %d: %s\n", p.Index+1, p.Strategy)
	}
	if res.NeedsReview {
		fmt.Fprintln(w, "Needs review: yes")
	}
	if res.Extraction != nil {
		fmt.Fprintf(w, "Saved: %s\n", res.Extraction.ID)
	}
}
