package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

var (
	promptType    string
	promptName    string
	promptText    string
	promptDefault bool
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Manage saved extraction prompts",
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved prompts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var docType constants.DocumentType
		if promptType != "" {
			t, err := parseDocType(promptType)
			if err != nil {
				return err
			}
			docType = t
		}
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.Prompts.List(cmd.Context(), userID, docType)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tTYPE\tDEFAULT\tPROMPT")
		for _, p := range list {
			def := ""
			if p.IsDefault {
				def = "*"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.DocumentType, def, oneLine(p.PromptText, 60))
		}
		return tw.Flush()
	},
}

var promptsSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Create or update a prompt by name and type",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		docType, err := parseDocType(promptType)
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.Prompts.Save(cmd.Context(), &entity.SavedPrompt{
			UserID:       userID,
			Name:         promptName,
			DocumentType: docType,
			PromptText:   promptText,
			IsDefault:    promptDefault,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), p.ID)
		return nil
	},
}

var promptsDeleteCmd = &cobra.Command{
	Use:   "delete <prompt-id>",
	Short: "Delete a saved prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return common.NewAppError(common.CodeInvalidInput, "prompt id must be a UUID", common.ErrInvalidInput)
		}
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Prompts.Delete(cmd.Context(), userID, id)
	},
}

func init() {
	promptsListCmd.Flags().StringVarP(&promptType, "type", "t", "", "only prompts for this document type")

	docTypeFlag(promptsSaveCmd, &promptType)
	promptsSaveCmd.Flags().StringVarP(&promptName, "name", "n", "", "prompt name")
	promptsSaveCmd.Flags().StringVarP(&promptText, "text", "p", "", "prompt text")
	promptsSaveCmd.Flags().BoolVar(&promptDefault, "default", false, "use it when no prompt is given for this type")
	for _, f := range []string{"type", "name", "text"} {
		_ = promptsSaveCmd.MarkFlagRequired(f)
	}

	promptsCmd.AddCommand(promptsListCmd, promptsSaveCmd, promptsDeleteCmd)
	rootCmd.AddCommand(promptsCmd)
}

func oneLine(s string, n int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' || c == '\r' {
			r[i] = ' '
		}
	}
	if len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return string(r)
}
