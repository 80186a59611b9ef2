package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docextract/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		tables, err := repository.Tables()
		if err != nil {
			return err
		}
		for _, t := range tables {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d columns)\n", t.Name, len(t.Columns))
		}
		logger.Info("migrate.ok", "dialect", a.DB.Dialect())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
