package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "salesmart",
	Short: "Batch ETL from a raw sales export into a star-schema warehouse",
	Long: `salesmart transforms a raw transactional CSV export into a star-schema
dataset (date, item and buyer dimensions plus a sales fact table), validates
the fact candidates, and loads the result incrementally into PostgreSQL.

Re-running over the same export is safe: dimensions are reconciled by natural
key and only new rows are inserted.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}
