package main

import (
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show [dump point...]",
	Short: "Show the runs at each dump point, newest first",
	Long: `Show a table of the runs at the given dump points, or at every dump point
when none are given. Parameters are printed only for runs with few of them.`,
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}

	points := args
	if len(points) == 0 {
		points = db.Points()
	}

	db.ShowInOrder(cmd.OutOrStdout(), points)

	return nil
}
