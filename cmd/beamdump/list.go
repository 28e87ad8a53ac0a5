package main

import (
	"io"
	"os"

	"github.com/docker/go-units"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/g5t/McStasScript/pkg/beamdump"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every record with the size of its data file",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}

	writeList(cmd.OutOrStdout(), db.All())

	return nil
}

func writeList(w io.Writer, dumps []*beamdump.Dump) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Dump point", "Run name", "Time", "Size", "Data path"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)

	for _, d := range dumps {
		table.Append([]string{d.DumpPoint, d.RunName, d.TimeLoaded, dataFileSize(d.DataPath), d.DataPath})
	}

	table.Render()
}

// dataFileSize reports the size of a data file, or "missing".
func dataFileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "missing"
	}

	return units.HumanSize(float64(info.Size()))
}
