package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/g5t/McStasScript/pkg/beamdump"
	"github.com/g5t/McStasScript/pkg/database"
	"github.com/g5t/McStasScript/pkg/indexstore"
)

var (
	newestOutput    string
	newestFromIndex bool
)

var newestCmd = &cobra.Command{
	Use:   "newest <dump point>",
	Short: "Print the most recently loaded dump at a dump point",
	Args:  cobra.ExactArgs(1),
	RunE:  runNewest,
}

func init() {
	rootCmd.AddCommand(newestCmd)

	newestCmd.Flags().StringVarP(&newestOutput, "output", "o", "text", "output format (text, json, yaml, path)")
	newestCmd.Flags().BoolVar(&newestFromIndex, "from-index", false, "query the SQL index instead of the JSON tree")
}

func runNewest(cmd *cobra.Command, args []string) error {
	point := args[0]

	var (
		d   *beamdump.Dump
		err error
	)

	if newestFromIndex {
		err = withIndex(cmd.Context(), func(s indexstore.Store) error {
			row, err := s.NewestAtPoint(cmd.Context(), cfg.Database.Name, point)
			if err != nil {
				return err
			}

			d, err = row.BeamDump()

			return err
		})
	} else {
		var db *database.Database

		db, err = openDatabase()
		if err != nil {
			return err
		}

		d, err = db.NewestAtPoint(point)
	}

	if err != nil {
		return err
	}

	return writeDump(cmd.OutOrStdout(), d, newestOutput)
}

// writeDump renders a dump in the requested format.
func writeDump(w io.Writer, d *beamdump.Dump, format string) error {
	var (
		data []byte
		err  error
	)

	switch format {
	case "text":
		_, err = fmt.Fprintln(w, d.String())

		return err
	case "path":
		_, err = fmt.Fprintln(w, d.DataPath)

		return err
	case "json":
		data, err = json.MarshalIndent(d, "", "  ")
		data = append(data, '\n')
	case "yaml":
		data, err = yaml.Marshal(d)
	default:
		return fmt.Errorf("unsupported output format %q (use text, json, yaml or path)", format)
	}

	if err != nil {
		return fmt.Errorf("encoding dump: %w", err)
	}

	_, err = w.Write(data)

	return err
}
