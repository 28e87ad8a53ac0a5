package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/g5t/McStasScript/pkg/beamdump"
	"github.com/g5t/McStasScript/pkg/indexstore"
)

var (
	loadFile       string
	loadDataFolder string
	loadPoint      string
	loadRunName    string
	loadComment    string
	loadParams     []string
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Record the MCPL dump of a finished run",
	Long: `Look for <file>.mcpl and <file>.mcpl.gz in the data folder and record each
one found under the given dump point. An existing run name is never
overwritten; the new record gets the first free <run>_<n> name instead.`,
	Args: cobra.NoArgs,
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)

	flags := loadCmd.Flags()
	flags.StringVar(&loadFile, "file", "", "expected MCPL filename, with or without .mcpl/.mcpl.gz")
	flags.StringVar(&loadDataFolder, "data-folder", "", "folder the simulation wrote its output to")
	flags.StringVar(&loadPoint, "point", "", "dump point name")
	flags.StringVar(&loadRunName, "run-name", beamdump.DefaultRunName, "preferred run name")
	flags.StringVar(&loadComment, "comment", "", "free text stored with the record")
	flags.StringArrayVarP(&loadParams, "param", "p", nil, "simulation parameter as name=value (repeatable)")

	_ = loadCmd.MarkFlagRequired("file")
	_ = loadCmd.MarkFlagRequired("data-folder")
	_ = loadCmd.MarkFlagRequired("point")
}

func runLoad(cmd *cobra.Command, args []string) error {
	params, err := parseParams(loadParams)
	if err != nil {
		return err
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}

	dumps, err := db.LoadData(loadFile, loadDataFolder, params, loadRunName, loadPoint, loadComment)
	if err != nil {
		return fmt.Errorf("loading data: %w", err)
	}

	if len(dumps) == 0 {
		log.WithField("data_folder", loadDataFolder).
			WithField("file", loadFile).
			Warn("No MCPL file found, nothing recorded")

		return nil
	}

	for _, d := range dumps {
		fmt.Fprintf(cmd.OutOrStdout(), "%s/%s -> %s\n", d.DumpPoint, d.RunName, d.DataPath)
	}

	if !cfg.Index.Enabled {
		return nil
	}

	return withIndex(cmd.Context(), func(s indexstore.Store) error {
		for _, d := range dumps {
			row, err := indexstore.FromBeamDump(db.Name(), d)
			if err != nil {
				return err
			}

			if err := s.UpsertDump(cmd.Context(), row); err != nil {
				return err
			}
		}

		return nil
	})
}

// parseParams turns name=value pairs into parameters. Numbers and booleans
// are stored typed, anything else as a string.
func parseParams(pairs []string) (beamdump.Parameters, error) {
	params := make(beamdump.Parameters, len(pairs))

	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)

		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q (want name=value)", pair)
		}

		if _, dup := params[name]; dup {
			return nil, fmt.Errorf("parameter %q given more than once", name)
		}

		params[name] = beamdump.BoxedParameter{Name: name, Value: parseScalar(raw)}
	}

	return params, nil
}

// parseScalar reads integers, finite floats and true/false. Anything else,
// non-finite numbers included, stays a string.
func parseScalar(raw string) any {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}

	if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}

	switch raw {
	case "true":
		return true
	case "false":
		return false
	}

	return raw
}
