package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/g5t/McStasScript/pkg/beamdump"
	"github.com/g5t/McStasScript/pkg/database"
	"github.com/g5t/McStasScript/pkg/mcpl"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <dump point> [run name]",
	Short: "Print a record and the MCPL header of its data file",
	Long: `Print one record in full followed by a summary of the MCPL header of the
file it points to. Without a run name the newest run at the dump point is
used.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}

	var d *beamdump.Dump

	if len(args) == 2 {
		var ok bool

		d, ok = db.Get(args[0], args[1])
		if !ok {
			return fmt.Errorf("%w: run %q at %q", database.ErrNotFound, args[1], args[0])
		}
	} else {
		d, err = db.NewestAtPoint(args[0])
		if err != nil {
			return err
		}
	}

	writeInspect(cmd.OutOrStdout(), d)

	return nil
}

func writeInspect(w io.Writer, d *beamdump.Dump) {
	fmt.Fprintln(w, d.String())
	fmt.Fprintf(w, "  size:       %s\n", dataFileSize(d.DataPath))

	h, err := mcpl.ReadHeaderFile(d.DataPath)
	if err != nil {
		log.WithError(err).WithField("data_path", d.DataPath).Warn("Cannot read MCPL header")

		return
	}

	endian := "big"
	if h.LittleEndian {
		endian = "little"
	}

	fmt.Fprintf(w, "  format:     MCPL-%d (%s endian, gzipped: %t)\n", h.Version, endian, h.Gzipped)
	fmt.Fprintf(w, "  particles:  %d (%s of particle data)\n",
		h.NParticles, units.HumanSize(float64(h.NParticles)*float64(h.ParticleSize)))
	fmt.Fprintf(w, "  source:     %s\n", h.SourceName)

	if len(h.Comments) > 0 {
		fmt.Fprintf(w, "  comments:   %s\n", strings.Join(h.Comments, "; "))
	}
}
