package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/g5t/McStasScript/pkg/config"
)

var (
	// Version information set at build time.
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfgFiles []string
	logLevel string
	dbName   string
	dbPath   string
	log      = logrus.New()
	cfg      *config.Config
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("Failed to execute command")
	}
}

var rootCmd = &cobra.Command{
	Use:   "beamdump",
	Short: "Beam dump metadata database",
	Long: `Beamdump records MCPL beam dump files written by McStas simulations.
Each dump is stored as a JSON record under <path>/<name>_db/<dump point>/,
keyed by run name, so later simulations can find the newest dump at a point.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFiles...)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		flags := cmd.Flags()

		if flags.Changed("log-level") {
			loaded.Global.LogLevel = logLevel
		}

		if flags.Changed("name") {
			loaded.Database.Name = dbName
		}

		if flags.Changed("path") {
			loaded.Database.Path = dbPath
		}

		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("validating config: %w", err)
		}

		level, err := logrus.ParseLevel(loaded.Global.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", loaded.Global.LogLevel, err)
		}

		log.SetLevel(level)

		cfg = loaded

		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "beamdump %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringSliceVar(&cfgFiles, "config", nil,
		"config file path (repeatable, later files override earlier ones)")
	flags.StringVar(&logLevel, "log-level", config.DefaultLogLevel,
		"log level ("+strings.Join(logLevels(), ", ")+")")
	flags.StringVar(&dbName, "name", config.DefaultDatabaseName,
		"database name; records live in <path>/<name>_db")
	flags.StringVar(&dbPath, "path", config.DefaultDatabasePath,
		"directory holding the database")

	rootCmd.AddCommand(versionCmd)
}

func logLevels() []string {
	levels := make([]string, 0, len(logrus.AllLevels))
	for _, level := range logrus.AllLevels {
		levels = append(levels, level.String())
	}

	return levels
}
