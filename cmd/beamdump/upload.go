package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/g5t/McStasScript/pkg/database"
	"github.com/g5t/McStasScript/pkg/upload"
)

var (
	uploadMethod    string
	uploadPreflight bool
	downloadList    bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload the database records to remote storage",
	Long:  `Upload every JSON record of the database to S3-compatible storage using the config file settings.`,
	Args:  cobra.NoArgs,
	RunE:  runUpload,
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Restore database records from remote storage",
	Long: `Download the uploaded records of the database into its local root.
Records already present locally are kept as they are.`,
	Args: cobra.NoArgs,
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(downloadCmd)

	uploadCmd.Flags().StringVar(&uploadMethod, "method", "s3",
		"Upload method (currently only \"s3\")")
	uploadCmd.Flags().BoolVar(&uploadPreflight, "preflight", true,
		"write a test object before uploading")

	downloadCmd.Flags().BoolVar(&downloadList, "list", false,
		"list the databases present in remote storage instead of downloading")
}

func requireS3() error {
	if !cfg.Upload.S3.Enabled {
		return fmt.Errorf("S3 upload is not configured or not enabled in config")
	}

	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	if uploadMethod != "s3" {
		return fmt.Errorf("unsupported method %q (only \"s3\" is supported)", uploadMethod)
	}

	if err := requireS3(); err != nil {
		return err
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}

	uploader := upload.NewS3Uploader(log, &cfg.Upload.S3)
	ctx := cmd.Context()

	if uploadPreflight {
		if err := uploader.Preflight(ctx); err != nil {
			return fmt.Errorf("preflight: %w", err)
		}
	}

	log.WithField("dir", db.Root()).Info("Uploading records")

	n, err := uploader.Upload(ctx, db.Root())
	if err != nil {
		return fmt.Errorf("uploading records: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d records\n", n)

	return nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	if err := requireS3(); err != nil {
		return err
	}

	reader := upload.NewS3Reader(log, &cfg.Upload.S3)
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if downloadList {
		names, err := reader.ListDatabases(ctx)
		if err != nil {
			return err
		}

		for _, name := range names {
			fmt.Fprintln(out, name)
		}

		return nil
	}

	o, err := owner()
	if err != nil {
		return err
	}

	n, err := reader.Download(ctx, cfg.Database.Name+database.RootSuffix, cfg.Database.Path, o)
	if err != nil {
		return fmt.Errorf("downloading records: %w", err)
	}

	fmt.Fprintf(out, "downloaded %d records\n", n)

	return nil
}
