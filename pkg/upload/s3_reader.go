package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"

	"github.com/g5t/McStasScript/pkg/beamdump"
	"github.com/g5t/McStasScript/pkg/config"
	"github.com/g5t/McStasScript/pkg/fsutil"
)

// S3Reader reads uploaded dump databases back from S3-compatible storage.
type S3Reader struct {
	log    logrus.FieldLogger
	cfg    *config.S3UploadConfig
	client s3API
}

// NewS3Reader creates a new S3Reader from the given configuration.
func NewS3Reader(
	log logrus.FieldLogger,
	cfg *config.S3UploadConfig,
) *S3Reader {
	return &S3Reader{
		log:    log.WithField("component", "s3-reader"),
		cfg:    cfg,
		client: newS3Client(cfg),
	}
}

// ListDatabases lists the database directories stored under the
// configured prefix, e.g. "beam_dump_db".
func (r *S3Reader) ListDatabases(ctx context.Context) ([]string, error) {
	prefix := trimPrefix(r.cfg.Prefix) + "/"

	var names []string

	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(r.cfg.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing prefixes under %q: %w", prefix, err)
		}

		for _, cp := range page.CommonPrefixes {
			if cp.Prefix == nil {
				continue
			}

			names = append(names, strings.TrimSuffix(strings.TrimPrefix(*cp.Prefix, prefix), "/"))
		}
	}

	return names, nil
}

// listKeys returns every object key under prefix.
func (r *S3Reader) listKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.cfg.Bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing objects under %q: %w", prefix, err)
		}

		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}

	return keys, nil
}

// GetObject returns the contents of the given key.
// If the key does not exist, it returns (nil, nil).
func (r *S3Reader) GetObject(
	ctx context.Context, key string,
) ([]byte, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("getting object %q: %w", key, err)
	}

	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading object %q: %w", key, err)
	}

	return data, nil
}

// Download restores the uploaded database directory baseName into
// destParent/baseName. Records that already exist locally are left
// untouched. Every downloaded record is decoded before it is written. It
// returns the number of records written.
func (r *S3Reader) Download(
	ctx context.Context, baseName, destParent string, owner *fsutil.OwnerConfig,
) (int, error) {
	prefix := trimPrefix(r.cfg.Prefix) + "/" + baseName + "/"

	keys, err := r.listKeys(ctx, prefix)
	if err != nil {
		return 0, err
	}

	root := filepath.Join(destParent, baseName)
	log := r.log.WithField("root", root)

	if err := fsutil.EnsureDir(root, 0o755, owner); err != nil {
		return 0, fmt.Errorf("creating database root: %w", err)
	}

	written := 0

	for _, key := range keys {
		rel := strings.TrimPrefix(key, prefix)
		if !strings.HasSuffix(rel, beamdump.RecordExt) {
			continue
		}

		// Only <point>/<run>.json is a database record.
		point, file := path.Split(rel)
		point = strings.TrimSuffix(point, "/")

		if beamdump.ValidateName(point) != nil || beamdump.ValidateName(file) != nil {
			log.WithField("key", key).Warn("Skipping object outside the database layout")

			continue
		}

		data, err := r.GetObject(ctx, key)
		if err != nil {
			return written, err
		}

		if data == nil {
			continue
		}

		if _, err := beamdump.Decode(data); err != nil {
			return written, fmt.Errorf("object %q: %w", key, err)
		}

		dir := filepath.Join(root, point)
		if err := fsutil.EnsureDir(dir, 0o755, owner); err != nil {
			return written, err
		}

		err = fsutil.WriteFileExclusive(filepath.Join(dir, file), data, 0o644, owner)
		if errors.Is(err, fs.ErrExist) {
			log.WithField("key", key).Debug("Record already present, skipping")

			continue
		}

		if err != nil {
			return written, fmt.Errorf("writing %s: %w", rel, err)
		}

		written++
	}

	log.WithField("records", written).Info("Download completed")

	return written, nil
}

// isS3NotFound returns true if the error indicates the object does not exist.
func isS3NotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	// Some S3-compatible implementations return a generic error with
	// "NoSuchKey" in the message rather than the typed error.
	return strings.Contains(err.Error(), "NoSuchKey")
}
