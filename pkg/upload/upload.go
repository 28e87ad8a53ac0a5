package upload

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader copies a dump database tree to remote storage.
type Uploader interface {
	// Preflight verifies that the remote storage is reachable and writable.
	// Writes a small test object to the bucket to fail fast on misconfiguration.
	Preflight(ctx context.Context) error

	// Upload uploads every record file under root, the database's
	// <name>_db directory. The directory basename is used as a sub-prefix
	// under the configured remote prefix. It returns the number of files
	// uploaded.
	Upload(ctx context.Context, root string) (int, error)
}

// s3API is the subset of the S3 client used here.
type s3API interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}
