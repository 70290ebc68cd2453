package blob

import (
	"context"

	"rosterkit/internal/infra/blob/fs"
	"rosterkit/internal/infra/blob/memory"
	"rosterkit/internal/infra/blob/s3"
)

// NewMemory returns a process-local store; its contents vanish on exit.
func NewMemory() Store { return memory.New() }

// NewFilesystem keeps blobs as files below root (./rosterdata when empty).
func NewFilesystem(root string) (Store, error) { return fs.New(root) }

// S3Config describes an S3 or MinIO bucket.
type S3Config = s3.Config

// NewS3 connects to the bucket in cfg.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return s3.New(ctx, cfg) }

// OpenS3FromEnv reads the ROSTER_BLOB_S3_* variables.
func OpenS3FromEnv(ctx context.Context) (Store, error) { return s3.OpenFromEnv(ctx) }

// NewMockS3ForTests returns an S3 store served by an in-process fake.
func NewMockS3ForTests() Store { return s3.NewMockForTests() }
