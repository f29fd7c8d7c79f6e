package blob

import (
	"context"
	"fmt"

	"crmcore/internal/blob/core"
	"crmcore/internal/infra/blob/fs"
	memorystore "crmcore/internal/infra/blob/memory"
	s3store "crmcore/internal/infra/blob/s3"
)

// S3Config is the S3 backend configuration.
type S3Config = s3store.Config

// Options selects and configures a backend for Open.
type Options struct {
	Driver string
	FSRoot string
	S3     S3Config
}

// Open returns the Store named by opts.Driver. An empty driver selects the
// filesystem backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	driver, err := core.ParseDriver(opts.Driver)
	if err != nil {
		return nil, err
	}
	switch driver {
	case DriverS3:
		if opts.S3.Bucket == "" {
			return nil, fmt.Errorf("blob driver s3 requires a bucket")
		}
		return NewS3(ctx, opts.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return NewFilesystem(opts.FSRoot)
	}
}

// NewMemory returns a process-local Store, mostly for tests.
func NewMemory() Store { return memorystore.New() }

// NewFilesystem returns a Store rooted at root, creating the directory.
func NewFilesystem(root string) (Store, error) { return fs.New(root) }

// NewS3 returns a Store on the bucket named by cfg.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return s3store.New(ctx, cfg) }
