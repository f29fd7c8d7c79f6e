// Package blob is the entry point to the artifact blob stores. Callers
// depend on Store and open a backend through Open; the implementations under
// internal/infra/blob are not imported directly.
package blob

import (
	"crmcore/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory

	// DefaultURLExpiry applies when SignedURLOptions.Expiry is unset.
	DefaultURLExpiry = core.DefaultURLExpiry
)

var (
	ErrUnsupported = core.ErrUnsupported
	ErrExists      = core.ErrExists
	ErrNotFound    = core.ErrNotFound
	ErrInvalidKey  = core.ErrInvalidKey
)

// ParseDriver maps a configuration value to a Driver. Empty selects the
// filesystem.
func ParseDriver(raw string) (Driver, error) { return core.ParseDriver(raw) }
