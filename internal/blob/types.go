// Package blob re-exports core blob abstractions for stable external imports.
package blob

import (
	"rosterkit/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
	// DriverRedis is the redis hash driver.
	DriverRedis = core.DriverRedis
	// DriverSQLite is the embedded sqlite driver.
	DriverSQLite = core.DriverSQLite
	// DriverPostgres is the postgres table driver.
	DriverPostgres = core.DriverPostgres
)

// ErrNotFound is returned (possibly wrapped) when a key has no blob.
var ErrNotFound = core.ErrNotFound
