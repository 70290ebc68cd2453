package blob

import (
	"context"
	"fmt"
	"os"
)

// Open selects a blob.Store implementation using environment variables.
//
//	ROSTER_BLOB_DRIVER: fs|s3|memory|redis|sqlite|postgres (default fs)
//	ROSTER_BLOB_FS_ROOT: directory root when driver=fs (default ./rosterdata)
//	(driver specific variables documented next to each constructor)
func Open(ctx context.Context) (Store, error) {
	return OpenDriver(ctx, Driver(os.Getenv("ROSTER_BLOB_DRIVER")))
}

// OpenDriver opens the named driver, reading its settings from the environment.
// An empty driver selects the filesystem.
func OpenDriver(ctx context.Context, driver Driver) (Store, error) {
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("ROSTER_BLOB_FS_ROOT"))
	case DriverS3:
		return OpenS3FromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	case DriverRedis:
		return OpenRedisFromEnv(ctx)
	case DriverSQLite:
		return OpenSQLiteFromEnv(ctx)
	case DriverPostgres:
		return OpenPostgresFromEnv(ctx)
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
