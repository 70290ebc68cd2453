package blob

import (
	"context"

	"rosterkit/internal/infra/blob/postgres"
	"rosterkit/internal/infra/blob/redis"
	"rosterkit/internal/infra/blob/sqlite"
)

// OpenRedis connects to redisURL and stores blobs as hashes under prefix.
func OpenRedis(ctx context.Context, redisURL, prefix string) (Store, error) {
	return redis.Open(ctx, redisURL, prefix)
}

// OpenRedisFromEnv reads ROSTER_BLOB_REDIS_URL and ROSTER_BLOB_REDIS_PREFIX.
func OpenRedisFromEnv(ctx context.Context) (Store, error) {
	return redis.OpenFromEnv(ctx)
}

// OpenSQLite opens (or creates) a sqlite file at path.
func OpenSQLite(ctx context.Context, path string) (Store, error) {
	return sqlite.Open(ctx, path)
}

// OpenSQLiteFromEnv reads ROSTER_BLOB_SQLITE_PATH.
func OpenSQLiteFromEnv(ctx context.Context) (Store, error) {
	return sqlite.OpenFromEnv(ctx)
}

// OpenPostgres connects to dsn.
func OpenPostgres(ctx context.Context, dsn string) (Store, error) {
	return postgres.Open(ctx, dsn)
}

// OpenPostgresFromEnv reads ROSTER_BLOB_POSTGRES_DSN.
func OpenPostgresFromEnv(ctx context.Context) (Store, error) {
	return postgres.OpenFromEnv(ctx)
}
