// Package redis implements a blob Store on Redis. Each blob is one hash holding
// the payload and its metadata, so a write replaces content and metadata together.
package redis

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"rosterkit/internal/blob/core"
)

const (
	defaultURL    = "redis://localhost:6379/0"
	defaultPrefix = "blob:"

	fieldData        = "data"
	fieldContentType = "content_type"
	fieldETag        = "etag"
	fieldMetadata    = "metadata"
	fieldUpdatedAt   = "updated_at"
)

// Store implements core.Store on a Redis client.
type Store struct {
	client *goredis.Client
	prefix string
}

// Open parses the URL, connects and pings with a short timeout.
func Open(ctx context.Context, redisURL, prefix string) (*Store, error) {
	if redisURL == "" {
		redisURL = defaultURL
	}
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewWithClient(client, prefix), nil
}

// OpenFromEnv reads ROSTER_BLOB_REDIS_URL and ROSTER_BLOB_REDIS_PREFIX.
func OpenFromEnv(ctx context.Context) (*Store, error) {
	return Open(ctx, os.Getenv("ROSTER_BLOB_REDIS_URL"), os.Getenv("ROSTER_BLOB_REDIS_PREFIX"))
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) Driver() core.Driver { return core.DriverRedis }

// Close closes the underlying client.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) key(k string) string { return s.prefix + k }

func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	if strings.TrimSpace(key) == "" {
		return core.Info{}, fmt.Errorf("empty key")
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, err
	}
	md, err := json.Marshal(opts.Metadata)
	if err != nil {
		return core.Info{}, fmt.Errorf("marshal metadata: %w", err)
	}
	sum := sha256.Sum256(b)
	now := time.Now().UTC()
	info := core.Info{
		Key:          key,
		Size:         int64(len(b)),
		ContentType:  opts.ContentType,
		ETag:         hex.EncodeToString(sum[:]),
		Metadata:     core.CloneMetadata(opts.Metadata),
		LastModified: now,
	}
	// DEL + HSET in one transaction so stale fields never survive a replace.
	_, err = s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Del(ctx, s.key(key))
		p.HSet(ctx, s.key(key),
			fieldData, b,
			fieldContentType, opts.ContentType,
			fieldETag, info.ETag,
			fieldMetadata, md,
			fieldUpdatedAt, now.Format(time.RFC3339Nano),
		)
		return nil
	})
	if err != nil {
		return core.Info{}, fmt.Errorf("put %s: %w", key, err)
	}
	return info, nil
}

func (s *Store) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	fields, err := s.client.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return core.Info{}, nil, fmt.Errorf("get %s: %w", key, err)
	}
	info, data, err := decode(key, fields)
	if err != nil {
		return core.Info{}, nil, err
	}
	return info, io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Store) Head(ctx context.Context, key string) (core.Info, error) {
	info, _, err := s.Get(ctx, key)
	return info, err
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]core.Info, error) {
	var infos []core.Info
	iter := s.client.Scan(ctx, 0, escapeGlob(s.prefix+prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		key := strings.TrimPrefix(full, s.prefix)
		info, err := s.Head(ctx, key)
		if errors.Is(err, core.ErrNotFound) {
			continue // deleted between scan and read
		}
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func decode(key string, fields map[string]string) (core.Info, []byte, error) {
	data, ok := fields[fieldData]
	if !ok {
		return core.Info{}, nil, fmt.Errorf("blob %s: %w", key, core.ErrNotFound)
	}
	info := core.Info{
		Key:         key,
		Size:        int64(len(data)),
		ContentType: fields[fieldContentType],
		ETag:        fields[fieldETag],
	}
	if raw := fields[fieldMetadata]; raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &info.Metadata); err != nil {
			return core.Info{}, nil, fmt.Errorf("decode metadata %s: %w", key, err)
		}
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields[fieldUpdatedAt]); err == nil {
		info.LastModified = ts
	}
	return info, []byte(data), nil
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// String renders the store for logs.
func (s *Store) String() string {
	return "redis(" + s.client.Options().Addr + "/" + strconv.Itoa(s.client.Options().DB) + ")"
}
