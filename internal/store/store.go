// Package store persists ordered collections as JSON records in a size-bounded
// key-value backend. Writes are best effort: when a record is too large or the
// backend refuses it, the oldest entries are dropped, and if even that fails
// the write is abandoned with a PersistenceWarning. Callers keep their
// in-memory copy as the source of truth.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/digistore/internal/utils"
)

// ErrKeyNotFound is returned by a Backend when the key holds no record.
var ErrKeyNotFound = errors.New("KEY_NOT_FOUND")

// ErrQuotaExceeded is returned by a Backend that refuses a write for lack of space.
var ErrQuotaExceeded = errors.New("QUOTA_EXCEEDED")

// Backend is the raw key-value medium behind a Store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Logical record keys.
const (
	KeyCatalog      = "catalog"
	KeyCatalogMeta  = "catalog-meta"
	KeyCart         = "cart"
	KeyEntitlements = "entitlements"
	KeyOrders       = "orders"
)

// Options tunes the degradation policy.
type Options struct {
	// Prefix is prepended to every logical key.
	Prefix string
	// MaxBytes is the serialized size ceiling of one record.
	MaxBytes int
	// RetainRecent is how many of the newest entries survive an oversize write.
	RetainRecent int
	// FallbackRecent is how many entries are written after a failed write.
	FallbackRecent int
	// AppendOnly keys are never truncated; their writes are abandoned instead.
	AppendOnly []string
}

// DefaultOptions returns the 4 MiB / 50 / 10 policy with orders kept whole.
func DefaultOptions() Options {
	return Options{
		Prefix:         "digistore-",
		MaxBytes:       4 * 1024 * 1024,
		RetainRecent:   50,
		FallbackRecent: 10,
		AppendOnly:     []string{KeyOrders},
	}
}

// Store maps logical keys to JSON records in a Backend.
type Store struct {
	backend    Backend
	opts       Options
	appendOnly map[string]bool
}

// New creates a Store. Zero option fields take their defaults.
func New(backend Backend, opts Options) *Store {
	def := DefaultOptions()
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = def.MaxBytes
	}
	if opts.RetainRecent <= 0 {
		opts.RetainRecent = def.RetainRecent
	}
	if opts.FallbackRecent <= 0 {
		opts.FallbackRecent = def.FallbackRecent
	}
	ao := make(map[string]bool, len(opts.AppendOnly))
	for _, k := range opts.AppendOnly {
		ao[k] = true
	}
	return &Store{backend: backend, opts: opts, appendOnly: ao}
}

// Options returns the effective options.
func (s *Store) Options() Options { return s.opts }

func (s *Store) fullKey(key string) string { return s.opts.Prefix + key }

// Clear removes key. Removing a missing key is not an error.
func (s *Store) Clear(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, s.fullKey(key)); err != nil && !errors.Is(err, ErrKeyNotFound) {
		return fmt.Errorf("clear %q: %w", key, err)
	}
	return nil
}

// ReadList decodes the collection stored at key. A missing key yields a nil
// slice and no error. Undecodable data, including malformed timestamps, yields
// a nil slice and a *utils.MalformedRecordError; the caller substitutes its
// default.
func ReadList[T any](ctx context.Context, s *Store, key string) ([]T, error) {
	raw, err := s.backend.Get(ctx, s.fullKey(key))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", key, err)
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &utils.MalformedRecordError{Key: key, Err: err}
	}
	return items, nil
}

// WriteList stores items at key, applying the degradation policy. It returns
// nil when some version of the collection was written (possibly truncated,
// which is logged) and a *utils.PersistenceWarning when nothing could be
// written.
func WriteList[T any](ctx context.Context, s *Store, key string, items []T) error {
	data, err := json.Marshal(items)
	if err != nil {
		return &utils.PersistenceWarning{Key: key, Err: err}
	}
	full := s.fullKey(key)
	protected := s.appendOnly[key]

	if len(data) > s.opts.MaxBytes {
		if protected {
			log.Error().Str("key", key).Int("bytes", len(data)).Msg("append-only record exceeds size ceiling, write abandoned")
			return &utils.PersistenceWarning{Key: key, Err: fmt.Errorf("%d bytes exceeds ceiling of %d", len(data), s.opts.MaxBytes)}
		}
		log.Warn().
			Str("key", key).
			Int("bytes", len(data)).
			Int("count", len(items)).
			Int("retain", s.opts.RetainRecent).
			Msg("record exceeds size ceiling, keeping most recent entries")
		data, err = marshalRecent(items, s.opts.RetainRecent)
		if err == nil && len(data) > s.opts.MaxBytes {
			err = fmt.Errorf("%d bytes still exceeds ceiling of %d", len(data), s.opts.MaxBytes)
		}
		if err == nil {
			err = s.backend.Set(ctx, full, data)
		}
	} else {
		err = s.backend.Set(ctx, full, data)
	}
	if err == nil {
		return nil
	}

	if protected {
		log.Error().Err(err).Str("key", key).Msg("append-only record write failed, write abandoned")
		return &utils.PersistenceWarning{Key: key, Err: err}
	}

	log.Warn().Err(err).Str("key", key).Int("retain", s.opts.FallbackRecent).Msg("write failed, clearing record and retrying with fewer entries")
	if derr := s.backend.Delete(ctx, full); derr != nil && !errors.Is(derr, ErrKeyNotFound) {
		log.Warn().Err(derr).Str("key", key).Msg("failed to clear record before retry")
	}
	data, rerr := marshalRecent(items, s.opts.FallbackRecent)
	if rerr == nil {
		rerr = s.backend.Set(ctx, full, data)
	}
	if rerr != nil {
		log.Error().Err(rerr).Str("key", key).Msg("fallback write failed, record not persisted")
		return &utils.PersistenceWarning{Key: key, Err: errors.Join(err, rerr)}
	}
	return nil
}

// ReadValue decodes the single value stored at key. found is false when the
// key holds no record. Undecodable data yields a *utils.MalformedRecordError.
func ReadValue[T any](ctx context.Context, s *Store, key string) (v T, found bool, err error) {
	raw, err := s.backend.Get(ctx, s.fullKey(key))
	if errors.Is(err, ErrKeyNotFound) {
		return v, false, nil
	}
	if err != nil {
		return v, false, fmt.Errorf("read %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		var zero T
		return zero, false, &utils.MalformedRecordError{Key: key, Err: err}
	}
	return v, true, nil
}

// WriteValue stores a single value at key. Values are small and are never
// truncated; a refused write returns a *utils.PersistenceWarning.
func WriteValue[T any](ctx context.Context, s *Store, key string, v T) error {
	data, err := json.Marshal(v)
	if err == nil {
		err = s.backend.Set(ctx, s.fullKey(key), data)
	}
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("value write failed, record not persisted")
		return &utils.PersistenceWarning{Key: key, Err: err}
	}
	return nil
}

// marshalRecent serializes the last n items, keeping their relative order.
func marshalRecent[T any](items []T, n int) ([]byte, error) {
	if len(items) > n {
		items = items[len(items)-n:]
	}
	return json.Marshal(items)
}
