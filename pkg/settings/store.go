package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mwantia/s3offload/pkg/db/store"
)

// Key is the settings row holding the JSON document.
const Key = "offload"

// Store loads and persists the settings document through the metadata store.
type Store struct {
	store store.MetadataStore
}

func NewStore(st store.MetadataStore) *Store {
	return &Store{store: st}
}

// Load returns the persisted settings merged over Defaults.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	out := Defaults()

	row, err := s.store.GetSetting(ctx, Key)
	if errors.Is(err, store.ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("failed to load settings: %w", err)
	}

	if err := json.Unmarshal([]byte(row.Value), &out); err != nil {
		return Defaults(), fmt.Errorf("failed to decode settings: %w", err)
	}
	out.normalize()
	return out, nil
}

// Save replaces the settings: raw is sanitized on top of Defaults, so any
// field it omits is reset. The stored secret survives a masked secret.
func (s *Store) Save(ctx context.Context, raw []byte) (Settings, error) {
	current, err := s.Load(ctx)
	if err != nil {
		return current, err
	}

	base := Defaults()
	base.SecretKey = current.SecretKey

	next, err := Sanitize(base, raw)
	if err != nil {
		return current, err
	}
	return next, s.persist(ctx, next)
}

// Merge applies raw as a patch on top of the current settings.
func (s *Store) Merge(ctx context.Context, raw []byte) (Settings, error) {
	current, err := s.Load(ctx)
	if err != nil {
		return current, err
	}

	next, err := Sanitize(current, raw)
	if err != nil {
		return current, err
	}
	return next, s.persist(ctx, next)
}

func (s *Store) persist(ctx context.Context, value Settings) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := s.store.PutSetting(ctx, Key, string(data)); err != nil {
		return fmt.Errorf("failed to persist settings: %w", err)
	}
	return nil
}
