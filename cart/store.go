package cart

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/kbsmaine/boilerparts/money"
	"github.com/kbsmaine/boilerparts/storage"
)

// DefaultStorageKey is the key the cart snapshot is persisted under.
const DefaultStorageKey = "cart"

const persistedSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "price"],
    "properties": {
      "id":    {"type": "string", "minLength": 1},
      "name":  {"type": "string"},
      "price": {"type": "number", "minimum": 0},
      "qty":   {"type": "integer", "minimum": 1}
    }
  }
}`

// CountDisplay shows the cart item count, e.g. a header badge.
type CountDisplay interface {
	ShowCount(n int)
}

// Store owns the persisted cart. Reads always deserialize the latest snapshot, so the
// derived total and count are recomputed from storage every time.
type Store struct {
	kv      storage.KV
	key     string
	schema  *gojsonschema.Schema
	display CountDisplay
	logger  *zap.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStorageKey overrides DefaultStorageKey.
func WithStorageKey(key string) StoreOption {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithCountDisplay registers the display refreshed after every save.
func WithCountDisplay(d CountDisplay) StoreOption {
	return func(s *Store) {
		s.display = d
	}
}

// WithStoreLogger sets the logger.
func WithStoreLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a store persisting into kv.
func NewStore(kv storage.KV, opts ...StoreOption) (*Store, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(persistedSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile cart schema: %w", err)
	}
	s := &Store{
		kv:     kv,
		key:    DefaultStorageKey,
		schema: schema,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetCountDisplay replaces the count display after construction.
func (s *Store) SetCountDisplay(d CountDisplay) {
	s.display = d
}

// Key returns the storage key.
func (s *Store) Key() string { return s.key }

// Load returns the persisted cart. A missing key yields an empty cart; unreadable or
// malformed content is reset and also yields an empty cart. Load never fails.
func (s *Store) Load() Cart {
	data, ok, err := s.kv.Get(s.key)
	if err != nil {
		s.logger.Warn("cart storage unreadable, using empty cart", zap.String("key", s.key), zap.Error(err))
		return Cart{}
	}
	if !ok {
		return Cart{}
	}

	items, err := s.decode(data)
	if err != nil {
		s.logger.Warn("cart storage corrupt, resetting", zap.String("key", s.key), zap.Error(err))
		if err := s.kv.Delete(s.key); err != nil {
			s.logger.Warn("failed to reset corrupt cart", zap.String("key", s.key), zap.Error(err))
		}
		return Cart{}
	}
	return fromPersisted(items)
}

func (s *Store) decode(data []byte) ([]persistedItem, error) {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("malformed cart: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, fmt.Errorf("invalid cart: %v", msgs)
	}

	var items []persistedItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("malformed cart: %w", err)
	}
	return items, nil
}

// Save persists the full snapshot, then refreshes the count display.
func (s *Store) Save(c Cart) error {
	data, err := json.Marshal(toPersisted(c))
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := s.kv.Set(s.key, data); err != nil {
		return fmt.Errorf("failed to persist cart: %w", err)
	}
	if s.display != nil {
		s.display.ShowCount(c.Count())
	}
	return nil
}

// Total is the live total of the persisted cart.
func (s *Store) Total() money.Amount { return s.Load().Total() }

// Count is the live item count of the persisted cart.
func (s *Store) Count() int { return s.Load().Count() }
