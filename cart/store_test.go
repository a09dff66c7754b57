package cart

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbsmaine/boilerparts/money"
	"github.com/kbsmaine/boilerparts/storage"
)

type countRecorder struct {
	counts []int
}

func (r *countRecorder) ShowCount(n int) { r.counts = append(r.counts, n) }

type failingKV struct {
	storage.KV
	getErr error
	setErr error
}

func (f failingKV) Get(key string) ([]byte, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	return f.KV.Get(key)
}

func (f failingKV) Set(key string, value []byte) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.KV.Set(key, value)
}

func newTestStore(t *testing.T, kv storage.KV, opts ...StoreOption) *Store {
	t.Helper()
	s, err := NewStore(kv, opts...)
	require.NoError(t, err)
	return s
}

func TestStore_Load_missingKeyIsEmpty(t *testing.T) {
	s := newTestStore(t, storage.NewMemory())
	assert.Empty(t, s.Load())
	assert.Equal(t, money.Zero, s.Total())
	assert.Equal(t, 0, s.Count())
}

func TestStore_Load_corruptContentResets(t *testing.T) {
	tests := map[string]string{
		"not json":       `{{{`,
		"not an array":   `{"id":"p1"}`,
		"null":           `null`,
		"negative price": `[{"id":"p1","name":"Widget","price":-1,"qty":1}]`,
		"zero qty":       `[{"id":"p1","name":"Widget","price":1,"qty":0}]`,
		"missing id":     `[{"name":"Widget","price":1,"qty":1}]`,
		"string price":   `[{"id":"p1","price":"9.99","qty":1}]`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			kv := storage.NewMemory()
			require.NoError(t, kv.Set(DefaultStorageKey, []byte(raw)))
			s := newTestStore(t, kv)

			assert.Empty(t, s.Load())

			_, ok, _ := kv.Get(DefaultStorageKey)
			assert.False(t, ok, "corrupt snapshot should be reset")
		})
	}
}

func TestStore_Load_unreadableStorageIsEmpty(t *testing.T) {
	s := newTestStore(t, failingKV{KV: storage.NewMemory(), getErr: errors.New("disk gone")})
	assert.Empty(t, s.Load())
}

func TestStore_Load_normalizesQuantityAndDuplicates(t *testing.T) {
	kv := storage.NewMemory()
	raw := `[
		{"id":"p1","name":"Widget","price":9.99},
		{"id":"p2","name":"Valve","price":2.5,"qty":2},
		{"id":"p1","name":"Widget","price":9.99,"qty":3}
	]`
	require.NoError(t, kv.Set(DefaultStorageKey, []byte(raw)))
	s := newTestStore(t, kv)

	items := s.Load()
	require.Len(t, items, 2)
	assert.Equal(t, "p1", items[0].ID)
	assert.Equal(t, 4, items[0].Quantity)
	assert.Equal(t, "p2", items[1].ID)
	assert.Equal(t, money.Amount(999*4+250*2), items.Total())
}

func TestStore_SaveThenLoad_roundTripsWireFormat(t *testing.T) {
	kv := storage.NewMemory()
	s := newTestStore(t, kv)

	require.NoError(t, s.Save(Cart{{ID: "p1", Name: "Widget", UnitPrice: 999, Quantity: 2}}))

	raw, ok, err := kv.Get(DefaultStorageKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":"p1","name":"Widget","price":9.99,"qty":2}]`, string(raw))

	items := s.Load()
	require.Len(t, items, 1)
	assert.Equal(t, money.Amount(999), items[0].UnitPrice)
	assert.Equal(t, money.Amount(1998), s.Total())
	assert.Equal(t, 2, s.Count())
}

func TestStore_Save_refreshesCountDisplayAfterPersisting(t *testing.T) {
	kv := storage.NewMemory()
	rec := &countRecorder{}
	s := newTestStore(t, kv, WithCountDisplay(rec), WithStorageKey("basket"))

	require.NoError(t, s.Save(Cart{{ID: "a", UnitPrice: 1, Quantity: 3}, {ID: "b", UnitPrice: 1, Quantity: 1}}))

	assert.Equal(t, []int{4}, rec.counts)
	assert.Equal(t, "basket", s.Key())
	_, ok, _ := kv.Get("basket")
	assert.True(t, ok)
}

func TestStore_Save_failureSkipsDisplay(t *testing.T) {
	rec := &countRecorder{}
	s := newTestStore(t, failingKV{KV: storage.NewMemory(), setErr: errors.New("quota exceeded")}, WithCountDisplay(rec))

	err := s.Save(Cart{{ID: "a", UnitPrice: 1, Quantity: 1}})
	assert.Error(t, err)
	assert.Empty(t, rec.counts)
}
