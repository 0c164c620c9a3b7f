package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// memKV is an in-memory KV used by the Store tests.
type memKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	closed bool
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *memKV) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memKV) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memKV) Apply(_ context.Context, b Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range b.Puts {
		m.data[e.Key] = append([]byte(nil), e.Value...)
	}
	for _, k := range b.Deletes {
		delete(m.data, k)
	}
	return nil
}

// interruptedKV loses every batch, as if the process died before commit.
type interruptedKV struct {
	*memKV
	attempts int
}

func (k *interruptedKV) Apply(context.Context, Batch) error {
	k.attempts++
	return errInterrupted
}

var errInterrupted = errors.New("interrupted")

func (m *memKV) Close() error {
	m.closed = true
	return nil
}

func (m *memKV) allKeys() []string {
	keys, _ := m.Keys(context.Background(), "")
	return keys
}

func openBackends(t *testing.T) map[string]KV {
	t.Helper()
	dir := t.TempDir()
	sq, err := NewSQLiteKV(filepath.Join(dir, "sqlite", "test.db"))
	require.NoError(t, err)
	bo, err := NewBoltKV(filepath.Join(dir, "bolt", "test.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sq.Close()
		_ = bo.Close()
	})
	return map[string]KV{BackendSQLite: sq, BackendBolt: bo, "mem": newMemKV()}
}

func TestKV_Apply(t *testing.T) {
	ctx := context.Background()
	for name, kv := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, kv.Put(ctx, "Broker{5}", []byte(`{}`)))
			require.NoError(t, kv.Apply(ctx, Batch{}))

			require.NoError(t, kv.Apply(ctx, Batch{
				Puts: []Entry{
					{Key: "Broker{0}", Value: []byte(`{"id":0}`)},
					{Key: "brokers", Value: []byte(`[0]`)},
				},
				Deletes: []string{"Broker{5}", "missing"},
			}))
			keys, err := kv.Keys(ctx, "")
			require.NoError(t, err)
			require.Equal(t, []string{"Broker{0}", "brokers"}, keys)
		})
	}
}

func TestKV_BoltApplyIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	kv, err := NewBoltKV(filepath.Join(t.TempDir(), "test.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	require.NoError(t, kv.Put(ctx, "brokers", []byte(`[3]`)))

	err = kv.Apply(ctx, Batch{
		Puts: []Entry{
			{Key: "brokers", Value: []byte(`[0]`)},
			{Key: "", Value: []byte(`{}`)},
		},
	})
	require.Error(t, err)
	v, err := kv.Get(ctx, "brokers")
	require.NoError(t, err)
	require.Equal(t, `[3]`, string(v), "a failed batch leaves earlier puts unapplied")
}

func TestKV_Backends(t *testing.T) {
	ctx := context.Background()
	for name, kv := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := kv.Get(ctx, "missing")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, kv.Put(ctx, "Broker{1}", []byte(`{"id":1}`)))
			require.NoError(t, kv.Put(ctx, "Broker{0}", []byte(`{"id":0}`)))
			require.NoError(t, kv.Put(ctx, "SubscribeHises{0}", []byte(`{}`)))
			require.NoError(t, kv.Put(ctx, "brokers", []byte(`[0,1]`)))

			v, err := kv.Get(ctx, "Broker{1}")
			require.NoError(t, err)
			require.Equal(t, `{"id":1}`, string(v))

			require.NoError(t, kv.Put(ctx, "Broker{1}", []byte(`{"id":1,"name":"x"}`)))
			v, err = kv.Get(ctx, "Broker{1}")
			require.NoError(t, err)
			require.Equal(t, `{"id":1,"name":"x"}`, string(v))

			keys, err := kv.Keys(ctx, "Broker{")
			require.NoError(t, err)
			require.Equal(t, []string{"Broker{0}", "Broker{1}"}, keys)

			require.NoError(t, kv.Delete(ctx, "Broker{0}", "nope"))
			keys, err = kv.Keys(ctx, "")
			require.NoError(t, err)
			require.Equal(t, []string{"Broker{1}", "SubscribeHises{0}", "brokers"}, keys)
		})
	}
}

func TestNewSQLiteKV_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "mqttdesk.db")
	kv, err := NewSQLiteKV(path)
	require.NoError(t, err)
	defer kv.Close()

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	require.True(t, info.IsDir())
	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), info.Mode().Perm())
	}
}

func TestNewSQLiteKV_PreMigrationBackup(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mqttdesk.db")

	kv1, err := NewSQLiteKV(path)
	require.NoError(t, err)
	require.NoError(t, kv1.Put(ctx, "brokers", []byte(`[]`)))
	require.NoError(t, kv1.Close())

	_, err = os.Stat(path + ".bak")
	require.True(t, os.IsNotExist(err), "first open should not create a backup")

	kv2, err := NewSQLiteKV(path)
	require.NoError(t, err)
	defer kv2.Close()

	_, err = os.Stat(path + ".bak")
	require.NoError(t, err, "reopening should create a backup")

	v, err := kv2.Get(ctx, "brokers")
	require.NoError(t, err)
	require.Equal(t, `[]`, string(v))
}

func TestNewSQLiteKV_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mqttdesk.db")
	for i := 0; i < 3; i++ {
		kv, err := NewSQLiteKV(path)
		require.NoError(t, err, "migrations must be idempotent")
		require.NoError(t, kv.Put(ctx, "brokers", []byte(`[0]`)))
		require.NoError(t, kv.Close())
	}
}

func TestOpenKV_UnknownBackend(t *testing.T) {
	_, err := OpenKV("redis", filepath.Join(t.TempDir(), "x"))
	require.ErrorContains(t, err, `unknown store backend "redis"`)
}

func TestKey_StringParseRoundTrip(t *testing.T) {
	require.Equal(t, "brokers", BrokersKey().String())
	require.Equal(t, "Broker{3}", BrokerKey(3).String())
	require.Equal(t, "SubscribeHises{12}", HistoryKey(12).String())

	rapid.Check(t, func(t *rapid.T) {
		kind := rapid.SampledFrom([]KeyKind{KindBrokers, KindBroker, KindSubscribeHises}).Draw(t, "kind")
		id := rapid.IntRange(0, 1<<20).Draw(t, "id")
		k := Key{Kind: kind, ID: id}
		if kind == KindBrokers {
			k.ID = 0
		}
		got, err := ParseKey(k.String())
		require.NoError(t, err)
		require.Equal(t, k, got)
		require.Equal(t, k.String(), got.String())
	})
}

func TestParseKey_Rejects(t *testing.T) {
	for _, s := range []string{"", "Broker{", "Broker{}", "Broker{-1}", "Broker{x}", "SubscribeHises{1", "other"} {
		_, err := ParseKey(s)
		require.Error(t, err, s)
	}
}
