package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/zjrosen/mqttdesk/internal/cachemanager"
	"github.com/zjrosen/mqttdesk/internal/domain"
	"github.com/zjrosen/mqttdesk/internal/log"
	"github.com/zjrosen/mqttdesk/internal/pubsub"
)

// Change is published after every successful write.
type Change struct {
	BrokerID int
	Key      string
}

// LoadResult is the densified content of the store.
type LoadResult struct {
	// Brokers in index order; Brokers[i].ID == i.
	Brokers   []domain.Broker
	Histories map[int]*domain.SubscribeHistory
}

type historyKey string

// Store is the broker and history repository. It is safe for concurrent use:
// readers share an RWMutex, writers are serialised.
type Store struct {
	kv        KV
	mu        sync.RWMutex
	index     []int
	loaded    bool
	histories *cachemanager.ReadThroughCache[historyKey, *domain.SubscribeHistory]
	changes   *pubsub.Broker[Change]
}

var _ pubsub.Subscriber[Change] = (*Store)(nil)

// Open opens backend at path and wraps it in a Store.
func Open(backend, path string) (*Store, error) {
	kv, err := OpenKV(backend, path)
	if err != nil {
		return nil, err
	}
	return New(kv), nil
}

// New wraps an open KV.
func New(kv KV) *Store {
	s := &Store{
		kv:      kv,
		changes: pubsub.NewBroker[Change](),
	}
	cache := cachemanager.NewInMemoryCacheManager[historyKey, *domain.SubscribeHistory](
		"subscribe_histories",
		cachemanager.DefaultExpiration,
		cachemanager.DefaultCleanupInterval,
	)
	s.histories = cachemanager.NewReadThroughCache(cache, s.readHistory, cachemanager.DefaultExpiration)
	return s
}

// Subscribe follows write notifications until ctx is done.
func (s *Store) Subscribe(ctx context.Context) <-chan pubsub.Event[Change] {
	return s.changes.Subscribe(ctx)
}

// Close releases the backend.
func (s *Store) Close() error {
	s.changes.Close()
	return s.kv.Close()
}

func corrupt(key string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreCorrupt, key, err)
}

// Load reads every indexed broker and its history, renumbers them 0..n in
// index order and writes the renumbered layout back. Keys no longer
// referenced by the index are removed.
func (s *Store) Load(ctx context.Context) (*LoadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.readIndex(ctx)
	if err != nil {
		return nil, err
	}

	res := &LoadResult{
		Brokers:   make([]domain.Broker, 0, len(index)),
		Histories: make(map[int]*domain.SubscribeHistory, len(index)),
	}
	for newID, oldID := range index {
		key := BrokerKey(oldID).String()
		raw, err := s.kv.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return nil, corrupt(key, err)
		}
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", key, err)
		}
		var b domain.Broker
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, corrupt(key, err)
		}
		h, err := s.readHistory(ctx, historyKey(HistoryKey(oldID).String()))
		if err != nil {
			return nil, err
		}
		b.ID = newID
		b.Stored = true
		res.Brokers = append(res.Brokers, b)
		res.Histories[newID] = h.WithBrokerID(newID)
	}

	if err := s.rewrite(ctx, index, res); err != nil {
		return nil, err
	}

	s.index = make([]int, len(res.Brokers))
	for i := range s.index {
		s.index[i] = i
	}
	s.loaded = true
	s.histories.Flush(ctx)

	log.Info(log.CatStore, "loaded store", "brokers", len(res.Brokers))
	return res, nil
}

// rewrite persists the densified layout when it differs from what was read
// and deletes stale keys. Records, index and deletions commit together so an
// interrupted rewrite leaves the old layout intact and the next Load redoes it.
func (s *Store) rewrite(ctx context.Context, oldIndex []int, res *LoadResult) error {
	var batch Batch
	dense := true
	for i, id := range oldIndex {
		if id != i {
			dense = false
			break
		}
	}
	if !dense {
		put := func(key string, v any) error {
			raw, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encoding %s: %w", key, err)
			}
			batch.Puts = append(batch.Puts, Entry{Key: key, Value: raw})
			return nil
		}
		ids := make([]int, len(res.Brokers))
		for i, b := range res.Brokers {
			ids[i] = i
			if err := put(BrokerKey(b.ID).String(), b); err != nil {
				return err
			}
			if err := put(HistoryKey(b.ID).String(), res.Histories[b.ID]); err != nil {
				return err
			}
		}
		if err := put(BrokersKey().String(), ids); err != nil {
			return err
		}
	}

	for _, prefix := range []string{brokerPrefix, historyPrefix} {
		keys, err := s.kv.Keys(ctx, prefix)
		if err != nil {
			return fmt.Errorf("listing %s keys: %w", strings.TrimSuffix(prefix, "{"), err)
		}
		for _, k := range keys {
			key, err := ParseKey(k)
			if err != nil || key.ID >= len(res.Brokers) {
				batch.Deletes = append(batch.Deletes, k)
			}
		}
	}
	if batch.Empty() {
		return nil
	}
	if err := s.kv.Apply(ctx, batch); err != nil {
		return fmt.Errorf("rewriting store: %w", err)
	}
	if !dense {
		log.Info(log.CatStore, "renumbered brokers", "from", fmt.Sprint(oldIndex), "count", len(res.Brokers))
	}
	if len(batch.Deletes) > 0 {
		log.Debug(log.CatStore, "removed stale keys", "count", len(batch.Deletes))
	}
	return nil
}

func (s *Store) readIndex(ctx context.Context) ([]int, error) {
	key := BrokersKey().String()
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return []int{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", key, err)
	}
	var index []int
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, corrupt(key, err)
	}
	return index, nil
}

// ensureIndex loads the index for writers that run before Load.
func (s *Store) ensureIndex(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	index, err := s.readIndex(ctx)
	if err != nil {
		return err
	}
	s.index = index
	s.loaded = true
	return nil
}

func (s *Store) readHistory(ctx context.Context, key historyKey) (*domain.SubscribeHistory, error) {
	k, err := ParseKey(string(key))
	if err != nil {
		return nil, err
	}
	raw, err := s.kv.Get(ctx, string(key))
	if errors.Is(err, ErrNotFound) {
		return domain.NewSubscribeHistory(k.ID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", key, err)
	}
	var h domain.SubscribeHistory
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, corrupt(string(key), err)
	}
	if h.Entries == nil {
		h.Entries = []domain.SubscribeHis{}
	}
	return &h, nil
}

func (s *Store) putJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := s.kv.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}

// SaveBroker upserts b and adds it to the index when new.
func (s *Store) SaveBroker(ctx context.Context, b domain.Broker) error {
	if b.ID < 0 {
		return fmt.Errorf("saving broker: negative id %d", b.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureIndex(ctx); err != nil {
		return err
	}

	key := BrokerKey(b.ID).String()
	if err := s.putJSON(ctx, key, b); err != nil {
		return err
	}
	event := pubsub.UpdatedEvent
	if !slices.Contains(s.index, b.ID) {
		index := append(slices.Clone(s.index), b.ID)
		if err := s.putJSON(ctx, BrokersKey().String(), index); err != nil {
			return err
		}
		s.index = index
		event = pubsub.CreatedEvent
	}
	log.Debug(log.CatStore, "saved broker", "id", b.ID, "event", event)
	s.changes.Publish(event, Change{BrokerID: b.ID, Key: key})
	return nil
}

// DeleteBroker removes the broker, its history and its index entry.
// Deleting an unknown id is not an error.
func (s *Store) DeleteBroker(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureIndex(ctx); err != nil {
		return err
	}

	hkey := HistoryKey(id).String()
	batch := Batch{Deletes: []string{BrokerKey(id).String(), hkey}}
	index := s.index
	if i := slices.Index(s.index, id); i >= 0 {
		index = slices.Delete(slices.Clone(s.index), i, i+1)
		raw, err := json.Marshal(index)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", BrokersKey(), err)
		}
		batch.Puts = []Entry{{Key: BrokersKey().String(), Value: raw}}
	}
	if err := s.kv.Apply(ctx, batch); err != nil {
		return fmt.Errorf("deleting broker %d: %w", id, err)
	}
	s.index = index
	s.histories.Invalidate(ctx, historyKey(hkey))
	log.Debug(log.CatStore, "deleted broker", "id", id)
	s.changes.Publish(pubsub.DeletedEvent, Change{BrokerID: id, Key: BrokerKey(id).String()})
	return nil
}

// AppendHistory adds entry to the history of brokerID unless an equal entry
// exists. It returns the stored entry and whether it was added.
func (s *Store) AppendHistory(ctx context.Context, brokerID int, entry domain.SubscribeHis) (domain.SubscribeHis, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := historyKey(HistoryKey(brokerID).String())
	h, err := s.readHistory(ctx, key)
	if err != nil {
		return domain.SubscribeHis{}, false, err
	}
	stored, added := h.Append(entry)
	if !added {
		return stored, false, nil
	}
	if err := s.putJSON(ctx, string(key), h); err != nil {
		return domain.SubscribeHis{}, false, err
	}
	s.histories.Invalidate(ctx, key)
	s.changes.Publish(pubsub.UpdatedEvent, Change{BrokerID: brokerID, Key: string(key)})
	return stored, true, nil
}

// RemoveHistory drops entry entryID from the history of brokerID.
func (s *Store) RemoveHistory(ctx context.Context, brokerID, entryID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := historyKey(HistoryKey(brokerID).String())
	h, err := s.readHistory(ctx, key)
	if err != nil {
		return false, err
	}
	if !h.Remove(entryID) {
		return false, nil
	}
	if err := s.putJSON(ctx, string(key), h); err != nil {
		return false, err
	}
	s.histories.Invalidate(ctx, key)
	s.changes.Publish(pubsub.UpdatedEvent, Change{BrokerID: brokerID, Key: string(key)})
	return true, nil
}

// History returns a copy of the history of brokerID.
func (s *Store) History(ctx context.Context, brokerID int) (*domain.SubscribeHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, err := s.histories.Get(ctx, historyKey(HistoryKey(brokerID).String()))
	if err != nil {
		return nil, err
	}
	return h.Clone(), nil
}

// Brokers returns the stored brokers in index order without renumbering.
func (s *Store) Brokers(ctx context.Context) ([]domain.Broker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, err := s.readIndex(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Broker, 0, len(index))
	for _, id := range index {
		key := BrokerKey(id).String()
		raw, err := s.kv.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return nil, corrupt(key, err)
		}
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", key, err)
		}
		var b domain.Broker
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, corrupt(key, err)
		}
		b.ID = id
		b.Stored = true
		out = append(out, b)
	}
	return out, nil
}

// NextID returns one past the largest indexed id.
func (s *Store) NextID(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureIndex(ctx); err != nil {
		return 0, err
	}
	next := 0
	for _, id := range s.index {
		if id >= next {
			next = id + 1
		}
	}
	return next, nil
}
