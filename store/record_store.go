package store

import (
	"sort"
	"sync"
	"video-uploader/entities"
	"video-uploader/pkg/notify"
)

// RecordStore is the single in-memory owner of the signed-in user's videos.
// All mutations are serialised through mu, and every mutation that changes
// state raises exactly one signal on the notifier once it is complete.
type RecordStore struct {
	mu       sync.RWMutex
	records  map[string]entities.Video
	pinned   map[string]struct{}
	notifier *notify.Notifier
}

func NewRecordStore(notifier *notify.Notifier) *RecordStore {
	if notifier == nil {
		notifier = notify.New()
	}
	return &RecordStore{
		records:  make(map[string]entities.Video),
		pinned:   make(map[string]struct{}),
		notifier: notifier,
	}
}

func (s *RecordStore) Notifier() *notify.Notifier {
	return s.notifier
}

// Upsert replaces any record with the same id.
func (s *RecordStore) Upsert(video entities.Video) {
	s.Batch(func(tx *Tx) {
		tx.Upsert(video)
	})
}

// Remove is a no-op for unknown ids.
func (s *RecordStore) Remove(id string) {
	s.Batch(func(tx *Tx) {
		tx.Remove(id)
	})
}

func (s *RecordStore) Clear() {
	s.Batch(func(tx *Tx) {
		for _, id := range tx.IDs() {
			tx.Remove(id)
		}
	})
}

func (s *RecordStore) Get(id string) (entities.Video, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[id]
	return v, ok
}

// All returns the records sorted by creation time, newest first.
func (s *RecordStore) All() []entities.Video {
	s.mu.RLock()
	out := make([]entities.Video, 0, len(s.records))
	for _, v := range s.records {
		out = append(out, v)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *RecordStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.records)
}

func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// TryPin marks a record as actively uploading so a stale snapshot cannot
// prune it. It fails when the id is already pinned, so a single caller owns
// the upload of a video at a time; the owner releases it with Unpin.
func (s *RecordStore) TryPin(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pinned[id]; ok {
		return false
	}
	s.pinned[id] = struct{}{}
	return true
}

func (s *RecordStore) Unpin(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pinned, id)
}

// Batch applies fn under a single lock and signals once afterwards if
// anything changed.
func (s *RecordStore) Batch(fn func(tx *Tx)) {
	s.mu.Lock()
	tx := &Tx{store: s}
	fn(tx)
	changed := tx.changed
	s.mu.Unlock()

	if changed {
		s.notifier.Notify()
	}
}

// Tx is a view of the store valid only inside Batch.
type Tx struct {
	store   *RecordStore
	changed bool
}

func (tx *Tx) Get(id string) (entities.Video, bool) {
	v, ok := tx.store.records[id]
	return v, ok
}

func (tx *Tx) Upsert(video entities.Video) {
	tx.store.records[video.ID] = video
	tx.changed = true
}

func (tx *Tx) Remove(id string) {
	if _, ok := tx.store.records[id]; !ok {
		return
	}
	delete(tx.store.records, id)
	tx.changed = true
}

func (tx *Tx) IDs() []string {
	return sortedKeys(tx.store.records)
}

// Prune removes every unpinned record whose id is not in keep and returns
// the removed ids.
func (tx *Tx) Prune(keep map[string]struct{}) []string {
	var removed []string
	for _, id := range tx.IDs() {
		if _, ok := keep[id]; ok {
			continue
		}
		if _, pinned := tx.store.pinned[id]; pinned {
			continue
		}
		tx.Remove(id)
		removed = append(removed, id)
	}
	return removed
}

func sortedKeys(m map[string]entities.Video) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
