package voiceartist

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// Draft is a user's autosaved, uncommitted change list for one exploration.
// A discarded draft keeps its ID so the next save continues the sequence.
type Draft struct {
	ChangeList  []map[string]interface{} `msgpack:"change_list"`
	ExpVersion  int                      `msgpack:"exp_version"`
	ID          int                      `msgpack:"id"`
	LastUpdated time.Time                `msgpack:"last_updated"`
}

// IsEmpty reports whether the draft holds no pending changes.
func (d *Draft) IsEmpty() bool { return d == nil || d.ChangeList == nil }

// ErrDraftContention is returned when an update keeps losing races with
// concurrent writers of the same draft.
var ErrDraftContention = errors.New("draft: too many concurrent updates")

// UpdateFunc receives the stored draft (nil when there is none) and returns
// the draft to store. Returning nil leaves the stored draft untouched.
type UpdateFunc func(cur *Draft) (*Draft, error)

// DraftStore persists drafts keyed by user and exploration. Get returns
// (nil, nil) when there is no draft. Update is an atomic read-modify-write
// and returns whatever fn returned.
type DraftStore interface {
	Get(ctx context.Context, userID, expID string) (*Draft, error)
	Save(ctx context.Context, userID, expID string, d *Draft) error
	Update(ctx context.Context, userID, expID string, fn UpdateFunc) (*Draft, error)
	Discard(ctx context.Context, userID, expID string) error
	DeleteExpired(ctx context.Context) (int, error)
}

func encodeDraft(d *Draft) ([]byte, error) {
	return msgpack.Marshal(d)
}

func decodeDraft(b []byte) (*Draft, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)
	var d Draft
	if err := dec.Decode(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

func draftKey(prefix, userID, expID string) string {
	return prefix + userID + "." + expID
}

func discarded(d *Draft) *Draft {
	return &Draft{ID: d.ID}
}

func discardFunc(cur *Draft) (*Draft, error) {
	if cur == nil {
		return nil, nil
	}
	return discarded(cur), nil
}

const maxUpdateAttempts = 50

// RedisDraftStore keeps msgpack-encoded drafts under "draft:{user}.{exp}"
// with a TTL refreshed on every save.
type RedisDraftStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisDraftStore(client *redis.Client, ttl time.Duration) *RedisDraftStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisDraftStore{client: client, prefix: "draft:", ttl: ttl}
}

func (s *RedisDraftStore) Get(ctx context.Context, userID, expID string) (*Draft, error) {
	b, err := s.client.Get(ctx, draftKey(s.prefix, userID, expID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeDraft(b)
}

func (s *RedisDraftStore) Save(ctx context.Context, userID, expID string, d *Draft) error {
	b, err := encodeDraft(d)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, draftKey(s.prefix, userID, expID), b, s.ttl).Err()
}

// Update watches the draft key and retries fn when another client writes
// the key between the read and the commit.
func (s *RedisDraftStore) Update(ctx context.Context, userID, expID string, fn UpdateFunc) (*Draft, error) {
	key := draftKey(s.prefix, userID, expID)
	var out *Draft
	txf := func(tx *redis.Tx) error {
		var cur *Draft
		b, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == redis.Nil:
		case err != nil:
			return err
		default:
			if cur, err = decodeDraft(b); err != nil {
				return err
			}
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		out = next
		if next == nil {
			return nil
		}
		enc, err := encodeDraft(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, enc, s.ttl)
			return nil
		})
		return err
	}
	for i := 0; i < maxUpdateAttempts; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, ErrDraftContention
}

func (s *RedisDraftStore) Discard(ctx context.Context, userID, expID string) error {
	_, err := s.Update(ctx, userID, expID, discardFunc)
	return err
}

// DeleteExpired removes drafts whose last save is older than the TTL. Keys
// normally expire on their own; this catches keys whose TTL was cleared.
func (s *RedisDraftStore) DeleteExpired(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.ttl)
	deleted := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		b, err := s.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return deleted, err
		}
		d, err := decodeDraft(b)
		if err != nil || (!d.LastUpdated.IsZero() && d.LastUpdated.Before(cutoff)) {
			if err := s.client.Del(ctx, key).Err(); err != nil {
				return deleted, err
			}
			deleted++
		}
	}
	return deleted, iter.Err()
}

// MemoryDraftStore is the in-process DraftStore used without Redis.
type MemoryDraftStore struct {
	mu     sync.Mutex
	drafts map[string][]byte
	ttl    time.Duration
	now    func() time.Time
}

func NewMemoryDraftStore(ttl time.Duration) *MemoryDraftStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &MemoryDraftStore{drafts: map[string][]byte{}, ttl: ttl, now: time.Now}
}

func (s *MemoryDraftStore) Get(ctx context.Context, userID, expID string) (*Draft, error) {
	s.mu.Lock()
	b, ok := s.drafts[draftKey("", userID, expID)]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return decodeDraft(b)
}

func (s *MemoryDraftStore) Save(ctx context.Context, userID, expID string, d *Draft) error {
	b, err := encodeDraft(d)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[draftKey("", userID, expID)] = b
	return nil
}

// Update holds the store lock across the read, fn and the write.
func (s *MemoryDraftStore) Update(ctx context.Context, userID, expID string, fn UpdateFunc) (*Draft, error) {
	key := draftKey("", userID, expID)
	s.mu.Lock()
	defer s.mu.Unlock()
	var cur *Draft
	if b, ok := s.drafts[key]; ok {
		d, err := decodeDraft(b)
		if err != nil {
			return nil, err
		}
		cur = d
	}
	next, err := fn(cur)
	if err != nil || next == nil {
		return next, err
	}
	enc, err := encodeDraft(next)
	if err != nil {
		return nil, err
	}
	s.drafts[key] = enc
	return next, nil
}

func (s *MemoryDraftStore) Discard(ctx context.Context, userID, expID string) error {
	_, err := s.Update(ctx, userID, expID, discardFunc)
	return err
}

func (s *MemoryDraftStore) DeleteExpired(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for k, b := range s.drafts {
		d, err := decodeDraft(b)
		if err != nil || (!d.LastUpdated.IsZero() && d.LastUpdated.Before(cutoff)) {
			delete(s.drafts, k)
			deleted++
		}
	}
	return deleted, nil
}
