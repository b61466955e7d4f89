// internal/docstore/redis.go
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// RedisStore implements Store on top of Redis. Documents are JSON
// strings at "doc:{path}"; collection membership is tracked in a set
// at "col:{collectionPath}"; change notifications ride pub/sub
// channels named "watch:{path}". Transactions use WATCH on every key
// read, so a concurrent commit touching any of them fails the EXEC and
// the body is retried.
type RedisStore struct {
	client *redis.Client
}

// maxTxAttempts bounds the optimistic retry loop in RunTransaction.
const maxTxAttempts = 5

// watchBuffer is the per-subscription delivery channel capacity.
const watchBuffer = 16

// NewRedisStore connects to redisURL ("redis://host:port") and
// verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing client. Used by tests.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func docKey(path string) string { return "doc:" + path }
func colKey(path string) string { return "col:" + path }
func channel(path string) string { return "watch:" + path }

// Get reads the document at path into dest. Returns false with no
// error when the document is absent.
func (s *RedisStore) Get(ctx context.Context, path string, dest any) (bool, error) {
	b, err := s.client.Get(ctx, docKey(path)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", path, err)
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

// Set creates or overwrites the document at path and records it in its
// parent collection.
func (s *RedisStore) Set(ctx context.Context, path string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, docKey(path), data, 0)
		pipe.SAdd(ctx, colKey(parentCollection(path)), path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	s.notify(ctx, path)
	return nil
}

// Update merges fields into the existing document at path. The merge
// runs as a transaction, so a rival commit landing between the read
// and the rewrite aborts the attempt and the merge is redone against
// the fresh document. Fails with ErrNotFound when the document is
// absent.
func (s *RedisStore) Update(ctx context.Context, path string, fields map[string]any) error {
	return s.RunTransaction(ctx, func(tx Txn) error {
		var merged map[string]any
		found, err := tx.Get(path, &merged)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("update %s: %w", path, ErrNotFound)
		}
		for k, v := range fields {
			merged[k] = v
		}
		return tx.Set(path, merged)
	})
}

// Delete removes the document at path. Deleting an absent document is
// not an error.
func (s *RedisStore) Delete(ctx context.Context, path string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, docKey(path))
		pipe.SRem(ctx, colKey(parentCollection(path)), path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	s.notify(ctx, path)
	return nil
}

// Query fetches every document in the collection, optionally ordered
// by a JSON field.
func (s *RedisStore) Query(ctx context.Context, collection string, opts ...QueryOption) ([]Document, error) {
	var qo queryOptions
	for _, opt := range opts {
		opt(&qo)
	}

	paths, err := s.client.SMembers(ctx, colKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	if len(paths) == 0 {
		return nil, nil
	}

	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = docKey(p)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}

	docs := make([]Document, 0, len(paths))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Membership outlived the document; skip the stale entry.
			continue
		}
		docs = append(docs, Document{
			ID:   docID(paths[i]),
			Path: paths[i],
			Data: []byte(raw),
		})
	}

	if qo.orderField != "" {
		sortDocs(docs, qo)
	}
	return docs, nil
}

// sortDocs orders docs by the configured JSON field, falling back to
// path order for equal values so results are deterministic.
func sortDocs(docs []Document, qo queryOptions) {
	type keyed struct {
		doc Document
		val any
	}
	entries := make([]keyed, len(docs))
	for i := range docs {
		entries[i].doc = docs[i]
		var m map[string]any
		if err := json.Unmarshal(docs[i].Data, &m); err == nil {
			entries[i].val = m[qo.orderField]
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		c := compareValues(entries[i].val, entries[j].val)
		if c == 0 {
			return entries[i].doc.Path < entries[j].doc.Path
		}
		if qo.orderDesc {
			return c > 0
		}
		return c < 0
	})
	for i := range entries {
		docs[i] = entries[i].doc
	}
}

// compareValues orders two decoded JSON values. Numbers compare
// numerically, RFC 3339 strings chronologically, other strings
// lexically; anything else falls back to its printed form.
func compareValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	if af, ok := a.(float64); ok {
		if bf, ok := b.(float64); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			if at, err := time.Parse(time.RFC3339Nano, as); err == nil {
				if bt, err := time.Parse(time.RFC3339Nano, bs); err == nil {
					return at.Compare(bt)
				}
			}
		}
	}
	as := fmt.Sprint(a)
	bs := fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

// Subscribe delivers the document at path immediately and after every
// change notification.
func (s *RedisStore) Subscribe(ctx context.Context, path string) *DocWatch {
	ctx, cancel := context.WithCancel(ctx)
	ps := s.client.Subscribe(ctx, channel(path))
	out := make(chan *Document, watchBuffer)

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			_ = ps.Close()
		})
	}

	go func() {
		defer close(out)

		// Wait for the subscription ack so no change between the
		// initial fetch and the first message is lost.
		if _, err := ps.Receive(ctx); err != nil {
			return
		}

		send := func() bool {
			doc, err := s.fetchDoc(ctx, path)
			if err != nil {
				log.Warnf("docstore: watch %s: %v", path, err)
				return true
			}
			select {
			case out <- doc:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send() {
			return
		}
		for {
			select {
			case _, ok := <-ps.Channel():
				if !ok {
					return
				}
				if !send() {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return &DocWatch{C: out, stop: stop}
}

// SubscribeCollection delivers the full (ordered) collection
// immediately and after every change to any member.
func (s *RedisStore) SubscribeCollection(ctx context.Context, collection string, opts ...QueryOption) *CollectionWatch {
	ctx, cancel := context.WithCancel(ctx)
	ps := s.client.Subscribe(ctx, channel(collection))
	out := make(chan []Document, watchBuffer)

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			_ = ps.Close()
		})
	}

	go func() {
		defer close(out)

		if _, err := ps.Receive(ctx); err != nil {
			return
		}

		send := func() bool {
			docs, err := s.Query(ctx, collection, opts...)
			if err != nil {
				log.Warnf("docstore: watch collection %s: %v", collection, err)
				return true
			}
			select {
			case out <- docs:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send() {
			return
		}
		for {
			select {
			case _, ok := <-ps.Channel():
				if !ok {
					return
				}
				if !send() {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return &CollectionWatch{C: out, stop: stop}
}

func (s *RedisStore) fetchDoc(ctx context.Context, path string) (*Document, error) {
	b, err := s.client.Get(ctx, docKey(path)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Document{ID: docID(path), Path: path, Data: b}, nil
}

// notify publishes a change for path to its own channel and its parent
// collection's channel.
func (s *RedisStore) notify(ctx context.Context, path string) {
	if err := s.client.Publish(ctx, channel(path), "changed").Err(); err != nil {
		log.Warnf("docstore: notify %s: %v", path, err)
	}
	if parent := parentCollection(path); parent != "" {
		if err := s.client.Publish(ctx, channel(parent), "changed").Err(); err != nil {
			log.Warnf("docstore: notify %s: %v", parent, err)
		}
	}
}

// txWrite is one staged transactional mutation.
type txWrite struct {
	path string
	data []byte
	del  bool
}

// redisTxn implements Txn. Reads WATCH their key before fetching it;
// writes are staged and flushed in one MULTI/EXEC by commit.
type redisTxn struct {
	ctx    context.Context
	rtx    *redis.Tx
	writes []txWrite
}

func (t *redisTxn) Get(path string, dest any) (bool, error) {
	if len(t.writes) > 0 {
		return false, ErrReadAfterWrite
	}
	key := docKey(path)
	if err := t.rtx.Watch(t.ctx, key).Err(); err != nil {
		return false, fmt.Errorf("watch %s: %w", path, err)
	}
	b, err := t.rtx.Get(t.ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", path, err)
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func (t *redisTxn) Set(path string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	t.writes = append(t.writes, txWrite{path: path, data: data})
	return nil
}

func (t *redisTxn) Delete(path string) {
	t.writes = append(t.writes, txWrite{path: path, del: true})
}

func (t *redisTxn) commit() error {
	if len(t.writes) == 0 {
		return nil
	}
	_, err := t.rtx.TxPipelined(t.ctx, func(pipe redis.Pipeliner) error {
		for _, w := range t.writes {
			if w.del {
				pipe.Del(t.ctx, docKey(w.path))
				pipe.SRem(t.ctx, colKey(parentCollection(w.path)), w.path)
			} else {
				pipe.Set(t.ctx, docKey(w.path), w.data, 0)
				pipe.SAdd(t.ctx, colKey(parentCollection(w.path)), w.path)
			}
		}
		return nil
	})
	return err
}

// RunTransaction runs fn against a transactional handle, retrying the
// whole read-compute-write cycle on optimistic conflicts. Change
// notifications for every written path go out after a successful
// commit, never for an aborted attempt.
func (s *RedisStore) RunTransaction(ctx context.Context, fn func(tx Txn) error) error {
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		var committed []txWrite
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			t := &redisTxn{ctx: ctx, rtx: rtx}
			if err := fn(t); err != nil {
				return err
			}
			if err := t.commit(); err != nil {
				return err
			}
			committed = t.writes
			return nil
		})
		if err == redis.TxFailedErr {
			log.Debugf("docstore: transaction conflict, attempt %d", attempt+1)
			continue
		}
		if err != nil {
			return err
		}
		for _, w := range committed {
			s.notify(ctx, w.path)
		}
		return nil
	}
	return ErrTxRetriesExceeded
}

// NewID returns a fresh random document id.
func (s *RedisStore) NewID() string {
	return uuid.NewString()
}

// ServerTimestamp asks the server for its clock, falling back to local
// time if the round trip fails.
func (s *RedisStore) ServerTimestamp(ctx context.Context) time.Time {
	t, err := s.client.Time(ctx).Result()
	if err != nil {
		return time.Now().UTC()
	}
	return t.UTC()
}
