package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meetbot/internal/biz/repo"
	"github.com/DevRickLin/feishu-meetbot/internal/logging"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel/attribute"
)

// NATS key-value bucket names
const (
	KVBucketMeetings = "meetbot-meetings"
	KVBucketTopics   = "meetbot-topics"
	KVBucketCallers  = "meetbot-callers"
	KVBucketIndex    = "meetbot-index"
)

// maxUpdateAttempts bounds optimistic retries on revision conflicts
const maxUpdateAttempts = 5

// INatsKeyValue is the subset of jetstream.KeyValue the store uses
type INatsKeyValue interface {
	ListKeys(context.Context, ...jetstream.WatchOpt) (jetstream.KeyLister, error)
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(context.Context, string, []byte) (uint64, error)
	Create(context.Context, string, []byte, ...jetstream.KVCreateOpt) (uint64, error)
	Update(context.Context, string, []byte, uint64) (uint64, error)
	Delete(context.Context, string, ...jetstream.KVDeleteOpt) error
}

// kvBucket wraps one bucket with JSON encoding, tracing and error mapping
type kvBucket[T any] struct {
	kv     INatsKeyValue
	entity string
}

func (b *kvBucket[T]) get(ctx context.Context, key string) (*T, uint64, error) {
	ctx, span := startSpan(ctx, "nats", "get", b.entity, attribute.String("db.nats.key", key))
	defer span.End()

	entry, err := b.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			err = domain.NewNotFoundError(fmt.Sprintf("%s with key '%s' not found", b.entity, key), err)
		} else {
			slog.ErrorContext(ctx, "error getting "+b.entity+" from NATS KV", logging.ErrKey, err, "key", key)
			err = domain.NewUnavailableError(fmt.Sprintf("failed to retrieve %s from store", b.entity), err)
		}
		endSpan(span, err)
		return nil, 0, err
	}

	var v T
	if err := json.Unmarshal(entry.Value(), &v); err != nil {
		err = domain.NewInternalError(fmt.Sprintf("failed to unmarshal %s data", b.entity), err)
		endSpan(span, err)
		return nil, 0, err
	}
	endSpan(span, nil)
	return &v, entry.Revision(), nil
}

func (b *kvBucket[T]) put(ctx context.Context, key string, v *T) error {
	ctx, span := startSpan(ctx, "nats", "put", b.entity, attribute.String("db.nats.key", key))
	defer span.End()

	data, err := json.Marshal(v)
	if err != nil {
		err = domain.NewInternalError(fmt.Sprintf("failed to marshal %s", b.entity), err)
		endSpan(span, err)
		return err
	}
	if _, err := b.kv.Put(ctx, key, data); err != nil {
		err = domain.NewUnavailableError(fmt.Sprintf("failed to store %s", b.entity), err)
		endSpan(span, err)
		return err
	}
	endSpan(span, nil)
	return nil
}

// mutate applies fn under optimistic concurrency; fn returns false to skip the write
func (b *kvBucket[T]) mutate(ctx context.Context, key string, fn func(*T) bool) (bool, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		v, rev, err := b.get(ctx, key)
		if err != nil {
			return false, err
		}
		if !fn(v) {
			return false, nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return false, domain.NewInternalError(fmt.Sprintf("failed to marshal %s", b.entity), err)
		}

		spanCtx, span := startSpan(ctx, "nats", "update", b.entity,
			attribute.String("db.nats.key", key),
			attribute.Int64("db.nats.revision", int64(rev)))
		_, err = b.kv.Update(spanCtx, key, data, rev)
		if err == nil {
			endSpan(span, nil)
			span.End()
			return true, nil
		}
		endSpan(span, err)
		span.End()
		if !isRevisionConflict(err) {
			return false, domain.NewUnavailableError(fmt.Sprintf("failed to update %s", b.entity), err)
		}
	}
	return false, domain.NewConflictError(fmt.Sprintf("%s %s changed concurrently", b.entity, key))
}

func (b *kvBucket[T]) delete(ctx context.Context, key string) error {
	ctx, span := startSpan(ctx, "nats", "delete", b.entity, attribute.String("db.nats.key", key))
	defer span.End()

	err := b.kv.Delete(ctx, key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		err = domain.NewUnavailableError(fmt.Sprintf("failed to delete %s", b.entity), err)
		endSpan(span, err)
		return err
	}
	endSpan(span, nil)
	return nil
}

func (b *kvBucket[T]) keys(ctx context.Context, prefix string) ([]string, error) {
	ctx, span := startSpan(ctx, "nats", "list_keys", b.entity)
	defer span.End()

	lister, err := b.kv.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			endSpan(span, nil)
			return nil, nil
		}
		err = domain.NewUnavailableError(fmt.Sprintf("failed to list %s keys", b.entity), err)
		endSpan(span, err)
		return nil, err
	}
	defer lister.Stop()

	var keys []string
	for key := range lister.Keys() {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	span.SetAttributes(attribute.Int("db.nats.keys_count", len(keys)))
	endSpan(span, nil)
	return keys, nil
}

func isRevisionConflict(err error) bool {
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence {
		return true
	}
	return strings.Contains(err.Error(), "wrong last sequence")
}

// meetingRecord is the stored form of a meeting; topic IDs keep creation order
type meetingRecord struct {
	Meeting  domain.Meeting `json:"meeting"`
	TopicIDs []string       `json:"topic_ids"`
}

// NatsStore holds the repositories backed by JetStream key-value buckets
type NatsStore struct {
	conn    *nats.Conn
	meeting *natsMeetingRepo
	topic   *natsTopicRepo
	caller  *natsCallerRepo
}

// NewNatsStore connects to url and creates the buckets if missing
func NewNatsStore(ctx context.Context, url string) (*NatsStore, error) {
	nc, err := nats.Connect(url, nats.Name("meetbot"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	buckets := make(map[string]INatsKeyValue)
	for _, name := range []string{KVBucketMeetings, KVBucketTopics, KVBucketCallers, KVBucketIndex} {
		kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: name})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to open bucket %s: %w", name, err)
		}
		buckets[name] = kv
	}

	s := newNatsStoreFromBuckets(buckets[KVBucketMeetings], buckets[KVBucketTopics], buckets[KVBucketCallers], buckets[KVBucketIndex])
	s.conn = nc
	return s, nil
}

func newNatsStoreFromBuckets(meetings, topics, callers, index INatsKeyValue) *NatsStore {
	m := &kvBucket[meetingRecord]{kv: meetings, entity: "meeting"}
	t := &kvBucket[domain.Topic]{kv: topics, entity: "topic"}
	c := &kvBucket[domain.Caller]{kv: callers, entity: "caller"}
	idx := &kvBucket[string]{kv: index, entity: "meeting index"}
	return &NatsStore{
		meeting: &natsMeetingRepo{meetings: m, topics: t, callers: c, index: idx},
		topic:   &natsTopicRepo{topics: t},
		caller:  &natsCallerRepo{meetings: m, callers: c},
	}
}

func (s *NatsStore) Meetings() repo.MeetingRepo { return s.meeting }
func (s *NatsStore) Topics() repo.TopicRepo { return s.topic }
func (s *NatsStore) Callers() repo.CallerRepo { return s.caller }

// Close drains the NATS connection
func (s *NatsStore) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
