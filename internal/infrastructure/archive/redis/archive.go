package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"orchestra-agent/internal/application/port/output"
	"orchestra-agent/internal/domain/entity"
)

const DefaultPrefix = "orchestra"

var _ output.RunArchive = (*Archive)(nil)

// Archive stores finished runs as Redis hashes at <prefix>:run:<id>, keeps the
// newest run ids in <prefix>:runs and publishes every saved record on
// <prefix>:run_events.
type Archive struct {
	rdb    *redis.Client
	prefix string
}

func New(opts *redis.Options, prefix string) *Archive {
	return NewWithClient(redis.NewClient(opts), prefix)
}

func NewWithClient(rdb *redis.Client, prefix string) *Archive {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Archive{rdb: rdb, prefix: prefix}
}

func (a *Archive) RunKey(runID string) string {
	return fmt.Sprintf("%s:run:%s", a.prefix, runID)
}

func (a *Archive) IndexKey() string {
	return a.prefix + ":runs"
}

func (a *Archive) EventsChannel() string {
	return a.prefix + ":run_events"
}

func (a *Archive) Ping(ctx context.Context) error {
	return a.rdb.Ping(ctx).Err()
}

func (a *Archive) Close() error {
	return a.rdb.Close()
}

func (a *Archive) Save(ctx context.Context, record *entity.RunRecord) error {
	if record == nil || record.RunID == "" {
		return fmt.Errorf("run record must have a run id")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize run record: %w", err)
	}

	hash := map[string]any{
		"objective":   record.Objective,
		"state":       string(record.State),
		"rounds":      record.Rounds,
		"finished_at": record.FinishedAt.UTC().Format(time.RFC3339Nano),
		"record":      string(payload),
	}

	pipe := a.rdb.TxPipeline()
	pipe.HSet(ctx, a.RunKey(record.RunID), hash)
	pipe.LRem(ctx, a.IndexKey(), 0, record.RunID)
	pipe.LPush(ctx, a.IndexKey(), record.RunID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write run record to Redis: %w", err)
	}

	if err := a.rdb.Publish(ctx, a.EventsChannel(), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish run event: %w", err)
	}
	return nil
}

// Load returns entity.ErrRunNotFound when no record exists for runID.
func (a *Archive) Load(ctx context.Context, runID string) (*entity.RunRecord, error) {
	raw, err := a.rdb.HGet(ctx, a.RunKey(runID), "record").Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run record from Redis: %w", err)
	}

	var record entity.RunRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("failed to deserialize run record: %w", err)
	}
	return &record, nil
}

// Recent lists archived run ids, newest first.
func (a *Archive) Recent(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := a.rdb.LRange(ctx, a.IndexKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return ids, nil
}

// Subscribe delivers records published by Save until ctx is cancelled.
func (a *Archive) Subscribe(ctx context.Context) (<-chan *entity.RunRecord, error) {
	sub := a.rdb.Subscribe(ctx, a.EventsChannel())
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to run events: %w", err)
	}

	out := make(chan *entity.RunRecord)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var record entity.RunRecord
				if err := json.Unmarshal([]byte(msg.Payload), &record); err != nil {
					continue
				}
				select {
				case out <- &record:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
