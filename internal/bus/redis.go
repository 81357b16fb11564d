package bus

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	mirrorerrors "docmirror/pkg/errors"
)

// Stream entry field names. The envelope travels opaque in "body"; the
// rest is routing metadata so subscriptions can filter without parsing
// the payload.
const (
	fieldBody          = "body"
	fieldContentType   = "content_type"
	fieldSubject       = "subject"
	fieldMessageID     = "message_id"
	fieldCorrelationID = "correlation_id"
)

// Config connects the Redis-backed bus. LockDuration is how long a
// received message stays invisible to other consumers before the
// pending-entry reclaim makes it deliverable again.
type Config struct {
	Addr         string
	Password     string
	DB           int
	LockDuration time.Duration
}

// RedisClient implements Client on Redis Streams: a topic is a stream,
// a subscription is a consumer group, and the group's pending-entries
// list provides the peek-lock.
type RedisClient struct {
	rdb    *redis.Client
	cfg    Config
	log    *zap.Logger
	closed atomic.Bool
}

func NewRedisClient(cfg Config, log *zap.Logger) *RedisClient {
	if cfg.LockDuration <= 0 {
		cfg.LockDuration = 30 * time.Second
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisClient{rdb: rdb, cfg: cfg, log: log}
}

// Ping verifies the connection; callers treat a failure as fatal.
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisClient) NewSender(topic string) (Sender, error) {
	return &redisSender{rdb: c.rdb, stream: topic}, nil
}

func (c *RedisClient) NewReceiver(topic, subscription, consumer string) (Receiver, error) {
	return &redisReceiver{
		rdb:      c.rdb,
		stream:   topic,
		group:    subscription,
		consumer: consumer,
		minIdle:  c.cfg.LockDuration,
		log:      c.log,
	}, nil
}

// EnsureSubscription creates the consumer group (and the stream when it
// does not exist yet), tolerating a group that is already there.
func (c *RedisClient) EnsureSubscription(ctx context.Context, topic, subscription string) error {
	err := c.rdb.XGroupCreateMkStream(ctx, topic, subscription, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (c *RedisClient) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.rdb.Close()
}

type redisSender struct {
	rdb    *redis.Client
	stream string
	closed atomic.Bool
}

func (s *redisSender) Send(ctx context.Context, msg Message) error {
	if s.closed.Load() {
		return mirrorerrors.ErrNotConnected
	}
	values := map[string]any{
		fieldBody:          string(msg.Body),
		fieldContentType:   msg.ContentType,
		fieldSubject:       msg.Subject,
		fieldMessageID:     msg.MessageID,
		fieldCorrelationID: msg.CorrelationID,
	}
	for k, v := range msg.Properties {
		values[k] = v
	}
	return s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: values,
	}).Err()
}

func (s *redisSender) Close() error {
	s.closed.Store(true)
	return nil
}

type redisReceiver struct {
	rdb      *redis.Client
	stream   string
	group    string
	consumer string
	minIdle  time.Duration
	log      *zap.Logger
	closed   atomic.Bool
}

// Receive first reclaims messages whose lock lapsed on another (or a
// previous) consumer, then long-polls the group for new entries.
func (r *redisReceiver) Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error) {
	if r.closed.Load() {
		return nil, mirrorerrors.ErrNotConnected
	}
	claimed, _, err := r.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   r.stream,
		Group:    r.group,
		Consumer: r.consumer,
		MinIdle:  r.minIdle,
		Start:    "0-0",
		Count:    int64(max),
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	if len(claimed) > 0 {
		return toMessages(claimed), nil
	}

	streams, err := r.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, ">"},
		Count:    int64(max),
		Block:    wait,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Message
	for _, st := range streams {
		out = append(out, toMessages(st.Messages)...)
	}
	return out, nil
}

func (r *redisReceiver) Complete(ctx context.Context, msg Message) error {
	return r.rdb.XAck(ctx, r.stream, r.group, msg.ReceiptID).Err()
}

// Abandon leaves the entry in the pending list; it becomes deliverable
// again once the lock duration lapses. Max-delivery and dead-letter
// policy stay with the bus, not with this code.
func (r *redisReceiver) Abandon(_ context.Context, msg Message) error {
	r.log.Debug("abandoned message for redelivery",
		zap.String("receipt_id", msg.ReceiptID),
		zap.String("message_id", msg.MessageID))
	return nil
}

func (r *redisReceiver) Close() error {
	r.closed.Store(true)
	return nil
}

func toMessages(entries []redis.XMessage) []Message {
	out := make([]Message, 0, len(entries))
	for _, e := range entries {
		m := Message{ReceiptID: e.ID, Properties: map[string]string{}}
		for k, v := range e.Values {
			s, _ := v.(string)
			switch k {
			case fieldBody:
				m.Body = []byte(s)
			case fieldContentType:
				m.ContentType = s
			case fieldSubject:
				m.Subject = s
			case fieldMessageID:
				m.MessageID = s
			case fieldCorrelationID:
				m.CorrelationID = s
			default:
				m.Properties[k] = s
			}
		}
		out = append(out, m)
	}
	return out
}
