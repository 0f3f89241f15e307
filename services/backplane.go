package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/RipinDensumite/thinwatcher/models"
	"github.com/RipinDensumite/thinwatcher/utils"
)

const (
	clientKeyPrefix = "thinwatcher:client:"
	clientSetKey    = "thinwatcher:clients"
	eventsChannel   = "thinwatcher:events"

	backplaneTimeout = 2 * time.Second
	forwardQueueSize = 256
)

// Backplane mirrors the registry into Redis and relays events between
// server instances over Redis pub/sub. Local events are queued by Forward
// and written by a single goroutine started with Start.
type Backplane struct {
	redis      *redis.Client
	logger     *utils.Logger
	instanceID string
	queue      chan models.Event

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBackplane(redisClient *redis.Client, logger *utils.Logger) *Backplane {
	instanceID := uuid.NewString()
	return &Backplane{
		redis:      redisClient,
		logger:     logger.With("instance_id", instanceID),
		instanceID: instanceID,
		queue:      make(chan models.Event, forwardQueueSize),
	}
}

func (b *Backplane) InstanceID() string {
	return b.instanceID
}

// Forward queues a locally produced event for mirroring and publishing. It
// never blocks; when the queue is full the event is dropped and logged.
func (b *Backplane) Forward(event models.Event) {
	select {
	case b.queue <- event:
	default:
		b.logger.Warn("Backplane queue full, dropping event", "type", event.Type, "client_id", event.ClientID)
	}
}

// forwardLoop drains the queue in order. On shutdown it flushes whatever is
// still queued before returning.
func (b *Backplane) forwardLoop(ctx context.Context) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case event := <-b.queue:
					b.forward(event)
				default:
					return
				}
			}
		case event := <-b.queue:
			b.forward(event)
		}
	}
}

func (b *Backplane) forward(event models.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), backplaneTimeout)
	defer cancel()

	if err := b.mirror(ctx, event); err != nil {
		b.logger.Error("Failed to mirror event", "type", event.Type, "client_id", event.ClientID, "error", err)
	}
	if err := b.publish(ctx, event); err != nil {
		b.logger.Error("Failed to publish event", "type", event.Type, "client_id", event.ClientID, "error", err)
	}
}

func (b *Backplane) mirror(ctx context.Context, event models.Event) error {
	key := clientKeyPrefix + event.ClientID

	switch event.Type {
	case models.EventUpdate:
		if event.Status == nil {
			return nil
		}
		// Terminate markers travel only as relayed events
		status := *event.Status
		status.TerminateCommand = nil
		data, err := json.Marshal(status)
		if err != nil {
			return fmt.Errorf("failed to marshal client status: %w", err)
		}

		pipe := b.redis.Pipeline()
		pipe.Set(ctx, key, data, 0)
		pipe.SAdd(ctx, clientSetKey, event.ClientID)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to store client status: %w", err)
		}
	case models.EventClientRemoved:
		pipe := b.redis.Pipeline()
		pipe.Del(ctx, key)
		pipe.SRem(ctx, clientSetKey, event.ClientID)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to remove client status: %w", err)
		}
	}
	return nil
}

func (b *Backplane) publish(ctx context.Context, event models.Event) error {
	event.Origin = b.instanceID
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return b.redis.Publish(ctx, eventsChannel, data).Err()
}

// Load returns every mirrored client record.
func (b *Backplane) Load(ctx context.Context) ([]models.ClientEntry, error) {
	clientIDs, err := b.redis.SMembers(ctx, clientSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list mirrored clients: %w", err)
	}
	if len(clientIDs) == 0 {
		return []models.ClientEntry{}, nil
	}

	// Get all records in one pipeline
	pipe := b.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(clientIDs))
	for i, id := range clientIDs {
		cmds[i] = pipe.Get(ctx, clientKeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load mirrored clients: %w", err)
	}

	entries := make([]models.ClientEntry, 0, len(clientIDs))
	var orphaned []interface{}
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				orphaned = append(orphaned, clientIDs[i])
				continue
			}
			b.logger.Error("Failed to load client", "client_id", clientIDs[i], "error", err)
			continue
		}

		var status models.ClientStatus
		if err := json.Unmarshal(data, &status); err != nil {
			b.logger.Error("Failed to decode client", "client_id", clientIDs[i], "error", err)
			continue
		}
		entries = append(entries, models.ClientEntry{ClientID: clientIDs[i], Status: status})
	}

	// Drop set members whose record is gone
	if len(orphaned) > 0 {
		b.redis.SRem(ctx, clientSetKey, orphaned...)
	}

	return entries, nil
}

// Start subscribes to the events channel and calls apply for every event
// published by another instance, and starts draining the Forward queue. It
// returns once the subscription is active.
func (b *Backplane) Start(ctx context.Context, apply func(models.Event)) error {
	ctx, cancel := context.WithCancel(ctx)

	pubsub := b.redis.Subscribe(ctx, eventsChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", eventsChannel, err)
	}
	b.cancel = cancel

	b.wg.Add(2)
	go b.listen(ctx, pubsub, apply)
	go b.forwardLoop(ctx)

	b.logger.Info("Backplane listening", "channel", eventsChannel)
	return nil
}

func (b *Backplane) listen(ctx context.Context, pubsub *redis.PubSub, apply func(models.Event)) {
	defer b.wg.Done()
	defer pubsub.Close()

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			var event models.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Error("Failed to parse backplane event", "error", err)
				continue
			}
			if event.Origin == b.instanceID {
				continue
			}
			apply(event)
		}
	}
}

// Stop ends the subscription, flushes queued events and waits for both
// goroutines to exit.
func (b *Backplane) Stop() {
	if b.cancel == nil {
		return
	}
	b.cancel()
	b.wg.Wait()
	b.cancel = nil
}
