// Package auditarchive files every moderation event away as an
// immutable JSON object, one per event, so the audit trail survives
// independently of the stores that produced it.
package auditarchive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"guardian-core/internal/eventbus"
	"guardian-core/internal/minio"
)

const consumerGroup = "audit-archive"

type Config struct {
	Bucket string
}

// Service consumes the moderation event stream and archives it.
type Service struct {
	client minio.ClientInterface
	bus    *eventbus.EventBus
	bucket string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(cfg Config, client minio.ClientInterface, bus *eventbus.EventBus) *Service {
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "guardian-audit"
	}
	return &Service{
		client: client,
		bus:    bus,
		bucket: bucket,
	}
}

func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.bus.Subscribe(ctx, eventbus.TopicModerationEvents, consumerGroup, func(event eventbus.Event) {
			if err := s.Archive(context.Background(), event); err != nil {
				log.Printf("Failed to archive event %s: %v", event.EventID, err)
			}
		})
	}()
	log.Println("Audit archive service started")
}

func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	log.Println("Audit archive service stopped")
}

// Archive writes one event under a date-partitioned key. The event id
// in the key makes redelivery idempotent: the same event overwrites
// itself.
func (s *Service) Archive(ctx context.Context, event eventbus.Event) error {
	if event.EventID == "" {
		return fmt.Errorf("event missing event_id")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.EventID, err)
	}

	key := archiveKey(event)
	if err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("failed to store event %s: %w", event.EventID, err)
	}
	return nil
}

// EventsOn lists the archived events of one day, newest first.
func (s *Service) EventsOn(ctx context.Context, day string) ([]eventbus.Event, error) {
	objects, err := s.client.ListObjects(ctx, s.bucket, "audit/"+day+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list archive for %s: %w", day, err)
	}

	var events []eventbus.Event
	for _, object := range objects {
		data, err := s.client.GetObject(ctx, s.bucket, object.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", object.Key, err)
		}
		var event eventbus.Event
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", object.Key, err)
		}
		events = append(events, event)
	}
	return events, nil
}

func archiveKey(event eventbus.Event) string {
	return fmt.Sprintf("audit/%s/%s.json", event.Timestamp.UTC().Format("2006-01-02"), event.EventID)
}
