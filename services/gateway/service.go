// Package gateway is the observer-facing edge: it folds the session
// event stream into the presence registry, relays moderation events,
// and serves both over HTTP and WebSocket.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"guardian-core/internal/config"
	"guardian-core/internal/eventbus"
	"guardian-core/internal/player"
	"guardian-core/internal/schema"
	"guardian-core/services/broadcast"
	"guardian-core/services/presence"
)

const (
	// Broadcast channels served over WebSocket.
	ChannelPresence   = "presence"
	ChannelModeration = "moderation"

	consumerGroup = "gateway"
)

type Config struct {
	HTTPAddr string
}

// Service wires the session stream, presence registry, broadcaster and
// HTTP surface together.
type Service struct {
	config      Config
	registry    *presence.Registry
	broadcaster *broadcast.Broadcaster
	bus         *eventbus.EventBus
	validator   *schema.Validator
	profiles    *config.Store
	httpServer  *HTTPServer
	dropped     atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates the gateway. profiles may be nil, in which case
// every channel runs on config.DefaultProfile.
func NewService(cfg Config, bus *eventbus.EventBus, profiles *config.Store) (*Service, error) {
	schema.RegisterCustomFormats()
	validator, err := schema.NewValidator([]byte(sessionEventSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to build session event validator: %w", err)
	}

	service := &Service{
		config:      cfg,
		registry:    presence.NewRegistry(),
		broadcaster: broadcast.New(),
		bus:         bus,
		validator:   validator,
		profiles:    profiles,
	}
	service.httpServer = NewHTTPServer(cfg.HTTPAddr)
	service.httpServer.RegisterRoutes(service)
	return service, nil
}

// Registry exposes the presence registry, e.g. for tests.
func (s *Service) Registry() *presence.Registry {
	return s.registry
}

// DroppedEvents reports how many inbound session events were rejected
// as malformed since startup.
func (s *Service) DroppedEvents() int64 {
	return s.dropped.Load()
}

// Broadcaster exposes the broadcaster for collaborating producers.
func (s *Service) Broadcaster() *broadcast.Broadcaster {
	return s.broadcaster
}

func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	if s.bus != nil {
		s.wg.Add(2)
		go func() {
			defer s.wg.Done()
			s.bus.Subscribe(ctx, eventbus.TopicSessionEvents, consumerGroup, s.handleSessionEvent)
		}()
		go func() {
			defer s.wg.Done()
			s.bus.Subscribe(ctx, eventbus.TopicModerationEvents, consumerGroup, s.handleModerationEvent)
		}()
	}

	s.httpServer.Start()
	log.Println("Gateway service started")
}

func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.httpServer.Stop()
	s.broadcaster.Close()
	s.wg.Wait()
	log.Println("Gateway service stopped")
}

// handleSessionEvent validates one session transition and folds it
// into the registry. Only transitions that actually change state are
// broadcast.
func (s *Service) handleSessionEvent(event eventbus.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal session event %s: %v", event.EventID, err)
		return
	}
	if err := s.validator.ValidateBytes(data); err != nil {
		log.Printf("Dropping invalid session event %s (%d dropped so far): %v",
			event.EventID, s.dropped.Add(1), err)
		return
	}

	change, err := changeFromEvent(event)
	if err != nil {
		log.Printf("Dropping session event %s (%d dropped so far): %v",
			event.EventID, s.dropped.Add(1), err)
		return
	}

	if !s.registry.ApplyChange(change) {
		return
	}
	entry, ok := s.registry.Get(change.Player.ID)
	if !ok {
		return
	}

	frame, err := json.Marshal(map[string]interface{}{
		"type":  "presence",
		"entry": entry,
	})
	if err != nil {
		log.Printf("Failed to marshal presence frame for %s: %v", change.Player.ID, err)
		return
	}
	s.broadcaster.Publish(ChannelPresence, frame)
}

// handleModerationEvent relays ban lifecycle events to dashboard
// subscribers verbatim.
func (s *Service) handleModerationEvent(event eventbus.Event) {
	frame, err := json.Marshal(map[string]interface{}{
		"type":  "moderation",
		"event": event,
	})
	if err != nil {
		log.Printf("Failed to marshal moderation frame %s: %v", event.EventID, err)
		return
	}
	s.broadcaster.Publish(ChannelModeration, frame)
}

// changeFromEvent maps a validated session event onto a presence
// change.
func changeFromEvent(event eventbus.Event) (presence.Change, error) {
	ref, err := player.NewRef(event.PlayerID, stringField(event.Payload, "player_name"))
	if err != nil {
		return presence.Change{}, err
	}

	change := presence.Change{
		Player:     ref,
		LastActive: event.Timestamp,
	}
	if server := stringField(event.Payload, "server"); server != "" {
		change.Server = &server
	}
	if client := stringField(event.Payload, "client"); client != "" {
		change.Client = &client
	}
	if clients, ok := event.Payload["clients"].([]interface{}); ok {
		for _, c := range clients {
			if name, ok := c.(string); ok {
				change.Clients = append(change.Clients, name)
			}
		}
	}

	stamp := &presence.Stamp{At: event.Timestamp}
	if change.Client != nil {
		stamp.Client = *change.Client
	}
	switch event.EventType {
	case eventbus.EventSessionJoin:
		change.Online = true
		change.LastJoin = stamp
	case eventbus.EventSessionSwitch:
		change.Online = true
	case eventbus.EventSessionLeave:
		change.Online = false
		change.LastLeave = stamp
	default:
		return presence.Change{}, fmt.Errorf("unsupported session event type %q", event.EventType)
	}
	return change, nil
}

func stringField(payload map[string]interface{}, key string) string {
	value, _ := payload[key].(string)
	return value
}

// profileFor resolves the delivery profile for a channel, falling back
// to the defaults when the store is absent or failing.
func (s *Service) profileFor(ctx context.Context, channel string) config.Profile {
	if s.profiles == nil {
		return config.DefaultProfile
	}
	profile, err := s.profiles.GetProfile(ctx, channel)
	if err != nil {
		log.Printf("Falling back to default profile for %s: %v", channel, err)
		return config.DefaultProfile
	}
	return *profile
}
