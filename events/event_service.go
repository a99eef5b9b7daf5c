package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/GideonBature/nodegaze-sub000/db"
	"github.com/GideonBature/nodegaze-sub000/db/queries"
	"github.com/GideonBature/nodegaze-sub000/logger"
	"github.com/GideonBature/nodegaze-sub000/notifications"
)

// EventService drains the collector, normalizes each raw event, persists
// it and hands deliveries to the dispatcher.
type EventService struct {
	db         *gorm.DB
	collector  *Collector
	dispatcher *notifications.Dispatcher
	logger     zerolog.Logger
}

func NewEventService(gormDB *gorm.DB, collector *Collector, dispatcher *notifications.Dispatcher) *EventService {
	return &EventService{
		db:         gormDB,
		collector:  collector,
		dispatcher: dispatcher,
		logger:     logger.Logger.With().Str("component", "event_service").Logger(),
	}
}

// Run consumes events until ctx is cancelled.
func (s *EventService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Event service stopping")
			return
		case event, ok := <-s.collector.Events():
			if !ok {
				s.logger.Info().Msg("Collector channel closed, event service stopping")
				return
			}
			s.Handle(event)
		}
	}
}

// Handle processes one node event: transform, persist one row per active
// notification (or a single bare row when there are none) and enqueue the
// deliveries.
func (s *EventService) Handle(nodeEvent NodeEvent) {
	canonical := Transform(nodeEvent.Raw)
	canonical.Timestamp = time.Now()

	data, err := json.Marshal(canonical.Data)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode event data")
		data = []byte("{}")
	}

	activeNotifications, err := queries.GetActiveNotificationsByAccountID(s.db, nodeEvent.AccountId)
	if err != nil {
		s.logger.Error().Err(err).
			Uint("account_id", nodeEvent.AccountId).
			Msg("Failed to load notifications")
		activeNotifications = nil
	}

	if len(activeNotifications) == 0 {
		if err := queries.CreateEvent(s.db, s.newRow(nodeEvent, canonical, data, nil)); err != nil {
			s.logger.Error().Err(err).Msg("Failed to persist event")
		}
		return
	}

	for _, notification := range activeNotifications {
		notificationId := notification.ID
		row := s.newRow(nodeEvent, canonical, data, &notificationId)
		if err := queries.CreateEvent(s.db, row); err != nil {
			s.logger.Error().Err(err).
				Str("notification", notification.Name).
				Msg("Failed to persist event")
			continue
		}

		s.dispatcher.Enqueue(notification, notifications.Payload{
			EventId:     row.ReferenceId,
			Timestamp:   canonical.Timestamp.UTC().Format(time.RFC3339),
			EventType:   canonical.EventType,
			Severity:    canonical.Severity,
			Title:       canonical.Title,
			Description: canonical.Description,
			NodeId:      nodeEvent.NodePubkey,
			NodeAlias:   nodeEvent.NodeAlias,
			Data:        canonical.Data,
		})
	}
}

func (s *EventService) newRow(nodeEvent NodeEvent, canonical Event, data []byte, notificationId *uint) *db.Event {
	return &db.Event{
		AccountId:      nodeEvent.AccountId,
		UserId:         nodeEvent.UserId,
		NodeId:         nodeEvent.NodeId,
		NotificationId: notificationId,
		EventType:      canonical.EventType,
		Severity:       canonical.Severity,
		Title:          canonical.Title,
		Description:    canonical.Description,
		NodePubkey:     nodeEvent.NodePubkey,
		NodeAlias:      nodeEvent.NodeAlias,
		Data:           datatypes.JSON(data),
		Timestamp:      canonical.Timestamp,
	}
}
