package queries

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/GideonBature/nodegaze-sub000/db"
)

// maxEventPageSize caps event listings regardless of what the caller asks
// for.
const maxEventPageSize = 1000

const defaultEventPageSize = 50

// CreateEvent inserts one event row. Data that is not valid JSON is stored
// as an empty object rather than poisoning the row.
func CreateEvent(tx *gorm.DB, event *db.Event) error {
	if event.ReferenceId == "" {
		event.ReferenceId = uuid.NewString()
	}
	if !json.Valid(event.Data) {
		event.Data = datatypes.JSON([]byte("{}"))
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return tx.Create(event).Error
}

type EventFilter struct {
	AccountId uint
	EventType string
	Severity  string
	NodeId    *uint
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// ListEvents returns the account's events newest first, with optional
// type, severity, node and time-range filters.
func ListEvents(tx *gorm.DB, filter EventFilter) ([]db.Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultEventPageSize
	}
	if limit > maxEventPageSize {
		limit = maxEventPageSize
	}

	query := tx.Model(&db.Event{}).Where("account_id = ?", filter.AccountId)
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.NodeId != nil {
		query = query.Where("node_id = ?", *filter.NodeId)
	}
	if filter.From != nil {
		query = query.Where("timestamp >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("timestamp <= ?", *filter.To)
	}

	var events []db.Event
	err := query.
		Order("timestamp DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&events).Error
	return events, err
}

// GetEvent fetches one event scoped to the account.
func GetEvent(tx *gorm.DB, accountId uint, eventId uint) (*db.Event, error) {
	var event db.Event
	err := tx.Where("account_id = ?", accountId).First(&event, eventId).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// DeleteEvent soft-deletes one event scoped to the account.
func DeleteEvent(tx *gorm.DB, accountId uint, eventId uint) error {
	return tx.Where("account_id = ?", accountId).Delete(&db.Event{}, eventId).Error
}
