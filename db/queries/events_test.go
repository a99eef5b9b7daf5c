package queries

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/GideonBature/nodegaze-sub000/constants"
	"github.com/GideonBature/nodegaze-sub000/db"
	"github.com/GideonBature/nodegaze-sub000/db/migrations"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migrations.Migrate(gormDB))
	return gormDB
}

func seedNode(t *testing.T, gormDB *gorm.DB) db.Node {
	t.Helper()
	account := db.Account{Name: "test-account-" + t.Name()}
	require.NoError(t, CreateAccount(gormDB, &account))
	node := db.Node{
		AccountId: account.ID,
		Alias:     "carol",
		Pubkey:    "02aa",
		NodeType:  "LND",
		Address:   "localhost:10009",
		IsActive:  true,
	}
	require.NoError(t, CreateNode(gormDB, &node))
	return node
}

func TestCreateEventSanitizesData(t *testing.T) {
	gormDB := setupDB(t)
	node := seedNode(t, gormDB)

	event := db.Event{
		AccountId: node.AccountId,
		NodeId:    node.ID,
		EventType: constants.EVENT_TYPE_INVOICE_SETTLED,
		Severity:  constants.SEVERITY_INFO,
		Title:     "Invoice Settled",
		Data:      datatypes.JSON([]byte("{not json")),
	}
	require.NoError(t, CreateEvent(gormDB, &event))

	stored, err := GetEvent(gormDB, node.AccountId, event.ID)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(stored.Data))
	assert.False(t, stored.Timestamp.IsZero())
}

func TestListEventsFiltersAndOrder(t *testing.T) {
	gormDB := setupDB(t)
	node := seedNode(t, gormDB)

	base := time.Now().Add(-1 * time.Hour)
	for i := 0; i < 5; i++ {
		eventType := constants.EVENT_TYPE_INVOICE_SETTLED
		severity := constants.SEVERITY_INFO
		if i%2 == 1 {
			eventType = constants.EVENT_TYPE_CHANNEL_CLOSED
			severity = constants.SEVERITY_WARNING
		}
		require.NoError(t, CreateEvent(gormDB, &db.Event{
			AccountId: node.AccountId,
			NodeId:    node.ID,
			EventType: eventType,
			Severity:  severity,
			Data:      datatypes.JSON([]byte("{}")),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := ListEvents(gormDB, EventFilter{AccountId: node.AccountId})
	require.NoError(t, err)
	require.Len(t, all, 5)
	// newest first
	for i := 1; i < len(all); i++ {
		assert.True(t, !all[i-1].Timestamp.Before(all[i].Timestamp))
	}

	closed, err := ListEvents(gormDB, EventFilter{
		AccountId: node.AccountId,
		EventType: constants.EVENT_TYPE_CHANNEL_CLOSED,
	})
	require.NoError(t, err)
	assert.Len(t, closed, 2)

	warnings, err := ListEvents(gormDB, EventFilter{
		AccountId: node.AccountId,
		Severity:  constants.SEVERITY_WARNING,
	})
	require.NoError(t, err)
	assert.Len(t, warnings, 2)

	from := base.Add(3 * time.Minute)
	recent, err := ListEvents(gormDB, EventFilter{
		AccountId: node.AccountId,
		From:      &from,
	})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	paged, err := ListEvents(gormDB, EventFilter{
		AccountId: node.AccountId,
		Limit:     2,
		Offset:    4,
	})
	require.NoError(t, err)
	assert.Len(t, paged, 1)
}

func TestListEventsCapsLimit(t *testing.T) {
	assert.Equal(t, 1000, maxEventPageSize)

	gormDB := setupDB(t)
	node := seedNode(t, gormDB)

	require.NoError(t, CreateEvent(gormDB, &db.Event{
		AccountId: node.AccountId,
		NodeId:    node.ID,
		EventType: constants.EVENT_TYPE_INVOICE_SETTLED,
		Severity:  constants.SEVERITY_INFO,
		Data:      datatypes.JSON([]byte("{}")),
	}))

	// an absurd limit must not error, just clamp
	events, err := ListEvents(gormDB, EventFilter{AccountId: node.AccountId, Limit: 1 << 30})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestDeleteEventHidesFromListing(t *testing.T) {
	gormDB := setupDB(t)
	node := seedNode(t, gormDB)

	event := db.Event{
		AccountId: node.AccountId,
		NodeId:    node.ID,
		EventType: constants.EVENT_TYPE_CHANNEL_OPENED,
		Severity:  constants.SEVERITY_INFO,
		Data:      datatypes.JSON([]byte("{}")),
	}
	require.NoError(t, CreateEvent(gormDB, &event))
	require.NoError(t, DeleteEvent(gormDB, node.AccountId, event.ID))

	events, err := ListEvents(gormDB, EventFilter{AccountId: node.AccountId})
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = GetEvent(gormDB, node.AccountId, event.ID)
	assert.Error(t, err)
}

func TestActiveNotificationsOnly(t *testing.T) {
	gormDB := setupDB(t)
	node := seedNode(t, gormDB)

	active := db.Notification{
		AccountId:        node.AccountId,
		Name:             "ops",
		NotificationType: constants.NOTIFICATION_TYPE_WEBHOOK,
		Url:              "https://example.com/hook",
		IsActive:         true,
	}
	inactive := db.Notification{
		AccountId:        node.AccountId,
		Name:             "muted",
		NotificationType: constants.NOTIFICATION_TYPE_DISCORD,
		Url:              "https://discord.com/api/webhooks/1/x",
		IsActive:         false,
	}
	require.NoError(t, CreateNotification(gormDB, &active))
	require.NoError(t, CreateNotification(gormDB, &inactive))

	notifications, err := GetActiveNotificationsByAccountID(gormDB, node.AccountId)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, "ops", notifications[0].Name)
}
