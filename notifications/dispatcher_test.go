package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GideonBature/nodegaze-sub000/constants"
	"github.com/GideonBature/nodegaze-sub000/db"
	"github.com/GideonBature/nodegaze-sub000/lnclient"
)

func testPayload() Payload {
	return Payload{
		EventId:     "42",
		Timestamp:   "2026-01-02T03:04:05Z",
		EventType:   constants.EVENT_TYPE_CHANNEL_CLOSED,
		Severity:    constants.SEVERITY_WARNING,
		Title:       "Channel Closed",
		Description: "Channel with 03bb closed",
		NodeId:      "02aa000000000000",
		NodeAlias:   "carol",
		Data:        map[string]interface{}{"chan_id": 123},
	}
}

// logSink collects log lines from concurrent dispatcher workers.
type logSink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *logSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *logSink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestDispatchIsolatesFailingEndpoints(t *testing.T) {
	var delivered atomic.Int64
	okServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload Payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "42", payload.EventId)
		delivered.Add(1)
	}))
	defer okServer.Close()

	failServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failServer.Close()

	dispatcher := NewDispatcher(2)
	sink := &logSink{}
	dispatcher.logger = zerolog.New(sink)
	for _, url := range []string{failServer.URL, okServer.URL, okServer.URL} {
		dispatcher.Enqueue(db.Notification{
			Name:             "endpoint",
			NotificationType: constants.NOTIFICATION_TYPE_WEBHOOK,
			Url:              url,
		}, testPayload())
	}
	dispatcher.Shutdown()

	// the failing endpoint must not prevent the other deliveries
	assert.Equal(t, int64(2), delivered.Load())

	// each outcome is logged: one failure, one success per delivery
	logged := sink.String()
	assert.Equal(t, 1, strings.Count(logged, "Failed to deliver notification"))
	assert.Equal(t, 2, strings.Count(logged, "Notification delivered"))
}

func TestWebhookPayloadFields(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
	}))
	defer server.Close()

	dispatcher := NewDispatcher(1)
	dispatcher.Enqueue(db.Notification{
		NotificationType: constants.NOTIFICATION_TYPE_WEBHOOK,
		Url:              server.URL,
	}, testPayload())
	dispatcher.Shutdown()

	for _, field := range []string{"event_id", "timestamp", "event_type", "severity", "title", "description", "node_id", "node_alias", "data"} {
		assert.Contains(t, received, field)
	}
}

func TestDiscordMessageFromPayload(t *testing.T) {
	message := discordMessageFromPayload(testPayload())
	require.Len(t, message.Embeds, 1)
	embed := message.Embeds[0]
	assert.Equal(t, discordColorWarning, embed.Color)
	assert.Equal(t, "Channel Closed", embed.Title)
	require.Len(t, embed.Fields, 3)
	assert.Equal(t, "Event Type", embed.Fields[0].Name)
	assert.Equal(t, constants.EVENT_TYPE_CHANNEL_CLOSED, embed.Fields[0].Value)
	assert.Equal(t, "Severity", embed.Fields[1].Name)
	// alias plus truncated node id
	assert.Equal(t, "Node", embed.Fields[2].Name)
	assert.Equal(t, "carol (02aa0000)", embed.Fields[2].Value)
	assert.Equal(t, "NodeGaze Lightning Monitor", embed.Footer.Text)

	noAlias := testPayload()
	noAlias.NodeAlias = ""
	noAlias.Severity = constants.SEVERITY_CRITICAL
	message = discordMessageFromPayload(noAlias)
	assert.Equal(t, discordColorCritical, message.Embeds[0].Color)
	assert.Equal(t, "02aa000000000000", message.Embeds[0].Fields[2].Value)
}

func TestValidateEndpoint(t *testing.T) {
	ctx := context.Background()

	err := ValidateEndpoint(ctx, db.Notification{
		NotificationType: constants.NOTIFICATION_TYPE_DISCORD,
		Url:              "https://discord.com/api/webhooks/123/token",
	})
	assert.NoError(t, err)

	err = ValidateEndpoint(ctx, db.Notification{
		NotificationType: constants.NOTIFICATION_TYPE_DISCORD,
		Url:              "https://example.com/not-discord",
	})
	require.Error(t, err)
	assert.True(t, lnclient.IsKind(err, lnclient.ErrKindValidation))

	var pinged atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ping pingPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ping))
		assert.Equal(t, "Ping", ping.Event)
		pinged.Store(true)
	}))
	defer server.Close()

	err = ValidateEndpoint(ctx, db.Notification{
		NotificationType: constants.NOTIFICATION_TYPE_WEBHOOK,
		Url:              server.URL,
	})
	assert.NoError(t, err)
	assert.True(t, pinged.Load())

	badServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer badServer.Close()

	err = ValidateEndpoint(ctx, db.Notification{
		NotificationType: constants.NOTIFICATION_TYPE_WEBHOOK,
		Url:              badServer.URL,
	})
	require.Error(t, err)
	assert.True(t, lnclient.IsKind(err, lnclient.ErrKindValidation))
}
