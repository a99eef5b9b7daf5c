// Package notifications delivers events to external endpoints: plain
// webhooks and Discord webhooks. Deliveries run on a worker pool so one
// slow endpoint cannot stall the rest.
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/GideonBature/nodegaze-sub000/constants"
	"github.com/GideonBature/nodegaze-sub000/db"
	"github.com/GideonBature/nodegaze-sub000/logger"
)

const (
	deliveryTimeout = 10 * time.Second
	queueSize       = 256
	defaultWorkers  = 4
)

// Payload is the JSON body sent to webhook endpoints.
type Payload struct {
	EventId     string      `json:"event_id"`
	Timestamp   string      `json:"timestamp"`
	EventType   string      `json:"event_type"`
	Severity    string      `json:"severity"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	NodeId      string      `json:"node_id"`
	NodeAlias   string      `json:"node_alias"`
	Data        interface{} `json:"data"`
}

type job struct {
	notification db.Notification
	payload      Payload
}

// Dispatcher fans events out to notification endpoints through a bounded
// work queue.
type Dispatcher struct {
	queue      chan job
	httpClient *http.Client
	logger     zerolog.Logger
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

func NewDispatcher(workers int) *Dispatcher {
	if workers <= 0 {
		workers = defaultWorkers
	}
	d := &Dispatcher{
		queue:      make(chan job, queueSize),
		httpClient: &http.Client{Timeout: deliveryTimeout},
		logger:     logger.Logger.With().Str("component", "dispatcher").Logger(),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Enqueue queues one delivery. It blocks when the queue is full rather
// than dropping the notification.
func (d *Dispatcher) Enqueue(notification db.Notification, payload Payload) {
	d.queue <- job{notification: notification, payload: payload}
}

// Shutdown stops accepting work and waits for in-flight deliveries.
func (d *Dispatcher) Shutdown() {
	d.closeOnce.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		if err := d.deliver(j); err != nil {
			// endpoint failures are isolated: log and move on
			d.logger.Error().Err(err).
				Str("notification", j.notification.Name).
				Str("type", j.notification.NotificationType).
				Msg("Failed to deliver notification")
			continue
		}
		d.logger.Info().
			Str("notification", j.notification.Name).
			Str("type", j.notification.NotificationType).
			Msg("Notification delivered")
	}
}

func (d *Dispatcher) deliver(j job) error {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	var body interface{}
	switch j.notification.NotificationType {
	case constants.NOTIFICATION_TYPE_DISCORD:
		body = discordMessageFromPayload(j.payload)
	default:
		body = j.payload
	}

	return postJSON(ctx, d.httpClient, j.notification.Url, body)
}

func postJSON(ctx context.Context, client *http.Client, url string, body interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned HTTP %d", resp.StatusCode)
	}
	return nil
}
