package events

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/GideonBature/nodegaze-sub000/lnclient"
	"github.com/GideonBature/nodegaze-sub000/logger"
)

// collectorBufferSize bounds how far event producers may run ahead of the
// consumer. Once full, node streams block instead of dropping events.
const collectorBufferSize = 32

// Collector merges the event streams of every connected node into one
// bounded channel.
type Collector struct {
	events chan NodeEvent
	logger zerolog.Logger
}

func NewCollector() *Collector {
	return &Collector{
		events: make(chan NodeEvent, collectorBufferSize),
		logger: logger.Logger.With().Str("component", "collector").Logger(),
	}
}

// Events is the merged stream consumed by the event service.
func (c *Collector) Events() <-chan NodeEvent {
	return c.events
}

// NodeMeta identifies the node a stream belongs to.
type NodeMeta struct {
	AccountId uint
	UserId    uint
	NodeId    uint
	Pubkey    string
	Alias     string
}

// Collect subscribes to the node's event stream and forwards every raw
// event, tagged with the node's identity, into the shared channel. The
// forwarding goroutine exits when the stream ends or ctx is cancelled.
func (c *Collector) Collect(ctx context.Context, meta NodeMeta, client lnclient.LNClient) error {
	raw, err := client.StreamEvents(ctx)
	if err != nil {
		c.logger.Error().Err(err).
			Str("node", meta.Pubkey).
			Msg("Failed to start event stream")
		return err
	}

	go func() {
		for event := range raw {
			select {
			case c.events <- NodeEvent{
				AccountId:  meta.AccountId,
				UserId:     meta.UserId,
				NodeId:     meta.NodeId,
				NodePubkey: meta.Pubkey,
				NodeAlias:  meta.Alias,
				Raw:        event,
			}:
			case <-ctx.Done():
				c.logger.Info().
					Str("node", meta.Pubkey).
					Msg("Event consumer gone, stopping collection")
				return
			}
		}
		c.logger.Info().
			Str("node", meta.Pubkey).
			Msg("Event stream ended")
	}()

	return nil
}
