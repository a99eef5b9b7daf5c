// Package events turns raw backend events into normalized, persisted,
// dispatched events: the collector pulls them off node streams, the
// transformer maps them to the canonical shape and the event service
// stores and fans them out.
package events

import (
	"time"

	"github.com/GideonBature/nodegaze-sub000/lnclient"
)

// Event is the canonical, backend-independent form of a node event.
type Event struct {
	EventType   string                 `json:"event_type"`
	Severity    string                 `json:"severity"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data"`
	Timestamp   time.Time              `json:"timestamp"`
}

// NodeEvent is a raw event tagged with the node it came from.
type NodeEvent struct {
	AccountId  uint
	UserId     uint
	NodeId     uint
	NodePubkey string
	NodeAlias  string
	Raw        lnclient.RawEvent
}
