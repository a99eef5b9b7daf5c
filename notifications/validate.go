package notifications

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/GideonBature/nodegaze-sub000/constants"
	"github.com/GideonBature/nodegaze-sub000/db"
	"github.com/GideonBature/nodegaze-sub000/lnclient"
)

const pingTimeout = 5 * time.Second

type pingPayload struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
}

// ValidateEndpoint checks a notification endpoint before it is saved.
// Discord URLs are checked structurally; plain webhooks must answer a
// ping with a 2xx.
func ValidateEndpoint(ctx context.Context, notification db.Notification) error {
	switch notification.NotificationType {
	case constants.NOTIFICATION_TYPE_DISCORD:
		if !strings.Contains(notification.Url, "discord.com/api/webhooks/") {
			return lnclient.ValidationError("invalid discord webhook url")
		}
		return nil
	case constants.NOTIFICATION_TYPE_WEBHOOK:
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()

		err := postJSON(pingCtx, &http.Client{Timeout: pingTimeout}, notification.Url, pingPayload{
			Event:     "Ping",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return lnclient.ValidationError("webhook endpoint did not accept ping: %s", err)
		}
		return nil
	}
	return lnclient.ValidationError("unknown notification type %q", notification.NotificationType)
}
