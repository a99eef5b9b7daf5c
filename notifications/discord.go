package notifications

import (
	"fmt"

	"github.com/GideonBature/nodegaze-sub000/constants"
)

const (
	discordColorInfo     = 0x00ff00
	discordColorWarning  = 0xffff00
	discordColorCritical = 0xff0000
)

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbedFooter struct {
	Text string `json:"text"`
}

type discordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Color       int                 `json:"color"`
	Fields      []discordEmbedField `json:"fields"`
	Footer      discordEmbedFooter  `json:"footer"`
	Timestamp   string              `json:"timestamp"`
}

type discordMessage struct {
	Embeds []discordEmbed `json:"embeds"`
}

func discordMessageFromPayload(payload Payload) discordMessage {
	color := discordColorInfo
	switch payload.Severity {
	case constants.SEVERITY_WARNING:
		color = discordColorWarning
	case constants.SEVERITY_CRITICAL:
		color = discordColorCritical
	}

	node := payload.NodeId
	if payload.NodeAlias != "" {
		shortId := payload.NodeId
		if len(shortId) > 8 {
			shortId = shortId[:8]
		}
		node = fmt.Sprintf("%s (%s)", payload.NodeAlias, shortId)
	}

	return discordMessage{
		Embeds: []discordEmbed{
			{
				Title:       payload.Title,
				Description: payload.Description,
				Color:       color,
				Fields: []discordEmbedField{
					{Name: "Event Type", Value: payload.EventType, Inline: true},
					{Name: "Severity", Value: payload.Severity, Inline: true},
					{Name: "Node", Value: node, Inline: true},
				},
				Footer:    discordEmbedFooter{Text: "NodeGaze Lightning Monitor"},
				Timestamp: payload.Timestamp,
			},
		},
	}
}
