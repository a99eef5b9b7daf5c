package api

import (
	"time"

	"github.com/GideonBature/nodegaze-sub000/lnclient"
)

type SignupRequest struct {
	AccountName string `json:"account_name"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UserResponse struct {
	Id        uint   `json:"id"`
	AccountId uint   `json:"account_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
}

type CreateNodeRequest struct {
	Alias    string `json:"alias"`
	Pubkey   string `json:"pubkey"`
	NodeType string `json:"node_type"`
	Address  string `json:"address"`

	// LND credentials
	Macaroon string `json:"macaroon,omitempty"`
	TlsCert  string `json:"tls_cert,omitempty"`

	// CLN credentials
	CaCert     string `json:"ca_cert,omitempty"`
	ClientCert string `json:"client_cert,omitempty"`
	ClientKey  string `json:"client_key,omitempty"`
}

type NodeResponse struct {
	Id        uint   `json:"id"`
	Alias     string `json:"alias"`
	Pubkey    string `json:"pubkey"`
	NodeType  string `json:"node_type"`
	Address   string `json:"address"`
	IsActive  bool   `json:"is_active"`
	Connected bool   `json:"connected"`
}

type CreateNotificationRequest struct {
	Name             string `json:"name"`
	NotificationType string `json:"notification_type"`
	Url              string `json:"url"`
}

type UpdateNotificationRequest struct {
	Name     *string `json:"name"`
	Url      *string `json:"url"`
	IsActive *bool   `json:"is_active"`
}

type NotificationResponse struct {
	Id               uint      `json:"id"`
	Name             string    `json:"name"`
	NotificationType string    `json:"notification_type"`
	Url              string    `json:"url"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
}

type EventResponse struct {
	Id          uint        `json:"id"`
	ReferenceId string      `json:"reference_id"`
	UserId      uint        `json:"user_id"`
	NodeId      uint        `json:"node_id"`
	EventType   string      `json:"event_type"`
	Severity    string      `json:"severity"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	NodePubkey  string      `json:"node_pubkey"`
	NodeAlias   string      `json:"node_alias"`
	Data        interface{} `json:"data"`
	Timestamp   time.Time   `json:"timestamp"`
}

type ListEventsRequest struct {
	EventType string
	Severity  string
	NodeId    *uint
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

type NetworkResponse struct {
	Network lnclient.Network `json:"network"`
}
