package db

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Account struct {
	ID        uint
	Name      string `validate:"required" gorm:"unique;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt
}

type User struct {
	ID           uint
	AccountId    uint    `validate:"required"`
	Account      Account `gorm:"constraint:OnDelete:CASCADE;"`
	Username     string  `validate:"required" gorm:"unique;not null"`
	Email        string  `gorm:"unique"`
	PasswordHash string  `validate:"required"`
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt
}

// Node is a lightning node connection owned by an account. Credentials are
// stored as given: hex for LND, PEM for CLN.
type Node struct {
	ID         uint
	AccountId  uint    `validate:"required"`
	Account    Account `gorm:"constraint:OnDelete:CASCADE;"`
	UserId     uint
	Alias      string
	Pubkey     string `validate:"required" gorm:"not null"`
	NodeType   string `validate:"required" gorm:"not null"`
	Address    string `validate:"required" gorm:"not null"`
	Macaroon   string
	TlsCert    string
	CaCert     string
	ClientCert string
	ClientKey  string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt
}

// Notification is a delivery endpoint for events: a plain webhook or a
// Discord webhook.
type Notification struct {
	ID               uint
	AccountId        uint    `validate:"required"`
	Account          Account `gorm:"constraint:OnDelete:CASCADE;"`
	Name             string  `validate:"required"`
	NotificationType string  `validate:"required"`
	Url              string  `validate:"required"`
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        gorm.DeletedAt
}

// Event is one normalized node event. When an account has active
// notifications there is one row per notification, carrying its id; when
// it has none a single row with a null NotificationId is kept.
type Event struct {
	ID             uint
	ReferenceId    string `gorm:"uniqueIndex"`
	AccountId      uint `validate:"required"`
	UserId         uint
	NodeId         uint `validate:"required"`
	Node           Node `gorm:"constraint:OnDelete:CASCADE;"`
	NotificationId *uint
	Notification   *Notification
	EventType      string `validate:"required" gorm:"index"`
	Severity       string `validate:"required" gorm:"index"`
	Title          string
	Description    string
	NodePubkey     string
	NodeAlias      string
	Data           datatypes.JSON
	Timestamp      time.Time `gorm:"index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      gorm.DeletedAt
}
