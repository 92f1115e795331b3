package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence. The user/session/account/verification
// tables are written by the auth provider and only read here.
type UserModel struct {
	ID            string `gorm:"primaryKey"`
	Name          string `gorm:"not null"`
	Email         string `gorm:"uniqueIndex;not null"`
	EmailVerified bool   `gorm:"not null;default:false"`
	Image         string
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "user" }

type SessionModel struct {
	ID        string    `gorm:"primaryKey"`
	Token     string    `gorm:"uniqueIndex;not null"`
	UserID    string    `gorm:"not null;index"`
	ExpiresAt time.Time `gorm:"not null"`
	IPAddress string
	UserAgent string
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (SessionModel) TableName() string { return "session" }

type AccountModel struct {
	ID                    string `gorm:"primaryKey"`
	AccountID             string `gorm:"not null"`
	ProviderID            string `gorm:"not null"`
	UserID                string `gorm:"not null;index"`
	AccessToken           string
	RefreshToken          string
	IDToken               string
	AccessTokenExpiresAt  *time.Time
	RefreshTokenExpiresAt *time.Time
	Scope                 string
	Password              string
	CreatedAt             time.Time `gorm:"not null"`
	UpdatedAt             time.Time `gorm:"not null"`
}

func (AccountModel) TableName() string { return "account" }

type VerificationModel struct {
	ID         string    `gorm:"primaryKey"`
	Identifier string    `gorm:"not null;index"`
	Value      string    `gorm:"not null"`
	ExpiresAt  time.Time `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (VerificationModel) TableName() string { return "verification" }

type AgentModel struct {
	ID           string    `gorm:"primaryKey"`
	UserID       string    `gorm:"not null;index"`
	Name         string    `gorm:"not null"`
	Instructions string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    time.Time `gorm:"not null"`

	// MeetingCount is filled by list/get queries only.
	MeetingCount int64 `gorm:"->;-:migration"`
}

func (AgentModel) TableName() string { return "agent" }

type MeetingModel struct {
	ID            string    `gorm:"primaryKey"`
	Name          string    `gorm:"not null"`
	UserID        string    `gorm:"not null;index"`
	AgentID       string    `gorm:"not null;index"`
	Status        string    `gorm:"not null;default:upcoming;index"`
	StartedAt     *time.Time
	EndedAt       *time.Time
	TranscriptURL string
	RecordingURL  string
	Summary       string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"not null;index"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (MeetingModel) TableName() string { return "meeting" }

type MeetingChatModel struct {
	ID           string    `gorm:"primaryKey"`
	MeetingID    string    `gorm:"uniqueIndex;not null"`
	UserID       string    `gorm:"not null;index"`
	MessageCount int       `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (MeetingChatModel) TableName() string { return "meeting_chat" }

type UserMessageModel struct {
	ID        string    `gorm:"primaryKey"`
	ChatID    string    `gorm:"not null;index"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}

func (UserMessageModel) TableName() string { return "meeting_chat_message_user" }

type AgentMessageModel struct {
	ID        string    `gorm:"primaryKey"`
	ChatID    string    `gorm:"not null;index"`
	AgentID   string    `gorm:"not null"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}

func (AgentMessageModel) TableName() string { return "meeting_chat_message_agent" }

type WebhookDeliveryModel struct {
	ID         string         `gorm:"primaryKey"`
	EventType  string         `gorm:"not null;index"`
	MeetingID  string         `gorm:"index"`
	Payload    datatypes.JSON `gorm:"type:jsonb"`
	Outcome    string         `gorm:"not null"`
	ReceivedAt time.Time      `gorm:"not null;index"`
}

func (WebhookDeliveryModel) TableName() string { return "webhook_delivery" }
