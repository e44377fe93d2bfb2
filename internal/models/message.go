package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool { return r == RoleUser || r == RoleAssistant }

// Message is one entry of a project's chat transcript. Append-only.
type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID uint64    `gorm:"not null;index:idx_messages_project_time,priority:1" json:"projectId"`
	Role      Role      `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"not null" json:"content"`
	CreatedAt time.Time `gorm:"index:idx_messages_project_time,priority:2" json:"createdAt"`

	Project *Project `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Message) TableName() string { return "messages" }
