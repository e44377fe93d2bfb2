package models

import "time"

type Project struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

func (Project) TableName() string { return "projects" }
