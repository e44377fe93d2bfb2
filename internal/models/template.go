package models

import (
	"time"

	"gorm.io/datatypes"
)

type TemplateFile struct {
	Path     string `json:"path" yaml:"path"`
	Content  string `json:"content" yaml:"content"`
	Language string `json:"language" yaml:"language"`
}

// Template is a global bundle of starter files.
type Template struct {
	ID          uint64                            `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string                            `gorm:"size:255;not null" json:"name"`
	Type        string                            `gorm:"size:64;not null" json:"type"`
	Description string                            `gorm:"size:1024" json:"description"`
	Files       datatypes.JSONSlice[TemplateFile] `json:"files"`
	CreatedAt   time.Time                         `gorm:"index" json:"createdAt"`
}

func (Template) TableName() string { return "templates" }

type NewTemplate struct {
	Name        string         `json:"name" yaml:"name"`
	Type        string         `json:"type" yaml:"type"`
	Description string         `json:"description" yaml:"description"`
	Files       []TemplateFile `json:"files" yaml:"files"`
}
