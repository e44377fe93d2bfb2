package models

import "time"

// Upload is metadata for a raw artifact attached to a project. It is not a
// project source file.
type Upload struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID  uint64    `gorm:"not null;index" json:"projectId"`
	FileName   string    `gorm:"size:255;not null" json:"fileName"`
	FileType   string    `gorm:"size:128;not null" json:"fileType"`
	FileSize   int64     `gorm:"not null" json:"fileSize"`
	FilePath   string    `gorm:"size:1024;not null" json:"filePath"`
	UploadedAt time.Time `json:"uploadedAt"`

	Project *Project `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Upload) TableName() string { return "uploads" }

type NewUpload struct {
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	FileSize int64  `json:"fileSize"`
	FilePath string `json:"filePath"`
}
