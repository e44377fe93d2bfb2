package models

import "time"

// File is one source file of a project. Paths are not unique; lookups by path
// take the first match in path order.
type File struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID uint64    `gorm:"not null;index:idx_files_project_path,priority:1" json:"projectId"`
	Path      string    `gorm:"size:512;not null;index:idx_files_project_path,priority:2" json:"path"`
	Content   string    `gorm:"not null" json:"content"`
	Language  string    `gorm:"size:32;not null" json:"language"`
	CreatedAt time.Time `json:"createdAt"`

	Project *Project `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (File) TableName() string { return "files" }

// FileVersion is the content a File held before one overwrite. ProjectID is
// denormalised so a project delete can drop versions without joining files.
type FileVersion struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	FileID    uint64    `gorm:"not null;index:idx_versions_file_time,priority:1" json:"fileId"`
	ProjectID uint64    `gorm:"not null;index" json:"projectId"`
	Content   string    `gorm:"not null" json:"content"`
	Timestamp time.Time `gorm:"column:created_at;index:idx_versions_file_time,priority:2" json:"timestamp"`

	File    *File    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Project *Project `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (FileVersion) TableName() string { return "file_versions" }

// NewFile is the input for creating a file. A blank Language is derived
// from the path.
type NewFile struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language"`
}
