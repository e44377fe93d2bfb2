package project

import (
	"context"
	"regexp"
	"strings"
)

type ExportFile struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

// Export is the downloadable form of a project.
type Export struct {
	ProjectName string       `json:"projectName"`
	Files       []ExportFile `json:"files"`
}

func (s *Service) Export(ctx context.Context, projectID uint64) (*Export, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	files, err := s.store.ListFiles(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := &Export{ProjectName: p.Name, Files: make([]ExportFile, 0, len(files))}
	for _, f := range files {
		out.Files = append(out.Files, ExportFile{Path: f.Path, Content: f.Content, Language: f.Language})
	}
	return out, nil
}

var unsafeFileName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// ExportFileName is the attachment name offered for a project download.
func ExportFileName(projectName string) string {
	n := strings.Trim(unsafeFileName.ReplaceAllString(projectName, "-"), "-")
	if n == "" {
		n = "project"
	}
	return n + ".json"
}
