package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/dsmcsim/internal/dynamo"
)

type ExportData struct {
	Run  RunMetadata        `json:"run"`
	Path []dynamo.PathPoint `json:"path"`
}

// Export writes a stored run and its path as indented JSON.
func (s *Store) Export(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	path, err := s.LoadPath(runID)
	if err != nil {
		return err
	}
	return ExportJSON(w, ExportData{Run: *meta, Path: path})
}

func ExportJSON(w io.Writer, data ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func ExportJSONFile(path string, data ExportData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return ExportJSON(file, data)
}
