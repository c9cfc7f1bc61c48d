package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/facette/natsort"
	"github.com/gocarina/gocsv"
	"github.com/san-kum/dsmcsim/internal/config"
	"github.com/san-kum/dsmcsim/internal/dynamo"
)

const (
	metadataFile = "metadata.json"
	configFile   = "config.yaml"
	pathFile     = "path.csv"
)

// Store keeps one directory per run under baseDir holding metadata.json,
// the config snapshot and the recorded path.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID            string             `json:"id"`
	Form          string             `json:"form"`
	Timestamp     time.Time          `json:"timestamp"`
	Seed          uint64             `json:"seed"`
	Reason        string             `json:"reason"`
	Steps         int                `json:"steps"`
	Collisions    int                `json:"collisions"`
	ExitTime      float64            `json:"exit_time"`
	FinalPosition [3]float64         `json:"final_position"`
	FinalVelocity [3]float64         `json:"final_velocity"`
	PathPoints    int                `json:"path_points"`
	Metrics       map[string]float64 `json:"metrics"`
}

func NewRunMetadata(id string, cfg *config.Config, result *dynamo.Result) RunMetadata {
	f := result.Final
	return RunMetadata{
		ID:            id,
		Form:          cfg.Form,
		Timestamp:     time.Now(),
		Seed:          cfg.Run.Seed,
		Reason:        result.Reason.String(),
		Steps:         result.Steps,
		Collisions:    result.Collisions,
		ExitTime:      f.Time,
		FinalPosition: [3]float64{f.Position.X, f.Position.Y, f.Position.Z},
		FinalVelocity: [3]float64{f.Velocity.X, f.Velocity.Y, f.Velocity.Z},
		PathPoints:    len(result.Path),
		Metrics:       finiteMetrics(result.Metrics),
	}
}

// finiteMetrics drops NaN and Inf values, which JSON cannot encode.
func finiteMetrics(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[k] = v
		}
	}
	return out
}

func (s *Store) Save(cfg *config.Config, result *dynamo.Result) (string, error) {
	runID := fmt.Sprintf("%s_%d", cfg.Form, time.Now().UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := NewRunMetadata(runID, cfg, result)
	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if err := config.Save(filepath.Join(runDir, configFile), cfg); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, pathFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	path := result.Path
	if path == nil {
		path = []dynamo.PathPoint{}
	}
	if err := gocsv.MarshalFile(&path, csvFile); err != nil {
		return "", fmt.Errorf("write path: %w", err)
	}

	return runID, nil
}

// List returns every readable run, in natural order of run ID.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return natsort.Compare(runs[i].ID, runs[j].ID)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	return config.Load(filepath.Join(s.baseDir, runID, configFile))
}

func (s *Store) LoadPath(runID string) ([]dynamo.PathPoint, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, pathFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var path []dynamo.PathPoint
	if err := gocsv.UnmarshalFile(file, &path); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return []dynamo.PathPoint{}, nil
		}
		return nil, fmt.Errorf("read path: %w", err)
	}
	return path, nil
}
