package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/dsmcsim/internal/config"
	"github.com/san-kum/dsmcsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

func testResult() *dynamo.Result {
	return &dynamo.Result{
		Final: dynamo.ParticleState{
			Position: r3.Vec{X: 0.051, Y: 0.01, Z: -0.02},
			Velocity: r3.Vec{X: 12},
			Time:     0.0042,
			Step:     2,
		},
		Reason:     dynamo.PhaseExited,
		Steps:      2,
		Collisions: 1,
		Path: []dynamo.PathPoint{
			{T: 0, X: 0, Y: 0, Z: 0},
			{T: 0.0021, X: 0.02, Y: 0.005, Z: -0.01},
			{T: 0.0042, X: 0.051, Y: 0.01, Z: -0.02},
		},
		Metrics: map[string]float64{"collisions": 1},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Run.Seed = 42
	runID, err := st.Save(cfg, testResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID == "" {
		t.Error("expected non-empty run id")
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Form != "box" || meta.Seed != 42 || meta.Reason != "exited" {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.FinalPosition[0] != 0.051 || meta.Collisions != 1 || meta.Metrics["collisions"] != 1 {
		t.Errorf("unexpected metadata %+v", meta)
	}

	path, err := st.LoadPath(runID)
	if err != nil {
		t.Fatalf("load path failed: %v", err)
	}
	if len(path) != 3 || path[1].X != 0.02 || path[2].T != 0.0042 {
		t.Errorf("unexpected path %+v", path)
	}

	loaded, err := st.LoadConfig(runID)
	if err != nil {
		t.Fatalf("load config failed: %v", err)
	}
	if loaded.Run.Seed != 42 {
		t.Errorf("config seed %d", loaded.Run.Seed)
	}
}

func TestStoreEmptyPath(t *testing.T) {
	st := New(t.TempDir())
	result := testResult()
	result.Path = nil
	runID, err := st.Save(config.DefaultConfig(), result)
	if err != nil {
		t.Fatal(err)
	}
	path, err := st.LoadPath(runID)
	if err != nil {
		t.Fatalf("load path failed: %v", err)
	}
	if len(path) != 0 {
		t.Errorf("expected empty path, got %d points", len(path))
	}
}

func TestStoreSkipsUndefinedMetrics(t *testing.T) {
	st := New(t.TempDir())
	result := testResult()
	result.Metrics["tail_speed"] = math.NaN()
	runID, err := st.Save(config.DefaultConfig(), result)
	if err != nil {
		t.Fatalf("save with NaN metric failed: %v", err)
	}
	meta, err := st.Load(runID)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := meta.Metrics["tail_speed"]; ok {
		t.Error("NaN metric was stored")
	}
	if meta.Metrics["collisions"] != 1 {
		t.Errorf("collisions metric %g, want 1", meta.Metrics["collisions"])
	}
}

func TestStoreListNaturalOrder(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	for _, id := range []string{"box_10", "box_9", "box_100"} {
		if err := os.MkdirAll(filepath.Join(dir, id), 0755); err != nil {
			t.Fatal(err)
		}
		data, _ := json.Marshal(RunMetadata{ID: id, Form: "box"})
		if err := os.WriteFile(filepath.Join(dir, id, metadataFile), data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, "broken"), 0755); err != nil {
		t.Fatal(err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	got := make([]string, len(runs))
	for i, r := range runs {
		got[i] = r.ID
	}
	if fmt.Sprint(got) != "[box_9 box_10 box_100]" {
		t.Errorf("order %v", got)
	}
}

func TestStoreFileStructure(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)
	runID, err := st.Save(config.DefaultConfig(), testResult())
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{metadataFile, configFile, pathFile} {
		if _, err := os.Stat(filepath.Join(dir, runID, name)); err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}
	header, err := os.ReadFile(filepath.Join(dir, runID, pathFile))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(header, []byte("t,x,y,z")) {
		t.Errorf("path header %q", header[:min(len(header), 20)])
	}
}

func TestExport(t *testing.T) {
	st := New(t.TempDir())
	runID, err := st.Save(config.DefaultConfig(), testResult())
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := st.Export(&buf, runID); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if data.Run.ID != runID || len(data.Path) != 3 {
		t.Errorf("unexpected export %+v", data)
	}
	if err := st.Export(&buf, "missing"); err == nil {
		t.Error("expected error for missing run")
	}
}
