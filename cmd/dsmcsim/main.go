package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/san-kum/dsmcsim/internal/ambient"
	"github.com/san-kum/dsmcsim/internal/automation"
	"github.com/san-kum/dsmcsim/internal/batch"
	"github.com/san-kum/dsmcsim/internal/config"
	"github.com/san-kum/dsmcsim/internal/dynamo"
	"github.com/san-kum/dsmcsim/internal/experiment"
	"github.com/san-kum/dsmcsim/internal/export"
	"github.com/san-kum/dsmcsim/internal/sim"
	"github.com/san-kum/dsmcsim/internal/storage"
	"github.com/san-kum/dsmcsim/internal/viz"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	dataDir    string
	configFile string
	logFormat  string
	verbose    bool
	seed       uint64
	workers    int

	form       string
	preset     string
	overrides  []string
	density    float64
	temp       float64
	maxTime    float64
	maxSteps   int
	trials     int
	history    string
	logSteps   bool
	noSave     bool
	outFile    string
	showTUI    bool
	densities  []float64
	t1, t2     float64
	tStep      float64
	sweepGrid  []string
	bins       int
	canvasSize int
	svgFile    string
	outDir     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "dsmcsim",
		Short:        "single-molecule DSMC trajectories in a buffer gas",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(newLogger())
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", ".dsmcsim", "data directory")
	pf.StringVar(&configFile, "config", "", "config file (yaml or toml)")
	pf.StringVar(&logFormat, "log-format", "text", "log format: text or json")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	pf.Uint64Var(&seed, "seed", 1, "random seed")
	pf.IntVar(&workers, "workers", 0, "worker goroutines (0 = all CPUs)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run one trajectory and save it",
		RunE:  runTrajectory,
	}
	traceCmd := &cobra.Command{
		Use:   "trace",
		Short: "run one trajectory with full history and draw it",
		RunE:  traceTrajectory,
	}
	ensembleCmd := &cobra.Command{
		Use:   "ensemble",
		Short: "run many trajectories and report exit-time statistics",
		RunE:  runEnsemble,
	}
	ensembleCmd.Flags().IntVar(&bins, "bins", 20, "exit-time histogram bins")

	for _, c := range []*cobra.Command{runCmd, traceCmd, ensembleCmd} {
		configFlags(c)
	}
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().BoolVar(&logSteps, "log-steps", false, "log every step at debug level")
	traceCmd.Flags().IntVar(&canvasSize, "size", 30, "canvas height in rows")
	traceCmd.Flags().StringVar(&svgFile, "svg", "", "also write the x–z path as SVG")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}
	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&canvasSize, "size", 30, "canvas height in rows")
	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a stored run and its path as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets [form]",
		Short: "list presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}
	initCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write the effective configuration to a file",
		Args:  cobra.ExactArgs(1),
		RunE:  writeConfig,
	}
	configFlags(initCmd)

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run the sweeps listed in a YAML scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	scenarioCmd.Flags().StringVar(&outDir, "out-dir", "scenario-out", "directory for step CSV files")

	rootCmd.AddCommand(runCmd, traceCmd, ensembleCmd, listCmd, plotCmd, exportJSONCmd, presetsCmd, initCmd, scenarioCmd)
	rootCmd.AddCommand(sweepCommands()...)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "err", err, "kind", dynamo.Kind(err))
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if logFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// configFlags registers the flags that override config values.
func configFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringVar(&form, "form", "", "ambient form: "+formList())
	f.StringVar(&preset, "preset", "default", "preset name for the form")
	f.StringArrayVar(&overrides, "set", nil, "override a parameter, name=value (repeatable)")
	f.Float64Var(&density, "density", 0, "ambient number density (m^-3)")
	f.Float64Var(&temp, "temperature", 0, "ambient temperature (K)")
	f.Float64Var(&maxTime, "max-time", 0, "time budget (s)")
	f.IntVar(&maxSteps, "max-steps", 0, "step budget")
	f.IntVar(&trials, "trials", 0, "trials per ensemble")
	f.StringVar(&history, "history", "", "history mode: none, full or sampled")
}

func formList() string {
	var names []string
	for _, f := range ambient.Forms() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

// loadConfig builds the effective config: preset, then --config file, then
// flags the user actually set.
func loadConfig(cmd *cobra.Command, defaultForm, defaultPreset string) (*config.Config, error) {
	f := form
	if f == "" {
		f = defaultForm
	}
	name := preset
	if !cmd.Flags().Changed("preset") && defaultPreset != "" {
		name = defaultPreset
	}

	var cfg *config.Config
	if configFile != "" {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if cmd.Flags().Changed("form") {
			if err := cfg.Apply("form", form); err != nil {
				return nil, err
			}
		}
	} else {
		cfg = config.GetPreset(f, name)
		if cfg == nil && !cmd.Flags().Changed("preset") {
			cfg = config.DefaultConfig()
			if err := cfg.Apply("form", f); err != nil {
				return nil, err
			}
		}
		if cfg == nil {
			return nil, fmt.Errorf("%w: unknown preset %s/%s (available: %v)", dynamo.ErrInvalidConfig, f, name, config.ListPresets(f))
		}
	}

	flags := cmd.Flags()
	set := func(flag, param string, value any) error {
		if !flags.Changed(flag) {
			return nil
		}
		return cfg.Apply(param, fmt.Sprint(value))
	}
	for _, s := range []struct {
		flag, param string
		value       any
	}{
		{"density", "density", density},
		{"temperature", "temperature", temp},
		{"max-time", "max_time", maxTime},
		{"max-steps", "max_steps", maxSteps},
		{"trials", "trials", trials},
		{"history", "history", history},
	} {
		if err := set(s.flag, s.param, s.value); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("seed") || configFile == "" {
		cfg.Run.Seed = seed
	}
	if cmd.Flags().Changed("workers") {
		cfg.Run.Workers = workers
	}
	for _, o := range overrides {
		k, v, ok := strings.Cut(o, "=")
		if !ok {
			return nil, fmt.Errorf("%w: --set %q, want name=value", dynamo.ErrInvalidConfig, o)
		}
		if err := cfg.Apply(strings.TrimSpace(k), strings.TrimSpace(v)); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// single runs trial 0 of the configured seed, so a run reproduces the
// first trial of an ensemble with the same seed.
func single(ctx context.Context, cfg *config.Config, steps bool) (*dynamo.Result, error) {
	exp, err := experiment.New(cfg, experiment.WithMetrics("kinetic_energy", "collision_rate"))
	if err != nil {
		return nil, err
	}
	obs := sim.NewLogObserver(slog.Default())
	obs.Steps = steps
	exp.AddObserver(obs)
	rng := batch.NewEnsemble(1, 1, cfg.Run.Seed).Stream(0)
	return exp.Trial(ctx, rng, 0)
}

func printResult(result *dynamo.Result) {
	f := result.Final
	fmt.Printf("%s %s after %d steps, %d collisions\n", viz.Title.Render("trajectory"), viz.Status(result.Reason.String()), result.Steps, result.Collisions)
	fmt.Printf("  time      %.6g s\n", f.Time)
	fmt.Printf("  position  (%.5g, %.5g, %.5g) m\n", f.Position.X, f.Position.Y, f.Position.Z)
	fmt.Printf("  velocity  (%.5g, %.5g, %.5g) m/s\n", f.Velocity.X, f.Velocity.Y, f.Velocity.Z)
	if len(result.Metrics) > 0 {
		fmt.Println(viz.KeyValues("metrics", result.Metrics))
	}
}

func runTrajectory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, string(ambient.FormBox), "")
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	result, err := single(ctx, cfg, logSteps)
	if err != nil {
		return err
	}
	slog.Info("run finished", "elapsed", time.Since(start), "reason", result.Reason.String())
	printResult(result)

	if noSave {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	id, err := st.Save(cfg, result)
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", id)
	return nil
}

func traceTrajectory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, string(ambient.FormBox), "trace")
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("history") {
		cfg.Run.History = "full"
	}
	ctx, cancel := signalContext()
	defer cancel()

	result, err := single(ctx, cfg, false)
	if err != nil {
		return err
	}
	printResult(result)
	if result.Reason == dynamo.PhaseExited {
		fmt.Printf("time to wall: %.6g s\n", result.Final.Time)
	}
	fmt.Println(drawPath(cfg, result.Path))
	if svgFile != "" {
		if err := writeSVG(cfg, svgFile, pathVecs(result.Path), nil); err != nil {
			return err
		}
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	id, err := st.Save(cfg, result)
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", id)
	return nil
}

func pathVecs(path []dynamo.PathPoint) []r3.Vec {
	pts := make([]r3.Vec, len(path))
	for i, p := range path {
		pts[i] = r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
	}
	return pts
}

// projection frames the box when there is one and otherwise fits the
// view to pts.
func projection(cfg *config.Config, pts []r3.Vec) (*viz.Canvas, *viz.Projector) {
	c := viz.NewCanvas(canvasSize*2, canvasSize)
	if cfg.Boundary.Shape != "box" {
		return c, viz.FitProjector(c, pts)
	}
	hw := cfg.Boundary.HalfWidth
	p := viz.NewProjector(c, hw*1.1)
	p.Frame(hw)
	return c, p
}

func drawPath(cfg *config.Config, path []dynamo.PathPoint) string {
	pts := pathVecs(path)
	c, p := projection(cfg, pts)
	p.Path(pts)
	return viz.Panel.Render(viz.Subtle.Render("x →  z ↑") + "\n" + c.String())
}

// writeSVG draws a path and a point cloud on the same x–z view.
func writeSVG(cfg *config.Config, path string, line, cloud []r3.Vec) error {
	var d *export.Drawing
	if cfg.Boundary.Shape == "box" {
		d = export.NewDrawing(export.BoxView(cfg.Boundary.HalfWidth, 600))
		d.Frame(cfg.Boundary.HalfWidth)
	} else {
		d = export.NewDrawing(export.FitView(600, line, cloud))
	}
	d.Path(line, "#00ffff")
	if len(cloud) > 0 {
		d.Points(cloud, "#00ff88", 2)
	}
	if err := d.WriteFile(path); err != nil {
		return err
	}
	slog.Info("svg written", "path", path)
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("seed") {
		sc.Seed = seed
	}
	ctx, cancel := signalContext()
	defer cancel()

	r := &automation.Runner{Workers: workers, Logger: slog.Default()}
	reports, err := r.Run(ctx, sc, outDir)
	failed := 0
	for _, rep := range reports {
		status := viz.StatusExited.Render("ok")
		if rep.Err != nil {
			status = viz.StatusFailed.Render(rep.Err.Error())
			failed++
		}
		fmt.Printf("%-16s %-14s %5d rows  %s  %s\n", rep.Name, rep.Kind, rep.Rows, rep.Output, status)
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenario steps failed", failed, len(reports))
	}
	return nil
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, string(ambient.FormBox), "")
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	exp, err := experiment.New(cfg)
	if err != nil {
		return err
	}
	ens := batch.NewEnsemble(cfg.Run.Trials, cfg.Run.Workers, cfg.Run.Seed)
	start := time.Now()
	outcomes, runErr := ens.Run(ctx, exp.Trial)
	s := batch.Summarize(outcomes)
	slog.Info("ensemble finished", "elapsed", time.Since(start), "summary", s)

	var times []float64
	for _, o := range outcomes {
		if o.Exited() {
			times = append(times, o.Result.Final.Time)
		}
	}
	fmt.Println(viz.KeyValues(fmt.Sprintf("%s ensemble", cfg.Form), map[string]float64{
		"trials":          float64(s.Trials),
		"exited":          float64(s.Exited),
		"timed_out":       float64(s.TimedOut),
		"failed":          float64(s.Failed),
		"mean_time":       s.MeanTime,
		"sem_time":        s.StdErrTime,
		"mean_steps":      s.MeanSteps,
		"sem_steps":       s.StdErrSteps,
		"mean_collisions": s.MeanCollisions,
	}))
	for kind, n := range s.Failures {
		fmt.Printf("  %s %s: %d\n", viz.StatusFailed.Render("failed"), kind, n)
	}
	if len(times) > 1 {
		plot, _ := viz.Histogram(times, bins, "exit time (s)")
		fmt.Println(plot)
	}
	return runErr
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFORM\tTIME\tREASON\tSTEPS\tEXIT TIME\tSEED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.4gs\t%d\n",
			run.ID,
			run.Form,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Reason,
			run.Steps,
			run.ExitTime,
			run.Seed,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	cfg, err := st.LoadConfig(args[0])
	if err != nil {
		return err
	}
	path, err := st.LoadPath(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("form: %s  reason: %s  steps: %d\n", meta.Form, viz.Status(meta.Reason), meta.Steps)
	if len(path) == 0 {
		return fmt.Errorf("no path recorded for %s (run with --history full or sampled)", meta.ID)
	}
	fmt.Printf("samples: %d\n\n", len(path))

	axes := []struct {
		name string
		get  func(dynamo.PathPoint) float64
	}{
		{"x (m)", func(p dynamo.PathPoint) float64 { return p.X }},
		{"y (m)", func(p dynamo.PathPoint) float64 { return p.Y }},
		{"z (m)", func(p dynamo.PathPoint) float64 { return p.Z }},
	}
	for _, a := range axes {
		data := make([]float64, len(path))
		for i, p := range path {
			data[i] = a.get(p)
		}
		fmt.Println(viz.Series(data, a.name+" vs sample"))
		fmt.Println()
	}
	fmt.Println(drawPath(cfg, path))
	if len(meta.Metrics) > 0 {
		fmt.Println(viz.KeyValues("metrics", meta.Metrics))
	}
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	if outFile == "" {
		return st.Export(os.Stdout, args[0])
	}
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	path, err := st.LoadPath(args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSONFile(outFile, storage.ExportData{Run: *meta, Path: path})
}

func listPresets(cmd *cobra.Command, args []string) error {
	forms := ambient.Forms()
	if len(args) == 1 {
		f, err := ambient.ParseForm(args[0])
		if err != nil {
			return err
		}
		forms = []ambient.Form{f}
	}
	for _, f := range forms {
		names := config.ListPresets(string(f))
		if len(names) == 0 {
			continue
		}
		fmt.Printf("%s:\n", viz.Title.Render(string(f)))
		for _, p := range names {
			fmt.Printf("  %s\n", p)
		}
	}
	return nil
}

func writeConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, string(ambient.FormBox), "")
	if err != nil {
		return err
	}
	if err := config.Save(args[0], cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", args[0])
	return nil
}

func isCanceled(err error) bool {
	return errors.Is(err, dynamo.ErrContextCanceled) || errors.Is(err, context.Canceled)
}
