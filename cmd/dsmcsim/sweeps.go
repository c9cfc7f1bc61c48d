package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/san-kum/dsmcsim/internal/ambient"
	"github.com/san-kum/dsmcsim/internal/batch"
	"github.com/san-kum/dsmcsim/internal/config"
	"github.com/san-kum/dsmcsim/internal/viz"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"
)

func sweepCommands() []*cobra.Command {
	densityCmd := &cobra.Command{
		Use:   "density-trend",
		Short: "mean exit time and steps versus ambient density",
		RunE:  densityTrend,
	}
	densityCmd.Flags().Float64SliceVar(&densities, "densities", batch.DefaultDensities, "densities to sweep (m^-3)")

	profileCmd := &cobra.Command{
		Use:   "time-profile",
		Short: "ensemble position and speed after each flight time",
		RunE:  timeProfile,
	}
	profileCmd.Flags().Float64Var(&t1, "t1", 5e-5, "first flight time (s)")
	profileCmd.Flags().Float64Var(&t2, "t2", 1.5e-3, "end of flight times, exclusive (s)")
	profileCmd.Flags().Float64Var(&tStep, "step", 5e-5, "flight time step (s)")

	wallsCmd := &cobra.Command{
		Use:   "walls",
		Short: "where particles started in a cube hit the walls",
		RunE:  walls,
	}
	wallsCmd.Flags().IntVar(&canvasSize, "size", 30, "canvas height in rows")
	wallsCmd.Flags().StringVar(&svgFile, "svg", "", "also write the positions as SVG")

	emitterCmd := &cobra.Command{
		Use:   "emitter",
		Short: "cloud from a point source emitting every 0.01 ms for 6 ms",
		RunE:  emitter,
	}
	emitterCmd.Flags().IntVar(&canvasSize, "size", 30, "canvas height in rows")
	emitterCmd.Flags().StringVar(&svgFile, "svg", "", "also write the cloud as SVG")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "exit statistics over a parameter grid",
		Long:  "Each --param is name=v1,v2,... or name=start:stop:step; the grid is their product.",
		RunE:  sweep,
	}
	sweepCmd.Flags().StringArrayVar(&sweepGrid, "param", nil, "swept parameter (repeatable)")
	_ = sweepCmd.MarkFlagRequired("param")

	cmds := []*cobra.Command{densityCmd, profileCmd, wallsCmd, emitterCmd, sweepCmd}
	for _, c := range cmds {
		configFlags(c)
		c.Flags().StringVarP(&outFile, "out", "o", "", "write rows as CSV to this file")
		c.Flags().BoolVar(&showTUI, "tui", false, "show a progress view")
	}
	return cmds
}

// sweepLogger is the driver's logger. The progress view owns the terminal,
// so per-point records are dropped while it runs.
func sweepLogger(tui bool) *slog.Logger {
	if tui {
		return slog.New(slog.DiscardHandler)
	}
	return slog.Default()
}

// runSweep runs fn on a fresh driver, with a progress view when --tui is
// set, then writes rows to --out.
func runSweep[R any](title string, cfg *config.Config, fn func(ctx context.Context, d *batch.Driver) ([]R, error)) ([]R, error) {
	ctx, cancel := signalContext()
	defer cancel()

	d := batch.NewDriver(cfg.Run.Workers, cfg.Run.Seed, sweepLogger(showTUI))
	var rows []R
	var err error
	if showTUI {
		err = viz.RunProgress(ctx, title, os.Stderr, func(ctx context.Context, progress func(string, int, int)) error {
			d.Progress = progress
			var werr error
			rows, werr = fn(ctx, d)
			return werr
		})
	} else {
		rows, err = fn(ctx, d)
	}
	if err != nil && !(isCanceled(err) && len(rows) > 0) {
		return rows, err
	}
	if err != nil {
		slog.Warn("sweep canceled, keeping finished rows", "rows", len(rows))
	}
	if outFile != "" {
		if werr := batch.WriteCSVFile(outFile, rows); werr != nil {
			return rows, werr
		}
		slog.Info("rows written", "path", outFile, "rows", len(rows))
	}
	return rows, err
}

func densityTrend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, string(ambient.FormBox), "")
	if err != nil {
		return err
	}
	rows, err := runSweep("density trend", cfg, func(ctx context.Context, d *batch.Driver) ([]batch.ExitRow, error) {
		return d.DensityTrend(ctx, cfg, densities)
	})
	printExitRows(rows)
	return err
}

func sweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, string(ambient.FormBox), "")
	if err != nil {
		return err
	}
	grid, err := batch.ParseGrid(sweepGrid)
	if err != nil {
		return err
	}
	rows, err := runSweep("sweep", cfg, func(ctx context.Context, d *batch.Driver) ([]batch.ExitRow, error) {
		return d.ExitSweep(ctx, cfg, grid)
	})
	printExitRows(rows)
	return err
}

func printExitRows(rows []batch.ExitRow) {
	if len(rows) == 0 {
		return
	}
	fmt.Printf("%-28s %7s %7s %12s %12s %12s %12s\n", "params", "trials", "exited", "mean_steps", "sem_steps", "mean_time", "sem_time")
	for _, r := range rows {
		fmt.Printf("%-28s %7d %7d %12.4g %12.4g %12.4g %12.4g\n", r.Params, r.Trials, r.Exited, r.MeanSteps, r.StdErrSteps, r.MeanTime, r.StdErrTime)
	}
	times := make([]float64, len(rows))
	for i, r := range rows {
		times[i] = r.MeanTime
	}
	if len(times) > 1 {
		fmt.Println(viz.Series(times, "mean exit time per grid point (s)"))
	}
}

func timeProfile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, string(ambient.FormOpen), "diffusion")
	if err != nil {
		return err
	}
	times, err := batch.Steps(t1, t2, tStep)
	if err != nil {
		return err
	}
	rows, err := runSweep("time profile", cfg, func(ctx context.Context, d *batch.Driver) ([]batch.ProfileRow, error) {
		return d.TimeProfile(ctx, cfg, times)
	})
	if len(rows) > 0 {
		series := map[string][]float64{}
		for _, r := range rows {
			series["mean_r2"] = append(series["mean_r2"], r.MeanSquaredDist)
		}
		fmt.Println(viz.Profile(series, "mean squared displacement (m^2) vs flight time"))
		speed := make([]float64, len(rows))
		for i, r := range rows {
			speed[i] = r.TailSpeed
		}
		fmt.Println(viz.Series(speed, "mean speed over the last 20% of flight (m/s)"))
	}
	return err
}

func walls(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, string(ambient.FormCurvedFlowBox), "emitter")
	if err != nil {
		return err
	}
	rows, err := runSweep("walls", cfg, func(ctx context.Context, d *batch.Driver) ([]batch.EndRow, error) {
		return d.EndPositions(ctx, cfg)
	})
	pts := make([]r3.Vec, len(rows))
	for i, r := range rows {
		pts[i] = r3.Vec{X: r.X, Y: r.Y, Z: r.Z}
	}
	fmt.Println(drawCloud(cfg, pts))
	if svgFile != "" && len(pts) > 0 {
		if serr := writeSVG(cfg, svgFile, nil, pts); serr != nil {
			return serr
		}
	}
	return err
}

func emitter(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, string(ambient.FormCurvedFlowBox), "")
	if err != nil {
		return err
	}
	rows, err := runSweep("emitter", cfg, func(ctx context.Context, d *batch.Driver) ([]batch.EmitterRow, error) {
		return d.PointEmitter(ctx, cfg, nil)
	})
	pts := make([]r3.Vec, len(rows))
	neighbors := make([]float64, len(rows))
	for i, r := range rows {
		pts[i] = r3.Vec{X: r.X, Y: r.Y, Z: r.Z}
		neighbors[i] = float64(r.Neighbors)
	}
	fmt.Println(drawCloud(cfg, pts))
	if svgFile != "" && len(pts) > 0 {
		if serr := writeSVG(cfg, svgFile, nil, pts); serr != nil {
			return serr
		}
	}
	if len(neighbors) > 1 {
		fmt.Println(viz.Series(neighbors, "neighbours within 8 mm vs age"))
	}
	return err
}

func drawCloud(cfg *config.Config, pts []r3.Vec) string {
	c, p := projection(cfg, pts)
	p.Points(pts)
	return viz.Panel.Render(viz.Subtle.Render(fmt.Sprintf("%d particles, x →  z ↑", len(pts))) + "\n" + c.String())
}
