package main

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/ritzau/forcegraph/pkg/config"
	"github.com/ritzau/forcegraph/pkg/feed"
	"github.com/ritzau/forcegraph/pkg/loop"
	"github.com/ritzau/forcegraph/pkg/model"
	"github.com/ritzau/forcegraph/pkg/output"
	"github.com/ritzau/forcegraph/pkg/physics"
	"github.com/ritzau/forcegraph/pkg/render"
	"github.com/spf13/cobra"
)

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Lay a snapshot out offline and write it as PNG or SVG",
		Long: `Render runs the layout for a fixed number of ticks and writes the result.
The input is a snapshot JSON file or a directory holding compiler .d files.`,
		RunE: runRender,
	}
	cmd.Flags().String("input", "", "snapshot JSON file or .d file directory")
	cmd.Flags().Int("ticks", 500, "simulation ticks to run")
	cmd.Flags().String("out", "graph.png", "output file, .png or .svg")
	cmd.Flags().Int64("seed", 1, "random seed for initial positions")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	input, _ := cmd.Flags().GetString("input")
	ticks, _ := cmd.Flags().GetInt("ticks")
	out, _ := cmd.Flags().GetString("out")
	seed, _ := cmd.Flags().GetInt64("seed")

	summary, err := renderOffline(cmd.Context(), cfg, renderJob{Input: input, Ticks: ticks, Out: out, Seed: seed})
	if err != nil {
		return err
	}
	output.PrintRenderSummary(cmd.OutOrStdout(), summary)
	return nil
}

type renderJob struct {
	Input string
	Ticks int
	Out   string
	Seed  int64
}

// renderOffline drives a loop on a manual scheduler and draws the final frame
func renderOffline(ctx context.Context, cfg *config.Config, job renderJob) (output.RenderSummary, error) {
	summary := output.RenderSummary{Input: job.Input, Output: job.Out, Ticks: job.Ticks}

	f, err := inputFeed(job.Input)
	if err != nil {
		return summary, err
	}
	sim, err := physics.New(cfg.Simulator, cfg.Eades)
	if err != nil {
		return summary, err
	}

	sched := loop.NewManual()
	vis, err := loop.New(loop.Options{
		Size:      model.Size{Width: float64(cfg.Width), Height: float64(cfg.Height)},
		Params:    cfg.Physics,
		Simulator: sim,
		Scheduler: sched,
		Rand:      rand.New(rand.NewSource(job.Seed)),
		Hooks: loop.Hooks{
			// Runs on the feed goroutine, which has returned once Done is closed
			OnFeedError: func(err error) {
				summary.Failed = append(summary.Failed, err.Error())
			},
		},
	})
	if err != nil {
		return summary, err
	}
	defer vis.Close()

	if err := vis.Open(ctx, f); err != nil {
		return summary, err
	}
	select {
	case <-vis.Done():
	case <-ctx.Done():
		return summary, ctx.Err()
	}

	// The first frame merges the snapshot; each one after it ticks
	for i := 0; i <= job.Ticks; i++ {
		sched.Fire()
	}

	frame := vis.Frame()
	summary.Nodes = len(frame.Nodes)
	summary.Edges = len(frame.Edges)
	summary.Energy = frame.Energy
	summary.Kinds = make(map[string]int)
	for _, n := range frame.Nodes {
		summary.Kinds[n.Kind]++
	}

	if err := writeImage(vis, job.Out); err != nil {
		return summary, err
	}
	return summary, nil
}

func inputFeed(input string) (feed.Feed, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if info.IsDir() {
		return feed.DepFiles{Root: input}, nil
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	snap, err := feed.ParseSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", input, err)
	}
	return feed.Static(snap), nil
}

func writeImage(vis *loop.Loop, path string) error {
	var buf bytes.Buffer
	switch strings.ToLower(filepath.Ext(path)) {
	case ".svg":
		surface := render.NewSVG(vis.Size())
		if err := vis.Render(surface); err != nil {
			return err
		}
		buf.Write(surface.Bytes())
	case ".png":
		surface := render.NewRaster(vis.Size())
		if err := vis.Render(surface); err != nil {
			return err
		}
		if err := surface.EncodePNG(&buf); err != nil {
			return fmt.Errorf("encoding png: %w", err)
		}
	default:
		return fmt.Errorf("unsupported output format %q, use .png or .svg", filepath.Ext(path))
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
