package main

import (
	"fmt"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ripple-dev/ripple/internal/config"
	"github.com/ripple-dev/ripple/pkg/future"
	"github.com/ripple-dev/ripple/pkg/ripple"
)

func benchCmd() *cobra.Command {
	var (
		widths     []int
		heights    []int
		iterations int
		configDir  string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark reactive graph propagation",
		Long: `Benchmark three hot paths of the reactive core:

  propagate: width x height grids of derived chains driven by one atom
  fan-out:   one batched write across N atoms feeding a single sum
  resolve:   future-backed atoms settling through the suspense path

Grid sizes and the iteration count come from ripple.json when present;
flags override the file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}
			if len(widths) > 0 {
				cfg.Bench.Widths = widths
			}
			if len(heights) > 0 {
				cfg.Bench.Heights = heights
			}
			if iterations > 0 {
				cfg.Bench.Iterations = iterations
			}

			printBanner()
			if cfg.Path() != "" {
				info("config: %s", cfg.Path())
			}
			info("%s timed writes per grid", humanize.Comma(int64(cfg.Bench.Iterations)))
			fmt.Println()

			benchPropagate(cfg.Bench)
			benchFanOut(cfg.Bench)
			benchResolve(cfg.Bench)

			success("bench complete")
			return nil
		},
	}

	cmd.Flags().IntSliceVar(&widths, "widths", nil, "Graph widths to sweep")
	cmd.Flags().IntSliceVar(&heights, "heights", nil, "Chain depths to sweep")
	cmd.Flags().IntVarP(&iterations, "iterations", "n", 0, "Timed writes per grid")
	cmd.Flags().StringVar(&configDir, "config-dir", ".", "Directory containing ripple.json")

	return cmd
}

// benchPropagate times a source write rippling through width
// independent chains of height derived cells, each chain pinned live
// by an effect on its leaf.
func benchPropagate(cfg config.BenchConfig) {
	tbl := table.NewWriter()
	tbl.SetTitle("Propagate")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"grid", "cells", "avg", "min", "p75", "p99", "max", "checksum"})

	for _, w := range cfg.Widths {
		for _, h := range cfg.Heights {
			tach := tachymeter.New(&tachymeter.Config{Size: cfg.Iterations})

			src := ripple.New(1)
			leaves := make([]ripple.Readable[int], 0, w)
			effects := make([]*ripple.Effect, 0, w)
			for i := 0; i < w; i++ {
				var last ripple.Readable[int] = src
				for j := 0; j < h; j++ {
					prev := last
					last = ripple.Derive(func() (int, error) {
						v, err := prev.Use()
						return v + 1, err
					})
				}
				leaf := last
				effects = append(effects, ripple.NewEffect(func() (ripple.Cleanup, error) {
					_, err := leaf.Use()
					return nil, err
				}))
				leaves = append(leaves, leaf)
			}

			for i := 0; i < cfg.Iterations; i++ {
				start := time.Now()
				src.Update(func(v int) int { return v + 1 })
				tach.AddTime(time.Since(start))
			}

			var sum uint64
			for _, leaf := range leaves {
				v, _ := leaf.Value()
				sum += uint64(v)
			}
			for _, eff := range effects {
				eff.Dispose()
			}

			calc := tach.Calc()
			tbl.AppendRows([]table.Row{{
				fmt.Sprintf("%d x %d", w, h),
				humanize.Comma(int64(w * h)),
				calc.Time.Avg,
				calc.Time.Min,
				calc.Time.P75,
				calc.Time.P99,
				calc.Time.Max,
				checksum(w, h, cfg.Iterations, sum),
			}})
		}
	}

	tbl.Render()
	fmt.Println()
}

// benchFanOut times one batched write across n atoms observed by a
// single derived sum, so every iteration is exactly one flush.
func benchFanOut(cfg config.BenchConfig) {
	tbl := table.NewWriter()
	tbl.SetTitle("Batch fan-out")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"atoms", "avg", "min", "p75", "p99", "max", "checksum"})

	for _, n := range cfg.Widths {
		tach := tachymeter.New(&tachymeter.Config{Size: cfg.Iterations})

		atoms := make([]*ripple.Atom[int], n)
		for i := range atoms {
			atoms[i] = ripple.New(0)
		}
		total := ripple.Derive(func() (int, error) {
			sum := 0
			for _, a := range atoms {
				v, err := a.Use()
				if err != nil {
					return 0, err
				}
				sum += v
			}
			return sum, nil
		})
		eff := ripple.NewEffect(func() (ripple.Cleanup, error) {
			_, err := total.Use()
			return nil, err
		})

		for i := 0; i < cfg.Iterations; i++ {
			start := time.Now()
			ripple.Batch(func() {
				for j, a := range atoms {
					a.Set(i + j)
				}
			})
			tach.AddTime(time.Since(start))
		}

		v, _ := total.Value()
		eff.Dispose()

		calc := tach.Calc()
		tbl.AppendRows([]table.Row{{
			humanize.Comma(int64(n)),
			calc.Time.Avg,
			calc.Time.Min,
			calc.Time.P75,
			calc.Time.P99,
			calc.Time.Max,
			checksum(n, 1, cfg.Iterations, uint64(v)),
		}})
	}

	tbl.Render()
	fmt.Println()
}

// benchResolve times the settle path: an observed atom adopts a
// pending future, then the future resolves and wakes the observer.
func benchResolve(cfg config.BenchConfig) {
	tbl := table.NewWriter()
	tbl.SetTitle("Async resolve")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"iterations", "avg", "min", "p75", "p99", "max"})

	tach := tachymeter.New(&tachymeter.Config{Size: cfg.Iterations})

	a := ripple.New(0)
	eff := ripple.NewEffect(func() (ripple.Cleanup, error) {
		_, err := a.Use()
		return nil, err
	})
	defer eff.Dispose()

	for i := 0; i < cfg.Iterations; i++ {
		f := future.New[int]()
		a.SetFuture(f)
		start := time.Now()
		f.Resolve(i)
		tach.AddTime(time.Since(start))
	}

	calc := tach.Calc()
	tbl.AppendRows([]table.Row{{
		humanize.Comma(int64(cfg.Iterations)),
		calc.Time.Avg,
		calc.Time.Min,
		calc.Time.P75,
		calc.Time.P99,
		calc.Time.Max,
	}})

	tbl.Render()
	fmt.Println()
}

// checksum folds a run's parameters and observed result into a stable
// digest, so runs can be compared across machines and revisions.
func checksum(w, h, iters int, sum uint64) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(fmt.Sprintf("%d:%d:%d:%d", w, h, iters, sum)))
}
