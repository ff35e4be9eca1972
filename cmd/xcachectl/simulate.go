package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"math/rand/v2"
	"slices"
	"text/tabwriter"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xcachekit/pkg/config/xconf"
	"github.com/omeyang/xcachekit/pkg/observability/xanalytics"
	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/storage/xcache"
	"github.com/omeyang/xcachekit/pkg/storage/xpredict"
	"github.com/omeyang/xcachekit/pkg/storage/xwarm"
)

// workload 合成负载参数
type workload struct {
	features []string
	ops      int
	keys     int
	rounds   int
	workers  int
	seed     uint64
}

func (w workload) validate() error {
	switch {
	case len(w.features) == 0:
		return usagef("--features must not be empty")
	case w.ops <= 0:
		return usagef("--ops must be positive")
	case w.keys < 2:
		return usagef("--keys must be at least 2")
	case w.rounds <= 0:
		return usagef("--rounds must be positive")
	case w.workers <= 0:
		return usagef("--workers must be positive")
	}
	return nil
}

// createSimulateCommand 创建 simulate 子命令。
func createSimulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "运行合成多 feature 负载，打印统计与分析报告",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "features",
				Usage: "参与负载的 feature 列表",
				Value: []string{"auth", "user", "post"},
			},
			&cli.IntFlag{Name: "ops", Usage: "总操作数", Value: 10000},
			&cli.IntFlag{Name: "keys", Usage: "每个 feature 的 key 空间大小", Value: 500},
			&cli.IntFlag{Name: "rounds", Usage: "轮数，每轮结束采集一个快照", Value: 5},
			&cli.IntFlag{Name: "workers", Usage: "并发 worker 数", Value: 4},
			&cli.IntFlag{Name: "seed", Usage: "随机种子", Value: 1},
			&cli.StringFlag{Name: "export", Usage: "追加输出分析报告 (json/csv)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			wl := workload{
				features: cmd.StringSlice("features"),
				ops:      cmd.Int("ops"),
				keys:     cmd.Int("keys"),
				rounds:   cmd.Int("rounds"),
				workers:  cmd.Int("workers"),
				seed:     uint64(cmd.Int("seed")),
			}
			if err := wl.validate(); err != nil {
				return err
			}
			var format xanalytics.Format
			if s := cmd.String("export"); s != "" {
				f, err := xanalytics.ParseFormat(s)
				if err != nil {
					return usagef("--export: %v", err)
				}
				format = f
			}

			src, err := loadDocument(cmd, false)
			if err != nil {
				return err
			}
			doc := src.Document()
			if err := doc.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger, closeLog, err := buildLogger(cmd, cmd.Root().ErrWriter)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			e, err := newEngine(doc, logger)
			if err != nil {
				return err
			}
			defer func() { _ = e.Close(context.WithoutCancel(ctx)) }()

			return simulate(ctx, cmd.Root().Writer, e, doc.Warming, wl, format)
		},
	}
}

// defaultTargets 配置未声明预热目标时，为每个 feature 的前几个热点 key 生成目标。
func defaultTargets(cfg xconf.WarmingConfig, features []string) xconf.WarmingConfig {
	if len(cfg.Targets) > 0 {
		return cfg
	}
	for _, f := range features {
		for i := range 5 {
			cfg.Targets = append(cfg.Targets, xconf.WarmTarget{
				Pattern:  fmt.Sprintf("%s:%d", f, i),
				Priority: 5 - i,
			})
		}
	}
	return cfg
}

func syntheticValue(key string) any {
	return "value:" + key
}

// simulate 执行负载并输出报告。
func simulate(ctx context.Context, out io.Writer, e *engine, warming xconf.WarmingConfig, wl workload, format xanalytics.Format) error {
	per := wl.ops / wl.rounds
	for round := range wl.rounds {
		if err := runRound(ctx, e, wl, round, per); err != nil {
			return err
		}
		e.board.Capture(ctx)
	}

	pool := newWarmPool(e, func(string) xwarm.Loader[any] {
		return func(_ context.Context, pattern string) (any, error) {
			return syntheticValue(pattern), nil
		}
	})
	defer pool.Stop()
	if err := pool.Apply(defaultTargets(warming, wl.features)); err != nil {
		return err
	}
	warmed, err := pool.WarmAll(ctx)
	if err != nil {
		return err
	}
	prefetched, err := e.Prefetch(ctx, func(_, key string) (any, error) {
		return syntheticValue(key), nil
	})
	if err != nil {
		return err
	}
	e.board.Capture(ctx)

	events, err := e.EventTotals(ctx)
	if err != nil {
		return err
	}
	printReport(out, e, warmed, prefetched, events)
	if format != "" {
		fmt.Fprintln(out)
		return e.board.Export(out, format)
	}
	return nil
}

// runRound 并发执行一轮负载。
//
// 操作分布：75% 读（未命中则回填并登记对父 key 的依赖），15% 写，
// 8% 级联删除，2% 模式失效。key 按 Zipf 分布选取，模拟热点。
func runRound(ctx context.Context, e *engine, wl workload, round, ops int) error {
	g, gctx := errgroup.WithContext(ctx)
	for w := range wl.workers {
		n := ops / wl.workers
		if w < ops%wl.workers {
			n++
		}
		rng := rand.New(rand.NewPCG(wl.seed, uint64(round*wl.workers+w)))
		g.Go(func() error {
			zipf := rand.NewZipf(rng, 1.2, 1, uint64(wl.keys-1))
			for range n {
				if err := gctx.Err(); err != nil {
					return err
				}
				feature := wl.features[rng.IntN(len(wl.features))]
				if err := step(gctx, e, feature, zipf.Uint64(), rng.IntN(100)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func step(ctx context.Context, e *engine, feature string, n uint64, dice int) error {
	cache, err := e.manager.GetCache(feature)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s:%d", feature, n)
	switch {
	case dice < 75:
		_, ok, err := cache.Get(ctx, key)
		if err != nil || ok {
			return err
		}
		if err := cache.Set(ctx, key, syntheticValue(key)); err != nil {
			return err
		}
		if n%10 != 0 {
			parent := fmt.Sprintf("%s:%d", feature, n/10*10)
			if err := e.graph.AddDependency(key, parent); err != nil {
				e.logger.Debug(ctx, "dependency skipped", xlog.Key(key), xlog.Err(err))
			}
		}
	case dice < 90:
		return cache.Set(ctx, key, syntheticValue(key))
	case dice < 98:
		_, err := e.graph.Cascade(ctx, cache, key)
		return err
	default:
		_, err := cache.InvalidatePattern(ctx, xcache.Contains(key))
		return err
	}
	return nil
}

func printReport(out io.Writer, e *engine, warmed map[string]xwarm.Report, prefetched map[string]xpredict.PrefetchReport, events map[string]int64) {
	stats := e.manager.GlobalStats()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "FEATURE\tSIZE\tHITS\tMISSES\tEVICTIONS\tREQUESTS\tHIT_RATE\tWARMED\tPREFETCHED\t")
	for _, name := range e.manager.Features() {
		s := stats[name]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%.2f%%\t%d\t%d\t\n",
			name, s.Size, s.Hits, s.Misses, s.Evictions, s.TotalRequests, s.HitRate*100,
			warmed[name].Succeeded, prefetched[name].Loaded)
	}
	_ = tw.Flush()

	sum := e.board.Summary()
	fmt.Fprintf(out, "\nsnapshots: %d, overall hit rate: %.2f%%, dependency edges: %d\n",
		sum.Snapshots, sum.Overall.HitRate*100, e.graph.Len())
	for _, k := range slices.Sorted(maps.Keys(events)) {
		fmt.Fprintf(out, "events.%s: %d\n", k, events[k])
	}
}
