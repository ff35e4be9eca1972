package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xcachekit/pkg/config/xconf"
	"github.com/omeyang/xcachekit/pkg/context/xctx"
	"github.com/omeyang/xcachekit/pkg/observability/xanalytics"
	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/storage/xcache"
	"github.com/omeyang/xcachekit/pkg/storage/xwarm"
)

// createValidateCommand 创建 validate 子命令。
func createValidateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "校验配置文件并打印每个 feature 的最终配置",
		Action: func(_ context.Context, cmd *cli.Command) error {
			src, err := loadDocument(cmd, true)
			if err != nil {
				return err
			}
			doc := src.Document()
			printDocument(cmd.Root().Writer, src.Path(), doc)
			if err := doc.Validate(); err != nil {
				return fmt.Errorf("invalid configuration:\n%w", err)
			}
			fmt.Fprintln(cmd.Root().Writer, "OK")
			return nil
		},
	}
}

func printDocument(w io.Writer, path string, doc xconf.Document) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "config:\t%s\n", path)
	fmt.Fprintln(tw, "FEATURE\tDEFAULT_TTL\tMAX_SIZE\tCLEANUP\tSTATS\tLRU")
	printConfigRow(tw, "(default)", xcache.DefaultConfig().Apply(doc.DefaultCache))
	for _, name := range doc.FeatureNames() {
		printConfigRow(tw, name, doc.FeatureConfig(name))
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "warming: %d targets, max_concurrency=%d, schedule=%q\n",
		len(doc.Warming.Targets), doc.Warming.MaxConcurrency, doc.Warming.Schedule)
	fmt.Fprintf(w, "analytics: max_snapshots=%d, schedule=%q\n",
		doc.Analytics.MaxSnapshots, doc.Analytics.Schedule)
}

func printConfigRow(w io.Writer, name string, c xcache.Config) {
	fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%t\t%t\n",
		name, c.DefaultTTL, c.MaxSize, c.CleanupInterval, c.EnableStats, c.EnableLRU)
}

// createRunCommand 创建 run 子命令。
func createRunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "加载配置并常驻，收到 SIGINT/SIGTERM 后导出分析报告并退出",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "export-file",
				Usage: "退出时导出分析报告的文件路径（.json/.csv）",
			},
			&cli.DurationFlag{
				Name:  "debounce",
				Usage: "配置文件热更新防抖时间",
				Value: 200 * time.Millisecond,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			exportPath := cmd.String("export-file")
			var format xanalytics.Format
			if exportPath != "" {
				f, err := xanalytics.ParseFormat(strings.TrimPrefix(filepath.Ext(exportPath), "."))
				if err != nil {
					return usagef("--export-file: %v", err)
				}
				format = f
			}
			src, err := loadDocument(cmd, true)
			if err != nil {
				return err
			}
			logger, closeLog, err := buildLogger(cmd, cmd.Root().ErrWriter)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			return serve(ctx, src, logger, cmd.Duration("debounce"), exportPath, format)
		},
	}
}

// serve 运行常驻模式直到 ctx 结束。
func serve(ctx context.Context, src *xconf.Source, logger xlog.Logger, debounce time.Duration, exportPath string, format xanalytics.Format) (err error) {
	if cctx, _, cerr := xctx.EnsureCorrelationID(ctx); cerr == nil {
		ctx = cctx
	}
	doc := src.Document()
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	e, err := newEngine(doc, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		err = errors.Join(err, e.Close(closeCtx))
	}()

	for _, name := range doc.FeatureNames() {
		if _, err := e.manager.GetCache(name); err != nil {
			return err
		}
	}

	pool := newWarmPool(e, placeholderLoader)
	defer pool.Stop()
	if err := pool.Apply(doc.Warming); err != nil {
		return err
	}
	if _, err := pool.WarmAll(ctx); err != nil {
		return err
	}
	if doc.Analytics.Schedule != "" {
		if err := e.board.Schedule(doc.Analytics.Schedule); err != nil {
			return err
		}
	}

	watcher, err := xconf.Watch(src, func(next xconf.Document, werr error) {
		if werr == nil {
			werr = next.Validate()
		}
		if werr != nil {
			logger.Error(ctx, "config reload rejected", xlog.Err(werr))
			return
		}
		if aerr := e.manager.ApplyConfig(next.DefaultCache, next.Features); aerr != nil {
			logger.Error(ctx, "apply cache config failed", xlog.Err(aerr))
		}
		if aerr := pool.Apply(next.Warming); aerr != nil {
			logger.Error(ctx, "apply warming config failed", xlog.Err(aerr))
		}
		logger.Info(ctx, "config reloaded", xlog.Count(int64(len(next.Features))))
	}, xconf.WithDebounce(debounce))
	if err != nil {
		return err
	}

	logger.Info(ctx, "xcachectl running", xlog.Count(int64(len(e.manager.Features()))))
	e.sched.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		watcher.Start(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info(ctx, "shutting down")

	if exportPath == "" {
		return nil
	}
	e.board.Capture(ctx)
	return exportTo(exportPath, e.board, format)
}

// placeholderLoader 常驻模式没有后端数据源，预热写入带时间戳的占位记录。
func placeholderLoader(feature string) xwarm.Loader[any] {
	return func(_ context.Context, pattern string) (any, error) {
		return map[string]any{
			"feature":   feature,
			"pattern":   pattern,
			"warmed_at": time.Now().UTC().Format(time.RFC3339),
		}, nil
	}
}

func exportTo(path string, board *xanalytics.Dashboard, format xanalytics.Format) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close export file: %w", cerr)
		}
	}()
	return board.Export(f, format)
}
