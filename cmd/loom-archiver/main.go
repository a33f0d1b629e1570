package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alanbriolat/loom-archiver"
	"github.com/alanbriolat/loom-archiver/async"
	"github.com/alanbriolat/loom-archiver/internal/batch"
	"github.com/alanbriolat/loom-archiver/internal/completion"
)

func main() {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.Level.SetLevel(zap.InfoLevel)
	logger, err := config.Build()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.RedirectStdLog(logger)
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = loom_archiver.WithLogger(ctx, logger)

	app := newApp(config.Level)
	result := async.Run(func() error { return app.RunContext(ctx, os.Args) })

	select {
	case err = <-result:
	case <-ctx.Done():
		stop()
		logger.Info("Interrupted, waiting for in-flight downloads to stop...")
		err = <-result
	}
	var usageErr *loom_archiver.UsageError
	if errors.As(err, &usageErr) {
		fmt.Fprintf(os.Stderr, "Error: %v\nRun '%s --help' for usage.\n", err, app.Name)
		os.Exit(2)
	} else if err != nil {
		logger.Fatal(err.Error())
	}
}

func newApp(level zap.AtomicLevel) *cli.App {
	return &cli.App{
		Name:  loom_archiver.AppName,
		Usage: "download Loom videos, one at a time or from a list",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Aliases: []string{"u"},
				Usage:   "`URL` of the video in the format https://www.loom.com/share/[ID]",
			},
			&cli.StringFlag{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "`FILE` containing a list of video URLs, one per line",
			},
			&cli.StringFlag{
				Name:    "prefix",
				Aliases: []string{"p"},
				Usage:   "prefix for the output filenames when downloading from a list",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "`PATH` to save the video to, or directory to save videos to when using --list",
				EnvVars: []string{"LOOM_ARCHIVER_OUT"},
			},
			&cli.IntFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Value:   int(loom_archiver.DefaultDelay / time.Millisecond),
				Usage:   "milliseconds to wait between downloads when using --list",
				EnvVars: []string{"LOOM_ARCHIVER_TIMEOUT"},
			},
			&cli.StringFlag{
				Name:    "completion-log",
				Value:   loom_archiver.DefaultCompletionLogPath(),
				Usage:   "`FILE` recording completed URLs (bbolt database if it ends in .db)",
				EnvVars: []string{"LOOM_ARCHIVER_COMPLETION_LOG"},
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Value: loom_archiver.DefaultConcurrency,
				Usage: "maximum simultaneous downloads when using --list",
			},
			&cli.IntFlag{
				Name:  "attempts",
				Value: batch.DefaultConfig.Retry.MaxAttempts,
				Usage: "attempts per video before giving up when using --list",
			},
			&cli.StringFlag{
				Name:    "base-url",
				Value:   loom_archiver.DefaultBaseURL,
				Usage:   "platform API base `URL`",
				EnvVars: []string{"LOOM_ARCHIVER_BASE_URL"},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				level.SetLevel(zap.DebugLevel)
			}
			return nil
		},
		Action: func(c *cli.Context) error {
			if err := validate(c); err != nil {
				return err
			}
			client := loom_archiver.NewClient(loom_archiver.WithBaseURL(c.String("base-url")))
			if c.String("list") != "" {
				return downloadList(c, client)
			}
			return downloadSingle(c, client)
		},
		HideHelpCommand: true,
	}
}

func validate(c *cli.Context) error {
	switch {
	case c.String("url") == "" && c.String("list") == "":
		return &loom_archiver.UsageError{Msg: "please provide either a single video URL with --url or a list of URLs with --list"}
	case c.String("url") != "" && c.String("list") != "":
		return &loom_archiver.UsageError{Msg: "please provide either --url or --list, not both"}
	case c.Int("timeout") < 0:
		return &loom_archiver.UsageError{Msg: "please provide a non-negative number for --timeout"}
	case c.Int("concurrency") < 1:
		return &loom_archiver.UsageError{Msg: "--concurrency must be at least 1"}
	case c.Int("attempts") < 1:
		return &loom_archiver.UsageError{Msg: "--attempts must be at least 1"}
	}
	return nil
}

func downloadSingle(c *cli.Context, client *loom_archiver.Client) error {
	bar := progressbar.DefaultBytes(-1, "downloading")
	path, err := loom_archiver.DownloadSingle(c.Context, client, c.String("url"), c.String("out"), func(written, total int64) {
		if total > 0 && bar.GetMax() != int(total) {
			bar.ChangeMax(int(total))
		}
		_ = bar.Set(int(written))
	})
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	zap.S().Infof("Saved %s", path)
	return nil
}

func downloadList(c *cli.Context, client *loom_archiver.Client) error {
	logger := zap.S()
	completed, err := completion.Open(c.String("completion-log"))
	if err != nil {
		return err
	}
	defer completed.Close()

	cfg := batch.DefaultConfig
	cfg.ListPath = c.String("list")
	if out := c.String("out"); out != "" {
		cfg.OutputDir = out
	}
	cfg.Prefix = c.String("prefix")
	cfg.Delay = time.Duration(c.Int("timeout")) * time.Millisecond
	cfg.Concurrency = c.Int("concurrency")
	cfg.Retry.MaxAttempts = c.Int("attempts")

	report, err := batch.New(client, completed).Run(c.Context, cfg)
	if err != nil {
		return err
	}
	if err := report.Err(); err != nil {
		logger.Warnf("Finished with failures (they will be retried on the next run):\n%v", err)
	}
	logger.Infof("Downloaded %d of %d videos (%d skipped as already downloaded)",
		len(report.Succeeded), report.Attempted(), report.Skipped)
	return nil
}
