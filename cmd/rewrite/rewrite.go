package rewrite

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SirZenith/lazyimg/internal/env"
	"github.com/SirZenith/lazyimg/common"
	"github.com/SirZenith/lazyimg/rewrite"
	"github.com/charmbracelet/log"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
)

func Cmd() *cli.Command {
	var target string

	return &cli.Command{
		Name:  "rewrite",
		Usage: "convert <img> in HTML files into lazy loading responsive markup",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "output directory, files are rewritten in place if not given",
			},
			&cli.IntFlag{
				Name:    "job",
				Aliases: []string{"j"},
				Usage:   "rewrite job count, default value comes from config",
			},
			&cli.BoolFlag{
				Name:  "picture",
				Usage: "wrap images in <picture>, overriding config",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "don't show progress bar",
			},
		},
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:        "target",
				UsageText:   "<path>",
				Destination: &target,
				Min:         1,
				Max:         1,
			},
		},
		Commands: []*cli.Command{
			subCmdWatch(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := env.Load(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			options := getOptionsFromCmd(cmd, e)

			tasks, err := collectTasks(target, options.outputDir)
			if err != nil {
				return err
			}

			rewriter := rewrite.New(e.Lookup, e.Builder, e.Render, options.policy)
			summary := runBatch(ctx, rewriter, tasks, options)
			summary.log()

			if summary.failed > 0 {
				return fmt.Errorf("%d file(s) failed", summary.failed)
			}

			return nil
		},
	}
}

type options struct {
	outputDir    string
	jobCnt       int
	showProgress bool
	policy       rewrite.Policy
}

func getOptionsFromCmd(cmd *cli.Command, e *env.Env) options {
	policy := e.Config.RewritePolicy()
	if cmd.Bool("picture") {
		policy.RenderPicture = true
	}

	jobCnt := int(cmd.Int("job"))
	jobCnt = common.GetIntOr(jobCnt, e.Config.JobCount)
	jobCnt = common.GetIntOr(jobCnt, runtime.NumCPU())

	return options{
		outputDir:    cmd.String("output"),
		jobCnt:       jobCnt,
		showProgress: !cmd.Bool("no-progress"),
		policy:       policy,
	}
}

type summary struct {
	total     int
	rewritten int64
	unchanged int64
	failed    int64
	elapsed   time.Duration
}

func (s *summary) log() {
	common.LogBannerMsg([]string{
		fmt.Sprintf("files     : %d", s.total),
		fmt.Sprintf("rewritten : %d", s.rewritten),
		fmt.Sprintf("unchanged : %d", s.unchanged),
		fmt.Sprintf("failed    : %d", s.failed),
		fmt.Sprintf("time      : %s", s.elapsed.Round(time.Millisecond)),
	}, 2)
}

func runBatch(ctx context.Context, rewriter *rewrite.Rewriter, tasks []task, options options) *summary {
	startTime := time.Now()
	result := &summary{total: len(tasks)}

	var bar *progressbar.ProgressBar
	if options.showProgress {
		bar = progressbar.NewOptions64(
			int64(len(tasks)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("rewriting"),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	var group sync.WaitGroup
	taskChan := make(chan task, options.jobCnt)

	for i := options.jobCnt; i > 0; i-- {
		go func() {
			for t := range taskChan {
				status, err := rewriteFile(ctx, rewriter, t)
				switch status {
				case resultRewritten:
					atomic.AddInt64(&result.rewritten, 1)
					log.Debugf("rewritten: %s -> %s", t.input, t.output)
				case resultUnchanged:
					atomic.AddInt64(&result.unchanged, 1)
				default:
					atomic.AddInt64(&result.failed, 1)
					log.Error(err.Error())
				}

				if bar != nil {
					bar.Add(1)
				}

				group.Done()
			}
		}()
	}

	for _, t := range tasks {
		group.Add(1)
		taskChan <- t
	}
	close(taskChan)

	group.Wait()

	if bar != nil {
		bar.Finish()
	}

	result.elapsed = time.Since(startTime)

	return result
}
