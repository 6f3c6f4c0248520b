package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/segmentio/ksuid"

	"github.com/chaos-io/bgkey/config"
	"github.com/chaos-io/bgkey/keyer"
)

type Runner struct {
	In         string
	Out        string
	Extensions []string
	Options    keyer.Options
}

// Report 一次批处理的统计
type Report struct {
	RunID     string
	Processed int
	Failed    int
	Bytes     int64
	Duration  time.Duration
}

func NewRunner(cfg *config.Config) *Runner {
	return &Runner{
		In:         cfg.Batch.InputDir,
		Out:        cfg.Batch.OutputDir,
		Extensions: cfg.Batch.Extensions,
		Options:    cfg.Options(),
	}
}

// scanDir 只扫描一层，扩展名不区分大小写
func scanDir(path string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := strings.ToLower(e.Name())
		for _, ext := range exts {
			if strings.HasSuffix(n, "."+strings.ToLower(strings.TrimPrefix(ext, "."))) {
				files = append(files, filepath.Join(path, e.Name()))
				break
			}
		}
	}
	return files, nil
}

func outputName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".png"
}

// RunOnce 处理 In 目录下所有支持的图片，单个文件失败只记日志不中断
func (r *Runner) RunOnce(ctx context.Context) (Report, error) {
	start := time.Now()
	report := Report{RunID: ksuid.New().String()}
	log := slog.With("run_id", report.RunID)

	// 输出的 .png 会在下一轮被当成输入重新抠图
	if config.SameDir(r.In, r.Out) {
		return report, fmt.Errorf("output dir %s must differ from input dir", r.Out)
	}

	files, err := scanDir(r.In, r.Extensions)
	if err != nil {
		return report, fmt.Errorf("scan %s: %w", r.In, err)
	}
	log.Info("batch started", "input", r.In, "files", len(files))

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}

		out := filepath.Join(r.Out, outputName(f))
		n, err := keyer.ProcessFile(ctx, f, out, r.Options)
		if err != nil {
			report.Failed++
			log.Error("failed to key image", "path", f, "kind", keyer.KindOf(err).String(), "err", err)
			continue
		}
		report.Processed++
		report.Bytes += n
		log.Debug("keyed image", "path", f, "output", out, "bytes", n)
	}

	report.Duration = time.Since(start)
	log.Info("batch finished", "processed", report.Processed, "failed", report.Failed, "elapsed", report.Duration)
	return report, nil
}

// Schedule 按 cron 表达式周期执行 RunOnce，上一次没跑完则跳过本次，ctx 结束后返回
func (r *Runner) Schedule(ctx context.Context, spec string) error {
	schedule, err := config.ParseSchedule(spec)
	if err != nil {
		return fmt.Errorf("parse schedule %q: %w", spec, err)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(schedule, cron.FuncJob(func() {
		if _, err := r.RunOnce(ctx); err != nil {
			slog.Error("batch run failed", "err", err)
		}
	}))

	slog.Info("batch scheduled", "schedule", spec, "input", r.In, "output", r.Out)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
