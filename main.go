package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/chaos-io/bgkey/batch"
	"github.com/chaos-io/bgkey/config"
	"github.com/chaos-io/bgkey/keyer"
	"github.com/chaos-io/bgkey/server"
	"github.com/chaos-io/bgkey/util"
)

var profiler interface{ Stop() }

var rootCmd = &cobra.Command{
	Use:           "bgkey",
	Short:         "Make near-black or near-white image backgrounds transparent",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if on, _ := cmd.Flags().GetBool("profile"); on {
			profiler = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
		}

		level := slog.LevelInfo
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = slog.LevelDebug
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Key the background of one image file or URL and save it as PNG",
	RunE:  runKey,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP keying service",
	RunE:  runServe,
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Key every image in a directory, once or on a cron schedule",
	RunE:  runBatch,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().Bool("profile", false, "Write a CPU profile to the working directory")
	rootCmd.PersistentFlags().String("mode", "", "Background to key: black or white")
	rootCmd.PersistentFlags().Int("tolerance", -1, "Per-channel threshold (default 30 for black, 200 for white)")
	rootCmd.PersistentFlags().Int("max-size", 0, "Downscale so the longest side is at most this many pixels")
	rootCmd.PersistentFlags().Bool("trim", false, "Crop fully transparent borders")
	rootCmd.PersistentFlags().String("compression", "", "PNG compression: default, none, speed or best")

	keyCmd.Flags().StringP("input", "i", "", "Input image path or http(s) URL")
	keyCmd.Flags().StringP("output", "o", "", "Output PNG path")
	_ = keyCmd.MarkFlagRequired("input")
	_ = keyCmd.MarkFlagRequired("output")

	serveCmd.Flags().String("addr", "", "Listen address (default :8080)")

	batchCmd.Flags().String("in", "", "Input directory")
	batchCmd.Flags().String("out", "", "Output directory")
	batchCmd.Flags().String("schedule", "", "Cron schedule, e.g. \"@every 5m\"; empty runs once")

	rootCmd.AddCommand(keyCmd, serveCmd, batchCmd)
}

// loadConfig 默认值 -> 配置文件 -> 命令行参数
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Mode, _ = flags.GetString("mode")
		if !flags.Changed("tolerance") {
			cfg.Tolerance = -1
		}
	}
	if flags.Changed("tolerance") {
		cfg.Tolerance, _ = flags.GetInt("tolerance")
	}
	if flags.Changed("max-size") {
		cfg.MaxSize, _ = flags.GetInt("max-size")
	}
	if flags.Changed("trim") {
		cfg.Trim, _ = flags.GetBool("trim")
	}
	if flags.Changed("compression") {
		cfg.Compression, _ = flags.GetString("compression")
	}
	if f := flags.Lookup("addr"); f != nil && f.Changed {
		cfg.Server.Addr = f.Value.String()
	}
	if f := flags.Lookup("in"); f != nil && f.Changed {
		cfg.Batch.InputDir = f.Value.String()
	}
	if f := flags.Lookup("out"); f != nil && f.Changed {
		cfg.Batch.OutputDir = f.Value.String()
	}
	if f := flags.Lookup("schedule"); f != nil && f.Changed {
		cfg.Batch.Schedule = f.Value.String()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runKey(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	inputPath, _ := cmd.Flags().GetString("input")
	outputPath, _ := cmd.Flags().GetString("output")

	defer util.Trace("key " + inputPath)()
	n, err := keyer.ProcessFile(cmd.Context(), inputPath, outputPath, cfg.Options())
	if err != nil {
		return err
	}

	fmt.Printf("Saved to %s (%d bytes)\n", outputPath, n)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return server.New(cfg).Run(cmd.Context())
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	r := batch.NewRunner(cfg)
	if cfg.Batch.Schedule != "" {
		return r.Schedule(cmd.Context(), cfg.Batch.Schedule)
	}

	report, err := r.RunOnce(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Run %s: %d keyed, %d failed, %d bytes in %s\n",
		report.RunID, report.Processed, report.Failed, report.Bytes, report.Duration)
	return nil
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer func() {
		if profiler != nil {
			profiler.Stop()
		}
	}()

	return rootCmd.ExecuteContext(ctx)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
