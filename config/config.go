package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/chaos-io/bgkey/keyer"
)

type Config struct {
	Mode      string `yaml:"mode"`
	Tolerance int    `yaml:"tolerance"` // -1 使用模式默认阈值
	MaxSize   int    `yaml:"max_size"`
	Trim      bool   `yaml:"trim"`

	Compression string `yaml:"compression"` // default / none / speed / best

	Server Server `yaml:"server"`
	Batch  Batch  `yaml:"batch"`
}

type Server struct {
	Addr           string `yaml:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

type Batch struct {
	InputDir   string   `yaml:"input_dir"`
	OutputDir  string   `yaml:"output_dir"`
	Schedule   string   `yaml:"schedule"`
	Extensions []string `yaml:"extensions"`
}

func Default() *Config {
	return &Config{
		Mode:      "black",
		Tolerance:   -1,
		Compression: "default",
		Server: Server{
			Addr:           ":8080",
			MaxUploadBytes: 20 << 20,
		},
		Batch: Batch{
			InputDir:   "./input",
			OutputDir:  "./output",
			Extensions: []string{"jpg", "jpeg", "png", "gif", "bmp", "tiff", "webp"},
		},
	}
}

// Load 在默认值之上叠加 YAML 文件，path 为空时只返回默认值
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	var errs []error
	if _, err := keyer.ParseMode(c.Mode); err != nil {
		errs = append(errs, err)
	}
	if c.Tolerance < -1 || c.Tolerance > 255 {
		errs = append(errs, fmt.Errorf("tolerance %d out of range [-1, 255], -1 means mode default", c.Tolerance))
	}
	if c.MaxSize < 0 {
		errs = append(errs, fmt.Errorf("max_size must not be negative, got %d", c.MaxSize))
	}
	if _, err := keyer.ParseCompression(c.Compression); err != nil {
		errs = append(errs, err)
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes must be positive, got %d", c.Server.MaxUploadBytes))
	}
	if SameDir(c.Batch.InputDir, c.Batch.OutputDir) {
		errs = append(errs, fmt.Errorf("batch.output_dir must differ from batch.input_dir (%s)", c.Batch.InputDir))
	}
	if c.Batch.Schedule != "" {
		if _, err := ParseSchedule(c.Batch.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("batch.schedule: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Options 转换成抠图参数，调用前需要先 Validate
func (c *Config) Options() keyer.Options {
	mode, _ := keyer.ParseMode(c.Mode)
	compression, _ := keyer.ParseCompression(c.Compression)
	return keyer.Options{
		Mode:        mode,
		Tolerance:   c.Tolerance,
		MaxSize:     c.MaxSize,
		Trim:        c.Trim,
		Compression: compression,
	}
}

// SameDir 两个路径清理成绝对路径后是否相同
func SameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule 支持 5 段、6 段（带秒）和 @every / @daily 等写法
func ParseSchedule(spec string) (cron.Schedule, error) {
	return scheduleParser.Parse(spec)
}
