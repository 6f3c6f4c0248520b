package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"

	"github.com/chaos-io/bgkey/config"
	"github.com/chaos-io/bgkey/keyer"
)

const requestIDHeader = "X-Request-Id"

type Server struct {
	addr           string
	maxUploadBytes int64
	defaults       keyer.Options
	engine         *gin.Engine
}

func New(cfg *config.Config) *Server {
	s := &Server{
		addr:           cfg.Server.Addr,
		maxUploadBytes: cfg.Server.MaxUploadBytes,
		defaults:       cfg.Options(),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestID())
	if gin.IsDebugging() {
		engine.Use(gin.Logger())
	}
	engine.GET("/healthz", s.healthz)
	engine.POST("/v1/key", s.key)
	s.engine = engine

	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run 阻塞直到 ctx 结束，然后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen %s: %w", s.addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ksuid.New().String()
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type errorResp struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id"`
}

func abort(c *gin.Context, status int, err error) {
	resp := errorResp{Error: err.Error(), RequestID: c.GetString(requestIDHeader)}
	if kind := keyer.KindOf(err); kind != 0 {
		resp.Kind = kind.String()
	}
	slog.Warn("key request failed", "request_id", resp.RequestID, "status", status, "err", err)
	c.AbortWithStatusJSON(status, resp)
}

// options 表单参数覆盖配置默认值
func (s *Server) options(c *gin.Context) (keyer.Options, error) {
	opts := s.defaults

	if v := c.PostForm("mode"); v != "" {
		mode, err := keyer.ParseMode(v)
		if err != nil {
			return opts, err
		}
		if mode != opts.Mode {
			opts.Tolerance = -1
		}
		opts.Mode = mode
	}
	if v := c.PostForm("tolerance"); v != "" {
		t, err := strconv.Atoi(v)
		if err != nil || t < 0 || t > 255 {
			return opts, fmt.Errorf("invalid tolerance %q", v)
		}
		opts.Tolerance = t
	}
	if v := c.PostForm("trim"); v != "" {
		trim, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid trim %q", v)
		}
		opts.Trim = trim
	}
	return opts, nil
}

// key multipart 字段 image 上传图片，返回抠图后的 PNG
func (s *Server) key(c *gin.Context) {
	if c.Request.ContentLength > s.maxUploadBytes {
		abort(c, http.StatusRequestEntityTooLarge, fmt.Errorf("upload of %d bytes exceeds limit %d", c.Request.ContentLength, s.maxUploadBytes))
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes)

	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abort(c, http.StatusRequestEntityTooLarge, err)
			return
		}
		abort(c, http.StatusBadRequest, fmt.Errorf("missing image: %w", err))
		return
	}

	opts, err := s.options(c)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	f, err := fh.Open()
	if err != nil {
		abort(c, http.StatusInternalServerError, &keyer.Error{Kind: keyer.KindIO, Op: "open upload", Path: fh.Filename, Err: err})
		return
	}
	defer func() {
		_ = f.Close()
	}()

	buf := &bytes.Buffer{}
	n, err := keyer.Process(c.Request.Context(), f, buf, opts)
	if err != nil {
		status := http.StatusInternalServerError
		if keyer.IsKind(err, keyer.KindDecode) {
			status = http.StatusUnprocessableEntity
		}
		abort(c, status, err)
		return
	}

	slog.Debug("keyed upload",
		"request_id", c.GetString(requestIDHeader),
		"file", fh.Filename,
		"mode", opts.Mode.String(),
		"bytes", n,
	)
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}
