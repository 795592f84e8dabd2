// Package service runs blank-page removal jobs for the HTTP server.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tsawler/pagesweep"
	"github.com/tsawler/pagesweep/format"
	"github.com/tsawler/pagesweep/internal/config"
)

// Job is one processed upload.
type Job struct {
	ID         string
	Filename   string
	OutputName string
	Size       int64
	Elapsed    time.Duration
	Result     *pagesweep.Result
}

// Service reads uploads under a size cap and runs the library on them.
type Service struct {
	cfg     config.Config
	opts    []pagesweep.Option
	maxSize int64
	log     *zap.Logger
}

// New creates a service from a validated configuration.
func New(cfg config.Config, log *zap.Logger) (*Service, error) {
	maxSize, err := cfg.MaxInputBytes()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		cfg:     cfg,
		opts:    cfg.Options(),
		maxSize: maxSize,
		log:     log,
	}, nil
}

// MaxInputSize returns the largest accepted upload in bytes.
func (s *Service) MaxInputSize() int64 {
	return s.maxSize
}

// Clean removes the blank pages of an upload. On ErrNoPagesKept the job is
// returned with its counts alongside the error.
func (s *Service) Clean(ctx context.Context, filename string, r io.Reader) (*Job, error) {
	return s.run(ctx, filename, r, true)
}

// Analyze classifies the pages of an upload without producing output.
func (s *Service) Analyze(ctx context.Context, filename string, r io.Reader) (*Job, error) {
	return s.run(ctx, filename, r, false)
}

func (s *Service) run(ctx context.Context, filename string, r io.Reader, clean bool) (*Job, error) {
	job := &Job{
		ID:         uuid.NewString(),
		Filename:   filename,
		OutputName: s.cfg.OutputName(filename),
	}
	log := s.log.With(zap.String("job_id", job.ID), zap.String("filename", filename))

	data, err := s.read(r)
	if err != nil {
		log.Warn("upload rejected", zap.Error(err))
		return nil, err
	}
	job.Size = int64(len(data))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	var res *pagesweep.Result
	if clean {
		res, err = pagesweep.RemoveBlankPages(data, s.opts...)
	} else {
		res, err = pagesweep.Analyze(data, s.opts...)
	}
	job.Elapsed = time.Since(start)
	job.Result = res

	if err != nil {
		if errors.Is(err, pagesweep.ErrNoPagesKept) {
			log.Info("every page is blank", zap.Int("total_pages", res.TotalPages))
			return job, err
		}
		log.Warn("processing failed", zap.Error(err), zap.String("size", humanize.IBytes(uint64(job.Size))))
		return nil, err
	}

	for _, w := range res.Warnings {
		log.Debug("document warning", zap.Int("page", w.Page), zap.String("message", w.Message))
	}
	log.Info("processed",
		zap.Bool("clean", clean),
		zap.String("size", humanize.IBytes(uint64(job.Size))),
		zap.Int("total_pages", res.TotalPages),
		zap.Int("removed_pages", res.RemovedPages),
		zap.Int("warnings", len(res.Warnings)),
		zap.Duration("elapsed", job.Elapsed),
	)
	return job, nil
}

// read loads at most maxSize bytes, failing with ErrInputTooLarge past it.
func (s *Service) read(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, pagesweep.ErrEmptyInput
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("%w: upload exceeds %s", pagesweep.ErrInputTooLarge, humanize.IBytes(uint64(s.maxSize)))
	}
	// Recognizable non-PDF uploads are named instead of failing in the parser.
	if kind := format.Detect(data); kind != format.PDF && kind != format.Unknown {
		return nil, &pagesweep.ParseError{Err: fmt.Errorf("upload is a %s file, not a PDF", kind)}
	}
	return data, nil
}
