// Package refresh regenerates a calendar file from a local export on a cron
// schedule.
package refresh

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/minjunminji/ubcxlsxtoics/internal/config"
	"github.com/minjunminji/ubcxlsxtoics/internal/convert"
	appLog "github.com/minjunminji/ubcxlsxtoics/internal/log"
)

// Result describes one pass.
type Result struct {
	// Skipped is set when the input hash matched the last written run.
	Skipped bool
	Stats   convert.Stats
}

// Runner converts Input into Output whenever Input changes.
type Runner struct {
	input    string
	output   string
	schedule cron.Schedule
	spec     string
	conv     *convert.Converter

	mu      sync.Mutex
	lastSum [sha256.Size]byte
	written bool
}

// New validates the cron spec and paths.
func New(cfg config.WatchConfig, conv *convert.Converter) (*Runner, error) {
	if cfg.Input == "" {
		return nil, errors.New("watch input path is empty")
	}
	if cfg.Output == "" {
		return nil, errors.New("watch output path is empty")
	}
	if conv == nil {
		return nil, errors.New("converter is nil")
	}
	sched, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("watch schedule %q: %w", cfg.Schedule, err)
	}
	return &Runner{
		input:    cfg.Input,
		output:   cfg.Output,
		schedule: sched,
		spec:     cfg.Schedule,
		conv:     conv,
	}, nil
}

// RunOnce converts the input if it changed since the last successful pass
// or the output has gone missing.
func (r *Runner) RunOnce(ctx context.Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.input)
	if err != nil {
		return Result{}, fmt.Errorf("read input: %w", err)
	}
	sum := sha256.Sum256(data)
	if r.written && sum == r.lastSum && r.outputExists() {
		appLog.Debug("input unchanged, skipping", "input", r.input)
		return Result{Skipped: true}, nil
	}

	doc, st, err := r.conv.File(filepath.Base(r.input), data)
	if err != nil {
		return Result{Stats: st}, err
	}
	if err := os.MkdirAll(filepath.Dir(r.output), 0o755); err != nil {
		return Result{Stats: st}, err
	}
	if err := config.WriteFileAtomic(r.output, doc, 0o644); err != nil {
		return Result{Stats: st}, fmt.Errorf("write output: %w", err)
	}

	r.lastSum = sum
	r.written = true
	appLog.Info("calendar regenerated",
		"input", r.input,
		"output", r.output,
		"events", st.Events,
		"skipped_lines", st.SkippedLines,
	)
	return Result{Stats: st}, nil
}

func (r *Runner) outputExists() bool {
	_, err := os.Stat(r.output)
	return !errors.Is(err, fs.ErrNotExist)
}

// Run does one pass immediately, then one per schedule tick until ctx is
// cancelled. Pass failures are logged and do not stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	pass := func() {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			appLog.Error("refresh pass failed", err, "input", r.input)
		}
	}
	pass()

	c := cron.New()
	c.Schedule(r.schedule, cron.FuncJob(pass))
	c.Start()
	appLog.Info("watching export", "input", r.input, "schedule", r.spec)

	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("refresh stopped")
	return nil
}
