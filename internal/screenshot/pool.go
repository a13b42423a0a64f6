// Package screenshot encodes captured backbuffers on worker goroutines so
// the render thread only pays for the readback.
package screenshot

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"q3backend/internal/logging"

	"golang.org/x/image/bmp"
)

// Job is one capture waiting to be written.
type Job struct {
	Image  *image.RGBA
	Path   string
	Format string
	// ResultChan receives the outcome when set.
	ResultChan chan Result
}

// Result reports where a capture went.
type Result struct {
	Path  string
	Error error
}

// Pool manages the encoder goroutines.
type Pool struct {
	jobQueue chan Job
	workers  int
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewPool starts workers goroutines reading from a queue of queueSize.
func NewPool(workers int, queueSize int) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		jobQueue: make(chan Job, queueSize),
		workers:  workers,
		ctx:      ctx,
		cancel:   cancel,
	}

	for i := range workers {
		pool.wg.Add(1)
		go pool.worker(i)
	}

	return pool
}

// Submit queues job. Returns false if the queue is full or the pool is
// shutting down.
func (p *Pool) Submit(job Job) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case p.jobQueue <- job:
		return true
	default:
		return false
	}
}

// SubmitBlocking waits for queue space.
func (p *Pool) SubmitBlocking(job Job) {
	select {
	case p.jobQueue <- job:
	case <-p.ctx.Done():
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobQueue:
			err := Write(job.Image, job.Path, job.Format)
			if err != nil {
				logging.Logger().Warn("screenshot failed", "path", job.Path, "worker", id, "err", err)
			} else {
				logging.Logger().Info("screenshot written", "path", job.Path)
			}

			if job.ResultChan != nil {
				select {
				case job.ResultChan <- Result{Path: job.Path, Error: err}:
				case <-p.ctx.Done():
					return
				}
			}

		case <-p.ctx.Done():
			return
		}
	}
}

// Shutdown stops the workers. Jobs still queued are dropped.
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
}

// QueueLength returns the number of jobs waiting.
func (p *Pool) QueueLength() int {
	return len(p.jobQueue)
}

// Extension maps a format name to its file extension.
func Extension(format string) string {
	switch strings.ToLower(format) {
	case "jpg", "jpeg":
		return "jpg"
	case "bmp":
		return "bmp"
	}
	return "png"
}

// Filename returns the n'th capture name inside dir.
func Filename(dir, format string, n int) string {
	return filepath.Join(dir, fmt.Sprintf("shot%04d.%s", n, Extension(format)))
}

// Write encodes img to path, creating parent directories.
func Write(img *image.RGBA, path, format string) error {
	if img == nil {
		return fmt.Errorf("screenshot %s: no image", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create screenshot dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create screenshot file: %w", err)
	}

	if err := Encode(f, img, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Encode writes img in format to w.
func Encode(w io.Writer, img image.Image, format string) error {
	var err error
	switch Extension(format) {
	case "jpg":
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	case "bmp":
		err = bmp.Encode(w, img)
	default:
		err = png.Encode(w, img)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return nil
}
