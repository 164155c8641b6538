// Package pipeline runs frames through the encode, transform, and decode
// stages, fanning per-frame work across workers while preserving frame order
// on the output side.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/ghostlink/internal/codec"
	"github.com/zsiec/ghostlink/internal/container"
	"github.com/zsiec/ghostlink/internal/media"
)

// TransformFunc transforms one frame of samples. It must not mutate the
// input and must be safe for concurrent calls with distinct frames.
type TransformFunc func(samples []float32, frame int) ([]float32, error)

// Options tunes a pipeline run.
type Options struct {
	// Workers is the number of concurrent transform workers. Values below
	// two select the sequential path.
	Workers int
	// Logger receives per-run progress. Nil means slog.Default.
	Logger *slog.Logger
	// Progress is the frame interval between progress log lines. Zero
	// disables them.
	Progress int
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Transform streams every frame of r through fn into w, in order. It returns
// the number of frames written; on error or cancellation the output ends at a
// frame boundary.
func Transform(ctx context.Context, r *container.Reader, w *container.Writer, fn TransformFunc, opts Options) (int, error) {
	if opts.Workers < 2 {
		return transformSequential(ctx, r, w, fn, opts)
	}
	return transformParallel(ctx, r, w, fn, opts)
}

func transformSequential(ctx context.Context, r *container.Reader, w *container.Writer, fn TransformFunc, opts Options) (int, error) {
	log := opts.logger()
	written := 0
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		samples, err := r.ReadFrame()
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
		out, err := fn(samples, written)
		if err != nil {
			return written, fmt.Errorf("pipeline: frame %d: %w", written, err)
		}
		if err := w.WriteFrame(out); err != nil {
			return written, err
		}
		written++
		if opts.Progress > 0 && written%opts.Progress == 0 {
			log.Info("pipeline progress", "frames", written)
		}
	}
}

type frameJob struct {
	index   int
	samples []float32
}

func transformParallel(ctx context.Context, r *container.Reader, w *container.Writer, fn TransformFunc, opts Options) (int, error) {
	log := opts.logger()
	g, ctx := errgroup.WithContext(ctx)

	jobs := make(chan frameJob, opts.Workers)
	results := make(chan frameJob, opts.Workers)

	g.Go(func() error {
		defer close(jobs)
		for i := 0; ; i++ {
			samples, err := r.ReadFrame()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			select {
			case jobs <- frameJob{index: i, samples: samples}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	var workers sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			for j := range jobs {
				out, err := fn(j.samples, j.index)
				if err != nil {
					return fmt.Errorf("pipeline: frame %d: %w", j.index, err)
				}
				select {
				case results <- frameJob{index: j.index, samples: out}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		workers.Wait()
		close(results)
		return nil
	})

	written := 0
	g.Go(func() error {
		// Workers finish out of order; hold completed frames until their
		// predecessors have been written.
		pending := make(map[int][]float32)
		next := 0
		for res := range results {
			pending[res.index] = res.samples
			for {
				samples, ok := pending[next]
				if !ok {
					break
				}
				if err := w.WriteFrame(samples); err != nil {
					return err
				}
				delete(pending, next)
				next++
				written++
				if opts.Progress > 0 && written%opts.Progress == 0 {
					log.Info("pipeline progress", "frames", written)
				}
			}
		}
		if len(pending) > 0 {
			return fmt.Errorf("pipeline: %d frames stranded after frame %d", len(pending), next)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return written, err
	}
	return written, nil
}

// Encode pulls frames from src through enc into w until the source is
// exhausted, returning the number of frames encoded.
func Encode(ctx context.Context, src media.Source, enc *codec.Encoder, w *container.Writer, opts Options) (int, error) {
	log := opts.logger()
	written := 0
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		frame, err := src.Next()
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
		samples, err := enc.Encode(frame, written)
		if err != nil {
			return written, err
		}
		if err := w.WriteFrame(samples); err != nil {
			return written, err
		}
		written++
		if opts.Progress > 0 && written%opts.Progress == 0 {
			log.Info("encode progress", "frames", written)
		}
	}
}

// Decode streams every frame of r through dec, appending each reconstructed
// frame's luminance plane to out. It returns the number of frames decoded.
func Decode(ctx context.Context, r *container.Reader, dec *codec.Decoder, out io.Writer, opts Options) (int, error) {
	log := opts.logger()
	decoded := 0
	for {
		if err := ctx.Err(); err != nil {
			return decoded, err
		}
		samples, err := r.ReadFrame()
		if err == io.EOF {
			return decoded, nil
		}
		if err != nil {
			return decoded, err
		}
		frame, err := dec.Decode(samples)
		if err != nil {
			return decoded, err
		}
		if _, err := out.Write(frame.Pix); err != nil {
			return decoded, fmt.Errorf("pipeline: write frame %d: %w", decoded, err)
		}
		decoded++
		if opts.Progress > 0 && decoded%opts.Progress == 0 {
			log.Info("decode progress", "frames", decoded)
		}
	}
}
