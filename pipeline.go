package multiparse

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Worker blobs are handed to the writer once they hold blobByteTarget bytes
// or blobRecordMax records, whichever comes first.
const (
	blobByteTarget = 4 << 20
	blobRecordMax  = 16384

	// Queue capacities, per worker.
	lineQueueFactor = 64
	blobQueueFactor = 4

	readerBufSize = 1 << 20
	writerBufSize = 32 << 20
)

// ErrInvalidEncoding is returned by Run under PolicyFail when the input
// contains a line that is not valid UTF-8.
var ErrInvalidEncoding = errors.New("input line is not valid UTF-8")

// Policy names what happens to a line that is not valid UTF-8.
type Policy int

const (
	// PolicySkip drops non-decodable lines silently.  They are not
	// counted and produce no diagnostic.
	PolicySkip Policy = iota

	// PolicyFail aborts the run on the first non-decodable line.
	PolicyFail
)

// Options configures a Run.  The zero value is usable: one worker, skip
// policy, default thresholds, no logging.
type Options struct {
	// Workers is the number of parallel parsing goroutines.  Values below
	// one are treated as one.
	Workers int

	// Policy selects the handling of non-decodable lines.
	Policy Policy

	// Logger receives debug events for the pipeline lifecycle.  Leave the
	// zero value for no logging.
	Logger zerolog.Logger

	// BlobByteTarget and BlobRecordMax override the flush thresholds.
	// Zero means the package default.  Exposed so tests can exercise the
	// flush boundaries with small inputs.
	BlobByteTarget int
	BlobRecordMax  int

	// WriterBufSize overrides the output buffer size (zero means the
	// package default of 32 MiB).
	WriterBufSize int
}

// Result aggregates one run of the pipeline.
type Result struct {
	// Records is the total number of records emitted across all workers.
	Records uint64

	// Elapsed is the wall time of the run.
	Elapsed time.Duration
}

// Run streams in through parser into out as JSON Lines.
//
// One goroutine splits the input into lines, Workers goroutines parse them
// and batch the records into blobs, and one goroutine appends the blobs to
// out in receipt order through a large write buffer.  The two queues
// between the stages are bounded, so a slow stage throttles its producer
// instead of growing memory without bound.  Cross-worker output order is
// not preserved; with exactly one worker, output order matches input order.
//
// A read or write failure cancels the other stages cooperatively and is
// returned once every goroutine has stopped.  Partial output up to the last
// flushed blob may exist on failure, always at record granularity.
func Run(ctx context.Context, parser Parser, in io.Reader, out io.Writer, opts Options) (Result, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	byteTarget := opts.BlobByteTarget
	if byteTarget <= 0 {
		byteTarget = blobByteTarget
	}
	recordMax := opts.BlobRecordMax
	if recordMax <= 0 {
		recordMax = blobRecordMax
	}
	outBufSize := opts.WriterBufSize
	if outBufSize <= 0 {
		outBufSize = writerBufSize
	}
	logger := opts.Logger

	start := time.Now()
	logger.Debug().
		Str("parser", parser.Name()).
		Int("workers", workers).
		Msg("pipeline start")

	lines := make(chan []byte, workers*lineQueueFactor)
	blobs := make(chan []byte, workers*blobQueueFactor)
	var records atomic.Uint64

	g, ctx := errgroup.WithContext(ctx)

	// Line reader: the only goroutine touching the input.  Each ReadBytes
	// call hands back a freshly allocated slice, so ownership moves to
	// whichever worker receives it.
	g.Go(func() error {
		defer close(lines)
		r := bufio.NewReaderSize(in, readerBufSize)
		for {
			line, err := r.ReadBytes('\n')
			if len(line) > 0 {
				select {
				case lines <- line:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
		}
	})

	// Workers run in their own group so the blob queue can be closed
	// exactly once after the last of them returns, while the writer keeps
	// draining in the outer group.
	wg, wctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		wg.Go(func() error {
			return runWorker(wctx, parser, lines, blobs, workerConfig{
				byteTarget: byteTarget,
				recordMax:  recordMax,
				policy:     opts.Policy,
				records:    &records,
				logger:     logger,
			})
		})
	}
	g.Go(func() error {
		err := wg.Wait()
		close(blobs)
		return err
	})

	// Writer: appends blobs verbatim in receipt order, one flush at end
	// of stream.
	g.Go(func() error {
		w := bufio.NewWriterSize(out, outBufSize)
		for blob := range blobs {
			if _, err := w.Write(blob); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("flush output: %w", err)
		}
		return nil
	})

	err := g.Wait()
	res := Result{Records: records.Load(), Elapsed: time.Since(start)}
	logger.Debug().
		Uint64("records", res.Records).
		Dur("elapsed", res.Elapsed).
		Err(err).
		Msg("pipeline done")
	return res, err
}

type workerConfig struct {
	byteTarget int
	recordMax  int
	policy     Policy
	records    *atomic.Uint64
	logger     zerolog.Logger
}

// runWorker drains the line queue until it is closed or the context is
// cancelled (a stage failed downstream), batching successful records into
// blobs.  The local emitted count is folded into the shared total even on
// early exit.
func runWorker(ctx context.Context, parser Parser, lines <-chan []byte, blobs chan<- []byte, cfg workerConfig) error {
	blob := make([]byte, 0, cfg.byteTarget)
	inBlob := 0
	var count uint64
	defer func() { cfg.records.Add(count) }()

	flush := func() error {
		select {
		case blobs <- blob:
		case <-ctx.Done():
			return ctx.Err()
		}
		cfg.logger.Trace().Int("bytes", len(blob)).Int("records", inBlob).Msg("blob flush")
		blob = make([]byte, 0, cfg.byteTarget)
		inBlob = 0
		return nil
	}

	for raw := range lines {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !utf8.Valid(raw) {
			if cfg.policy == PolicyFail {
				return ErrInvalidEncoding
			}
			continue
		}
		line := normalizeLine(raw)

		var ok bool
		blob, ok = parser.AppendLine(blob, line)
		if ok {
			blob = append(blob, '\n')
			count++
			inBlob++
		}
		if len(blob) >= cfg.byteTarget || inBlob >= cfg.recordMax {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	if len(blob) > 0 {
		return flush()
	}
	return nil
}

// normalizeLine strips the trailing line terminator and, if present, a
// preceding carriage return, and decodes the rest as text.
func normalizeLine(raw []byte) string {
	if n := len(raw); n > 0 && raw[n-1] == '\n' {
		raw = raw[:n-1]
	}
	if n := len(raw); n > 0 && raw[n-1] == '\r' {
		raw = raw[:n-1]
	}
	return string(raw)
}
