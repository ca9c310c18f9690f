// Package recorder persists cross-market arbitrage snapshots, one CSV file
// per run and optionally a PostgreSQL table for offline analysis.
package recorder

import (
	"encoding/csv"
	"errors"
	"os"
	"strconv"
	"sync"
	"time"

	"main/internal/algo/arbitrage"
)

var ErrWriterClosed = errors.New("snapshot writer closed")

var headerFields = []string{
	"local timestamp",
	"pair",
	"size",
	"min ask market",
	"max bid market",
	"min ask timestamp",
	"max bid timestamp",
	"min ask",
	"max bid",
	"spread bp",
}

// CSVWriter appends one line per observed snapshot. Lines are buffered and
// flushed to disk every cfg.FlushEvery records and on Close.
type CSVWriter struct {
	mu       sync.Mutex
	f        *os.File
	w        *csv.Writer
	buffered int
	flushAt  int
	closed   bool
	now      func() time.Time
}

// NewCSVWriter creates the output file, writes the header and flushes it.
func NewCSVWriter(cfg Config) (*CSVWriter, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(cfg.filename())
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if err := w.Write(headerFields); err != nil {
		_ = f.Close()
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &CSVWriter{f: f, w: w, flushAt: cfg.FlushEvery, now: time.Now}, nil
}

// Record appends a snapshot line.
func (c *CSVWriter) Record(mamb arbitrage.MinAskMaxBid) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrWriterClosed
	}

	minAsk, maxBid := mamb.MinAsk(), mamb.MaxBid()
	line := []string{
		c.now().UTC().Format(time.RFC3339Nano),
		minAsk.Pair.String(),
		strconv.FormatFloat(mamb.Size(), 'g', -1, 64),
		string(minAsk.Market),
		string(maxBid.Market),
		minAsk.Timestamp.UTC().Format(time.RFC3339Nano),
		maxBid.Timestamp.UTC().Format(time.RFC3339Nano),
		strconv.FormatFloat(minAsk.AskPrice, 'g', -1, 64),
		strconv.FormatFloat(maxBid.BidPrice, 'g', -1, 64),
		strconv.FormatFloat(mamb.SpreadBp(), 'g', -1, 64),
	}
	if err := c.w.Write(line); err != nil {
		return err
	}
	c.buffered++
	if c.buffered >= c.flushAt {
		c.w.Flush()
		c.buffered = 0
	}
	return c.w.Error()
}

// Close flushes buffered lines and closes the file.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.w.Flush()
	flushErr := c.w.Error()
	if err := c.f.Close(); err != nil {
		return err
	}
	return flushErr
}
