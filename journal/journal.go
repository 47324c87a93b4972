// Package journal writes the outbound event stream as hourly zstd-compressed JSON lines.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/wfunc/herdparty/logger"
	"github.com/wfunc/herdparty/state"
	"github.com/wfunc/herdparty/timer"
)

// Entry is one journal line.
type Entry struct {
	Time time.Time `json:"t"`
	Kind string    `json:"kind"`
	Data any       `json:"data"`
}

type Writer struct {
	baseDir string
	prefix  string
	clock   timer.Clock
	skip    map[string]bool

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// NewWriter journals into baseDir. Kinds listed in skip are dropped, e.g. "snapshot".
func NewWriter(baseDir, prefix string, clock timer.Clock, skip ...string) *Writer {
	if clock == nil {
		clock = timer.SystemClock{}
	}
	w := &Writer{
		baseDir: baseDir,
		prefix:  prefix,
		clock:   clock,
		skip:    make(map[string]bool, len(skip)),
	}
	for _, k := range skip {
		w.skip[k] = true
	}
	return w
}

// Record implements the broadcaster's recorder. Failures are logged and never returned.
func (w *Writer) Record(kind string, v any) {
	if w.skip[kind] {
		return
	}
	if err := w.Write(Entry{Time: w.clock.Now().UTC(), Kind: kind, Data: v}); err != nil {
		logger.Log.Warnw("journal write failed", "kind", kind, "err", err)
	}
}

// RecordRound journals a finished round.
func (w *Writer) RecordRound(s state.RoundSummary) {
	w.Record("round", s)
}

func (w *Writer) Write(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := e.Time.UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s entry: %w", e.Kind, err)
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	f, err := os.OpenFile(w.PathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *Writer) closeLocked() error {
	var err error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err
}

func (w *Writer) PathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// ReadFile decodes every entry of one journal file. Data is left as generic JSON.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []Entry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return out, fmt.Errorf("decode journal line: %w", err)
		}
		out = append(out, e)
	}
	return out, sc.Err()
}
