// Package extract drives the record loop: ip header, tcp header, payload
// copy, repeated until the input is exhausted.
package extract

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/frozenpine/pktextract"
	pkterrors "github.com/frozenpine/pktextract/errors"
)

// State of an extraction run.
type State uint8

const (
	Running State = iota
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// UnderflowPolicy decides what happens when a record's total length is
// smaller than its two headers.
type UnderflowPolicy uint8

const (
	// UnderflowError aborts the run with errors.ErrLengthUnderflow.
	UnderflowError UnderflowPolicy = iota
	// UnderflowClamp copies no payload for the record and goes on.
	UnderflowClamp
)

func (p UnderflowPolicy) String() string {
	switch p {
	case UnderflowError:
		return "error"
	case UnderflowClamp:
		return "clamp"
	default:
		return fmt.Sprintf("UnderflowPolicy(%d)", p)
	}
}

func ParseUnderflowPolicy(v string) (UnderflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "error":
		return UnderflowError, nil
	case "clamp":
		return UnderflowClamp, nil
	default:
		return UnderflowError, errors.Errorf("unknown underflow policy: %q", v)
	}
}

// Record describes one extracted record.
type Record struct {
	// Index zero based record number
	Index int64
	// Offset of the ip header in the input
	Offset     int64
	IP         *pktextract.IPv4Header
	TCP        *pktextract.TCPHeader
	Session    *pktextract.Session
	PayloadLen int
	// Clamped is set when the payload length underflowed and was clamped
	Clamped bool
}

// RecordHandler is called after each record's payload has been written.
type RecordHandler func(rec *Record)

type Stats struct {
	Records      int64
	PayloadBytes int64
	EmptyRecords int64
	Clamped      int64
}

type flusher interface {
	Flush() error
}

type Option func(*Extractor)

func WithUnderflowPolicy(policy UnderflowPolicy) Option {
	return func(e *Extractor) {
		e.policy = policy
	}
}

func WithRecordHandler(fn RecordHandler) Option {
	return func(e *Extractor) {
		e.handler = fn
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Extractor owns both streams for the duration of a run. It is not safe
// for concurrent use.
type Extractor struct {
	src     io.ReadSeeker
	dst     io.Writer
	policy  UnderflowPolicy
	handler RecordHandler
	logger  logrus.FieldLogger

	state  State
	offset int64
	stats  Stats
}

// New creates an extractor reading records from src and writing payloads to
// dst. If dst has a Flush method it's called once the input is exhausted.
func New(src io.ReadSeeker, dst io.Writer, opts ...Option) *Extractor {
	e := &Extractor{
		src:    src,
		dst:    dst,
		policy: UnderflowError,
		logger: logrus.StandardLogger(),
		state:  Running,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *Extractor) State() State {
	return e.state
}

func (e *Extractor) Stats() Stats {
	return e.stats
}

// Run processes records until a clean end of stream (state Done) or the
// first error (state Failed). Errors from parsing and copying are returned
// as *errors.StageError.
func (e *Extractor) Run(ctx context.Context) (Stats, error) {
	if e.state != Running {
		return e.stats, errors.Errorf("extractor already %s", e.state)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for {
		select {
		case <-ctx.Done():
			return e.fail(errors.WithStack(ctx.Err()))
		default:
		}

		err := e.next()
		if err == nil {
			continue
		}

		if pkterrors.IsEndOfStream(err) {
			break
		}

		return e.fail(err)
	}

	if f, ok := e.dst.(flusher); ok {
		if err := f.Flush(); err != nil {
			return e.fail(pkterrors.NewStageError(pkterrors.StageFlush, -1, err))
		}
	}

	e.state = Done

	e.logger.WithFields(logrus.Fields{
		"records": e.stats.Records,
		"bytes":   e.stats.PayloadBytes,
		"empty":   e.stats.EmptyRecords,
		"clamped": e.stats.Clamped,
	}).Debug("Extraction finished")

	return e.stats, nil
}

func (e *Extractor) fail(err error) (Stats, error) {
	e.state = Failed

	return e.stats, err
}

func (e *Extractor) next() error {
	start := e.offset

	ip, err := pktextract.ReadIPv4Header(e.src)
	if err != nil {
		if pkterrors.IsEndOfStream(err) {
			return err
		}

		return pkterrors.NewStageError(pkterrors.StageIPHeader, start, err)
	}

	tcp, err := pktextract.ReadTCPHeader(e.src)
	if err != nil {
		return pkterrors.NewStageError(
			pkterrors.StageTCPHeader, start+int64(ip.PayloadOffset()), err,
		)
	}

	rec := Record{
		Index:   e.stats.Records,
		Offset:  start,
		IP:      ip,
		TCP:     tcp,
		Session: pktextract.NewSession(ip, tcp),
	}

	payloadStart := start + int64(ip.PayloadOffset()+tcp.PayloadOffset())

	size, err := pktextract.PayloadLength(ip, tcp)
	if err != nil {
		if e.policy != UnderflowClamp {
			return pkterrors.NewStageError(pkterrors.StagePayload, payloadStart, err)
		}

		e.logger.WithFields(logrus.Fields{
			"offset":  start,
			"session": rec.Session,
			"total":   ip.TotalLength,
		}).Warn("Payload length underflow, clamped to zero")

		size = 0
		rec.Clamped = true
		e.stats.Clamped++
	}

	if err := CopyPayload(e.dst, e.src, size); err != nil {
		return pkterrors.NewStageError(pkterrors.StagePayload, payloadStart, err)
	}

	rec.PayloadLen = size

	e.offset = payloadStart + int64(size)
	e.stats.Records++
	e.stats.PayloadBytes += int64(size)
	if size == 0 {
		e.stats.EmptyRecords++
	}

	if e.handler != nil {
		e.handler(&rec)
	}

	return nil
}
