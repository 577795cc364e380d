package errors

import (
	"errors"
	"fmt"
)

var (
	ErrTruncatedRecord     = New("truncated record")
	ErrShortTCPHeader      = New("short tcp header")
	ErrShortPayload        = New("short payload")
	ErrSeekOptions         = New("seek past header options failed")
	ErrInvalidHeaderLength = New("header length below minimum")
	ErrLengthUnderflow     = New("total length smaller than headers")
	ErrUsage               = New("usage")
)

func New(msg string) error {
	return errors.New(msg)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

// HeaderKind distinguishes the two ways an ip header read can stop short.
type HeaderKind uint8

const (
	EndOfStream   HeaderKind = iota // EOF
	UnexpectedEOF                   // UnexpectedEOF
)

func (k HeaderKind) String() string {
	switch k {
	case EndOfStream:
		return "EOF"
	case UnexpectedEOF:
		return "UnexpectedEOF"
	default:
		return fmt.Sprintf("HeaderKind(%d)", k)
	}
}

// HeaderError is returned by the ip header reader when fewer than a full
// fixed header is available. Read holds the number of bytes consumed.
type HeaderError struct {
	Kind HeaderKind
	Read int
}

func (err *HeaderError) Error() string {
	if err.Kind == EndOfStream {
		return err.Kind.String()
	}

	return fmt.Sprintf(
		"%s: %s: %d bytes of ip header",
		ErrTruncatedRecord, err.Kind, err.Read,
	)
}

func (err *HeaderError) Unwrap() error {
	if err.Kind == UnexpectedEOF {
		return ErrTruncatedRecord
	}

	return nil
}

// IsEndOfStream reports whether err marks a clean end of input.
func IsEndOfStream(err error) bool {
	var hdrErr *HeaderError

	return errors.As(err, &hdrErr) && hdrErr.Kind == EndOfStream
}

// Stage names the step of a run that failed.
type Stage uint8

const (
	StageUsage Stage = iota
	StageInputOpen
	StageOutputOpen
	StageIPHeader
	StageTCPHeader
	StagePayload
	StageFlush
	StageConfig
)

var stageNames = [...]string{
	StageUsage:      "usage",
	StageInputOpen:  "open input",
	StageOutputOpen: "open output",
	StageIPHeader:   "read ip header",
	StageTCPHeader:  "read tcp header",
	StagePayload:    "write payload",
	StageFlush:      "flush output",
	StageConfig:     "load config",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}

	return fmt.Sprintf("Stage(%d)", s)
}

// StageError binds a failure to the stage and input offset where it happened.
// Offset is -1 when no input position applies.
type StageError struct {
	Stage  Stage
	Offset int64
	Err    error
}

func NewStageError(stage Stage, offset int64, err error) *StageError {
	return &StageError{Stage: stage, Offset: offset, Err: err}
}

func (err *StageError) Error() string {
	if err.Offset < 0 {
		return fmt.Sprintf("couldn't %s: %v", err.Stage, err.Err)
	}

	return fmt.Sprintf("couldn't %s at offset %d: %v", err.Stage, err.Offset, err.Err)
}

func (err *StageError) Unwrap() error {
	return err.Err
}

// ErrorClass groups failures for exit status reporting.
type ErrorClass uint8

const (
	ClassNone ErrorClass = iota
	ClassUsage
	ClassIO
	ClassParse
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassUsage:
		return "usage"
	case ClassIO:
		return "io"
	case ClassParse:
		return "parse"
	default:
		return fmt.Sprintf("ErrorClass(%d)", c)
	}
}

// Class reports whether err is a usage, parse or plain I/O failure.
// Config stage failures count as usage.
func Class(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassNone
	case Is(err, ErrUsage):
		return ClassUsage
	case Is(err, ErrTruncatedRecord),
		Is(err, ErrShortTCPHeader),
		Is(err, ErrShortPayload),
		Is(err, ErrInvalidHeaderLength),
		Is(err, ErrLengthUnderflow):
		return ClassParse
	}

	var stageErr *StageError
	if errors.As(err, &stageErr) &&
		(stageErr.Stage == StageUsage || stageErr.Stage == StageConfig) {
		return ClassUsage
	}

	return ClassIO
}
