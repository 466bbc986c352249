package psoarchive

import "errors"

// Pipeline errors.
var (
	// ErrDefaultSignature is wrapped when a default signature cannot be
	// synthesized from shader reflection.
	ErrDefaultSignature = errors.New("psoarchive: cannot synthesize default signature")

	// ErrNoShaders is returned for a pipeline without shader stages.
	ErrNoShaders = errors.New("psoarchive: pipeline has no shaders")

	// ErrMissingBytecode is returned when a shader has no bytecode for a
	// target backend.
	ErrMissingBytecode = errors.New("psoarchive: shader has no bytecode for backend")

	// ErrDuplicateStage is returned when two shaders of a pipeline share a stage.
	ErrDuplicateStage = errors.New("psoarchive: duplicate shader stage")

	// ErrClosed is returned by an Archiver after Close.
	ErrClosed = errors.New("psoarchive: archiver closed")
)
