package stagedef

import "errors"

// Pointer resolution errors
var (
	// ErrCyclicReference indicates that following a pointer chain revisited
	// a chunk that is still being decoded.
	ErrCyclicReference = errors.New("cyclic chunk reference")

	// ErrDanglingPointer indicates that a pointer resolves outside the
	// buffer or into a region that is not a valid chunk start.
	ErrDanglingPointer = errors.New("dangling pointer")
)

// Chunk decoding errors
var (
	// ErrUnsupportedChunkKind indicates a chunk kind with no registered
	// decoder. Unknown kinds are never skipped: skipping would desync
	// pointer resolution for everything decoded after them.
	ErrUnsupportedChunkKind = errors.New("unsupported chunk kind")

	// ErrMalformedChunk indicates a chunk whose payload disagrees with its
	// header, or a structural inconsistency that must not be silently
	// corrected.
	ErrMalformedChunk = errors.New("malformed chunk")
)

// Encoding errors
var (
	// ErrUnencodableEdit indicates an edited value that cannot be stored in
	// its field's declared width or legal range. Raised before any output
	// byte is written.
	ErrUnencodableEdit = errors.New("edit not encodable in field width")
)

// Field path errors
var (
	// ErrUnknownField indicates a field path that does not name a stage
	// field, or indexes a list element that does not exist.
	ErrUnknownField = errors.New("unknown field path")
)
