// Package document owns one open stagedef: its lifecycle state, the
// decoded stage, the edit history, and the decode/encode operations over
// it. It is the seam between the binary pipeline and an interactive
// layer: edits arrive as (path, value) pairs and state changes go out as
// bus events.
package document

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TheBombSquad/MKBViewer/pkg/editlog"
	"github.com/TheBombSquad/MKBViewer/pkg/lz"
	"github.com/TheBombSquad/MKBViewer/pkg/stagedef"
)

// TopicState carries State values on the attached bus whenever the
// document transitions.
const TopicState = "document:state"

var (
	// ErrNoStage indicates an operation that needs a loaded stage on an
	// empty document.
	ErrNoStage = errors.New("no stage loaded")

	// ErrBusy indicates an edit or encode attempted while an encode is
	// already in flight.
	ErrBusy = errors.New("operation in flight")
)

// Option configures a Document.
type Option func(*Document)

// WithLogger attaches a logger; events carry the document id.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Document) { d.log = log }
}

// WithBus publishes state changes and edit events on the given bus.
func WithBus(bus EventBus.Bus) Option {
	return func(d *Document) { d.bus = bus }
}

// Document is one open stagedef file.
//
// All exported methods are safe for concurrent use. Decode and encode run
// without holding the lock; exactly one of each may be in flight, a new
// Open cancels the in-flight operation cooperatively and discards its
// partial result.
type Document struct {
	id  uuid.UUID
	log zerolog.Logger
	bus EventBus.Bus

	mu         sync.Mutex
	state      State
	stage      *stagedef.Stage
	edits      *editlog.Log
	compressed bool
	openSeq    int
	cancelOpen context.CancelFunc
	encoding   bool
	cancelEnc  context.CancelFunc
}

// New returns an empty document.
func New(opts ...Option) *Document {
	d := &Document{
		id:    uuid.New(),
		log:   zerolog.Nop(),
		state: StateEmpty,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With().Stringer("document", d.id).Logger()
	d.edits = editlog.New(d.editlogOpts()...)
	return d
}

func (d *Document) editlogOpts() []editlog.Option {
	if d.bus == nil {
		return nil
	}
	return []editlog.Option{editlog.WithBus(d.bus)}
}

// ID returns the document's stable identifier.
func (d *Document) ID() uuid.UUID { return d.id }

// State returns the current lifecycle state.
func (d *Document) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Stage returns the loaded stage, or nil. Callers edit through SetField,
// not by mutating the returned value.
func (d *Document) Stage() *stagedef.Stage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stage
}

// Edits returns the document's edit log.
func (d *Document) Edits() *editlog.Log { return d.edits }

// Compressed reports whether the source image arrived in an .lz
// container; Save mirrors the source framing.
func (d *Document) Compressed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.compressed
}

func (d *Document) setStateLocked(s State) {
	d.state = s
	if d.bus != nil {
		d.bus.Publish(TopicState, s)
	}
}

// Open decodes a stagedef image into the document, replacing whatever was
// loaded. Compressed .lz containers are detected and unpacked first. An
// open already in flight is canceled and its result discarded; if this
// open itself loses to a newer one, its result is discarded too.
//
// On failure the document is empty, never partially loaded.
func (d *Document) Open(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithCancel(ctx)

	d.mu.Lock()
	if d.cancelOpen != nil {
		d.cancelOpen()
	}
	if d.cancelEnc != nil {
		d.cancelEnc()
	}
	d.cancelOpen = cancel
	d.openSeq++
	seq := d.openSeq
	d.setStateLocked(StateLoading)
	d.mu.Unlock()

	stage, compressed, err := decodeImage(ctx, data)

	d.mu.Lock()
	defer d.mu.Unlock()
	if seq != d.openSeq {
		// A newer open superseded this one; its result stands, ours
		// is discarded.
		return fmt.Errorf("open superseded: %w", context.Canceled)
	}
	d.cancelOpen = nil
	if err != nil {
		d.setStateLocked(StateLoadFailed)
		d.stage = nil
		d.compressed = false
		d.edits.Clear()
		d.setStateLocked(StateEmpty)
		d.log.Error().Err(err).Msg("open failed")
		return err
	}

	d.stage = stage
	d.compressed = compressed
	d.edits.Clear()
	d.setStateLocked(StateLoaded)
	d.log.Info().
		Int("goals", len(stage.Goals)).
		Int("collision_headers", len(stage.CollisionHeaders)).
		Bool("compressed", compressed).
		Msg("stage loaded")
	return nil
}

func decodeImage(ctx context.Context, data []byte) (*stagedef.Stage, bool, error) {
	raw := data
	compressed := lz.IsCompressed(data)
	if compressed {
		var err error
		raw, err = lz.Decompress(data)
		if err != nil {
			return nil, true, fmt.Errorf("unpack container: %w", err)
		}
	}
	stage, err := stagedef.Decode(ctx, raw)
	if err != nil {
		return nil, compressed, err
	}
	return stage, compressed, nil
}

// SetField applies one field edit and records it for undo. The first
// edit moves the document from Loaded to Editing.
func (d *Document) SetField(path string, value any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stage == nil {
		return ErrNoStage
	}
	if d.encoding {
		return ErrBusy
	}

	old, err := d.stage.Field(path)
	if err != nil {
		return err
	}
	if err := d.stage.SetField(path, value); err != nil {
		return err
	}
	d.edits.Record(path, old, value)
	if d.state == StateLoaded {
		d.setStateLocked(StateEditing)
	}
	d.log.Debug().Str("path", path).Interface("value", value).Msg("field edited")
	return nil
}

// Field reads a field by path.
func (d *Document) Field(path string) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stage == nil {
		return nil, ErrNoStage
	}
	return d.stage.Field(path)
}

// FieldInfo exposes per-field metadata for generic inspectors.
func (d *Document) FieldInfo(path string) (stagedef.FieldInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stage == nil {
		return stagedef.FieldInfo{}, ErrNoStage
	}
	return d.stage.FieldInfo(path)
}

// Undo reverts the most recent edit. It reports whether anything was
// undone.
func (d *Document) Undo() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stage == nil || d.encoding {
		return false
	}
	e, ok := d.edits.Undo()
	if !ok {
		return false
	}
	if err := d.stage.SetField(e.Path, e.Old); err != nil {
		// The entry was recorded from an applied edit; reverting it
		// cannot legitimately fail.
		d.log.Error().Err(err).Str("path", e.Path).Msg("undo failed")
		return false
	}
	if d.edits.Len() == 0 && d.state == StateEditing {
		d.setStateLocked(StateLoaded)
	}
	return true
}

// Redo re-applies the most recently undone edit.
func (d *Document) Redo() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stage == nil || d.encoding {
		return false
	}
	e, ok := d.edits.Redo()
	if !ok {
		return false
	}
	if err := d.stage.SetField(e.Path, e.New); err != nil {
		d.log.Error().Err(err).Str("path", e.Path).Msg("redo failed")
		return false
	}
	if d.state == StateLoaded {
		d.setStateLocked(StateEditing)
	}
	return true
}

// Encode serializes the current stage to a raw image. The stage is
// snapshotted under the lock and encoded outside it, so edits made while
// encoding never tear the output; they simply miss this encode.
//
// On failure the document returns to its pre-encode state with all edits
// intact.
func (d *Document) Encode(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.mu.Lock()
	if d.stage == nil {
		d.mu.Unlock()
		return nil, ErrNoStage
	}
	if d.encoding {
		d.mu.Unlock()
		return nil, ErrBusy
	}
	snap := d.stage.Clone()
	seq := d.openSeq
	d.encoding = true
	d.cancelEnc = cancel
	d.setStateLocked(StateEncoding)
	d.mu.Unlock()

	out, err := stagedef.Encode(ctx, snap)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.encoding = false
	d.cancelEnc = nil
	if seq != d.openSeq {
		// A new open displaced the stage this encode snapshotted.
		return nil, fmt.Errorf("encode superseded: %w", context.Canceled)
	}
	if err != nil {
		d.setStateLocked(StateEncodeFailed)
		d.setStateLocked(StateEditing)
		d.log.Error().Err(err).Msg("encode failed")
		return nil, err
	}
	if d.state == StateEncoding {
		d.setStateLocked(StateLoaded)
	}
	d.log.Info().Int("bytes", len(out)).Msg("stage encoded")
	return out, nil
}

// Save encodes the stage framed the way it arrived: stages opened from
// an .lz container are compressed back into one.
func (d *Document) Save(ctx context.Context) ([]byte, error) {
	raw, err := d.Encode(ctx)
	if err != nil {
		return nil, err
	}
	if !d.Compressed() {
		return raw, nil
	}
	return lz.Compress(raw)
}
