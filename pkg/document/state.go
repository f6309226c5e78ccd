package document

// State is the document lifecycle state. Loading and Encoding cover the
// in-flight background operations; LoadFailed and EncodeFailed are
// transient and collapse to Empty and Editing respectively before any
// caller observes them, surviving only in state-change events.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateLoaded
	StateEditing
	StateEncoding
	StateLoadFailed
	StateEncodeFailed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateEditing:
		return "editing"
	case StateEncoding:
		return "encoding"
	case StateLoadFailed:
		return "load-failed"
	case StateEncodeFailed:
		return "encode-failed"
	}
	return "unknown"
}
