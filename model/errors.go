package model

import "errors"

// Sentinel errors for the recoverable failure modes of the visualization
// components. Callers match with errors.Is and surface the wrapped message,
// which carries the offending layer name or index.
var (
	// ErrModelUnavailable means a computation was requested with no model
	// attached. Surfaced to the user as "load a model first".
	ErrModelUnavailable = errors.New("no model attached")

	// ErrLayerNotFound means the requested layer name does not exist on the
	// current model.
	ErrLayerNotFound = errors.New("layer not found")

	// ErrUnsupportedLayerKind means the layer exists but the requested
	// operation does not apply to its kind, e.g. filter visualization of a
	// pooling layer.
	ErrUnsupportedLayerKind = errors.New("unsupported layer kind")

	// ErrIndexOutOfRange means a filter or class index exceeds the layer's
	// actual channel count. Out-of-range indices are a contract violation,
	// never silently truncated or wrapped.
	ErrIndexOutOfRange = errors.New("index out of range")
)
