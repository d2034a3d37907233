package protocol

import "time"

// TransformFunc reconciles a new edit operation against the prior operation
// log for the same file. The server currently keeps no per-file log and
// applies PassthroughTransform, so concurrent overlapping edits are
// broadcast as-is; a real operational-transformation implementation can be
// plugged in here.
type TransformFunc func(prior []EditOperation, op EditOperation) EditOperation

// PassthroughTransform returns the operation unchanged except for a fresh
// server timestamp.
func PassthroughTransform(prior []EditOperation, op EditOperation) EditOperation {
	op.Timestamp = time.Now().UTC()
	return op
}
