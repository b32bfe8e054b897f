package repository

import "errors"

// ErrSnapshotNotFound is returned when no snapshot exists for the requested
// blog and date. A missing previous snapshot is not an error condition for
// the pipeline; it triggers the everything-is-new path.
var ErrSnapshotNotFound = errors.New("snapshot not found")
