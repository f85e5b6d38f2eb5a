package obbdata

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrEmptyBatch is returned when collating an empty list of samples
var ErrEmptyBatch = errors.New("cannot collate an empty list of samples")

// ErrLoaderClosed is returned when running a Loader after Close
var ErrLoaderClosed = errors.New("loader is closed")

// PathNotFoundError is returned when the image set file, an image or its
// label file does not exist
type PathNotFoundError struct {
	// Kind describes the missing file, one of "image set", "image" or "label"
	Kind string
	Path string
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("%s path does not exist: %s", e.Kind, e.Path)
}

// ShapeMismatchError is returned when the samples in a batch do not share
// the same number of box parameters
type ShapeMismatchError struct {
	// Index is the position of the offending sample in the batch
	Index int
	Want  int
	Got   int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("sample %d has %d box parameters, batch expects %d",
		e.Index, e.Got, e.Want)
}
