/*
go-obbdata prepares oriented bounding box training batches from aerial
imagery datasets laid out in the DOTA style, where every image has a label
file of quadrilateral annotations.

A Dataset turns an index into a Sample.  It loads the image, parses the
label file, optionally runs the image and boxes through an augmentation
pipeline, converts the quadrilaterals into rotated boxes and drops the boxes
that became degenerate.  Collate then resizes a list of samples to one
randomly chosen scale and pads them into the fixed shape image and box
tensors of a Batch.

The Dataset and Collate hold no shared mutable state so samples may be
fetched concurrently.  The Loader is a small host side helper doing exactly
that with a pool of workers.

See example code and usage in the example/dota subdirectory.
*/
package obbdata
