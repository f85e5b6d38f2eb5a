package obbdata

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Background is the name of class id 0, it never appears in annotations
const Background = "__background__"

// DOTAv1Classes are the detection level 1 classes of the DOTA v1 dataset
// with the background class in position 0
var DOTAv1Classes = []string{
	Background, "plane", "ship", "storage-tank", "baseball-diamond",
	"tennis-court", "basketball-court", "ground-track-field", "harbor",
	"bridge", "large-vehicle", "small-vehicle", "helicopter", "roundabout",
	"soccer-ball-field", "swimming-pool",
}

// ClassMap is an immutable mapping between class names and class ids
type ClassMap struct {
	names []string
	ids   map[string]int
}

// NewClassMap builds a ClassMap from the given object class names.  The
// background class is added as id 0 if names does not already start with it
func NewClassMap(names []string) (*ClassMap, error) {

	if len(names) == 0 || names[0] != Background {
		names = append([]string{Background}, names...)
	}

	c := &ClassMap{
		names: make([]string, len(names)),
		ids:   make(map[string]int, len(names)),
	}

	copy(c.names, names)

	for i, name := range c.names {
		if name == "" {
			return nil, fmt.Errorf("empty class name at position %d", i)
		}

		if _, exists := c.ids[name]; exists {
			return nil, fmt.Errorf("duplicate class name %q", name)
		}

		c.ids[name] = i
	}

	return c, nil
}

// ClassesForLevel returns the ClassMap for the given detection level
func ClassesForLevel(level int) (*ClassMap, error) {
	switch level {
	case 1:
		return NewClassMap(DOTAv1Classes)
	}

	return nil, fmt.Errorf("unsupported detection level %d", level)
}

// ID returns the class id for the given name.  The background class is not
// a valid annotation class so is never found
func (c *ClassMap) ID(name string) (int, bool) {
	id, ok := c.ids[name]

	if !ok || id == 0 {
		return 0, false
	}

	return id, true
}

// Name returns the class name for the given id
func (c *ClassMap) Name(id int) (string, error) {
	if id < 0 || id >= len(c.names) {
		return "", fmt.Errorf("class id %d out of range [0-%d)", id, len(c.names))
	}

	return c.names[id], nil
}

// Names returns a copy of the class names indexed by class id
func (c *ClassMap) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Len returns the number of classes including background
func (c *ClassMap) Len() int {
	return len(c.names)
}

// LoadLabels reads class names from the given text file.
// It should contain one label per line, blank lines are skipped.
func LoadLabels(file string) ([]string, error) {

	// open the file
	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}

	defer f.Close()

	// create a scanner to read the file.
	scanner := bufio.NewScanner(f)

	var labels []string

	// read and trim each line
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		labels = append(labels, line)
	}

	// check for errors during scanning
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return labels, nil
}
