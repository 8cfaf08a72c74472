package main

import (
	"fmt"
	"strconv"
	"strings"

	"slicermorph/pkg/shape"
)

// parseSelections reads "PC:scale" pairs such as "1:0.5,2:-0.25"
func parseSelections(text string) ([]shape.Selection, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	var out []shape.Selection
	for _, part := range strings.Split(text, ",") {
		pc, scale, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("selection %q must look like PC:scale", part)
		}
		component, err := strconv.Atoi(strings.TrimSpace(pc))
		if err != nil || component < 0 {
			return nil, fmt.Errorf("selection %q has an invalid component", part)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(scale), 64)
		if err != nil {
			return nil, fmt.Errorf("selection %q has an invalid scale", part)
		}
		out = append(out, shape.Selection{Component: component, Scale: value})
	}
	return out, nil
}

// parseComponents reads a list of 1-based components, 0 meaning none
func parseComponents(text string, limit int) ([]int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	parts := strings.Split(text, ",")
	if len(parts) > limit {
		return nil, fmt.Errorf("at most %d components, got %d", limit, len(parts))
	}
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || v < 0 {
			return nil, fmt.Errorf("invalid component %q", part)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseResolution reads WIDTHxHEIGHT
func parseResolution(text string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(text)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("resolution %q must look like 1920x1080", text)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid width in %q", text)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid height in %q", text)
	}
	return width, height, nil
}

// snapshotFilename returns the capture filename, or "" when no snapshot was
// requested. A name given with -snapshot-name implies -snapshot.
func snapshotFilename(enabled bool, name, configured string) string {
	name = strings.TrimSpace(name)
	switch {
	case name != "":
		return name
	case enabled:
		return configured
	}
	return ""
}
