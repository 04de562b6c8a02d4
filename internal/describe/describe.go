// Package describe generates captions and object labels for uploaded images
// and keeps them in a JSON catalog used when seeding content.
package describe

import (
	"context"
	"sort"
	"strings"
)

// Image is an uploaded picture to describe.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Description is what a describer reports for one image. Labels form a set:
// unique and sorted.
type Description struct {
	Caption string
	Labels  []string
}

// Describer produces a caption and object labels for an image.
type Describer interface {
	Describe(ctx context.Context, img Image) (Description, error)
}

// NewDescription normalizes labels into a sorted set.
func NewDescription(caption string, labels []string) Description {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Strings(out)
	return Description{Caption: strings.TrimSpace(caption), Labels: out}
}
