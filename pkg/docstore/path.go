package docstore

import (
	"fmt"
	"strings"
)

func segments(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// CollectionPath validates and normalizes a collection path: a non-empty,
// odd number of non-empty segments ("articles", "a/b/c").
func CollectionPath(p string) (string, error) {
	segs := segments(p)
	if len(segs)%2 != 1 {
		return "", fmt.Errorf("%w: %q is not a collection", ErrInvalidPath, p)
	}
	for _, s := range segs {
		if s == "" {
			return "", fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, p)
		}
	}
	return strings.Join(segs, "/"), nil
}

// DocPath joins a collection path and a document id.
func DocPath(collection, id string) (string, error) {
	c, err := CollectionPath(collection)
	if err != nil {
		return "", err
	}
	if id == "" || strings.Contains(id, "/") {
		return "", fmt.Errorf("%w: bad document id %q", ErrInvalidPath, id)
	}
	return c + "/" + id, nil
}

// SplitDocPath splits a document path into its collection and id.
func SplitDocPath(p string) (collection, id string, err error) {
	segs := segments(p)
	if len(segs) < 2 || len(segs)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q is not a document", ErrInvalidPath, p)
	}
	for _, s := range segs {
		if s == "" {
			return "", "", fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, p)
		}
	}
	return strings.Join(segs[:len(segs)-1], "/"), segs[len(segs)-1], nil
}
