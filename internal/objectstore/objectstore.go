// Package objectstore uploads images to the bucket that serves them publicly.
package objectstore

import (
	"context"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Object is a file ready to be written to the bucket.
type Object struct {
	Name        string
	ContentType string
	Data        []byte
}

// Store writes objects and returns the URL they can be fetched from.
type Store interface {
	Put(ctx context.Context, obj Object) (string, error)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectName derives a collision free object name from an uploaded filename.
func ObjectName(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		base = "upload"
	}
	return uuid.NewString() + "-" + base
}

func publicURL(base, bucket, name string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(bucket) + "/" + url.PathEscape(name)
}
