package storage

import (
	"context"
	"io"
)

// FileStore keeps uploaded documents keyed by a request UID namespace.
// Keys look like "<uid>/<filename>"; Copy duplicates an object under a
// new namespace when a request fans out into child tickets so each
// child owns its attachments.
type FileStore interface {
	Store(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Copy(ctx context.Context, srcKey, dstKey string) error
	Retrieve(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// Key builds the canonical object key for an attachment.
func Key(uid, filename string) string {
	return uid + "/" + filename
}
