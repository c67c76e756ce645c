// Package storage abstracts the object store holding raw site content.
// Objects are keyed {siteID}/{branch}/raw/{path} so a site's branches never
// collide and a whole site can be removed by prefix.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned when a requested object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Capability is a presigned PUT grant for exactly one object key. The URL
// embeds the authorization; whoever holds it can write that key and nothing
// else until it expires.
type Capability struct {
	Path      string            `json:"path"`
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// Backend is the object store interface the sync and upload layers depend
// on.
type Backend interface {
	// PutObject writes an object, replacing any existing content.
	PutObject(ctx context.Context, key string, data []byte) error
	// GetObject reads an object, returning ErrObjectNotFound when absent.
	GetObject(ctx context.Context, key string) ([]byte, error)
	// DeleteObject removes an object. Deleting a missing object is not an
	// error.
	DeleteObject(ctx context.Context, key string) error
	// ListObjects returns all keys under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
	// IssuePresignedPut grants a time-limited direct upload for one key.
	IssuePresignedPut(ctx context.Context, key string, ttl time.Duration) (*Capability, error)
}

// RawKey builds the object key for a content file of a site branch.
func RawKey(siteID uuid.UUID, branch, path string) string {
	return fmt.Sprintf("%s/%s/raw/%s", siteID, branch, path)
}

// BranchPrefix is the key prefix covering every object of a site branch.
func BranchPrefix(siteID uuid.UUID, branch string) string {
	return fmt.Sprintf("%s/%s/", siteID, branch)
}
