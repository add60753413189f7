package storage

import (
	"fmt"
	"net/url"
	"strings"
)

// Locators are the opaque strings carried in queue events and report
// state: {baseURL}/{bucket}/{percent-encoded-key}. BuildLocator and
// ExtractKey must invert each other exactly, including percent encoding,
// for every key; both the worker and the status endpoint rely on that
// round trip.

// LocatorFormatError indicates a locator whose path does not match the
// expected /{bucket}/ prefix shape.
type LocatorFormatError struct {
	Locator string
	Bucket  string
	Reason  string
}

func (e *LocatorFormatError) Error() string {
	return fmt.Sprintf("locator %q does not match expected bucket prefix /%s/: %s", e.Locator, e.Bucket, e.Reason)
}

// BuildLocator assembles the public locator for a stored object.
func BuildLocator(baseURL, bucket, key string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(baseURL, "/"), bucket, url.PathEscape(key))
}

// ExtractKey recovers the storage key from a locator by stripping the
// /{bucket}/ path prefix and percent-decoding the remainder. The bucket
// comparison is case-insensitive, matching S3-compatible backends.
func ExtractKey(locator, bucket string) (string, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", &LocatorFormatError{Locator: locator, Bucket: bucket, Reason: err.Error()}
	}

	// EscapedPath keeps the original percent encoding so that keys with
	// encoded slashes survive the round trip.
	path := u.EscapedPath()
	prefix := "/" + bucket + "/"
	if len(path) <= len(prefix) || !strings.EqualFold(path[:len(prefix)], prefix) {
		return "", &LocatorFormatError{Locator: locator, Bucket: bucket, Reason: "unexpected path prefix"}
	}

	key, err := url.PathUnescape(path[len(prefix):])
	if err != nil {
		return "", &LocatorFormatError{Locator: locator, Bucket: bucket, Reason: err.Error()}
	}

	return key, nil
}
