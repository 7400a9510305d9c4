package repository

import (
	"net/url"

	"github.com/m-mizutani/goerr/v2"
)

// escapeKey turns a record key into a single path segment. Feed item IDs and feed snapshot
// queries are URLs, and neither Firestore document IDs nor object names under a kind prefix
// may contain '/'.
func escapeKey(key string) string {
	return url.PathEscape(key)
}

func unescapeKey(name string) (string, error) {
	key, err := url.PathUnescape(name)
	if err != nil {
		return "", goerr.Wrap(err, "invalid escaped key", goerr.V("name", name))
	}
	return key, nil
}
