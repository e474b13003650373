package util

import (
	"bytes"
	"io"
	"net/http"
	"strings"
)

// SniffImage reads the first 512 bytes of r to detect its MIME type. The returned
// reader replays those bytes, so callers upload it instead of r.
func SniffImage(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, err
	}
	head = head[:n]

	mimeType := http.DetectContentType(head)
	replay := io.MultiReader(bytes.NewReader(head), r)
	if !IsImage(mimeType) {
		return mimeType, replay, ErrInvalidImageType
	}
	return mimeType, replay, nil
}

func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
