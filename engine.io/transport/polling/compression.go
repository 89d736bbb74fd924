package polling

import (
	"compress/gzip"
	"net/http"

	"github.com/NYTimes/gziphandler"
)

// Responses smaller than this are sent uncompressed.
const defaultCompressionThreshold = 1024

// withCompression wraps h so that responses are gzipped
// for clients that accept it.
func withCompression(h http.Handler, threshold int) (http.Handler, error) {
	if threshold <= 0 {
		threshold = defaultCompressionThreshold
	}
	wrap, err := gziphandler.NewGzipLevelAndMinSize(gzip.DefaultCompression, threshold)
	if err != nil {
		return nil, err
	}
	return wrap(h), nil
}
