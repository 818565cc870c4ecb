package backend

import (
	"net/http"
	"net/url"
	"time"
)

type requestOptions struct {
	header  http.Header
	query   url.Values
	timeout time.Duration
}

// RequestOption adjusts a single request
type RequestOption func(*requestOptions)

// Header adds a header to the request
func Header(key string, value string) RequestOption {
	return func(o *requestOptions) {
		if o.header == nil {
			o.header = http.Header{}
		}
		o.header.Add(key, value)
	}
}

// Query adds query parameters to the request
func Query(values url.Values) RequestOption {
	return func(o *requestOptions) {
		if o.query == nil {
			o.query = url.Values{}
		}
		for key, vs := range values {
			for _, v := range vs {
				o.query.Add(key, v)
			}
		}
	}
}

// Timeout bounds the request, on top of the client's transport timeout
func Timeout(d time.Duration) RequestOption {
	return func(o *requestOptions) {
		o.timeout = d
	}
}
