package model

// Response is the envelope returned by every trigger surface
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Cached  *bool  `json:"cached,omitempty"`
	Count   *int   `json:"count,omitempty"`
}

// OK wraps data into a successful response
func OK(data any) *Response {
	return &Response{Success: true, Data: data}
}

// Fail wraps an error message into a failed response
func Fail(err error) *Response {
	return &Response{Success: false, Error: err.Error()}
}

// WithCached marks whether the data came from the cache
func (r *Response) WithCached(cached bool) *Response {
	r.Cached = &cached
	return r
}

// WithCount attaches the number of records in Data
func (r *Response) WithCount(n int) *Response {
	r.Count = &n
	return r
}
