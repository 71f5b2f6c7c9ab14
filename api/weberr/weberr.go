// Package weberr decorates errors with the HTTP response and log fields the
// error middleware should use for them.
package weberr

import "errors"

type Opt func(*decorated)

// decorated carries what the error middleware needs besides the cause. A
// zero status means no explicit response was attached.
type decorated struct {
	err    error
	body   any
	status int
	fields map[string]any
}

func (d *decorated) Error() string { return d.err.Error() }

func (d *decorated) Unwrap() error { return d.err }

func Wrap(err error, opts ...Opt) error {
	d := &decorated{err: err}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func WithResponse(body any, status int) Opt {
	return func(d *decorated) {
		d.body, d.status = body, status
	}
}

// WithFields adds log fields. Later calls overwrite keys set before.
func WithFields(fields map[string]any) Opt {
	return func(d *decorated) {
		if d.fields == nil {
			d.fields = make(map[string]any, len(fields))
		}
		for k, v := range fields {
			d.fields[k] = v
		}
	}
}

// Response returns the outermost response attached anywhere in the chain
// of err.
func Response(err error) (body any, status int, ok bool) {
	for {
		var d *decorated
		if !errors.As(err, &d) {
			return nil, 0, false
		}
		if d.status != 0 {
			return d.body, d.status, true
		}
		err = d.err
	}
}

// Fields merges the log fields of every decoration in the chain of err.
// Outer decorations win.
func Fields(err error) (fields map[string]any, ok bool) {
	for {
		var d *decorated
		if !errors.As(err, &d) {
			return fields, ok
		}
		for k, v := range d.fields {
			if fields == nil {
				fields = make(map[string]any)
			}
			if _, set := fields[k]; !set {
				fields[k] = v
			}
			ok = true
		}
		err = d.err
	}
}
