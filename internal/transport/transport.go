// SPDX-License-Identifier: MIT

// Package transport delivers predictions to consumers outside the process.
package transport

import "errors"

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")

// Transport sends processed data or events. Implementations are safe for
// concurrent use and must not block the caller for long, since Send is
// called from the audio path.
type Transport interface {
	Send(data any) error
	Close() error
}

// Multi fans one payload out to several transports. Send returns the
// first error but always tries every transport.
type Multi []Transport

func (m Multi) Send(data any) error {
	var first error
	for _, t := range m {
		if err := t.Send(data); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) Close() error {
	var errs []error
	for _, t := range m {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Transport = Multi(nil)
