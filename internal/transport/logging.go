// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"

	"lipsync/internal/log"
)

// LoggingTransport writes every payload to the debug log as JSON.
type LoggingTransport struct{}

func NewLoggingTransport() *LoggingTransport {
	log.Debugf("Transport: using LoggingTransport")
	return &LoggingTransport{}
}

// Send never fails; payloads that cannot be marshalled are logged raw.
func (lt *LoggingTransport) Send(data any) error {
	if log.GetLevel() > log.LevelDebug {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		log.Debugf("Transport: (%T) %+v", data, data)
		return nil
	}
	log.Debugf("Transport: %s", b)
	return nil
}

func (lt *LoggingTransport) Close() error {
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
