// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ValidationError is one invalid configuration field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid field
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func rangeError(field string, min, max interface{}) ValidationError {
	return ValidationError{Field: field, Message: fmt.Sprintf("must be between %v and %v", min, max)}
}

var validBauds = map[int]bool{
	9600: true, 19200: true, 38400: true, 57600: true,
	115200: true, 230400: true, 460800: true, 921600: true,
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	var errs ValidationErrors

	if !validBauds[c.Serial.Baud] {
		errs = append(errs, ValidationError{Field: "serial.baud", Message: fmt.Sprintf("unsupported baud rate %d", c.Serial.Baud)})
	}
	for _, id := range []struct{ field, value string }{
		{"serial.vid", c.Serial.VID},
		{"serial.pid", c.Serial.PID},
	} {
		if id.value == "" {
			continue
		}
		if _, err := strconv.ParseUint(id.value, 16, 16); err != nil {
			errs = append(errs, ValidationError{Field: id.field, Message: fmt.Sprintf("%q is not a 16-bit hex id", id.value)})
		}
	}

	if c.WebSocket.URL != "" {
		u, err := url.Parse(c.WebSocket.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			errs = append(errs, ValidationError{Field: "websocket.url", Message: "must be a ws:// or wss:// URL"})
		}
	}

	if c.Monitor.PollMs < 10 || c.Monitor.PollMs > 1000 {
		errs = append(errs, rangeError("monitor.poll_ms", 10, 1000))
	}
	if c.Monitor.RedrawMs < 10 || c.Monitor.RedrawMs > 5000 {
		errs = append(errs, rangeError("monitor.redraw_ms", 10, 5000))
	}
	if c.Monitor.WindowSeconds <= 0 || c.Monitor.WindowSeconds > 3600 {
		errs = append(errs, rangeError("monitor.window_seconds", 0, 3600))
	}
	if c.Monitor.QueueSize < 1 {
		errs = append(errs, ValidationError{Field: "monitor.queue_size", Message: "must be positive"})
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", c.Logging.Level)})
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", c.Logging.Format)})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
