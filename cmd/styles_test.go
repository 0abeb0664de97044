// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		ms   uint64
		want string
	}{
		{0, "0 seconds"},
		{1000, "1 second"},
		{61000, "1 minute and 1 second"},
		{3600000, "1 hour"},
		{90061000, "1 day, 1 hour, 1 minute, and 1 second"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatUptime(tt.ms))
	}
}

func TestEventLogKeepsNewest(t *testing.T) {
	l := newEventLog(3)
	for _, msg := range []string{"a", "b", "c", "d"} {
		l.add(msg, false)
	}
	assert.Len(t, l.entries, 3)
	assert.Equal(t, "b", l.entries[0].message)

	out := l.render(2)
	assert.Equal(t, 2, strings.Count(out, "\n")+1)
	assert.Contains(t, out, "d")
	assert.NotContains(t, out, "ℹ b")
}

func TestEventLogEmpty(t *testing.T) {
	assert.Contains(t, newEventLog(5).render(3), "no events yet")
}
