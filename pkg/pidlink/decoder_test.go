// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pidlink

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 200
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 200
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := time.Now().UnixNano()
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if s, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			seed = s
		}
	}
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

func feedAll(d *LineDecoder, chunks ...string) []DecodedLine {
	var out []DecodedLine
	for _, c := range chunks {
		out = append(out, d.Feed(c)...)
	}
	return out
}

func TestLineDecoder_SingleLine(t *testing.T) {
	d := NewLineDecoder()
	lines := d.Feed("12.0,34.0\n")
	require.Len(t, lines, 1)
	assert.Equal(t, "12.0,34.0", lines[0].Raw)
	assert.Equal(t, RawPair{Pair{Target: 12, Actual: 34}}, lines[0].Event)
	assert.False(t, lines[0].Duplicate)
}

func TestLineDecoder_MidNumeralSplit(t *testing.T) {
	d := NewLineDecoder()
	lines := feedAll(d, "1", "2.", "0,3", "4.0", "\r", "\nPID=P=1,I", "=2,D=3\n")
	require.Len(t, lines, 2)
	assert.Equal(t, RawPair{Pair{Target: 12, Actual: 34}}, lines[0].Event)
	assert.Equal(t, StatusReport{P: 1, I: 2, D: 3}, lines[1].Event)
	assert.Empty(t, d.Pending())
}

func TestLineDecoder_SkipsEmptyLines(t *testing.T) {
	d := NewLineDecoder()
	lines := d.Feed("\n\n   \n1,2\n\n")
	require.Len(t, lines, 1)
}

func TestLineDecoder_BadLineDoesNotAbortStream(t *testing.T) {
	d := NewLineDecoder()
	lines := d.Feed("garbage\nB,0,10,2,1,2\n5,6\n")
	require.Len(t, lines, 3)
	assert.Equal(t, KindUnrecognized, lines[0].Event.Kind())
	assert.Equal(t, KindSampleBatch, lines[1].Event.Kind())
	assert.Equal(t, KindRawPair, lines[2].Event.Kind())
}

func TestLineDecoder_ResetDiscardsPartialLine(t *testing.T) {
	d := NewLineDecoder()
	d.Feed("1.0,2")
	assert.Equal(t, "1.0,2", d.Pending())

	d.Reset()
	lines := d.Feed(".0\n")
	require.Len(t, lines, 1)
	assert.Equal(t, KindUnrecognized, lines[0].Event.Kind())
}

func TestLineDecoder_PendingOverflow(t *testing.T) {
	d := NewLineDecoder()
	d.Feed(strings.Repeat("9", MaxPendingBytes+1))
	assert.Empty(t, d.Pending())
	assert.Equal(t, 1, d.Overflows())

	// The tail of the oversized line is dropped up to its terminator
	assert.Empty(t, d.Feed("1,2\n"))

	lines := d.Feed("3,4\n")
	require.Len(t, lines, 1)
	assert.Equal(t, KindRawPair, lines[0].Event.Kind())
	assert.Equal(t, "3,4", lines[0].Raw)
}

func TestLineDecoder_OverflowTailInSameChunk(t *testing.T) {
	d := NewLineDecoder()
	assert.Empty(t, d.Feed("junk"+strings.Repeat("x", MaxPendingBytes)+","))
	assert.Equal(t, 1, d.Overflows())

	assert.Empty(t, d.Feed("5,"))
	lines := d.Feed("6\n7,8\n")
	require.Len(t, lines, 1)
	assert.Equal(t, "7,8", lines[0].Raw)
}

func TestLineDecoder_ResetClearsDiscard(t *testing.T) {
	d := NewLineDecoder()
	d.Feed(strings.Repeat("x", MaxPendingBytes+1))
	d.Reset()

	lines := d.Feed("1,2\n")
	require.Len(t, lines, 1)
	assert.Equal(t, "1,2", lines[0].Raw)
}

func TestLineDecoder_RandomChunking(t *testing.T) {
	rng := newFuzzRng(t)

	var sb strings.Builder
	for i := 0; i < 50; i++ {
		switch i % 4 {
		case 0:
			fmt.Fprintf(&sb, "%d.5,%d.25\n", i, i)
		case 1:
			fmt.Fprintf(&sb, "B,%d,20,2,%d,%d,%d,%d\n", i*40, i, i+1, i, i+2)
		case 2:
			fmt.Fprintf(&sb, "PID=P=%d,I=1,D=2\n", i)
		case 3:
			sb.WriteString("TUNE=START\n")
		}
	}
	stream := sb.String()
	want := NewLineDecoder().Feed(stream)
	require.Len(t, want, 50)

	for round := 0; round < getFuzzRounds(); round++ {
		d := NewLineDecoder()
		var got []DecodedLine
		rest := stream
		for len(rest) > 0 {
			n := 1 + rng.Intn(17)
			if n > len(rest) {
				n = len(rest)
			}
			got = append(got, d.Feed(rest[:n])...)
			rest = rest[n:]
		}
		require.Equal(t, want, got, "round %d", round)
	}
}
