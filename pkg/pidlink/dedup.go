// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pidlink

import "strings"

// pairKey is the comparable form of a line's target/actual pair.
// Unparseable pairs compare equal to each other.
type pairKey struct {
	valid  bool
	target float64
	actual float64
}

// Deduplicator decides whether a raw line is worth logging
type Deduplicator struct {
	lastLine string
	hasLine  bool
	lastPair *pairKey
}

// NewDeduplicator creates an empty deduplicator
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// Reset forgets the previous line and pair
func (d *Deduplicator) Reset() {
	d.lastLine = ""
	d.hasLine = false
	d.lastPair = nil
}

// ShouldLog reports false when the line's pair matches the previous pair or
// the line is identical to the previous logged line.
func (d *Deduplicator) ShouldLog(line string) bool {
	if key, ok := linePair(line); ok {
		if d.lastPair != nil && *d.lastPair == key {
			return false
		}
		d.lastPair = &key
	}

	if d.hasLine && line == d.lastLine {
		return false
	}
	d.lastLine = line
	d.hasLine = true
	return true
}

// linePair extracts the pair used for deduplication. Batch lines use fields
// 4 and 5; other comma lines split on the first comma. ok is false when the
// line has no pair position at all.
func linePair(line string) (pairKey, bool) {
	var left, right string

	if strings.HasPrefix(line, PrefixBatch) {
		parts := strings.Split(line, ",")
		if len(parts) < batchFirstPair+2 {
			return pairKey{}, false
		}
		left, right = parts[batchFirstPair], parts[batchFirstPair+1]
	} else {
		var found bool
		left, right, found = strings.Cut(line, ",")
		if !found {
			return pairKey{}, false
		}
	}

	target, err := parseFloat(left)
	if err != nil {
		return pairKey{}, true
	}
	actual, err := parseFloat(right)
	if err != nil {
		return pairKey{}, true
	}
	return pairKey{valid: true, target: target, actual: actual}, true
}
