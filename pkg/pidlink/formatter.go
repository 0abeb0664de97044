// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pidlink

import (
	"fmt"
	"sort"
	"strings"
)

// FormatEvent formats a decoded event into a human-readable string
func FormatEvent(ev Event) string {
	switch e := ev.(type) {
	case StatusReport:
		return fmt.Sprintf("PID P=%g I=%g D=%g", e.P, e.I, e.D)

	case TuneStatus:
		if len(e.Gains) == 0 {
			return fmt.Sprintf("TUNE %s", e.State)
		}
		keys := make([]string, 0, len(e.Gains))
		for k := range e.Gains {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+e.Gains[k])
		}
		return fmt.Sprintf("TUNE %s %s", e.State, strings.Join(parts, " "))

	case SampleBatch:
		result := fmt.Sprintf("BATCH t0=%gms dt=%gms count=%d pairs=%d", e.T0Ms, e.DtMs, e.Count, len(e.Pairs))
		if e.Err != nil {
			result += fmt.Sprintf(" (%v)", e.Err)
		}
		return result

	case RawPair:
		return fmt.Sprintf("SAMPLE target=%g actual=%g", e.Target, e.Actual)

	case Unrecognized:
		return fmt.Sprintf("UNRECOGNIZED %q", e.Line)
	}
	return "UNKNOWN"
}
