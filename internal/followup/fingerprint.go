// Package followup implements the deferred alternative-result workflow:
// request fingerprinting, candidate classification, the per-fingerprint
// state machine, and the deferred task runner.
package followup

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Fingerprint derives a stable deduplication key from request text.
// Same text always yields the same key, across process restarts; distinct
// texts collide only with hash probability, which is acceptable since a
// collision merely suppresses a duplicate follow-up.
func Fingerprint(text string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	h := fnv.New32a()
	h.Write([]byte(normalized))
	return fmt.Sprintf("fp_%08x", h.Sum32())
}
