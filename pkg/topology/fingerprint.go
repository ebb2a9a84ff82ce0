package topology

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a stable content hash of the snapshot and optional
// changes. Two calls with equal inputs always produce the same value, so it
// can key caches and job deduplication without holding on to the topology.
func Fingerprint(s *Snapshot, changes []Change) string {
	payload := struct {
		Nodes   []Node   `json:"n"`
		Edges   []Edge   `json:"e"`
		Changes []Change `json:"c,omitempty"`
	}{s.Nodes, s.Edges, changes}

	// Marshal of plain structs and slices cannot fail.
	data, _ := json.Marshal(payload)
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
