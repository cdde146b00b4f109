package engine

import (
	"sort"

	"github.com/zeebo/xxh3"
)

// Record is a flat output record: dotted field name → final value.
type Record map[string]string

// Fields returns the field names sorted.
func (r Record) Fields() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Fingerprint hashes the record content independent of map order. Equal
// records have equal fingerprints.
func (r Record) Fingerprint() uint64 {
	var buf []byte
	for _, k := range r.Fields() {
		buf = append(buf, k...)
		buf = append(buf, 0)
		buf = append(buf, r[k]...)
		buf = append(buf, 0)
	}
	return xxh3.Hash(buf)
}
