// Package workspace implements the per-column string bag that actions read
// from and write to while a cell is processed.
//
// Keys are case-sensitive. An absent key is distinct from a key holding the
// empty string; readers that do not care use Value, which returns "" for both.
// Derived keys (.Valid, .Clean, .Length, [n], named captures) are written only
// through the typed helpers below so their spelling stays uniform.
package workspace

import (
	"sort"
	"strconv"
	"strings"
)

// TextKey holds the raw cell value a bag is seeded with.
const TextKey = "Text"

const (
	assignPrefix = "assign:"
	validSuffix  = ".Valid"
	cleanSuffix  = ".Clean"
	lengthSuffix = ".Length"
)

// Bag is a mutable string workspace. It is not safe for concurrent use; one
// bag exists per (row, column).
type Bag struct {
	values map[string]string
}

// New returns a bag seeded with Text = text.
func New(text string) *Bag {
	return &Bag{values: map[string]string{TextKey: text}}
}

// Get returns the value stored under key and whether it is present.
func (b *Bag) Get(key string) (string, bool) {
	v, ok := b.values[key]
	return v, ok
}

// Value returns the value under key, or "" when absent.
func (b *Bag) Value(key string) string {
	return b.values[key]
}

// Has reports whether key is present.
func (b *Bag) Has(key string) bool {
	_, ok := b.values[key]
	return ok
}

// Set stores value under key.
func (b *Bag) Set(key, value string) {
	b.values[key] = value
}

// Delete removes key.
func (b *Bag) Delete(key string) {
	delete(b.values, key)
}

// Assign stores value under key and marks it for harvesting into the output
// record. A later Assign to the same key replaces the mark.
func (b *Bag) Assign(key, value string) {
	b.values[key] = value
	b.values[assignPrefix+key] = value
}

// Update stores value under key and, when key is marked for harvesting,
// refreshes the mark so the output record sees the new value.
func (b *Bag) Update(key, value string) {
	b.values[key] = value
	if _, ok := b.values[assignPrefix+key]; ok {
		b.values[assignPrefix+key] = value
	}
}

// SetValid writes <out>.Valid as "true" or "false".
func (b *Bag) SetValid(out string, ok bool) {
	b.values[ValidKey(out)] = strconv.FormatBool(ok)
}

// Valid reports whether <out>.Valid is present and "true".
func (b *Bag) Valid(out string) bool {
	return b.values[ValidKey(out)] == "true"
}

// SetClean writes <out>.Clean.
func (b *Bag) SetClean(out, value string) {
	b.values[CleanKey(out)] = value
}

// SetParts writes <out>[0..n-1] and <out>.Length.
func (b *Bag) SetParts(out string, parts []string) {
	for i, p := range parts {
		b.values[IndexKey(out, i)] = p
	}
	b.values[LengthKey(out)] = strconv.Itoa(len(parts))
}

// SetCapture writes the named capture <out>.<name>.
func (b *Bag) SetCapture(out, name, value string) {
	b.values[out+"."+name] = value
}

// Harvest returns every assigned key with its assigned value.
func (b *Bag) Harvest() map[string]string {
	out := make(map[string]string)
	for k, v := range b.values {
		if name, ok := strings.CutPrefix(k, assignPrefix); ok {
			out[name] = v
		}
	}
	return out
}

// Keys returns all keys sorted, assignment marks included.
func (b *Bag) Keys() []string {
	out := make([]string, 0, len(b.values))
	for k := range b.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a copy of the bag contents.
func (b *Bag) Snapshot() map[string]string {
	out := make(map[string]string, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// ValidKey returns "<out>.Valid".
func ValidKey(out string) string { return out + validSuffix }

// CleanKey returns "<out>.Clean".
func CleanKey(out string) string { return out + cleanSuffix }

// LengthKey returns "<out>.Length".
func LengthKey(out string) string { return out + lengthSuffix }

// IndexKey returns "<out>[i]".
func IndexKey(out string, i int) string { return out + "[" + strconv.Itoa(i) + "]" }

// IsDerived reports whether key names a derived slot (.Valid, .Clean,
// .Length, [n]) or an assignment mark. Such keys may be read by actions but
// are never valid action outputs.
func IsDerived(key string) bool {
	if strings.HasPrefix(key, assignPrefix) {
		return true
	}
	for _, s := range []string{validSuffix, cleanSuffix, lengthSuffix} {
		if strings.HasSuffix(key, s) {
			return true
		}
	}
	if strings.HasSuffix(key, "]") {
		if i := strings.LastIndexByte(key, '['); i >= 0 {
			if _, err := strconv.Atoi(key[i+1 : len(key)-1]); err == nil {
				return true
			}
		}
	}
	return false
}

// PlausibleKey reports whether key could name a workspace entry: non-empty,
// no whitespace, no leading or trailing dot, and not an assignment mark.
func PlausibleKey(key string) bool {
	if key == "" || strings.HasPrefix(key, assignPrefix) {
		return false
	}
	if strings.HasPrefix(key, ".") || strings.HasSuffix(key, ".") {
		return false
	}
	return !strings.ContainsAny(key, " \t\r\n")
}
