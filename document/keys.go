// Package document defines the document handle, the ordered byte-string
// key helpers used by the checkpoint / split-bound protocol (StrInc,
// KeyAfter), and a minimal order-preserving tuple codec used to build
// primary and index keys.
//
// StrInc and KeyAfter mirror the key-range bookkeeping a primary-key scan
// over an ordered key-value store needs when it has to resume after the
// last key it emitted.
package document

// Sentinel is the key strictly greater than every legal scan key: 0xFF,
// which a well-formed key never contains as its sole byte.
var Sentinel = []byte{0xFF}

// StrInc returns the smallest key that is strictly greater than every key
// having b as a proper prefix, by incrementing the last byte of b that is
// not already 0xFF and truncating everything after it. If b consists
// entirely of 0xFF bytes (or is empty), no finite key is greater than
// every extension of b, and it returns Sentinel as the end of the key
// space instead.
//
// This mirrors FoundationDB's strinc(), used by PrimaryKeyLookup and
// TableScan cancellation handling to bound "everything after the last
// emitted primary key".
func StrInc(b []byte) []byte {
	i := len(b) - 1
	for i >= 0 && b[i] == 0xFF {
		i--
	}
	if i < 0 {
		return append([]byte{}, Sentinel...)
	}
	out := make([]byte, i+1)
	copy(out, b[:i+1])
	out[i]++
	return out
}

// KeyAfter returns the smallest key strictly greater than k: k with a
// single 0x00 byte appended. Used when the split key must exceed a raw KV
// key rather than a primary-key prefix, e.g. a raw cell-range reader
// whose resumption point is keyAfter(last_kv_key).
func KeyAfter(k []byte) []byte {
	out := make([]byte, len(k)+1)
	copy(out, k)
	return out
}

// Compare orders two keys bytewise, treating Sentinel as greater than any
// key with the same or a shorter byte sequence that doesn't also start
// with 0xFF. Because Sentinel is exactly []byte{0xFF} and real scan keys
// are always strictly less than 0xFF, plain bytewise comparison already
// gives the right order; Compare exists so call sites can express intent
// instead of importing bytes.Compare directly.
func Compare(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Less reports whether a sorts strictly before b.
func Less(a, b []byte) bool { return Compare(a, b) < 0 }
