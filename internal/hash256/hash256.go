// Package hash256 implements the 32-byte hash type shared by block, prev
// block, next block, txid, and prev-txid fields. It is grounded on the
// teacher's hash32.T: a fixed-size array treated like an integer, passed and
// returned by value, with a hex codec and byte-wise equality.
package hash256

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hash256 is 32 raw bytes. Its JSON form is 64 lowercase hex characters with
// no prefix; no byte-order reversal is performed anywhere — the hex string
// is exactly the wire/display form the node emits.
type Hash256 [32]byte

// Zero is the all-zeros hash, used as the optional-field sentinel for
// Block.PrevHash/NextHash when a block has no predecessor/successor yet.
var Zero = Hash256{}

// FromBytes copies a 32-byte slice into a Hash256. It panics if b is not
// exactly 32 bytes; callers that accept arbitrary-length input should use
// Decode instead.
func FromBytes(b []byte) Hash256 {
	if len(b) != 32 {
		panic(fmt.Sprintf("hash256: FromBytes: expected 32 bytes, got %d", len(b)))
	}
	var h Hash256
	copy(h[:], b)
	return h
}

// Decode parses a 64-character hex string into a Hash256. Any length other
// than 64, or any non-hex character, is an error.
func Decode(s string) (Hash256, error) {
	var h Hash256
	if len(s) != 64 {
		return h, fmt.Errorf("hash256: decode: expected 64 hex characters, got %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("hash256: decode: %w", err)
	}
	copy(h[:], b)
	return h, nil
}

// MustDecode is Decode but panics on error; intended for tests and
// compile-time-known constants only.
func MustDecode(s string) Hash256 {
	h, err := Decode(s)
	if err != nil {
		panic(err)
	}
	return h
}

// Encode returns the 64-character lowercase hex form.
func (h Hash256) Encode() string {
	return hex.EncodeToString(h[:])
}

func (h Hash256) String() string { return h.Encode() }

// Bytes returns the underlying 32 bytes as a fresh slice.
func (h Hash256) Bytes() []byte {
	out := make([]byte, 32)
	copy(out, h[:])
	return out
}

// IsZero reports whether h is the unset/undefined sentinel.
func (h Hash256) IsZero() bool { return h == Zero }

// Equal does byte-wise comparison.
func (h Hash256) Equal(other Hash256) bool { return h == other }

// Compare does byte-wise ordering, returning -1, 0 or 1 like bytes.Compare.
func (h Hash256) Compare(other Hash256) int {
	return bytes.Compare(h[:], other[:])
}

// MarshalJSON renders the hash as a JSON string of 64 lowercase hex chars.
func (h Hash256) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Encode())
}

// UnmarshalJSON parses a JSON string into a Hash256, enforcing the 64-hex
// rule rather than silently truncating or zero-padding.
func (h *Hash256) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("hash256: unmarshal: %w", err)
	}
	decoded, err := Decode(s)
	if err != nil {
		return err
	}
	*h = decoded
	return nil
}
