package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	SessionFingerprint Hash
	ConfigHash         Hash
)

func NewSessionFingerprint(data []byte) SessionFingerprint { return SessionFingerprint(NewHash(data)) }
func NewConfigHash(data []byte) ConfigHash                 { return ConfigHash(NewHash(data)) }

func (h SessionFingerprint) String() string { return Hash(h).String() }
func (h ConfigHash) String() string         { return Hash(h).String() }

// ComputeSeriesFingerprint hashes an ordered set of named float series.
// Series are hashed in key order so the fingerprint is deterministic
// regardless of map iteration.
func ComputeSeriesFingerprint(series map[string][]float64) SessionFingerprint {
	keys := make([]string, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	buf := make([]byte, 8)
	for _, key := range keys {
		data.WriteString(key)
		for _, v := range series[key] {
			binary.BigEndian.PutUint64(buf, math.Float64bits(v))
			data.Write(buf)
		}
	}

	return NewSessionFingerprint([]byte(data.String()))
}

// ComputeConfigHash hashes a flat map of configuration values.
func ComputeConfigHash(values map[string]interface{}) ConfigHash {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString(fmt.Sprintf("%v", values[key]))
	}

	return NewConfigHash([]byte(data.String()))
}
