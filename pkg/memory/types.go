// Package memory provides the TeachMem client and memory record lifecycle.
package memory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Type classifies what kind of fact a memory record holds.
type Type string

const (
	// TypePreference marks how the teacher likes things done.
	TypePreference Type = "preference"

	// TypePattern marks recurring behavior observed across sessions.
	TypePattern Type = "pattern"

	// TypeContext marks facts about the teacher's situation
	// (grade levels, subjects, experience).
	TypeContext Type = "context"

	// TypeSkill marks capabilities the teacher has demonstrated.
	TypeSkill Type = "skill"
)

// Valid reports whether t is one of the defined memory types.
func (t Type) Valid() bool {
	switch t {
	case TypePreference, TypePattern, TypeContext, TypeSkill:
		return true
	}
	return false
}

// DefaultConfidence is assigned to records saved without an explicit
// confidence score.
const DefaultConfidence = 0.8

// Record represents a single long-term memory about one teacher.
//
// At most one live (non-expired) record exists per (OwnerID, Type, Key)
// triple; Save updates the existing record instead of creating a
// duplicate. Records are never hard-deleted; SoftDelete sets ExpiresAt
// to preserve an audit trail.
//
// Example:
//
//	record := &memory.Record{
//	    OwnerID: "teacher_001",
//	    Type:    memory.TypeContext,
//	    Key:     "grade_levels",
//	    Value:   memory.IntListValue([]int{3, 5}),
//	}
type Record struct {
	// ID is the unique identifier, assigned at creation, immutable.
	ID int64 `json:"id"`

	// OwnerID identifies the teacher the memory belongs to.
	OwnerID string `json:"owner_id"`

	// Type is the memory type.
	Type Type `json:"memory_type"`

	// Key names the fact within (OwnerID, Type), e.g. "teaching_style".
	Key string `json:"key"`

	// Value is the fact's payload.
	Value Value `json:"value"`

	// Confidence is the confidence score in [0,1]. Defaults to 0.8.
	Confidence float64 `json:"confidence"`

	// Verified is true when the teacher explicitly confirmed the fact,
	// exempting it from low-confidence cleanup.
	Verified bool `json:"verified"`

	// SourceSessionID optionally references the conversation that
	// produced the fact.
	SourceSessionID string `json:"source_session_id,omitempty"`

	// CreatedAt is when the record was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the record was last updated.
	UpdatedAt time.Time `json:"updated_at"`

	// LastAccessedAt is when the record was last returned by a query
	// (nil if never accessed).
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	// ExpiresAt marks the record logically deleted once in the past.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Live reports whether the record is not expired at the given instant.
func (r *Record) Live(now time.Time) bool {
	return r.ExpiresAt == nil || r.ExpiresAt.After(now)
}

// ValueKind tags the shape of a Value payload.
type ValueKind string

const (
	KindString     ValueKind = "string"
	KindInt        ValueKind = "int"
	KindFloat      ValueKind = "float"
	KindBool       ValueKind = "bool"
	KindStringList ValueKind = "string_list"
	KindIntList    ValueKind = "int_list"
	KindObject     ValueKind = "object"
)

// Value is the schema-free payload of a memory record, carried as a kind
// tag plus serialized JSON. Each (Type, Key) combination declares its own
// shape at the call site while the store stays agnostic.
type Value struct {
	// Kind tags the payload shape.
	Kind ValueKind `json:"kind"`

	// Raw is the JSON-encoded payload.
	Raw json.RawMessage `json:"raw"`
}

// StringValue wraps a string payload.
func StringValue(s string) Value {
	raw, _ := json.Marshal(s)
	return Value{Kind: KindString, Raw: raw}
}

// IntValue wraps an integer payload.
func IntValue(i int) Value {
	raw, _ := json.Marshal(i)
	return Value{Kind: KindInt, Raw: raw}
}

// FloatValue wraps a float payload.
func FloatValue(f float64) Value {
	raw, _ := json.Marshal(f)
	return Value{Kind: KindFloat, Raw: raw}
}

// BoolValue wraps a boolean payload.
func BoolValue(b bool) Value {
	raw, _ := json.Marshal(b)
	return Value{Kind: KindBool, Raw: raw}
}

// StringListValue wraps a list-of-strings payload.
func StringListValue(list []string) Value {
	raw, _ := json.Marshal(list)
	return Value{Kind: KindStringList, Raw: raw}
}

// IntListValue wraps a list-of-integers payload.
func IntListValue(list []int) Value {
	raw, _ := json.Marshal(list)
	return Value{Kind: KindIntList, Raw: raw}
}

// ObjectValue wraps an arbitrary structured payload.
func ObjectValue(v interface{}) (Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Value{}, fmt.Errorf("failed to encode value: %w", err)
	}
	return Value{Kind: KindObject, Raw: raw}, nil
}

// AsString returns the payload as a string if the kind matches.
func (v Value) AsString() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v.Raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// AsInt returns the payload as an integer if the kind matches.
func (v Value) AsInt() (int, bool) {
	if v.Kind != KindInt {
		return 0, false
	}
	var i int
	if err := json.Unmarshal(v.Raw, &i); err != nil {
		return 0, false
	}
	return i, true
}

// AsStringList returns the payload as a string list if the kind matches.
func (v Value) AsStringList() ([]string, bool) {
	if v.Kind != KindStringList {
		return nil, false
	}
	var list []string
	if err := json.Unmarshal(v.Raw, &list); err != nil {
		return nil, false
	}
	return list, true
}

// AsIntList returns the payload as an integer list if the kind matches.
func (v Value) AsIntList() ([]int, bool) {
	if v.Kind != KindIntList {
		return nil, false
	}
	var list []int
	if err := json.Unmarshal(v.Raw, &list); err != nil {
		return nil, false
	}
	return list, true
}

// Decode unmarshals the payload into out regardless of kind.
func (v Value) Decode(out interface{}) error {
	return json.Unmarshal(v.Raw, out)
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(other Value) bool {
	return v.Kind == other.Kind && bytes.Equal(v.Raw, other.Raw)
}

// Text renders the payload for human-readable context composition:
// strings unquoted, lists comma-joined, everything else as compact JSON.
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		if s, ok := v.AsString(); ok {
			return s
		}
	case KindStringList:
		if list, ok := v.AsStringList(); ok {
			return strings.Join(list, ", ")
		}
	case KindIntList:
		if list, ok := v.AsIntList(); ok {
			parts := make([]string, len(list))
			for i, n := range list {
				parts[i] = fmt.Sprintf("%d", n)
			}
			return strings.Join(parts, ", ")
		}
	}
	return string(v.Raw)
}

// CleanupResult reports the outcome of a maintenance sweep.
type CleanupResult struct {
	// ExpiredCount is the number of records whose expiry was already in
	// the past when the sweep ran (informational; they are already inert).
	ExpiredCount int `json:"expired_count"`

	// LowConfidenceRemoved is the number of unverified, low-confidence
	// records the sweep soft-deleted.
	LowConfidenceRemoved int `json:"low_confidence_removed"`
}

// Stats aggregates memory statistics for one owner.
type Stats struct {
	// TotalCount is the number of records, including expired ones.
	TotalCount int `json:"total_count"`

	// CountByType breaks TotalCount down by memory type.
	CountByType map[Type]int `json:"count_by_type"`

	// AverageConfidence is the mean confidence across all records,
	// including expired ones. Zero when the owner has no records.
	AverageConfidence float64 `json:"average_confidence"`

	// VerifiedCount is the number of verified records.
	VerifiedCount int `json:"verified_count"`

	// ExpiredCount is the number of currently-expired records.
	ExpiredCount int `json:"expired_count"`
}
