// Package entity defines the JSON entity shape the cache store operates on.
package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// Metadata is the optional envelope carried by an entity: its last-modified
// timestamp and whether it was created offline under a client-minted id.
type Metadata struct {
	LastModifiedTime *time.Time `json:"lmt,omitempty"`
	Local            bool       `json:"local,omitempty"`
}

// Entity is a JSON object with a required string id. Fields holds the rest
// of the document; Metadata is the "_kmd" envelope.
type Entity struct {
	ID       string
	Fields   map[string]any
	Metadata *Metadata
}

// Clone returns a deep-enough copy safe to hand to a caller without aliasing
// the store's internal map.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	fields := make(map[string]any, len(e.Fields))
	for k, v := range e.Fields {
		fields[k] = v
	}
	var md *Metadata
	if e.Metadata != nil {
		cp := *e.Metadata
		md = &cp
	}
	return &Entity{ID: e.ID, Fields: fields, Metadata: md}
}

// MarshalJSON flattens Fields alongside "id" and "_kmd".
func (e Entity) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+2)
	for k, v := range e.Fields {
		out[k] = v
	}
	out["id"] = e.ID
	if e.Metadata != nil {
		out["_kmd"] = e.Metadata
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits "id" and "_kmd" back out of the flat document.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal entity: %w", err)
	}

	id, _ := raw["id"].(string)
	delete(raw, "id")

	var md *Metadata
	if kmd, ok := raw["_kmd"]; ok {
		delete(raw, "_kmd")
		b, err := json.Marshal(kmd)
		if err != nil {
			return fmt.Errorf("remarshal _kmd: %w", err)
		}
		md = &Metadata{}
		if err := json.Unmarshal(b, md); err != nil {
			return fmt.Errorf("unmarshal _kmd: %w", err)
		}
	}

	e.ID = id
	e.Fields = raw
	e.Metadata = md
	return nil
}

// IsLocal reports whether the entity was created offline and has no
// server-assigned id yet.
func (e *Entity) IsLocal() bool {
	return e.Metadata != nil && e.Metadata.Local
}

// LastModified returns the lmt if present, or the zero time.
func (e *Entity) LastModified() time.Time {
	if e.Metadata == nil || e.Metadata.LastModifiedTime == nil {
		return time.Time{}
	}
	return *e.Metadata.LastModifiedTime
}
