package model

import (
	"encoding/json"
	"time"
)

// Embedding stores the vector of a single chunk as a JSON array of float32.
// encoding/json emits the shortest representation that parses back to the
// same float32, so vectors round-trip exactly.
type Embedding struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChunkID   uint      `gorm:"not null;uniqueIndex" json:"chunk_id"`
	Vector    string    `gorm:"type:longtext;not null" json:"-"`
	Model     string    `gorm:"size:128" json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// Values returns the parsed vector; nil on parse error.
func (e *Embedding) Values() []float32 {
	return ParseVector(e.Vector)
}

// SetValues stores the vector as JSON.
func (e *Embedding) SetValues(vec []float32) {
	if len(vec) == 0 {
		e.Vector = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	e.Vector = string(b)
}

func ParseVector(raw string) []float32 {
	if raw == "" {
		return nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil
	}
	return v
}
