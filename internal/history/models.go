// Package history stores one row per cq invocation: the pattern searched,
// the dialect, the path searched, how many matches it produced, how long
// it took, and a JSON column for a metavariable binding summary. Grounded
// on termfx-morfx/models/models.go and termfx-morfx/db/sqlite.go: same
// gorm + datatypes.JSON shape, generalized from transformation staging to
// search-run logging.
package history

import (
	"time"

	"gorm.io/datatypes"
)

// Run is one recorded invocation of cq.
type Run struct {
	ID         uint      `gorm:"primaryKey"`
	Pattern    string    `gorm:"type:text;not null"`
	CPP        bool      `gorm:"not null"`
	Path       string    `gorm:"type:text;not null"`
	Matches    int       `gorm:"not null"`
	DurationMS int64     `gorm:"column:duration_ms;not null"`
	StartedAt  time.Time `gorm:"autoCreateTime;index"`

	// Bindings holds the per-metavariable counts passed to Record,
	// encoded as JSON. internal/cli passes no counts, so the rows it
	// records hold JSON null here.
	Bindings datatypes.JSON `gorm:"type:jsonb"`
}

// TableName keeps the schema name stable independent of the Go type name.
func (Run) TableName() string { return "runs" }
