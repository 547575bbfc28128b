package model

import "time"

// Entry is one key/value slot of the local store. Task partitions,
// the endpoint URL and the session all live in this table.
type Entry struct {
	Key       string `gorm:"column:entry_key;primaryKey"`
	Value     string
	UpdatedAt time.Time
}
