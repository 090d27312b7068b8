package models

import (
	"time"

	"gorm.io/datatypes"
)

// KVEntry is one JSON record of the key-value store.
type KVEntry struct {
	Key       string         `gorm:"primaryKey;size:255"`
	Value     datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (KVEntry) TableName() string { return "kv_entries" }

// KVListEntry is one member of an append-only list. The auto-increment ID keeps insertion order.
type KVListEntry struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	Key       string `gorm:"size:255;index:idx_kv_list_key"`
	Member    string `gorm:"not null"`
	CreatedAt time.Time
}

func (KVListEntry) TableName() string { return "kv_list_entries" }

// KVCounter is an integer cell updated by compare-and-swap.
type KVCounter struct {
	Key       string `gorm:"primaryKey;size:255"`
	Value     int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (KVCounter) TableName() string { return "kv_counters" }
