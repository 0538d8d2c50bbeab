// Package catalog implements the Holding/Transaction/File/Location/
// Aggregation/Quota data model of spec.md §3 over GORM + Postgres,
// mirroring the teacher's db/postgres.go GORM model style, and the
// permission and text-matching rules of spec.md §4.5.
package catalog

import "time"

// PathType classifies a File's original path (spec.md §3). Defined here
// too (distinct from common.PathType) because the catalog persists it as
// a DB column via GORM tags; callers convert between the two at the
// consumer boundary.
type PathType string

const (
	PathTypeFile          PathType = "FILE"
	PathTypeDirectory     PathType = "DIRECTORY"
	PathTypeLink          PathType = "LINK"
	PathTypeNotRecognised PathType = "NOT_RECOGNISED"
	PathTypeUnindexed     PathType = "UNINDEXED"
)

// StorageType is where a Location's bytes live.
type StorageType string

const (
	StorageTypeObject StorageType = "OBJECT_STORAGE"
	StorageTypeTape   StorageType = "TAPE"
)

// Holding is a named batch owned by (user, group) (spec.md §3). Holdings
// are user-visible and the unit of listing and deletion authorization.
type Holding struct {
	ID    int64  `gorm:"primaryKey"`
	Label string `gorm:"index"`
	Tags  []Tag  `gorm:"foreignKey:HoldingID"`
	User  string `gorm:"index"`
	Group string `gorm:"index"`

	Transactions []Transaction `gorm:"foreignKey:HoldingID"`
}

// Tag is one free-text, multi-valued tag attached to a Holding.
type Tag struct {
	ID        int64 `gorm:"primaryKey"`
	HoldingID int64 `gorm:"index"`
	Value     string
}

// Transaction is a single user request against one Holding (spec.md §3).
type Transaction struct {
	ID            int64     `gorm:"primaryKey"`
	TransactionID string    `gorm:"uniqueIndex"` // opaque external id, UUID as text
	HoldingID     int64     `gorm:"index"`
	IngestedAt    time.Time

	Files []File `gorm:"foreignKey:TransactionID"`
}

// File is a catalogued object (spec.md §3). Invariant: (transaction,
// original_path) is unique within a holding — enforced by the composite
// unique index below.
type File struct {
	ID             int64  `gorm:"primaryKey"`
	TransactionID  int64  `gorm:"uniqueIndex:idx_file_txn_path"`
	OriginalPath   string `gorm:"uniqueIndex:idx_file_txn_path"`
	PathType       PathType
	LinkPath       string
	Size           int64
	UID            int
	GroupName      string
	Mode           uint32
	AccessTime     time.Time
	ObjectName     string

	Locations []Location `gorm:"foreignKey:FileID"`
}

// Location binds a File to one backing store (spec.md §3). A File has
// 1..2 locations: object always, tape optionally after archival.
type Location struct {
	ID          int64 `gorm:"primaryKey"`
	FileID      int64 `gorm:"index"`
	StorageType StorageType
	URL         string
	Tenancy     string
	BucketOrAggregation string // bucket name for OBJECT_STORAGE, aggregation id for TAPE
	AccessTime  time.Time
	Checksum    uint32 // adler-32
}

// Aggregation is a named tar-formatted unit written to tape once
// (spec.md §3). Membership is immutable after write; a File has at most
// one Aggregation (enforced at the application layer, not by a DB
// constraint, since the back-reference is a lookup, never ownership —
// see DESIGN.md "Cyclic references").
type Aggregation struct {
	ID       string `gorm:"primaryKey"` // 16-hex-char SHAKE-256 derived id
	TarPath  string
	Checksum uint32 // adler-32 of the tar stream

	Members []AggregationMember `gorm:"foreignKey:AggregationID"`
}

// AggregationMember is the join row from an Aggregation to its member
// Files — a lookup-only back-reference, per spec.md §9's note that
// Aggregation does not own Files.
type AggregationMember struct {
	AggregationID string `gorm:"primaryKey;index"`
	FileID        int64  `gorm:"primaryKey;index"`
}

// Quota is the per-group tape usage cap (spec.md §3). Updated on
// successful archive-put / archive-del.
type Quota struct {
	Group string `gorm:"primaryKey"`
	Size  int64  // allowed bytes on tape
	Used  int64  // bytes currently on tape
}

// Remaining reports how many more bytes this quota permits.
func (q Quota) Remaining() int64 {
	if q.Used >= q.Size {
		return 0
	}
	return q.Size - q.Used
}

// Exceeds reports whether adding candidateBytes would exceed the quota
// (spec.md §4.5 "Quota enforcement").
func (q Quota) Exceeds(candidateBytes int64) bool {
	return q.Used+candidateBytes > q.Size
}
