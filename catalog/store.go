package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("catalog: not found")

// ErrQuotaExceeded is returned when an archive-put would push a group's
// tape usage past its Quota (spec.md §4.5 "Quota enforcement").
var ErrQuotaExceeded = errors.New("catalog: quota exceeded")

// Store is the GORM-backed catalog store, mirroring the teacher's
// db/postgres.go connection-pool and AutoMigrate conventions, applied to
// the Holding/Transaction/File/Location/Aggregation/Quota model instead
// of RabbitLog.
type Store struct {
	db *gorm.DB
}

// Open connects to dsn, configures the connection pool the way the
// teacher's PGInfo does (10 idle / 100 open / 1h lifetime), and migrates
// the catalog schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open catalog store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("catalog store connection pool: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&Holding{}, &Tag{}, &Transaction{}, &File{}, &Location{},
		&Aggregation{}, &AggregationMember{}, &Quota{},
	); err != nil {
		return nil, fmt.Errorf("migrate catalog schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// FindHolding resolves a Holding by label or numeric id, scoped to
// (user, group) (spec.md §4.5 find_holding). label may be empty to
// match on id alone.
func (s *Store) FindHolding(ctx context.Context, user, group string, id int64, label string) (*Holding, error) {
	q := s.db.WithContext(ctx).Preload("Tags").Preload("Transactions.Files.Locations").
		Where(`"user" = ? AND "group" = ?`, user, group)
	if id != 0 {
		q = q.Where("id = ?", id)
	}
	if label != "" {
		q = q.Where("label = ?", label)
	}

	var h Holding
	if err := q.First(&h).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find holding: %w", err)
	}
	return &h, nil
}

// NewHolding creates a Holding owned by (user, group) with the given
// label and tags (spec.md §4.5 new_holding).
func (s *Store) NewHolding(ctx context.Context, user, group, label string, tags []string) (*Holding, error) {
	h := Holding{Label: label, User: user, Group: group}
	for _, t := range tags {
		h.Tags = append(h.Tags, Tag{Value: t})
	}
	if err := s.db.WithContext(ctx).Create(&h).Error; err != nil {
		return nil, fmt.Errorf("new holding: %w", err)
	}
	return &h, nil
}

// AddFiles attaches a Transaction and its Files to an existing Holding
// (spec.md §4.5 add_files). files must already carry their initial
// OBJECT_STORAGE Location.
func (s *Store) AddFiles(ctx context.Context, holdingID int64, transactionID string, files []File) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn := Transaction{TransactionID: transactionID, HoldingID: holdingID, IngestedAt: time.Now().UTC(), Files: files}
		if err := tx.Create(&txn).Error; err != nil {
			return fmt.Errorf("add files: %w", err)
		}
		return nil
	})
}

// GetFiles resolves File rows within a Holding matching pathQuery, using
// IsRegex to decide between an exact match and a regular-expression
// match (spec.md §4.5 get_files).
func (s *Store) GetFiles(ctx context.Context, holdingID int64, pathQuery string) ([]File, error) {
	var candidates []File
	q := s.db.WithContext(ctx).Preload("Locations").
		Joins("JOIN transactions ON transactions.id = files.transaction_id").
		Where("transactions.holding_id = ?", holdingID)

	if IsRegex(pathQuery) {
		if err := q.Find(&candidates).Error; err != nil {
			return nil, fmt.Errorf("get files: %w", err)
		}
		return filterByRegex(candidates, pathQuery), nil
	}

	if err := q.Where("files.original_path = ?", pathQuery).Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("get files: %w", err)
	}
	return candidates, nil
}

func filterByRegex(files []File, pattern string) []File {
	re := mustCompileOrNil(pattern)
	if re == nil {
		return nil
	}
	var out []File
	for _, f := range files {
		if re.MatchString(f.OriginalPath) {
			out = append(out, f)
		}
	}
	return out
}

// AddLocation appends a Location to a File, e.g. the TAPE location
// written once archival completes (spec.md §4.5 add_location).
func (s *Store) AddLocation(ctx context.Context, fileID int64, loc Location) error {
	loc.FileID = fileID
	if err := s.db.WithContext(ctx).Create(&loc).Error; err != nil {
		return fmt.Errorf("add location: %w", err)
	}
	return nil
}

// RemoveLocation deletes a single Location row, e.g. rolling back a
// failed archive-put (spec.md §4.5 remove_location).
func (s *Store) RemoveLocation(ctx context.Context, locationID int64) error {
	res := s.db.WithContext(ctx).Delete(&Location{}, locationID)
	if res.Error != nil {
		return fmt.Errorf("remove location: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteFiles removes File rows (cascading their Locations) from a
// Holding (spec.md §4.5 delete_files). Callers must check
// UserHasDeleteFromHoldingPermission before calling this.
func (s *Store) DeleteFiles(ctx context.Context, fileIDs []int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("file_id IN ?", fileIDs).Delete(&Location{}).Error; err != nil {
			return fmt.Errorf("delete file locations: %w", err)
		}
		if err := tx.Delete(&File{}, fileIDs).Error; err != nil {
			return fmt.Errorf("delete files: %w", err)
		}
		return nil
	})
}

// UpdateTape records a TAPE Location for fileID within aggregationID,
// creating the Aggregation row on first use (spec.md §4.5 update_tape,
// called by the catalog-archive-update consumer once a tar write and
// verification succeed).
func (s *Store) UpdateTape(ctx context.Context, fileID int64, aggregationID, tarPath string, checksum uint32, tenancy string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		agg := Aggregation{ID: aggregationID, TarPath: tarPath, Checksum: checksum}
		if err := tx.FirstOrCreate(&agg, Aggregation{ID: aggregationID}).Error; err != nil {
			return fmt.Errorf("update tape aggregation: %w", err)
		}
		member := AggregationMember{AggregationID: aggregationID, FileID: fileID}
		if err := tx.FirstOrCreate(&member, member).Error; err != nil {
			return fmt.Errorf("update tape membership: %w", err)
		}
		loc := Location{FileID: fileID, StorageType: StorageTypeTape, BucketOrAggregation: aggregationID, Tenancy: tenancy, AccessTime: time.Now().UTC()}
		if err := tx.Create(&loc).Error; err != nil {
			return fmt.Errorf("update tape location: %w", err)
		}
		return nil
	})
}

// Quota looks up a group's Quota row, returning a zero-used Quota with
// Size 0 if none has been provisioned yet rather than ErrNotFound, since
// an unprovisioned group simply has no tape allowance (spec.md §4.5
// quota).
func (s *Store) Quota(ctx context.Context, group string) (Quota, error) {
	var q Quota
	err := s.db.WithContext(ctx).First(&q, "\"group\" = ?", group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Quota{Group: group}, nil
	}
	if err != nil {
		return Quota{}, fmt.Errorf("get quota: %w", err)
	}
	return q, nil
}

// ReserveQuota atomically checks and increments a group's tape usage by
// candidateBytes, returning ErrQuotaExceeded without mutating state if
// the increment would exceed Size (testable scenario S5).
func (s *Store) ReserveQuota(ctx context.Context, group string, candidateBytes int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var q Quota
		err := tx.First(&q, "\"group\" = ?", group).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuotaExceeded
		}
		if err != nil {
			return fmt.Errorf("reserve quota: %w", err)
		}
		if q.Exceeds(candidateBytes) {
			return ErrQuotaExceeded
		}
		return tx.Model(&Quota{}).Where("\"group\" = ?", group).
			Update("used", gorm.Expr("used + ?", candidateBytes)).Error
	})
}
