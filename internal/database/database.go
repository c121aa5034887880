package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	apperrors "lemmylink/internal/errors"
	"lemmylink/internal/migrations"
	"lemmylink/internal/models"
	"lemmylink/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrThreadAlreadyMapped is returned when an origin thread already has a mirror thread
	ErrThreadAlreadyMapped = errors.New("origin thread already mapped")
	// ErrCommentAlreadyMapped is returned when a comment has already been replicated
	ErrCommentAlreadyMapped = errors.New("comment already mapped")
)

// Database is the sqlite-backed mapping store
type Database struct {
	db *sql.DB
}

// New opens (creating if needed) the mapping store at dbPath and applies the schema
func New(dbPath string, busyTimeoutMs int) (*Database, error) {
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	if busyTimeoutMs <= 0 {
		busyTimeoutMs = 5000
	}
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d", dbPath, busyTimeoutMs)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// CreateThreadMapping records that originThreadID has been bridged to mirrorThreadID
func (d *Database) CreateThreadMapping(ctx context.Context, originThreadID, originTriggerID, mirrorThreadID string) (*models.ThreadMapping, error) {
	mapping := &models.ThreadMapping{
		OriginThreadID:  originThreadID,
		OriginTriggerID: originTriggerID,
		MirrorThreadID:  mirrorThreadID,
		CreatedAt:       time.Now().UTC(),
	}

	err := retryableDBOperationNoReturn(ctx, func() error {
		res, err := d.db.ExecContext(ctx, InsertThreadMappingQuery,
			mapping.OriginThreadID,
			mapping.OriginTriggerID,
			mapping.MirrorThreadID,
			mapping.CreatedAt,
		)
		if err != nil {
			return err
		}
		mapping.ID, err = res.LastInsertId()
		return err
	}, "create thread mapping")

	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s", ErrThreadAlreadyMapped, originThreadID)
	}
	if err != nil {
		return nil, apperrors.NewStoreError("create thread mapping", err).
			WithContext("origin_thread_id", originThreadID)
	}

	return mapping, nil
}

// AllThreadMappings returns every thread mapping ordered by insertion
func (d *Database) AllThreadMappings(ctx context.Context) ([]*models.ThreadMapping, error) {
	rows, err := d.db.QueryContext(ctx, SelectAllThreadMappingsQuery)
	if err != nil {
		return nil, apperrors.NewStoreError("list thread mappings", err)
	}
	defer rows.Close()

	var mappings []*models.ThreadMapping
	for rows.Next() {
		mapping := &models.ThreadMapping{}
		if err := rows.Scan(
			&mapping.ID,
			&mapping.OriginThreadID,
			&mapping.OriginTriggerID,
			&mapping.MirrorThreadID,
			&mapping.CreatedAt,
		); err != nil {
			return nil, apperrors.NewStoreError("scan thread mapping", err)
		}
		mappings = append(mappings, mapping)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("list thread mappings", err)
	}

	return mappings, nil
}

// MappingByOriginThread returns the mapping for originThreadID, or nil when the thread is not bridged
func (d *Database) MappingByOriginThread(ctx context.Context, originThreadID string) (*models.ThreadMapping, error) {
	mapping := &models.ThreadMapping{}

	err := d.db.QueryRowContext(ctx, SelectThreadMappingByOriginQuery, originThreadID).Scan(
		&mapping.ID,
		&mapping.OriginThreadID,
		&mapping.OriginTriggerID,
		&mapping.MirrorThreadID,
		&mapping.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStoreError("get thread mapping", err).
			WithContext("origin_thread_id", originThreadID)
	}

	return mapping, nil
}

// CreateCommentMapping records that originCommentID was replicated as mirrorCommentID
func (d *Database) CreateCommentMapping(ctx context.Context, originCommentID, mirrorCommentID string, direction models.SyncDirection) (*models.CommentMapping, error) {
	mapping := &models.CommentMapping{
		OriginCommentID: originCommentID,
		MirrorCommentID: mirrorCommentID,
		Direction:       direction,
		CreatedAt:       time.Now().UTC(),
	}

	err := retryableDBOperationNoReturn(ctx, func() error {
		res, err := d.db.ExecContext(ctx, InsertCommentMappingQuery,
			mapping.OriginCommentID,
			mapping.MirrorCommentID,
			string(mapping.Direction),
			mapping.CreatedAt,
		)
		if err != nil {
			return err
		}
		mapping.ID, err = res.LastInsertId()
		return err
	}, "create comment mapping")

	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s", ErrCommentAlreadyMapped, originCommentID)
	}
	if err != nil {
		return nil, apperrors.NewStoreError("create comment mapping", err).
			WithContext("comment_id", originCommentID)
	}

	return mapping, nil
}

// CommentMappingByEitherID looks id up as an original comment or as a replicated copy
func (d *Database) CommentMappingByEitherID(ctx context.Context, id string) (*models.CommentMapping, error) {
	mapping := &models.CommentMapping{}
	var direction string

	err := d.db.QueryRowContext(ctx, SelectCommentMappingByEitherIDQuery, id, id, id).Scan(
		&mapping.ID,
		&mapping.OriginCommentID,
		&mapping.MirrorCommentID,
		&direction,
		&mapping.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStoreError("get comment mapping", err).
			WithContext("comment_id", id)
	}

	mapping.Direction = models.SyncDirection(direction)
	return mapping, nil
}

// ResetAll drops both mapping tables and recreates them empty in one transaction
func (d *Database) ResetAll(ctx context.Context) error {
	schema, err := migrations.GetInitialSchema()
	if err != nil {
		return apperrors.NewStoreError("reset", err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStoreError("reset", err)
	}

	for _, stmt := range []string{DropCommentMappingTableQuery, DropThreadMappingTableQuery, schema} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return apperrors.NewStoreError("reset", fmt.Errorf("%w (rollback error: %v)", err, rbErr))
			}
			return apperrors.NewStoreError("reset", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStoreError("reset", err)
	}
	return nil
}

// Stats returns row counts for both mapping tables
func (d *Database) Stats(ctx context.Context) (*models.StoreStats, error) {
	stats := &models.StoreStats{}

	if err := d.db.QueryRowContext(ctx, CountThreadMappingsQuery).Scan(&stats.ThreadMappings); err != nil {
		return nil, apperrors.NewStoreError("count thread mappings", err)
	}
	if err := d.db.QueryRowContext(ctx, CountCommentMappingsQuery).Scan(&stats.CommentMappings); err != nil {
		return nil, apperrors.NewStoreError("count comment mappings", err)
	}

	return stats, nil
}
