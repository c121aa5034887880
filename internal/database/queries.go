package database

// Thread mapping queries
const (
	InsertThreadMappingQuery = `
		INSERT INTO thread_mapping (
			origin_thread_id, origin_trigger_id, mirror_thread_id, created_at
		) VALUES (?, ?, ?, ?)
	`

	SelectAllThreadMappingsQuery = `
		SELECT id, origin_thread_id, origin_trigger_id, mirror_thread_id, created_at
		FROM thread_mapping
		ORDER BY id
	`

	SelectThreadMappingByOriginQuery = `
		SELECT id, origin_thread_id, origin_trigger_id, mirror_thread_id, created_at
		FROM thread_mapping
		WHERE origin_thread_id = ?
	`

	CountThreadMappingsQuery = `SELECT COUNT(*) FROM thread_mapping`
)

// Comment mapping queries
const (
	InsertCommentMappingQuery = `
		INSERT INTO comment_mapping (
			origin_comment_id, mirror_comment_id, direction, created_at
		) VALUES (?, ?, ?, ?)
	`

	// The origin column wins when an id happens to appear in both columns
	SelectCommentMappingByEitherIDQuery = `
		SELECT id, origin_comment_id, mirror_comment_id, direction, created_at
		FROM comment_mapping
		WHERE origin_comment_id = ? OR mirror_comment_id = ?
		ORDER BY CASE WHEN origin_comment_id = ? THEN 0 ELSE 1 END, id
		LIMIT 1
	`

	CountCommentMappingsQuery = `SELECT COUNT(*) FROM comment_mapping`
)

// Reset queries
const (
	DropCommentMappingTableQuery = `DROP TABLE IF EXISTS comment_mapping`
	DropThreadMappingTableQuery  = `DROP TABLE IF EXISTS thread_mapping`
)
