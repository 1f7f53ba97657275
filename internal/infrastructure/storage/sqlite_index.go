package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/coursebot/backend/internal/domain/document"
	"github.com/coursebot/backend/internal/infrastructure/config"
	"github.com/coursebot/backend/internal/infrastructure/log"
)

// 单条 DELETE 语句中 id 占位符数量上限
const deleteBatchSize = 500

// 确保 SQLiteIndex 实现了 document.Index 接口
var _ document.Index = (*SQLiteIndex)(nil)

// SQLiteIndex 基于 SQLite 的向量索引，查询时精确扫描全部向量
type SQLiteIndex struct {
	db         *sql.DB
	collection string
	embedder   document.Embedder
	logger     *slog.Logger
}

// NewSQLiteIndex 创建 SQLite 索引
func NewSQLiteIndex(db *sql.DB, cfg *config.IndexConfig, embedder document.Embedder) *SQLiteIndex {
	return &SQLiteIndex{
		db:         db,
		collection: cfg.Collection,
		embedder:   embedder,
		logger:     log.NewModuleLogger("storage", "sqlite_index"),
	}
}

// Ping 检查数据库连接
func (s *SQLiteIndex) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Add 向量化并写入记录
func (s *SQLiteIndex) Add(ctx context.Context, texts, ids []string, metas []document.Metadata) error {
	if len(texts) != len(ids) || len(texts) != len(metas) {
		return fmt.Errorf("%w: %d texts, %d ids, %d metadatas", document.ErrLengthMismatch, len(texts), len(ids), len(metas))
	}
	for i, m := range metas {
		if !m.Valid() {
			return fmt.Errorf("%w: record %q", document.ErrInvalidMetadata, ids[i])
		}
	}
	if len(texts) == 0 {
		return nil
	}

	vectors, err := document.EmbedAll(ctx, s.embedder, texts)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO index_records (
			collection, id, source_name, chunk_index, content_type, ingested_at, text, vector
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range texts {
		m := metas[i]
		if _, err := stmt.ExecContext(ctx,
			s.collection, ids[i], m.SourceName, m.ChunkIndex, m.ContentType, m.IngestedAt,
			texts[i], encodeVector(vectors[i]),
		); err != nil {
			return fmt.Errorf("failed to insert record %q: %w", ids[i], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}

	s.logger.Debug("Records added", "collection", s.collection, "count", len(ids))
	return nil
}

// GetByFilter 按文档名查询记录
func (s *SQLiteIndex) GetByFilter(ctx context.Context, filter document.Filter) ([]document.Record, error) {
	query := `
		SELECT id, source_name, chunk_index, content_type, ingested_at, text, vector
		FROM index_records
		WHERE collection = ?`
	args := []any{s.collection}
	if filter.SourceName != "" {
		query += ` AND source_name = ?`
		args = append(args, filter.SourceName)
	}
	query += ` ORDER BY source_name, chunk_index`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []document.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Update 更新记录文本或元数据
func (s *SQLiteIndex) Update(ctx context.Context, id string, text *string, meta *document.Metadata) error {
	if text == nil && meta == nil {
		return document.ErrNothingToUpdate
	}
	if meta != nil && !meta.Valid() {
		return fmt.Errorf("%w: record %q", document.ErrInvalidMetadata, id)
	}

	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM index_records WHERE collection = ? AND id = ?`, s.collection, id,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: record %q", document.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to look up record: %w", err)
	}

	var vector []float32
	if text != nil {
		vectors, err := document.EmbedAll(ctx, s.embedder, []string{*text})
		if err != nil {
			return err
		}
		vector = vectors[0]
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if text != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE index_records SET text = ?, vector = ? WHERE collection = ? AND id = ?`,
			*text, encodeVector(vector), s.collection, id,
		); err != nil {
			return fmt.Errorf("failed to update record text: %w", err)
		}
	}
	if meta != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE index_records SET source_name = ?, chunk_index = ?, content_type = ?, ingested_at = ?
			WHERE collection = ? AND id = ?`,
			meta.SourceName, meta.ChunkIndex, meta.ContentType, meta.IngestedAt, s.collection, id,
		); err != nil {
			return fmt.Errorf("failed to update record metadata: %w", err)
		}
	}

	return tx.Commit()
}

// Delete 删除记录，不存在的 id 忽略
func (s *SQLiteIndex) Delete(ctx context.Context, ids []string) error {
	for start := 0; start < len(ids); start += deleteBatchSize {
		batch := ids[start:min(start+deleteBatchSize, len(ids))]

		args := make([]any, 0, len(batch)+1)
		args = append(args, s.collection)
		for _, id := range batch {
			args = append(args, id)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")

		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM index_records WHERE collection = ? AND id IN (`+placeholders+`)`, args...,
		); err != nil {
			return fmt.Errorf("failed to delete records: %w", err)
		}
	}
	return nil
}

// Query 精确计算余弦距离并返回最近的 k 条
func (s *SQLiteIndex) Query(ctx context.Context, vector []float32, k int) ([]document.Match, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_name, chunk_index, content_type, ingested_at, text, vector
		FROM index_records
		WHERE collection = ?`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to scan records: %w", err)
	}
	defer rows.Close()

	var matches []document.Match
	skipped := 0
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if len(r.Vector) != len(vector) {
			skipped++
			continue
		}
		matches = append(matches, document.Match{Record: r, Distance: cosineDistance(vector, r.Vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if skipped > 0 {
		s.logger.Warn("Skipped records with mismatched vector dimension",
			"collection", s.collection,
			"count", skipped,
			"query_dimension", len(vector),
		)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func scanRecord(rows *sql.Rows) (document.Record, error) {
	var (
		r    document.Record
		blob []byte
	)
	if err := rows.Scan(
		&r.ID, &r.Metadata.SourceName, &r.Metadata.ChunkIndex, &r.Metadata.ContentType,
		&r.Metadata.IngestedAt, &r.Text, &blob,
	); err != nil {
		return r, fmt.Errorf("failed to scan record: %w", err)
	}
	v, err := decodeVector(blob)
	if err != nil {
		return r, fmt.Errorf("record %q: %w", r.ID, err)
	}
	r.Vector = v
	return r, nil
}
