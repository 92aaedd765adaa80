package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

type pgvectorConfig struct {
	DSN   string `json:"dsn"`
	Table string `json:"table"`
}

// pgvectorStore keeps vectors in a postgres table with a pgvector column;
// cosine distance via the <=> operator.
type pgvectorStore struct {
	db        *sql.DB
	table     string
	dimension int
}

func init() {
	Register("pgvector", createPgvectorStore)
}

func createPgvectorStore(dimension int, args interface{}) (Store, error) {
	cfg := &pgvectorConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pgvector dsn is required")
	}
	if cfg.Table == "" {
		cfg.Table = "vector_records"
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &pgvectorStore{db: db, table: cfg.Table, dimension: dimension}, nil
}

func (s *pgvectorStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("enable pgvector extension: %w", err)
	}
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			document_id TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			embedding vector(%d) NOT NULL
		)`, s.table, s.dimension)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create vector table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_user ON %s (user_id)`, s.table, s.table)); err != nil {
		return fmt.Errorf("create user index: %w", err)
	}
	return s.checkDimension(ctx)
}

// checkDimension guards against a pre-existing table with a different
// vector width; pgvector stores the width in atttypmod.
func (s *pgvectorStore) checkDimension(ctx context.Context) error {
	const query = `
		SELECT atttypmod
		FROM pg_attribute
		WHERE attrelid = $1::regclass AND attname = 'embedding'
	`
	var typmod int
	if err := s.db.QueryRowContext(ctx, query, s.table).Scan(&typmod); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("table %s has no embedding column", s.table)
		}
		return err
	}
	if typmod > 0 && typmod != s.dimension {
		return fmt.Errorf("table %s stores vectors of dimension %d, configured dimension is %d", s.table, typmod, s.dimension)
	}
	return nil
}

func (s *pgvectorStore) Upsert(ctx context.Context, records []Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, source, document_id, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			source = EXCLUDED.source,
			document_id = EXCLUDED.document_id,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding
	`, s.table)
	return upsertInBatches(ctx, records, func(ctx context.Context, batch []Record) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		for _, rec := range batch {
			if len(rec.Values) != s.dimension {
				_ = tx.Rollback()
				return fmt.Errorf("record %s has dimension %d, store expects %d", rec.ID, len(rec.Values), s.dimension)
			}
			if _, err := tx.ExecContext(ctx, query,
				rec.ID,
				rec.Metadata.UserID,
				rec.Metadata.Source,
				rec.Metadata.DocumentID,
				rec.Metadata.Text,
				pgvector.NewVector(rec.Values),
			); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
}

func (s *pgvectorStore) Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Result, error) {
	if topK <= 0 {
		return nil, nil
	}
	where, args := s.filterClause(filter, 2)
	query := fmt.Sprintf(`
		SELECT id, user_id, source, document_id, content, 1 - (embedding <=> $1) AS score
		FROM %s
		%s
		ORDER BY embedding <=> $1
		LIMIT %d
	`, s.table, where, topK)
	queryArgs := append([]interface{}{pgvector.NewVector(vector)}, args...)
	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []Result
	for rows.Next() {
		var res Result
		if err := rows.Scan(&res.ID, &res.Metadata.UserID, &res.Metadata.Source, &res.Metadata.DocumentID, &res.Metadata.Text, &res.Score); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

func (s *pgvectorStore) Delete(ctx context.Context, filter Filter) error {
	where, args := s.filterClause(filter, 1)
	query := fmt.Sprintf(`DELETE FROM %s %s`, s.table, where)
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *pgvectorStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *pgvectorStore) filterClause(filter Filter, firstArg int) (string, []interface{}) {
	var conds []string
	var args []interface{}
	n := firstArg
	if filter.UserID != "" {
		conds = append(conds, fmt.Sprintf("user_id = $%d", n))
		args = append(args, filter.UserID)
		n++
	}
	if filter.DocumentID != "" {
		conds = append(conds, fmt.Sprintf("document_id = $%d", n))
		args = append(args, filter.DocumentID)
		n++
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}
