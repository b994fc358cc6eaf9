package store

import (
	"context"
	"fmt"
	"time"

	"github.com/andresmejia3/facewatch/internal/types"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// Store manages the PostgreSQL connection and the stored reference gallery.
type Store struct {
	conn *pgx.Conn
}

// FaceRecord is one stored gallery row.
type FaceRecord struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the gallery table and vector extension if they don't exist.
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS gallery_faces (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
	`, types.EmbeddingSize)
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// ReplaceGallery swaps the stored gallery for entries in a single transaction.
// Row ids follow the order of entries.
func (s *Store) ReplaceGallery(ctx context.Context, entries []types.Entry) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM gallery_faces"); err != nil {
		return fmt.Errorf("clear gallery: %w", err)
	}

	for _, e := range entries {
		vec := pgvector.NewVector(e.Embedding[:])
		if _, err := tx.Exec(ctx,
			"INSERT INTO gallery_faces (name, embedding) VALUES ($1, $2)",
			e.Name, vec,
		); err != nil {
			return fmt.Errorf("insert %s: %w", e.Name, err)
		}
	}

	return tx.Commit(ctx)
}

// LoadGallery returns every stored entry in insertion order.
func (s *Store) LoadGallery(ctx context.Context) ([]types.Entry, error) {
	rows, err := s.conn.Query(ctx, "SELECT name, embedding FROM gallery_faces ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query gallery: %w", err)
	}
	defer rows.Close()

	var entries []types.Entry
	for rows.Next() {
		var (
			name string
			vec  pgvector.Vector
		)
		if err := rows.Scan(&name, &vec); err != nil {
			return nil, fmt.Errorf("scan gallery row: %w", err)
		}

		values := vec.Slice()
		if len(values) != types.EmbeddingSize {
			return nil, fmt.Errorf("entry %s has %d dimensions, want %d", name, len(values), types.EmbeddingSize)
		}
		e := types.Entry{Name: name}
		copy(e.Embedding[:], values)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListFaces returns the stored rows without their embeddings.
func (s *Store) ListFaces(ctx context.Context) ([]FaceRecord, error) {
	rows, err := s.conn.Query(ctx, "SELECT id, name, created_at FROM gallery_faces ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query gallery: %w", err)
	}
	defer rows.Close()

	var records []FaceRecord
	for rows.Next() {
		var r FaceRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan gallery row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Reset drops the gallery table. The next New recreates it empty.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, "DROP TABLE IF EXISTS gallery_faces CASCADE")
	return err
}
