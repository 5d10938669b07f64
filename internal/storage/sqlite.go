package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/GaneshTappiti/notes-to-material/internal/corpus"
	"github.com/GaneshTappiti/notes-to-material/internal/item"
	"github.com/GaneshTappiti/notes-to-material/internal/retrieval"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS pages (
			document TEXT,
			page_no INTEGER,
			text TEXT,
			image_paths JSON,
			PRIMARY KEY (document, page_no)
		);`,
		`CREATE TABLE IF NOT EXISTS embeddings (
			ref TEXT PRIMARY KEY,
			page JSON,
			embedding BLOB
		);`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			name TEXT,
			topics JSON,
			documents JSON,
			status TEXT,
			total_expected INTEGER,
			generated_count INTEGER,
			found_count INTEGER,
			not_found_count INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT,
			job_id TEXT,
			status TEXT,
			content JSON,
			PRIMARY KEY (id, job_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_items_job ON items(job_id);`,
		`CREATE INDEX IF NOT EXISTS idx_pages_document ON pages(document);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// --- corpus.Store implementation ---

func (s *SQLiteStore) SavePages(ctx context.Context, pages []corpus.SourcePage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pages (document, page_no, text, image_paths) VALUES (?, ?, ?, ?)
		ON CONFLICT(document, page_no) DO UPDATE SET
			text=excluded.text,
			image_paths=excluded.image_paths
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range pages {
		images, _ := json.Marshal(p.ImagePaths)
		if _, err := stmt.Exec(p.Document, p.PageNo, p.Text, images); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) PagesFor(ctx context.Context, documents []string) ([]corpus.SourcePage, error) {
	query := "SELECT document, page_no, text, image_paths FROM pages"
	var args []any
	if len(documents) > 0 {
		query += " WHERE document IN (?" + repeatPlaceholder(len(documents)-1) + ")"
		for _, d := range documents {
			args = append(args, d)
		}
	}
	query += " ORDER BY document, page_no"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	var pages []corpus.SourcePage
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (s *SQLiteStore) PageByRef(ctx context.Context, ref string) (corpus.SourcePage, bool, error) {
	document, pageNo, err := corpus.ParseRef(ref)
	if err != nil {
		return corpus.SourcePage{}, false, err
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT document, page_no, text, image_paths FROM pages WHERE document = ? AND page_no = ?",
		document, pageNo)
	p, err := scanPage(row)
	if err == sql.ErrNoRows {
		return corpus.SourcePage{}, false, nil
	}
	if err != nil {
		return corpus.SourcePage{}, false, err
	}
	return p, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (corpus.SourcePage, error) {
	var p corpus.SourcePage
	var images []byte
	if err := row.Scan(&p.Document, &p.PageNo, &p.Text, &images); err != nil {
		return corpus.SourcePage{}, err
	}
	if len(images) > 0 {
		_ = json.Unmarshal(images, &p.ImagePaths)
	}
	return p, nil
}

func repeatPlaceholder(n int) string {
	var b bytes.Buffer
	for i := 0; i < n; i++ {
		b.WriteString(", ?")
	}
	return b.String()
}

// --- retrieval.Index implementation ---

func (s *SQLiteStore) Add(ctx context.Context, items []retrieval.VectorItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (ref, page, embedding) VALUES (?, ?, ?)
		ON CONFLICT(ref) DO UPDATE SET page=excluded.page, embedding=excluded.embedding
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, it := range items {
		pageJSON, err := json.Marshal(it.Page)
		if err != nil {
			return fmt.Errorf("failed to marshal page %s: %w", it.Page.Ref(), err)
		}

		// Convert []float32 to []byte
		buf := new(bytes.Buffer)
		if err := binary.Write(buf, binary.LittleEndian, it.Embedding); err != nil {
			return err
		}

		if _, err := stmt.Exec(it.Page.Ref(), pageJSON, buf.Bytes()); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Search scans every stored embedding and ranks by cosine similarity in
// process. A lecture-note corpus stays in the low thousands of pages, so a
// full scan answers in milliseconds.
func (s *SQLiteStore) Search(ctx context.Context, queryVector []float32, topK int) ([]retrieval.Hit, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT page, embedding FROM embeddings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []retrieval.Hit
	for rows.Next() {
		var pageJSON []byte
		var embeddingBlob []byte
		if err := rows.Scan(&pageJSON, &embeddingBlob); err != nil {
			return nil, err
		}

		var page corpus.SourcePage
		if err := json.Unmarshal(pageJSON, &page); err != nil {
			continue
		}

		embedding := make([]float32, len(embeddingBlob)/4)
		if err := binary.Read(bytes.NewReader(embeddingBlob), binary.LittleEndian, &embedding); err != nil {
			continue
		}

		score := retrieval.CosineSimilarity(queryVector, embedding)
		hits = append(hits, retrieval.Hit{Page: page, Score: retrieval.ClampScore(score)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	retrieval.SortHits(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// --- pipeline.Store implementation ---

func (s *SQLiteStore) SaveItem(ctx context.Context, it item.GeneratedItem) error {
	content, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("failed to marshal item %s: %w", it.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO items (id, job_id, status, content) VALUES (?, ?, ?, ?)
		ON CONFLICT(id, job_id) DO UPDATE SET
			status=excluded.status,
			content=excluded.content
	`, it.ID, it.JobID, string(it.Status), content)
	return err
}

func (s *SQLiteStore) LoadItems(ctx context.Context, jobID string) ([]item.GeneratedItem, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT content FROM items WHERE job_id = ? ORDER BY id", jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []item.GeneratedItem
	for rows.Next() {
		var content []byte
		if err := rows.Scan(&content); err != nil {
			return nil, err
		}
		var it item.GeneratedItem
		if err := json.Unmarshal(content, &it); err != nil {
			return nil, fmt.Errorf("failed to decode item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) GetItem(ctx context.Context, jobID, itemID string) (item.GeneratedItem, error) {
	row := s.db.QueryRowContext(ctx, "SELECT content FROM items WHERE job_id = ? AND id = ?", jobID, itemID)

	var content []byte
	if err := row.Scan(&content); err != nil {
		if err == sql.ErrNoRows {
			return item.GeneratedItem{}, fmt.Errorf("item %s not found in job %s", itemID, jobID)
		}
		return item.GeneratedItem{}, err
	}
	var it item.GeneratedItem
	if err := json.Unmarshal(content, &it); err != nil {
		return item.GeneratedItem{}, fmt.Errorf("failed to decode item %s: %w", itemID, err)
	}
	return it, nil
}

func (s *SQLiteStore) CreateJob(ctx context.Context, job item.Job) error {
	return s.saveJob(ctx, job, false)
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, job item.Job) error {
	return s.saveJob(ctx, job, true)
}

func (s *SQLiteStore) saveJob(ctx context.Context, job item.Job, upsert bool) error {
	topics, _ := json.Marshal(job.Topics)
	documents, _ := json.Marshal(job.Documents)

	query := `INSERT INTO jobs (id, name, topics, documents, status, total_expected, generated_count, found_count, not_found_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if upsert {
		query += `
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			topics=excluded.topics,
			documents=excluded.documents,
			status=excluded.status,
			total_expected=excluded.total_expected,
			generated_count=excluded.generated_count,
			found_count=excluded.found_count,
			not_found_count=excluded.not_found_count`
	}

	_, err := s.db.ExecContext(ctx, query,
		job.ID, job.Name, topics, documents, string(job.Status),
		job.TotalExpected, job.GeneratedCount, job.FoundCount, job.NotFoundCount)
	return err
}

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (item.Job, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, topics, documents, status, total_expected, generated_count, found_count, not_found_count FROM jobs WHERE id = ?",
		jobID)

	var job item.Job
	var topics, documents []byte
	var status string
	if err := row.Scan(&job.ID, &job.Name, &topics, &documents, &status,
		&job.TotalExpected, &job.GeneratedCount, &job.FoundCount, &job.NotFoundCount); err != nil {
		if err == sql.ErrNoRows {
			return item.Job{}, fmt.Errorf("job %s not found", jobID)
		}
		return item.Job{}, err
	}
	job.Status = item.JobStatus(status)
	if len(topics) > 0 {
		_ = json.Unmarshal(topics, &job.Topics)
	}
	if len(documents) > 0 {
		_ = json.Unmarshal(documents, &job.Documents)
	}
	return job, nil
}

// ApproveItem performs the reviewer transition to APPROVED. Only FOUND and
// NEEDS_REVIEW items are eligible.
func (s *SQLiteStore) ApproveItem(ctx context.Context, jobID, itemID string) (item.GeneratedItem, error) {
	it, err := s.GetItem(ctx, jobID, itemID)
	if err != nil {
		return item.GeneratedItem{}, err
	}
	if !it.CanApprove() {
		return item.GeneratedItem{}, fmt.Errorf("item %s has status %s and cannot be approved", itemID, it.Status)
	}
	it.Status = item.StatusApproved
	if err := s.SaveItem(ctx, it); err != nil {
		return item.GeneratedItem{}, err
	}
	return it, nil
}
