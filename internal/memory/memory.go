// Package memory is the durable store for saved memories, backing
// internal/dispatch's save_memory/edit_memory/search_memories tools and
// the HTTP surface's recent/search/save/delete/edit memory endpoints. It
// is an embedded modernc.org/sqlite database with an FTS5 shadow table
// kept in sync by triggers.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// Record is one stored memory.
type Record struct {
	ID        string
	Text      string
	HasImage  bool
	CreatedAt time.Time
}

// Store is a SQLite-backed memory store.
type Store struct {
	db *sql.DB
}

// id is a TEXT ulid rather than an AUTOINCREMENT integer: sortable,
// globally unique, and no caller-suppliable integer for the FTS5
// external-content table to trust. FTS5 still requires its content_rowid
// to be an integer, so the triggers key off the table's own implicit
// rowid rather than the TEXT id column.
const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	image BLOB,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
	text, content='memories', content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
	INSERT INTO memories_fts(rowid, text) VALUES (new.rowid, new.text);
END;

CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
	INSERT INTO memories_fts(memories_fts, rowid, text) VALUES('delete', old.rowid, old.text);
END;

CREATE TRIGGER IF NOT EXISTS memories_au AFTER UPDATE ON memories BEGIN
	INSERT INTO memories_fts(memories_fts, rowid, text) VALUES('delete', old.rowid, old.text);
	INSERT INTO memories_fts(rowid, text) VALUES (new.rowid, new.text);
END;
`

// Open opens (creating if absent) the sqlite database at path and ensures
// its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: single writer, avoid SQLITE_BUSY

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize memory schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Save inserts a new text-only memory and returns its id, satisfying
// internal/dispatch.MemoryStore.
func (s *Store) Save(ctx context.Context, text string) (string, error) {
	return s.SaveWithImage(ctx, text, nil)
}

// SaveWithImage inserts a memory with an optional image blob, used by the
// save-memory HTTP endpoint when the request carries an image payload.
func (s *Store) SaveWithImage(ctx context.Context, text string, image []byte) (string, error) {
	id := ulid.Make().String()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO memories (id, text, image) VALUES (?, ?, ?)`, id, text, image); err != nil {
		return "", fmt.Errorf("save memory: %w", err)
	}
	return id, nil
}

// Edit replaces the text of the memory identified by id.
func (s *Store) Edit(ctx context.Context, id, newText string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET text = ? WHERE id = ?`, newText, id)
	if err != nil {
		return fmt.Errorf("edit memory %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("memory %q not found", id)
	}
	return nil
}

// Delete removes the memory identified by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete memory %q: %w", id, err)
	}
	return nil
}

// Recent returns up to limit memories, most recent first, for the
// GET /api/recent_memories/ endpoint.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, image IS NOT NULL, created_at FROM memories ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent memories: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Search performs a full-text search over terms. It returns []Record;
// cmd/vico's memoryAdapter converts these into dispatch.MemoryRecord to
// satisfy internal/dispatch.MemoryStore.
func (s *Store) Search(ctx context.Context, terms []string) ([]Record, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		quoted = append(quoted, fmt.Sprintf("%q", t))
	}
	if len(quoted) == 0 {
		return nil, nil
	}
	matchQuery := strings.Join(quoted, " OR ")

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.text, m.image IS NOT NULL, m.created_at
		FROM memories_fts
		JOIN memories m ON m.rowid = memories_fts.rowid
		WHERE memories_fts MATCH ?
		ORDER BY bm25(memories_fts)
		LIMIT 25
	`, matchQuery)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	defer rows.Close()
	results, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		return results, nil
	}

	// FTS5 MATCH only finds token-boundary hits (a typo or a term embedded
	// in a longer word returns nothing), so an empty result falls back to
	// ranking every memory by Levenshtein similarity against the terms.
	return s.fuzzySearch(ctx, terms)
}

const fuzzySearchThreshold = 0.4

// fuzzySearch ranks every stored memory by its best Levenshtein similarity
// against any search term, keeping matches at or above fuzzySearchThreshold.
func (s *Store) fuzzySearch(ctx context.Context, terms []string) ([]Record, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("fuzzy search memories: %w", err)
	}

	type scored struct {
		record Record
		score  float64
	}
	var candidates []scored
	for _, r := range all {
		best := 0.0
		for _, term := range terms {
			if sim := similarity(strings.ToLower(r.Text), strings.ToLower(term)); sim > best {
				best = sim
			}
		}
		if best >= fuzzySearchThreshold {
			candidates = append(candidates, scored{record: r, score: best})
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > 25 {
		candidates = candidates[:25]
	}

	out := make([]Record, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.record)
	}
	return out, nil
}

// similarity returns normalized Levenshtein similarity in [0, 1], comparing
// the term against every substring window of text the length of the term
// so a short query can match inside a much longer memory.
func similarity(text, term string) float64 {
	if term == "" {
		return 0
	}
	if len(text) <= len(term) {
		return levenshteinSimilarity(text, term)
	}

	best := 0.0
	for start := 0; start+len(term) <= len(text); start++ {
		if sim := levenshteinSimilarity(text[start:start+len(term)], term); sim > best {
			best = sim
		}
	}
	return best
}

func levenshteinSimilarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := max(len(a), len(b))
	return 1.0 - float64(dist)/float64(maxLen)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// All returns every stored memory, most recent first, for the
// memories_agent_chat handler's full-context seeding.
func (s *Store) All(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, image IS NOT NULL, created_at FROM memories ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("all memories: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// RenderXML renders records as one <memory id='..' createdAt='..'>
// block per record, indented and separated by blank lines, fed as context
// into the memories_agent_chat prompt rather than requiring a
// search_memories call.
func RenderXML(records []Record) string {
	blocks := make([]string, 0, len(records))
	for _, r := range records {
		indented := strings.ReplaceAll(r.Text, "\n", "\n\t")
		blocks = append(blocks, fmt.Sprintf(
			"<memory id='%s' createdAt='%s'>\n\t%s\n</memory>",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04"), indented,
		))
	}
	return strings.Join(blocks, "\n\n\n")
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var r Record
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Text, &r.HasImage, &createdAt); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		if t, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
			r.CreatedAt = t
		} else if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			r.CreatedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
