// Package research is the read-only full-text search service over a
// reference corpus of articles, backing internal/dispatch's
// perform_research and get_full_topic_details tools: per-term BM25
// queries over SQLite FTS5 (modernc.org/sqlite, the same embedded store
// internal/memory uses), best-context snippet stitching, and full-article
// retrieval by base64 topic id.
package research

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	_ "modernc.org/sqlite"
)

const (
	maxTermsPerQuery   = 5
	maxResultsReturned = 25
	maxContextLength   = 800
)

// Corpus is a read-only handle onto a pre-built article database.
type Corpus struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS articles (
	title TEXT PRIMARY KEY,
	text TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS articles_fts USING fts5(
	title, text, content='articles', content_rowid='rowid'
);
`

// Open opens the corpus database at path, creating its schema if absent
// (a fresh, empty corpus is valid for tests and for deployments that seed
// it separately). Production deployments point path at a pre-built,
// effectively read-only article database.
func Open(path string) (*Corpus, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open research corpus: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize research corpus schema: %w", err)
	}
	return &Corpus{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Corpus) Close() error { return c.db.Close() }

// IndexArticle inserts or replaces one article, used to seed the corpus in
// tests and by any offline ingestion tooling.
func (c *Corpus) IndexArticle(ctx context.Context, title, text string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// External-content FTS5 drops a row only via its 'delete' command with
	// the exact indexed values, so a replaced article's entry goes first.
	var oldRowID int64
	var oldTitle, oldText string
	err = tx.QueryRowContext(ctx, `SELECT rowid, title, text FROM articles WHERE title = ?`, title).Scan(&oldRowID, &oldTitle, &oldText)
	if err == nil {
		if _, err := tx.ExecContext(ctx, `INSERT INTO articles_fts (articles_fts, rowid, title, text) VALUES ('delete', ?, ?, ?)`, oldRowID, oldTitle, oldText); err != nil {
			return err
		}
	} else if err != sql.ErrNoRows {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO articles (title, text) VALUES (?, ?)`, title, text); err != nil {
		return fmt.Errorf("index article %q: %w", title, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO articles_fts (rowid, title, text)
		SELECT rowid, title, text FROM articles WHERE title = ?
	`, title); err != nil {
		return fmt.Errorf("index article %q into fts: %w", title, err)
	}
	return tx.Commit()
}

// IndexHTMLArticle cleans a raw HTML article page before indexing it:
// goquery strips non-content elements, then html-to-markdown renders the
// remaining markup into the plain markdown text FulltextSearch and
// FullTopicDetails operate on. Reference corpora seeded from raw HTML
// dumps (as opposed to the plain-text articles IndexArticle expects) go
// through this step first.
func (c *Corpus) IndexHTMLArticle(ctx context.Context, title, html string) error {
	cleaned, err := cleanHTMLArticle(html)
	if err != nil {
		return fmt.Errorf("clean HTML article %q: %w", title, err)
	}
	return c.IndexArticle(ctx, title, cleaned)
}

// cleanHTMLArticle strips non-content elements from an HTML document and
// converts what remains to markdown.
func cleanHTMLArticle(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, iframe, object, embed, nav, footer").Remove()

	cleanedHTML, err := doc.Html()
	if err != nil {
		return "", err
	}

	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		HorizontalRule:   "---",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
		EmDelimiter:      "*",
	})
	converter.Remove("script", "style", "meta", "link")

	return converter.ConvertString(cleanedHTML)
}

type scoredArticle struct {
	title string
	text  string
	score float64
}

// FulltextSearch runs up to 5 terms, takes 15 BM25-ranked hits per term,
// dedupes by topic id, stitches the best context snippet per article, and
// truncates to 25 total results.
func (c *Corpus) FulltextSearch(ctx context.Context, terms []string) (string, error) {
	if len(terms) > maxTermsPerQuery {
		terms = terms[:maxTermsPerQuery]
	}

	seen := make(map[string]bool)
	var parts []string
	matchNo := 1

	for _, term := range terms {
		rows, err := c.db.QueryContext(ctx, `
			SELECT a.title, a.text, bm25(articles_fts) AS score
			FROM articles_fts
			JOIN articles a ON a.rowid = articles_fts.rowid
			WHERE articles_fts MATCH ?
			ORDER BY score ASC
			LIMIT 15
		`, ftsQuery(term))
		if err != nil {
			return "", fmt.Errorf("fulltext search for %q: %w", term, err)
		}

		var hits []scoredArticle
		for rows.Next() {
			var a scoredArticle
			if err := rows.Scan(&a.title, &a.text, &a.score); err != nil {
				rows.Close()
				return "", fmt.Errorf("scan article row: %w", err)
			}
			hits = append(hits, a)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return "", err
		}

		for _, a := range hits {
			cleaned := removeConsecutiveShortLines(a.text, 100, 3)
			topicID := base64.StdEncoding.EncodeToString([]byte(a.title))
			if seen[topicID] {
				continue
			}
			seen[topicID] = true

			bestContext := bestContextFor(cleaned, term)
			if len(bestContext) > maxContextLength {
				bestContext = strings.TrimRight(bestContext[:maxContextLength], " ") + " …"
			}

			parts = append(parts, fmt.Sprintf(
				"# [%d]: %s\n\n%s\n\nLLMs: Content is truncated. Use the `get_full_topic_details(['%s'])` tool to unlock full topic details.",
				matchNo, a.title, bestContext, topicID,
			))
			matchNo++
		}
	}

	if len(parts) > maxResultsReturned {
		parts = parts[:maxResultsReturned]
	}
	return strings.Join(parts, "\n\n---\n\n"), nil
}

// FullTopicDetails decodes each base64 topic id back to a title and
// returns the cleaned full article text, joined by a separator.
func (c *Corpus) FullTopicDetails(ctx context.Context, topicIDs []string) (string, error) {
	var results []string
	for _, topicID := range topicIDs {
		titleBytes, err := base64.StdEncoding.DecodeString(topicID)
		if err != nil {
			results = append(results, fmt.Sprintf("Error decoding topic_id '%s': %v", topicID, err))
			continue
		}
		title := string(titleBytes)

		var text string
		err = c.db.QueryRowContext(ctx, `SELECT text FROM articles WHERE title = ?`, title).Scan(&text)
		if err == sql.ErrNoRows {
			results = append(results, fmt.Sprintf("Article not found for title: %s", title))
			continue
		}
		if err != nil {
			return "", fmt.Errorf("full topic details for %q: %w", title, err)
		}

		results = append(results, removeConsecutiveShortLines(text, 100, 3))
	}
	return strings.Join(results, "\n\n---\n\n"), nil
}

// ftsQuery quotes a free-form search term so FTS5 treats it as a single
// phrase rather than parsing its words as query syntax.
func ftsQuery(term string) string {
	return fmt.Sprintf("%q", term)
}

func bestContextFor(cleaned, term string) string {
	contexts := extractContexts(cleaned, term, 50)
	if len(contexts) == 0 {
		return cleaned
	}
	best := contexts[0]
	for _, snippet := range contexts[1:] {
		best = strings.TrimRight(best, " …")
		snippet = strings.TrimLeft(snippet, " …")
		best = fmt.Sprintf("%s … %s", best, snippet)
	}
	return best
}
