package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/othala/internal/apperr"
)

// RecordRow represents a row in the records table. Number is the versioned
// form ("T0123456-v2"); Family is the unversioned form shared by all
// revisions of a document.
type RecordRow struct {
	Number    string
	Family    string
	Category  string
	Version   int
	Title     string
	Authors   []string
	Keywords  []string
	Checksum  string
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Number  string
	Title   string
	Snippet string
}

// GraphNode is one document family in the reference graph.
type GraphNode struct {
	Family string `json:"family"`
	Title  string `json:"title"`
}

// GraphLink is one directed reference between document families.
type GraphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// UpsertRecord inserts or replaces a record, its FTS entry, and its outgoing
// reference edges within a transaction. body is the searchable text; related
// holds the families the record references.
func (db *DB) UpsertRecord(r RecordRow, body string, related []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	authorsJSON, _ := json.Marshal(r.Authors)
	keywordsJSON, _ := json.Marshal(r.Keywords)
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}

	// Upsert records table (includes body for fallback search).
	_, err = tx.Exec(`
		INSERT INTO records (number, family, category, version, title, authors, keywords, checksum, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(number) DO UPDATE SET
			family     = excluded.family,
			category   = excluded.category,
			version    = excluded.version,
			title      = excluded.title,
			authors    = excluded.authors,
			keywords   = excluded.keywords,
			checksum   = excluded.checksum,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, r.Number, r.Family, r.Category, r.Version, r.Title, string(authorsJSON), string(keywordsJSON), r.Checksum, body, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert record: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, r.Number, r.Title, body, r.Keywords); err != nil {
		return err
	}

	// Replace reference edges: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, r.Family)
	if len(related) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range related {
			if _, err := stmt.Exec(r.Family, target); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteRecord removes a revision and its FTS entry. Reference edges are
// dropped only when no other revision of the family remains.
func (db *DB) DeleteRecord(number string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var family string
	err = tx.QueryRow(`SELECT family FROM records WHERE number = ?`, number).Scan(&family)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("index: lookup %s: %w", number, err)
	}

	ftsDelete(tx, number)
	_, _ = tx.Exec(`DELETE FROM records WHERE number = ?`, number)

	var remaining int
	_ = tx.QueryRow(`SELECT COUNT(*) FROM records WHERE family = ?`, family).Scan(&remaining)
	if remaining == 0 {
		_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, family)
	}

	return tx.Commit()
}

// GetRecord returns the row for a versioned number, or ErrNotFound.
func (db *DB) GetRecord(number string) (*RecordRow, error) {
	row := db.conn.QueryRow(`
		SELECT number, family, category, version, title, authors, keywords, checksum, updated_at
		FROM records WHERE number = ?
	`, number)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: %s: %w", number, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get record: %w", err)
	}
	return r, nil
}

// ListRecords returns a page of catalogued revisions plus the total count.
// category filters by category letter when non-empty. sort is "number",
// "title" or "updated" (default "number").
func (db *DB) ListRecords(limit, offset int, category, sort string) ([]RecordRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var order string
	switch sort {
	case "title":
		order = "title COLLATE NOCASE ASC"
	case "updated":
		order = "updated_at DESC"
	default:
		order = "family ASC, version ASC"
	}

	where := ""
	args := []any{}
	if category != "" {
		where = "WHERE category = ?"
		args = append(args, category)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM records `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count records: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT number, family, category, version, title, authors, keywords, checksum, updated_at
		FROM records %s ORDER BY %s LIMIT ? OFFSET ?
	`, where, order)
	rows, err := db.conn.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list records: %w", err)
	}
	defer rows.Close()

	var out []RecordRow
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *r)
	}
	return out, total, rows.Err()
}

// Referencing returns the families that reference the given family.
func (db *DB) Referencing(family string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM links WHERE target = ?`, family)
	if err != nil {
		return nil, fmt.Errorf("index: referencing: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Graph returns every catalogued family and the reference edges between
// them. Nodes carry the title of their highest catalogued version.
func (db *DB) Graph() ([]GraphNode, []GraphLink, error) {
	rows, err := db.conn.Query(`
		SELECT family, title FROM records
		WHERE version = (SELECT MAX(version) FROM records r2 WHERE r2.family = records.family)
		ORDER BY family
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph nodes: %w", err)
	}
	defer rows.Close()

	var nodes []GraphNode
	for rows.Next() {
		var n GraphNode
		if err := rows.Scan(&n.Family, &n.Title); err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	linkRows, err := db.conn.Query(`SELECT source, target FROM links ORDER BY source, target`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph links: %w", err)
	}
	defer linkRows.Close()

	var links []GraphLink
	for linkRows.Next() {
		var l GraphLink
		if err := linkRows.Scan(&l.Source, &l.Target); err != nil {
			return nil, nil, err
		}
		links = append(links, l)
	}
	return nodes, links, linkRows.Err()
}

// AllChecksums returns the stored meta checksum for every catalogued
// revision, keyed by versioned number.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT number, checksum FROM records`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var number, cs string
		if err := rows.Scan(&number, &cs); err != nil {
			return nil, err
		}
		out[number] = cs
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*RecordRow, error) {
	var r RecordRow
	var authorsJSON, keywordsJSON string
	if err := row.Scan(&r.Number, &r.Family, &r.Category, &r.Version, &r.Title, &authorsJSON, &keywordsJSON, &r.Checksum, &r.UpdatedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(authorsJSON), &r.Authors)
	_ = json.Unmarshal([]byte(keywordsJSON), &r.Keywords)
	return &r, nil
}
