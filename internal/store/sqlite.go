package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"flashbot-backend/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// retireGrace is how long a replaced generation stays open after promotion,
// so queries that bound to it before the swap can finish.
const retireGrace = time.Minute

// SQLiteStore implements CatalogStore on embedded SQLite. Each rebuild goes
// into a freshly named database file; promotion is an atomic swap of the
// generation pointer, and queries resolve the generation once at entry.
type SQLiteStore struct {
	dir     string
	gen     atomic.Pointer[sqliteGen]
	buildMu sync.Mutex
}

// sqliteGen is one promoted catalog generation.
type sqliteGen struct {
	db       *sql.DB
	path     string
	seq      int64
	fullText bool
}

// NewSQLiteStore opens the store, reattaching to the newest generation file
// in dir if one survives from a previous run.
func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store dir: %w", err)
	}

	s := &SQLiteStore{dir: dir}

	seq, path := newestGeneration(dir)
	if path != "" {
		db, err := openSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("failed to reopen generation %s: %w", path, err)
		}
		s.gen.Store(&sqliteGen{db: db, path: path, seq: seq, fullText: hasFTSTable(db)})
		log.Printf("[SQLiteStore] Reattached to generation %s", filepath.Base(path))
	} else {
		log.Printf("[SQLiteStore] No existing generation in %s, store starts empty", dir)
	}

	return s, nil
}

// newestGeneration finds the catalog-<seq>.db file with the highest sequence.
func newestGeneration(dir string) (int64, string) {
	matches, _ := filepath.Glob(filepath.Join(dir, "catalog-*.db"))
	var bestSeq int64
	var bestPath string
	for _, m := range matches {
		base := strings.TrimSuffix(filepath.Base(m), ".db")
		seq, err := strconv.ParseInt(strings.TrimPrefix(base, "catalog-"), 10, 64)
		if err != nil {
			continue
		}
		if bestPath == "" || seq > bestSeq {
			bestSeq, bestPath = seq, m
		}
	}
	return bestSeq, bestPath
}

func openSQLite(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite only supports one writer; generations are written once anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}

func hasFTSTable(db *sql.DB) bool {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='products_fts'`).Scan(&n)
	return err == nil && n > 0
}

const sqliteSchema = `
CREATE TABLE meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE products (
	id INTEGER PRIMARY KEY,
	handle TEXT NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	tags TEXT NOT NULL DEFAULT '',
	vendor TEXT NOT NULL DEFAULT '',
	product_type TEXT NOT NULL DEFAULT '',
	image TEXT NOT NULL DEFAULT ''
);
CREATE TABLE variants (
	id INTEGER PRIMARY KEY,
	product_id INTEGER NOT NULL,
	sku TEXT NOT NULL DEFAULT '',
	price REAL NOT NULL,
	compare_at_price REAL,
	inventory_item_id INTEGER NOT NULL,
	FOREIGN KEY(product_id) REFERENCES products(id)
);
CREATE INDEX idx_variants_product ON variants(product_id);
CREATE TABLE locations (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE inventory_levels (
	inventory_item_id INTEGER NOT NULL,
	location_id INTEGER NOT NULL,
	location_name TEXT NOT NULL DEFAULT '',
	available INTEGER NOT NULL
);
CREATE INDEX idx_levels_item ON inventory_levels(inventory_item_id);
CREATE TABLE discards (
	product_id INTEGER,
	handle TEXT,
	title TEXT,
	reason TEXT NOT NULL
);
CREATE TABLE discard_counts (
	reason TEXT PRIMARY KEY,
	count INTEGER NOT NULL
);
`

const sqliteFTSSchema = `CREATE VIRTUAL TABLE products_fts USING fts5(title, body, tags)`

// Rebuild builds the snapshot into a new database file and promotes it.
// At most one rebuild runs at a time.
func (s *SQLiteStore) Rebuild(ctx context.Context, snap *Snapshot) (model.BuildStats, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	start := time.Now()
	seq := start.UnixNano()
	path := filepath.Join(s.dir, fmt.Sprintf("catalog-%d.db", seq))

	db, err := openSQLite(path)
	if err != nil {
		return model.BuildStats{}, fmt.Errorf("failed to open new generation: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		os.Remove(path)
		return model.BuildStats{}, fmt.Errorf("failed to create schema: %w", err)
	}

	// Full text is derived, never a source of truth: when FTS5 is missing the
	// generation still serves via the keyword scan.
	fullText := true
	if _, err := db.ExecContext(ctx, sqliteFTSSchema); err != nil {
		log.Printf("[SQLiteStore] FTS5 unavailable, search degrades to keyword scan: %v", err)
		fullText = false
	}

	if err := s.populate(ctx, db, snap, fullText, start); err != nil {
		db.Close()
		os.Remove(path)
		return model.BuildStats{}, err
	}

	old := s.gen.Swap(&sqliteGen{db: db, path: path, seq: seq, fullText: fullText})
	if old != nil {
		retire(old)
	}

	stats := buildStats(snap, fullText, start)
	log.Printf("[SQLiteStore] Promoted generation %d: %d products, %d variants, %d inventory rows (%d discarded)",
		seq, stats.Products, stats.Variants, stats.InventoryRows, stats.TotalDiscarded())
	return stats, nil
}

// retire closes and deletes a replaced generation after a grace window, so
// in-flight queries bound to it can complete.
func retire(g *sqliteGen) {
	time.AfterFunc(retireGrace, func() {
		g.db.Close()
		os.Remove(g.path)
		os.Remove(g.path + "-wal")
		os.Remove(g.path + "-shm")
	})
}

func (s *SQLiteStore) populate(ctx context.Context, db *sql.DB, snap *Snapshot, fullText bool, start time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, loc := range snap.Locations {
		if _, err := tx.ExecContext(ctx, `INSERT INTO locations(id, name) VALUES (?, ?)`, loc.ID, loc.Name); err != nil {
			return fmt.Errorf("failed to insert location %d: %w", loc.ID, err)
		}
	}

	for _, p := range snap.Products {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO products(id, handle, title, body, tags, vendor, product_type, image) VALUES (?,?,?,?,?,?,?,?)`,
			p.ID, p.Handle, p.Title, p.Body, p.Tags, p.Vendor, p.ProductType, p.Image)
		if err != nil {
			return fmt.Errorf("failed to insert product %d: %w", p.ID, err)
		}
		if fullText {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO products_fts(rowid, title, body, tags) VALUES (?,?,?,?)`,
				p.ID, p.Title, p.Body, p.Tags)
			if err != nil {
				return fmt.Errorf("failed to index product %d: %w", p.ID, err)
			}
		}
	}

	vstmt, err := tx.PrepareContext(ctx,
		`INSERT INTO variants(id, product_id, sku, price, compare_at_price, inventory_item_id) VALUES (?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare variant insert: %w", err)
	}
	defer vstmt.Close()
	for _, v := range snap.Variants {
		if _, err := vstmt.ExecContext(ctx, v.ID, v.ProductID, v.SKU, v.Price, v.CompareAtPrice, v.InventoryItemID); err != nil {
			return fmt.Errorf("failed to insert variant %d: %w", v.ID, err)
		}
	}

	lstmt, err := tx.PrepareContext(ctx,
		`INSERT INTO inventory_levels(inventory_item_id, location_id, location_name, available) VALUES (?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare inventory insert: %w", err)
	}
	defer lstmt.Close()
	for _, r := range snap.Inventory {
		if _, err := lstmt.ExecContext(ctx, r.InventoryItemID, r.LocationID, r.LocationName, r.Available); err != nil {
			return fmt.Errorf("failed to insert inventory row: %w", err)
		}
	}

	for _, d := range snap.DiscardSample {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO discards(product_id, handle, title, reason) VALUES (?,?,?,?)`,
			d.ProductID, d.Handle, d.Title, d.Reason); err != nil {
			return fmt.Errorf("failed to insert discard record: %w", err)
		}
	}
	for reason, count := range snap.DiscardCounts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO discard_counts(reason, count) VALUES (?,?)`, reason, count); err != nil {
			return fmt.Errorf("failed to insert discard count: %w", err)
		}
	}

	meta := map[string]string{
		"raw_products": strconv.Itoa(snap.RawProducts),
		"built_at":     start.UTC().Format(time.RFC3339),
		"full_text":    strconv.FormatBool(fullText),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES (?,?)`, k, v); err != nil {
			return fmt.Errorf("failed to insert meta %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit generation: %w", err)
	}
	return nil
}

// current returns the promoted generation, or ErrStoreUnavailable before the
// first successful build.
func (s *SQLiteStore) current() (*sqliteGen, error) {
	g := s.gen.Load()
	if g == nil {
		return nil, model.ErrStoreUnavailable
	}
	return g, nil
}

// Search runs ranked full-text retrieval with a keyword-scan fallback.
func (s *SQLiteStore) Search(ctx context.Context, query string, k int) ([]model.Hit, error) {
	g, err := s.current()
	if err != nil {
		return nil, err
	}

	terms := queryTerms(query)
	if len(terms) == 0 || k <= 0 {
		return nil, nil
	}

	var ftsCands []candidate
	if g.fullText {
		ftsCands, err = s.searchFTS(ctx, g, terms, k*2)
		if err != nil {
			// Degrade, never fail: the scan serves the same fields.
			log.Printf("[SQLiteStore] FTS query failed, falling back to scan: %v", err)
			ftsCands = nil
		}
	}

	var scanCands []candidate
	if len(ftsCands) < k {
		scanCands, err = s.searchScan(ctx, g, terms, k*2)
		if err != nil {
			return nil, err
		}
	}

	orderCandidates(ftsCands, terms)
	orderCandidates(scanCands, terms)
	return mergeHits(ftsCands, scanCands, k), nil
}

func (s *SQLiteStore) searchFTS(ctx context.Context, g *sqliteGen, terms []string, limit int) ([]candidate, error) {
	rows, err := g.db.QueryContext(ctx,
		`SELECT rowid, bm25(products_fts) FROM products_fts WHERE products_fts MATCH ? ORDER BY bm25(products_fts), rowid LIMIT ?`,
		ftsMatchExpr(terms), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cands []candidate
	for rows.Next() {
		var id int64
		var rank float64
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, err
		}
		// bm25 is "lower is better"; invert so higher score wins everywhere.
		cands = append(cands, candidate{id: id, score: -rank, source: "fts"})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range cands {
		var title string
		if err := g.db.QueryRowContext(ctx, `SELECT title FROM products WHERE id = ?`, cands[i].id).Scan(&title); err == nil {
			cands[i].title = title
		}
	}
	return cands, nil
}

func (s *SQLiteStore) searchScan(ctx context.Context, g *sqliteGen, terms []string, limit int) ([]candidate, error) {
	rows, err := g.db.QueryContext(ctx, `SELECT id, title, body, tags FROM products`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan products: %w", err)
	}
	defer rows.Close()

	var cands []candidate
	for rows.Next() {
		var id int64
		var title, body, tags string
		if err := rows.Scan(&id, &title, &body, &tags); err != nil {
			return nil, err
		}
		if score := scanScore(terms, title, body, tags); score > 0 {
			cands = append(cands, candidate{id: id, title: title, score: score, source: "scan"})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].id < cands[j].id
	})
	if len(cands) > limit {
		cands = cands[:limit]
	}
	return cands, nil
}

// Product fetches one product by ID, nil when absent.
func (s *SQLiteStore) Product(ctx context.Context, id int64) (*model.Product, error) {
	g, err := s.current()
	if err != nil {
		return nil, err
	}

	var p model.Product
	err = g.db.QueryRowContext(ctx,
		`SELECT id, handle, title, body, tags, vendor, product_type, image FROM products WHERE id = ?`, id).
		Scan(&p.ID, &p.Handle, &p.Title, &p.Body, &p.Tags, &p.Vendor, &p.ProductType, &p.Image)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch product %d: %w", id, err)
	}
	return &p, nil
}

// Variants lists the persisted variants of a product.
func (s *SQLiteStore) Variants(ctx context.Context, productID int64) ([]model.Variant, error) {
	g, err := s.current()
	if err != nil {
		return nil, err
	}

	rows, err := g.db.QueryContext(ctx,
		`SELECT id, product_id, sku, price, compare_at_price, inventory_item_id FROM variants WHERE product_id = ? ORDER BY id`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch variants: %w", err)
	}
	defer rows.Close()

	var out []model.Variant
	for rows.Next() {
		var v model.Variant
		var compareAt sql.NullFloat64
		if err := rows.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Price, &compareAt, &v.InventoryItemID); err != nil {
			return nil, err
		}
		if compareAt.Valid {
			v.CompareAtPrice = &compareAt.Float64
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// InventoryFor lists per-location stock records for an inventory item.
func (s *SQLiteStore) InventoryFor(ctx context.Context, inventoryItemID int64) ([]model.InventoryRecord, error) {
	g, err := s.current()
	if err != nil {
		return nil, err
	}

	rows, err := g.db.QueryContext(ctx,
		`SELECT inventory_item_id, location_id, location_name, available FROM inventory_levels WHERE inventory_item_id = ? ORDER BY location_id`,
		inventoryItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch inventory: %w", err)
	}
	defer rows.Close()

	var out []model.InventoryRecord
	for rows.Next() {
		var r model.InventoryRecord
		if err := rows.Scan(&r.InventoryItemID, &r.LocationID, &r.LocationName, &r.Available); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SampleProducts returns the first n indexed products.
func (s *SQLiteStore) SampleProducts(ctx context.Context, n int) ([]model.Product, error) {
	g, err := s.current()
	if err != nil {
		return nil, err
	}

	rows, err := g.db.QueryContext(ctx,
		`SELECT id, handle, title, body, tags, vendor, product_type, image FROM products ORDER BY id LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to sample products: %w", err)
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Handle, &p.Title, &p.Body, &p.Tags, &p.Vendor, &p.ProductType, &p.Image); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Stats returns counts and metadata of the current generation.
func (s *SQLiteStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	g, err := s.current()
	if err != nil {
		return nil, err
	}

	stats := map[string]interface{}{
		"generation": g.seq,
		"full_text":  g.fullText,
	}
	for name, query := range map[string]string{
		"products":       `SELECT COUNT(*) FROM products`,
		"variants":       `SELECT COUNT(*) FROM variants`,
		"inventory_rows": `SELECT COUNT(*) FROM inventory_levels`,
		"locations":      `SELECT COUNT(*) FROM locations`,
	} {
		var n int64
		if err := g.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
			return nil, err
		}
		stats[name] = n
	}

	var builtAt string
	if err := g.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'built_at'`).Scan(&builtAt); err == nil {
		stats["built_at"] = builtAt
	}
	return stats, nil
}

// DiscardStats returns discard telemetry for the current generation.
func (s *SQLiteStore) DiscardStats(ctx context.Context) (*DiscardStats, error) {
	g, err := s.current()
	if err != nil {
		return nil, err
	}

	out := &DiscardStats{ByReason: make(map[string]int)}

	rows, err := g.db.QueryContext(ctx, `SELECT reason, count FROM discard_counts`)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch discard counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var reason string
		var count int
		if err := rows.Scan(&reason, &count); err != nil {
			return nil, err
		}
		out.ByReason[reason] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	srows, err := g.db.QueryContext(ctx, `SELECT product_id, handle, title, reason FROM discards`)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch discard sample: %w", err)
	}
	defer srows.Close()
	for srows.Next() {
		var d model.DiscardRecord
		if err := srows.Scan(&d.ProductID, &d.Handle, &d.Title, &d.Reason); err != nil {
			return nil, err
		}
		out.Sample = append(out.Sample, d)
	}
	return out, srows.Err()
}

// Close releases the current generation.
func (s *SQLiteStore) Close() error {
	if g := s.gen.Swap(nil); g != nil {
		return g.db.Close()
	}
	return nil
}

// Ensure SQLiteStore implements CatalogStore
var _ CatalogStore = (*SQLiteStore)(nil)
