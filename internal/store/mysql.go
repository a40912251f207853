package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"flashbot-backend/internal/model"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore implements CatalogStore on MySQL. Each rebuild goes into
// freshly named "_next" tables and is promoted with a single multi-table
// RENAME TABLE, which MySQL executes atomically.
type MySQLStore struct {
	db       *sql.DB
	buildMu  sync.Mutex
	promoted atomic.Bool

	mu       sync.RWMutex
	fullText bool
}

// catalogTables are the relations that make up one generation, in the order
// they are created and renamed.
var catalogTables = []string{"meta", "locations", "products", "variants", "inventory_levels", "discards", "discard_counts"}

// NewMySQLStore connects and prepares the base schema so the first promote
// always has tables to rename away.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	s := &MySQLStore{db: db}
	fullText, err := s.ensureSchema(context.Background(), "")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	s.fullText = fullText

	// A previous run's promoted generation survives restarts.
	var builtAt string
	if err := db.QueryRow(`SELECT value FROM meta WHERE ` + "`key`" + ` = 'built_at'`).Scan(&builtAt); err == nil {
		s.promoted.Store(true)
		log.Printf("[MySQLStore] Reattached to generation built at %s", builtAt)
	} else {
		log.Printf("[MySQLStore] No promoted generation yet, store starts empty")
	}

	return s, nil
}

// tableDDL returns the CREATE TABLE statements for one generation. suffix is
// "" for the live tables or "_next" for a generation under construction.
func tableDDL(suffix string, fullText bool) []string {
	ifNotExists := ""
	if suffix == "" {
		ifNotExists = "IF NOT EXISTS "
	}
	ftKey := ""
	if fullText {
		ftKey = ",\n\tFULLTEXT KEY ft_products (title, body, tags)"
	}
	return []string{
		fmt.Sprintf("CREATE TABLE %smeta%s (`key` VARCHAR(64) PRIMARY KEY, value TEXT NOT NULL)", ifNotExists, suffix),
		fmt.Sprintf("CREATE TABLE %slocations%s (id BIGINT PRIMARY KEY, name VARCHAR(255) NOT NULL)", ifNotExists, suffix),
		fmt.Sprintf(`CREATE TABLE %sproducts%s (
	id BIGINT PRIMARY KEY,
	handle VARCHAR(255) NOT NULL,
	title VARCHAR(512) NOT NULL,
	body TEXT NOT NULL,
	tags TEXT NOT NULL,
	vendor VARCHAR(255) NOT NULL DEFAULT '',
	product_type VARCHAR(255) NOT NULL DEFAULT '',
	image VARCHAR(1024) NOT NULL DEFAULT ''%s
)`, ifNotExists, suffix, ftKey),
		fmt.Sprintf(`CREATE TABLE %svariants%s (
	id BIGINT PRIMARY KEY,
	product_id BIGINT NOT NULL,
	sku VARCHAR(255) NOT NULL DEFAULT '',
	price DOUBLE NOT NULL,
	compare_at_price DOUBLE NULL,
	inventory_item_id BIGINT NOT NULL,
	KEY idx_variants_product (product_id)
)`, ifNotExists, suffix),
		fmt.Sprintf(`CREATE TABLE %sinventory_levels%s (
	inventory_item_id BIGINT NOT NULL,
	location_id BIGINT NOT NULL,
	location_name VARCHAR(255) NOT NULL DEFAULT '',
	available INT NOT NULL,
	KEY idx_levels_item (inventory_item_id)
)`, ifNotExists, suffix),
		fmt.Sprintf(`CREATE TABLE %sdiscards%s (
	product_id BIGINT,
	handle VARCHAR(255),
	title VARCHAR(512),
	reason VARCHAR(64) NOT NULL
)`, ifNotExists, suffix),
		fmt.Sprintf("CREATE TABLE %sdiscard_counts%s (reason VARCHAR(64) PRIMARY KEY, count INT NOT NULL)", ifNotExists, suffix),
	}
}

// ensureSchema creates the generation tables, trying FULLTEXT first and
// retrying without it when the server cannot build the index.
func (s *MySQLStore) ensureSchema(ctx context.Context, suffix string) (bool, error) {
	fullText := true
	for _, stmt := range tableDDL(suffix, true) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			if strings.Contains(stmt, "FULLTEXT") {
				log.Printf("[MySQLStore] FULLTEXT unavailable, search degrades to keyword scan: %v", err)
				fullText = false
				plain := tableDDL(suffix, false)
				// products is the third statement in the DDL list.
				if _, err := s.db.ExecContext(ctx, plain[2]); err != nil {
					return false, fmt.Errorf("failed to create products table: %w", err)
				}
				continue
			}
			return false, fmt.Errorf("failed to create table: %w", err)
		}
	}
	return fullText, nil
}

// dropTables drops every generation table carrying the given suffix.
func (s *MySQLStore) dropTables(ctx context.Context, suffix string) error {
	names := make([]string, len(catalogTables))
	for i, t := range catalogTables {
		names[i] = t + suffix
	}
	_, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+strings.Join(names, ", "))
	return err
}

// Rebuild builds the snapshot into _next tables and promotes them with one
// atomic multi-table rename.
func (s *MySQLStore) Rebuild(ctx context.Context, snap *Snapshot) (model.BuildStats, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	start := time.Now()

	// Clear leftovers from an earlier crashed build.
	if err := s.dropTables(ctx, "_next"); err != nil {
		return model.BuildStats{}, fmt.Errorf("failed to drop stale _next tables: %w", err)
	}
	if err := s.dropTables(ctx, "_old"); err != nil {
		return model.BuildStats{}, fmt.Errorf("failed to drop stale _old tables: %w", err)
	}

	fullText, err := s.ensureSchema(ctx, "_next")
	if err != nil {
		return model.BuildStats{}, err
	}

	if err := s.populate(ctx, snap, start); err != nil {
		s.dropTables(ctx, "_next")
		return model.BuildStats{}, err
	}

	// Promote: one RENAME TABLE statement swaps the whole generation.
	var renames []string
	for _, t := range catalogTables {
		renames = append(renames, fmt.Sprintf("%s TO %s_old", t, t), fmt.Sprintf("%s_next TO %s", t, t))
	}
	if _, err := s.db.ExecContext(ctx, "RENAME TABLE "+strings.Join(renames, ", ")); err != nil {
		return model.BuildStats{}, fmt.Errorf("failed to promote generation: %w", err)
	}

	if err := s.dropTables(ctx, "_old"); err != nil {
		log.Printf("[MySQLStore] Failed to drop _old tables (will retry next build): %v", err)
	}

	s.mu.Lock()
	s.fullText = fullText
	s.mu.Unlock()
	s.promoted.Store(true)

	stats := buildStats(snap, fullText, start)
	log.Printf("[MySQLStore] Promoted generation: %d products, %d variants, %d inventory rows (%d discarded)",
		stats.Products, stats.Variants, stats.InventoryRows, stats.TotalDiscarded())
	return stats, nil
}

func (s *MySQLStore) populate(ctx context.Context, snap *Snapshot, start time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, loc := range snap.Locations {
		if _, err := tx.ExecContext(ctx, `INSERT INTO locations_next(id, name) VALUES (?, ?)`, loc.ID, loc.Name); err != nil {
			return fmt.Errorf("failed to insert location %d: %w", loc.ID, err)
		}
	}

	pstmt, err := tx.PrepareContext(ctx,
		`INSERT INTO products_next(id, handle, title, body, tags, vendor, product_type, image) VALUES (?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare product insert: %w", err)
	}
	defer pstmt.Close()
	for _, p := range snap.Products {
		if _, err := pstmt.ExecContext(ctx, p.ID, p.Handle, p.Title, p.Body, p.Tags, p.Vendor, p.ProductType, p.Image); err != nil {
			return fmt.Errorf("failed to insert product %d: %w", p.ID, err)
		}
	}

	vstmt, err := tx.PrepareContext(ctx,
		`INSERT INTO variants_next(id, product_id, sku, price, compare_at_price, inventory_item_id) VALUES (?,?,?,?,?,?)`)
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
		`INSERT INTO inventory_levels_next(inventory_item_id, location_id, location_name, available) VALUES (?,?,?,?)`)
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
			`INSERT INTO discards_next(product_id, handle, title, reason) VALUES (?,?,?,?)`,
			d.ProductID, d.Handle, d.Title, d.Reason); err != nil {
			return fmt.Errorf("failed to insert discard record: %w", err)
		}
	}
	for reason, count := range snap.DiscardCounts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO discard_counts_next(reason, count) VALUES (?,?)`, reason, count); err != nil {
			return fmt.Errorf("failed to insert discard count: %w", err)
		}
	}

	meta := map[string]string{
		"raw_products": strconv.Itoa(snap.RawProducts),
		"built_at":     start.UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, "INSERT INTO meta_next(`key`, value) VALUES (?,?)", k, v); err != nil {
			return fmt.Errorf("failed to insert meta %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit generation: %w", err)
	}
	return nil
}

func (s *MySQLStore) ready() error {
	if !s.promoted.Load() {
		return model.ErrStoreUnavailable
	}
	return nil
}

func (s *MySQLStore) hasFullText() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fullText
}

// Search runs ranked full-text retrieval with a keyword-scan fallback.
func (s *MySQLStore) Search(ctx context.Context, query string, k int) ([]model.Hit, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	terms := queryTerms(query)
	if len(terms) == 0 || k <= 0 {
		return nil, nil
	}

	var ftsCands []candidate
	if s.hasFullText() {
		var err error
		ftsCands, err = s.searchFullText(ctx, terms, k*2)
		if err != nil {
			log.Printf("[MySQLStore] FULLTEXT query failed, falling back to scan: %v", err)
			ftsCands = nil
		}
	}

	var scanCands []candidate
	if len(ftsCands) < k {
		var err error
		scanCands, err = s.searchScan(ctx, terms, k*2)
		if err != nil {
			return nil, err
		}
	}

	orderCandidates(ftsCands, terms)
	orderCandidates(scanCands, terms)
	return mergeHits(ftsCands, scanCands, k), nil
}

func (s *MySQLStore) searchFullText(ctx context.Context, terms []string, limit int) ([]candidate, error) {
	expr := strings.Join(terms, " ")
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, MATCH(title, body, tags) AGAINST (? IN NATURAL LANGUAGE MODE) AS score
		 FROM products
		 WHERE MATCH(title, body, tags) AGAINST (? IN NATURAL LANGUAGE MODE)
		 ORDER BY score DESC, id ASC LIMIT ?`,
		expr, expr, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cands []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.title, &c.score); err != nil {
			return nil, err
		}
		c.source = "fts"
		cands = append(cands, c)
	}
	return cands, rows.Err()
}

func (s *MySQLStore) searchScan(ctx context.Context, terms []string, limit int) ([]candidate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, body, tags FROM products`)
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
func (s *MySQLStore) Product(ctx context.Context, id int64) (*model.Product, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	var p model.Product
	err := s.db.QueryRowContext(ctx,
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
func (s *MySQLStore) Variants(ctx context.Context, productID int64) ([]model.Variant, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
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
func (s *MySQLStore) InventoryFor(ctx context.Context, inventoryItemID int64) ([]model.InventoryRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
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
func (s *MySQLStore) SampleProducts(ctx context.Context, n int) ([]model.Product, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
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
func (s *MySQLStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	stats := map[string]interface{}{
		"full_text": s.hasFullText(),
	}
	for name, query := range map[string]string{
		"products":       `SELECT COUNT(*) FROM products`,
		"variants":       `SELECT COUNT(*) FROM variants`,
		"inventory_rows": `SELECT COUNT(*) FROM inventory_levels`,
		"locations":      `SELECT COUNT(*) FROM locations`,
	} {
		var n int64
		if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
			return nil, err
		}
		stats[name] = n
	}

	var builtAt string
	if err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE `+"`key`"+` = 'built_at'`).Scan(&builtAt); err == nil {
		stats["built_at"] = builtAt
	}
	return stats, nil
}

// DiscardStats returns discard telemetry for the current generation.
func (s *MySQLStore) DiscardStats(ctx context.Context) (*DiscardStats, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	out := &DiscardStats{ByReason: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT reason, count FROM discard_counts`)
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

	srows, err := s.db.QueryContext(ctx, `SELECT product_id, handle, title, reason FROM discards`)
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

// Close closes the database connection.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

// Ensure MySQLStore implements CatalogStore
var _ CatalogStore = (*MySQLStore)(nil)
