package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteRepository implements Backend over a single SQLite file. Writes
// rely on the database-wide write lock: the DSN requests immediate
// transactions, so every mutation serializes at BEGIN and the advisory
// locking the PostgreSQL backend needs does not apply here.
type SQLiteRepository struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteRepository creates a SQLite repository storing its database at
// dbPath. An empty path defaults to medicine_service.db under the user's
// home directory.
func NewSQLiteRepository(dbPath string) *SQLiteRepository {
	if dbPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = "."
		}
		dataDir := filepath.Join(homeDir, ".medicine_service")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			dataDir = "."
		}
		dbPath = filepath.Join(dataDir, "medicine_service.db")
	}
	return &SQLiteRepository{dbPath: dbPath}
}

const sqliteNodeTable = `
	CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		parent_id INTEGER REFERENCES %s(id),
		tree_id INTEGER NOT NULL,
		lft INTEGER NOT NULL,
		rgt INTEGER NOT NULL,
		level INTEGER NOT NULL,
		name TEXT NOT NULL,
		slug TEXT NOT NULL DEFAULT '',
		code TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		created_by TEXT NOT NULL DEFAULT '',
		updated_by TEXT NOT NULL DEFAULT '',
		deleted_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		deleted_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_%s_interval ON %s(tree_id, lft, rgt);
	CREATE INDEX IF NOT EXISTS idx_%s_parent ON %s(parent_id);
`

const sqliteFlatTables = `
	CREATE TABLE IF NOT EXISTS tree_sequences (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS medicines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		slug TEXT NOT NULL,
		generic_name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS dose_forms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS strengths (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		medicine_id INTEGER NOT NULL REFERENCES medicines(id) ON DELETE CASCADE,
		dose_form_id INTEGER NOT NULL REFERENCES dose_forms(id),
		concentration_amount TEXT NOT NULL DEFAULT '',
		concentration_unit TEXT NOT NULL DEFAULT '',
		volume_amount TEXT NOT NULL DEFAULT '',
		volume_unit TEXT NOT NULL DEFAULT '',
		chemical_form TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS medicine_category (
		medicine_id INTEGER NOT NULL REFERENCES medicines(id) ON DELETE CASCADE,
		category_id INTEGER NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
		PRIMARY KEY (medicine_id, category_id)
	);
	CREATE TABLE IF NOT EXISTS medicine_atc_code (
		medicine_id INTEGER NOT NULL REFERENCES medicines(id) ON DELETE CASCADE,
		atc_code_id INTEGER NOT NULL REFERENCES atc_codes(id) ON DELETE CASCADE,
		PRIMARY KEY (medicine_id, atc_code_id)
	);
`

// Initialize opens the database and creates the schema.
func (r *SQLiteRepository) Initialize(ctx context.Context) error {
	db, err := sql.Open("sqlite3", r.dbPath+"?_txlock=immediate&_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}

	// One connection: SQLite has a single writer anyway, and this keeps
	// transactions from fighting over the file lock inside the process.
	db.SetMaxOpenConns(1)

	for _, table := range []string{"categories", "atc_codes"} {
		schema := fmt.Sprintf(sqliteNodeTable, table, table, table, table, table, table)
		if _, err := db.ExecContext(ctx, schema); err != nil {
			db.Close()
			return fmt.Errorf("error creating %s table: %w", table, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteFlatTables); err != nil {
		db.Close()
		return fmt.Errorf("error creating tables: %w", err)
	}

	r.db = db
	return nil
}

// Cleanup closes the database connection
func (r *SQLiteRepository) Cleanup(ctx context.Context) error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Categories returns the tree repository backed by the categories table.
func (r *SQLiteRepository) Categories() TreeRepository {
	return &sqliteTreeStore{db: r.db, table: "categories"}
}

// ATCCodes returns the tree repository backed by the atc_codes table.
func (r *SQLiteRepository) ATCCodes() TreeRepository {
	return &sqliteTreeStore{db: r.db, table: "atc_codes"}
}

// Medicines returns the medicine repository sharing this connection.
func (r *SQLiteRepository) Medicines() MedicineRepository {
	return &sqliteMedicineStore{db: r.db}
}

// DoseForms returns the dose form repository sharing this connection.
func (r *SQLiteRepository) DoseForms() DoseFormRepository {
	return &sqliteDoseFormStore{db: r.db}
}

// sqliteTreeStore implements TreeRepository against one nested set table.
// The table name is a package constant, never caller input.
type sqliteTreeStore struct {
	db    *sql.DB
	table string
}

// GetNode retrieves a node by ID
func (s *sqliteTreeStore) GetNode(ctx context.Context, id int64) (*Node, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", nodeColumns, s.table)
	node, err := scanNode(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNodeNotFound
		}
		return nil, fmt.Errorf("error getting node: %w", err)
	}
	return node, nil
}

// GetChildren retrieves direct children ordered by left coordinate
func (s *sqliteTreeStore) GetChildren(ctx context.Context, parentID int64) ([]*Node, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE parent_id = ? ORDER BY lft", nodeColumns, s.table)
	rows, err := s.db.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("error getting children: %w", err)
	}
	return collectNodes(rows)
}

// GetRoots retrieves all root nodes
func (s *sqliteTreeStore) GetRoots(ctx context.Context) ([]*Node, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE parent_id IS NULL ORDER BY tree_id", nodeColumns, s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error getting roots: %w", err)
	}
	return collectNodes(rows)
}

// GetSubtree retrieves a node and all descendants by interval containment.
// The anchor lookup and the interval query run in one transaction so a
// concurrent coordinate shift can never split the read.
func (s *sqliteTreeStore) GetSubtree(ctx context.Context, rootID int64) ([]*Node, error) {
	var nodes []*Node
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		root, err := s.getNodeTx(ctx, tx, rootID)
		if err != nil {
			return err
		}
		query := fmt.Sprintf(
			"SELECT %s FROM %s WHERE tree_id = ? AND lft >= ? AND rgt <= ? ORDER BY lft",
			nodeColumns, s.table)
		rows, err := tx.QueryContext(ctx, query, root.TreeID, root.Left, root.Right)
		if err != nil {
			return fmt.Errorf("error getting subtree: %w", err)
		}
		nodes, err = collectNodes(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// GetAncestors retrieves the ancestor chain root-first. Single transaction,
// same as GetSubtree.
func (s *sqliteTreeStore) GetAncestors(ctx context.Context, id int64) ([]*Node, error) {
	var nodes []*Node
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		node, err := s.getNodeTx(ctx, tx, id)
		if err != nil {
			return err
		}
		query := fmt.Sprintf(
			"SELECT %s FROM %s WHERE tree_id = ? AND lft < ? AND rgt > ? ORDER BY lft",
			nodeColumns, s.table)
		rows, err := tx.QueryContext(ctx, query, node.TreeID, node.Left, node.Right)
		if err != nil {
			return fmt.Errorf("error getting ancestors: %w", err)
		}
		nodes, err = collectNodes(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// GetChildCount counts direct children with a single aggregate
func (s *sqliteTreeStore) GetChildCount(ctx context.Context, parentID int64) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE parent_id = ?", s.table)
	var count int64
	if err := s.db.QueryRowContext(ctx, query, parentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting children: %w", err)
	}
	return count, nil
}

// withTx runs fn inside an immediate transaction, rolling back on any error.
func (s *sqliteTreeStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteTreeStore) getNodeTx(ctx context.Context, tx *sql.Tx, id int64) (*Node, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", nodeColumns, s.table)
	node, err := scanNode(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNodeNotFound
		}
		return nil, fmt.Errorf("error getting node: %w", err)
	}
	return node, nil
}

// nextTreeID allocates a tree id from the tree_sequences counter row.
// Counters only grow, so tree ids are never reused even after a tree is
// deleted outright.
func (s *sqliteTreeStore) nextTreeID(ctx context.Context, tx *sql.Tx) (int64, error) {
	var treeID int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO tree_sequences (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
		RETURNING value`, s.table,
	).Scan(&treeID)
	if err != nil {
		return 0, fmt.Errorf("error allocating tree id: %w", err)
	}
	return treeID, nil
}

func (s *sqliteTreeStore) insertNode(ctx context.Context, tx *sql.Tx, node *Node) (int64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (parent_id, tree_id, lft, rgt, level, name, slug, code, description, status, created_by, updated_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	result, err := tx.ExecContext(ctx, query,
		node.ParentID, node.TreeID, node.Left, node.Right, node.Level,
		node.Name, node.Slug, node.Code, node.Description, node.Status,
		node.CreatedBy, node.UpdatedBy)
	if err != nil {
		return 0, fmt.Errorf("error creating node: %w", err)
	}
	return result.LastInsertId()
}

// InsertRoot creates a new single-node tree.
func (s *sqliteTreeStore) InsertRoot(ctx context.Context, node *Node) (int64, error) {
	if node.Name == "" {
		return 0, ErrInvalidInput
	}
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		treeID, err := s.nextTreeID(ctx, tx)
		if err != nil {
			return err
		}
		stored := *node
		stored.ParentID = nil
		stored.TreeID = treeID
		stored.Left, stored.Right, stored.Level = 1, 2, 0
		id, err = s.insertNode(ctx, tx, &stored)
		return err
	})
	if err != nil {
		return 0, err
	}
	node.ID = id
	return id, nil
}

// AppendChild inserts a node as the last child of parentID.
func (s *sqliteTreeStore) AppendChild(ctx context.Context, parentID int64, node *Node) (int64, error) {
	if node.Name == "" {
		return 0, ErrInvalidInput
	}
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		parent, err := s.getNodeTx(ctx, tx, parentID)
		if err != nil {
			if errors.Is(err, ErrNodeNotFound) {
				return ErrParentNotFound
			}
			return err
		}

		boundary := parent.Right
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET lft = lft + 2 WHERE tree_id = ? AND lft >= ?", s.table),
			parent.TreeID, boundary); err != nil {
			return fmt.Errorf("error shifting left coordinates: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET rgt = rgt + 2 WHERE tree_id = ? AND rgt >= ?", s.table),
			parent.TreeID, boundary); err != nil {
			return fmt.Errorf("error shifting right coordinates: %w", err)
		}

		pid := parent.ID
		stored := *node
		stored.ParentID = &pid
		stored.TreeID = parent.TreeID
		stored.Left, stored.Right = boundary, boundary+1
		stored.Level = parent.Level + 1
		id, err = s.insertNode(ctx, tx, &stored)
		return err
	})
	if err != nil {
		return 0, err
	}
	node.ID = id
	return id, nil
}

// MoveSubtree relocates a subtree under a new parent or to a fresh tree,
// parking the subtree on negated coordinates while the gaps shift.
func (s *sqliteTreeStore) MoveSubtree(ctx context.Context, id int64, newParentID *int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		node, err := s.getNodeTx(ctx, tx, id)
		if err != nil {
			return err
		}
		var parent *Node
		if newParentID == nil {
			if node.ParentID == nil {
				return nil // already a root
			}
		} else {
			parent, err = s.getNodeTx(ctx, tx, *newParentID)
			if err != nil {
				return err
			}
			if parent.ID == node.ID || node.Contains(parent) {
				return ErrInvalidMove
			}
		}

		width := node.Width()
		srcTree, srcLeft, srcRight, srcLevel := node.TreeID, node.Left, node.Right, node.Level

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET lft = -lft, rgt = -rgt WHERE tree_id = ? AND lft >= ? AND rgt <= ?", s.table),
			srcTree, srcLeft, srcRight); err != nil {
			return fmt.Errorf("error detaching subtree: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET lft = lft - ? WHERE tree_id = ? AND lft > ?", s.table),
			width, srcTree, srcRight); err != nil {
			return fmt.Errorf("error closing gap: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET rgt = rgt - ? WHERE tree_id = ? AND rgt > ?", s.table),
			width, srcTree, srcRight); err != nil {
			return fmt.Errorf("error closing gap: %w", err)
		}

		var dstTree, newLeft int64
		var newLevel int
		if parent == nil {
			dstTree, err = s.nextTreeID(ctx, tx)
			if err != nil {
				return err
			}
			newLeft, newLevel = 1, 0
		} else {
			// Re-read: the close above may have shifted the parent.
			parent, err = s.getNodeTx(ctx, tx, parent.ID)
			if err != nil {
				return err
			}
			boundary := parent.Right
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("UPDATE %s SET lft = lft + ? WHERE tree_id = ? AND lft >= ?", s.table),
				width, parent.TreeID, boundary); err != nil {
				return fmt.Errorf("error opening gap: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("UPDATE %s SET rgt = rgt + ? WHERE tree_id = ? AND rgt >= ?", s.table),
				width, parent.TreeID, boundary); err != nil {
				return fmt.Errorf("error opening gap: %w", err)
			}
			dstTree, newLeft, newLevel = parent.TreeID, boundary, parent.Level+1
		}

		offset := newLeft - srcLeft
		levelDelta := newLevel - srcLevel
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET lft = ? - lft, rgt = ? - rgt, level = level + ?, tree_id = ? WHERE tree_id = ? AND lft < 0", s.table),
			offset, offset, levelDelta, dstTree, srcTree); err != nil {
			return fmt.Errorf("error reattaching subtree: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET parent_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", s.table),
			newParentID, node.ID); err != nil {
			return fmt.Errorf("error updating parent link: %w", err)
		}
		return nil
	})
}

// DeleteSubtree removes a node with all descendants and closes the gap.
func (s *sqliteTreeStore) DeleteSubtree(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		node, err := s.getNodeTx(ctx, tx, id)
		if err != nil {
			return err
		}
		width := node.Width()

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE tree_id = ? AND lft >= ? AND rgt <= ?", s.table),
			node.TreeID, node.Left, node.Right); err != nil {
			return fmt.Errorf("error deleting subtree: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET lft = lft - ? WHERE tree_id = ? AND lft > ?", s.table),
			width, node.TreeID, node.Right); err != nil {
			return fmt.Errorf("error closing gap: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET rgt = rgt - ? WHERE tree_id = ? AND rgt > ?", s.table),
			width, node.TreeID, node.Right); err != nil {
			return fmt.Errorf("error closing gap: %w", err)
		}
		return nil
	})
}

// UpdateNode updates payload attributes only
func (s *sqliteTreeStore) UpdateNode(ctx context.Context, id int64, node *Node) error {
	if node.Name == "" {
		return ErrInvalidInput
	}
	query := fmt.Sprintf(`
		UPDATE %s SET name = ?, slug = ?, code = ?, description = ?, status = ?,
			updated_by = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, s.table)
	result, err := s.db.ExecContext(ctx, query,
		node.Name, node.Slug, node.Code, node.Description, node.Status, node.UpdatedBy, id)
	if err != nil {
		return fmt.Errorf("error updating node: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNodeNotFound
	}
	return nil
}

// SoftDeleteNode sets the tombstone; the tree structure is untouched
func (s *sqliteTreeStore) SoftDeleteNode(ctx context.Context, id int64, deletedBy string) error {
	query := fmt.Sprintf(
		"UPDATE %s SET deleted_at = CURRENT_TIMESTAMP, deleted_by = ? WHERE id = ? AND deleted_at IS NULL",
		s.table)
	result, err := s.db.ExecContext(ctx, query, deletedBy, id)
	if err != nil {
		return fmt.Errorf("error soft deleting node: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNodeNotFound
	}
	return nil
}

// Rebuild recomputes one tree's coordinates from its parent links.
func (s *sqliteTreeStore) Rebuild(ctx context.Context, treeID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		query := fmt.Sprintf("SELECT %s FROM %s WHERE tree_id = ? ORDER BY lft", nodeColumns, s.table)
		rows, err := tx.QueryContext(ctx, query, treeID)
		if err != nil {
			return fmt.Errorf("error loading tree: %w", err)
		}
		nodes, err := collectNodes(rows)
		if err != nil {
			return err
		}
		if len(nodes) == 0 {
			return ErrNodeNotFound
		}

		if err := renumberTree(nodes); err != nil {
			return err
		}

		update := fmt.Sprintf("UPDATE %s SET lft = ?, rgt = ?, level = ? WHERE id = ?", s.table)
		for _, n := range nodes {
			if _, err := tx.ExecContext(ctx, update, n.Left, n.Right, n.Level, n.ID); err != nil {
				return fmt.Errorf("error writing rebuilt coordinates: %w", err)
			}
		}
		return nil
	})
}

// sqliteMedicineStore implements MedicineRepository with SQLite placeholders.
type sqliteMedicineStore struct {
	db *sql.DB
}

func (s *sqliteMedicineStore) CreateMedicine(ctx context.Context, m *Medicine) (int64, error) {
	if m.Name == "" || m.Slug == "" {
		return 0, ErrInvalidInput
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO medicines (name, slug, generic_name, status, description)
		VALUES (?, ?, ?, ?, ?)`,
		m.Name, m.Slug, m.GenericName, m.Status, m.Description)
	if err != nil {
		return 0, fmt.Errorf("error creating medicine: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error getting insert id: %w", err)
	}

	if err := sqliteReplaceAssociations(ctx, tx, "medicine_category", "category_id", id, m.CategoryIDs); err != nil {
		return 0, err
	}
	if err := sqliteReplaceAssociations(ctx, tx, "medicine_atc_code", "atc_code_id", id, m.ATCCodeIDs); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing: %w", err)
	}
	return id, nil
}

func sqliteReplaceAssociations(ctx context.Context, tx *sql.Tx, pivot, column string, medicineID int64, ids []int64) error {
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE medicine_id = ?", pivot), medicineID); err != nil {
		return fmt.Errorf("error clearing %s: %w", pivot, err)
	}
	insert := fmt.Sprintf("INSERT INTO %s (medicine_id, %s) VALUES (?, ?)", pivot, column)
	for _, refID := range ids {
		if _, err := tx.ExecContext(ctx, insert, medicineID, refID); err != nil {
			return fmt.Errorf("error linking %s %d: %w", column, refID, err)
		}
	}
	return nil
}

func (s *sqliteMedicineStore) loadAssociations(ctx context.Context, m *Medicine) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT category_id FROM medicine_category WHERE medicine_id = ? ORDER BY category_id", m.ID)
	if err != nil {
		return fmt.Errorf("error loading categories: %w", err)
	}
	m.CategoryIDs, err = collectIDs(rows)
	if err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx,
		"SELECT atc_code_id FROM medicine_atc_code WHERE medicine_id = ? ORDER BY atc_code_id", m.ID)
	if err != nil {
		return fmt.Errorf("error loading atc codes: %w", err)
	}
	m.ATCCodeIDs, err = collectIDs(rows)
	return err
}

func (s *sqliteMedicineStore) GetMedicine(ctx context.Context, id int64) (*Medicine, error) {
	query := fmt.Sprintf("SELECT %s FROM medicines WHERE id = ?", medicineColumns)
	m, err := scanMedicine(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNodeNotFound
		}
		return nil, fmt.Errorf("error getting medicine: %w", err)
	}
	if err := s.loadAssociations(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *sqliteMedicineStore) ListMedicines(ctx context.Context, page, pageSize int) ([]*Medicine, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM medicines").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting medicines: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM medicines ORDER BY id LIMIT ? OFFSET ?", medicineColumns)
	rows, err := s.db.QueryContext(ctx, query, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing medicines: %w", err)
	}
	defer rows.Close()

	medicines := []*Medicine{}
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("error scanning medicine: %w", err)
		}
		medicines = append(medicines, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating medicines: %w", err)
	}
	for _, m := range medicines {
		if err := s.loadAssociations(ctx, m); err != nil {
			return nil, 0, err
		}
	}
	return medicines, total, nil
}

func (s *sqliteMedicineStore) UpdateMedicine(ctx context.Context, id int64, m *Medicine) error {
	if m.Name == "" || m.Slug == "" {
		return ErrInvalidInput
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE medicines SET name = ?, slug = ?, generic_name = ?, status = ?,
			description = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		m.Name, m.Slug, m.GenericName, m.Status, m.Description, id)
	if err != nil {
		return fmt.Errorf("error updating medicine: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNodeNotFound
	}

	if err := sqliteReplaceAssociations(ctx, tx, "medicine_category", "category_id", id, m.CategoryIDs); err != nil {
		return err
	}
	if err := sqliteReplaceAssociations(ctx, tx, "medicine_atc_code", "atc_code_id", id, m.ATCCodeIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteMedicineStore) DeleteMedicine(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM medicines WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("error deleting medicine: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNodeNotFound
	}
	return nil
}

func (s *sqliteMedicineStore) AddStrength(ctx context.Context, medicineID int64, st *Strength) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO strengths (medicine_id, dose_form_id, concentration_amount, concentration_unit,
			volume_amount, volume_unit, chemical_form, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		medicineID, st.DoseFormID, st.ConcentrationAmount, st.ConcentrationUnit,
		st.VolumeAmount, st.VolumeUnit, st.ChemicalForm, st.Description)
	if err != nil {
		return 0, fmt.Errorf("error creating strength: %w", err)
	}
	return result.LastInsertId()
}

func (s *sqliteMedicineStore) ListStrengths(ctx context.Context, medicineID int64) ([]*Strength, error) {
	query := fmt.Sprintf("SELECT %s FROM strengths WHERE medicine_id = ? ORDER BY id", strengthColumns)
	rows, err := s.db.QueryContext(ctx, query, medicineID)
	if err != nil {
		return nil, fmt.Errorf("error listing strengths: %w", err)
	}
	defer rows.Close()

	strengths := []*Strength{}
	for rows.Next() {
		var st Strength
		if err := rows.Scan(&st.ID, &st.MedicineID, &st.DoseFormID,
			&st.ConcentrationAmount, &st.ConcentrationUnit,
			&st.VolumeAmount, &st.VolumeUnit, &st.ChemicalForm, &st.Description,
			&st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning strength: %w", err)
		}
		strengths = append(strengths, &st)
	}
	return strengths, rows.Err()
}

func (s *sqliteMedicineStore) DeleteStrength(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM strengths WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("error deleting strength: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNodeNotFound
	}
	return nil
}

// sqliteDoseFormStore implements DoseFormRepository.
type sqliteDoseFormStore struct {
	db *sql.DB
}

func (s *sqliteDoseFormStore) CreateDoseForm(ctx context.Context, d *DoseForm) (int64, error) {
	if d.Name == "" {
		return 0, ErrInvalidInput
	}
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO dose_forms (name, description) VALUES (?, ?)", d.Name, d.Description)
	if err != nil {
		return 0, fmt.Errorf("error creating dose form: %w", err)
	}
	return result.LastInsertId()
}

func (s *sqliteDoseFormStore) GetDoseForm(ctx context.Context, id int64) (*DoseForm, error) {
	var d DoseForm
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, description, created_at, updated_at FROM dose_forms WHERE id = ?", id,
	).Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNodeNotFound
		}
		return nil, fmt.Errorf("error getting dose form: %w", err)
	}
	return &d, nil
}

func (s *sqliteDoseFormStore) ListDoseForms(ctx context.Context) ([]*DoseForm, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, description, created_at, updated_at FROM dose_forms ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("error listing dose forms: %w", err)
	}
	defer rows.Close()

	forms := []*DoseForm{}
	for rows.Next() {
		var d DoseForm
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning dose form: %w", err)
		}
		forms = append(forms, &d)
	}
	return forms, rows.Err()
}

func (s *sqliteDoseFormStore) UpdateDoseForm(ctx context.Context, id int64, d *DoseForm) error {
	if d.Name == "" {
		return ErrInvalidInput
	}
	result, err := s.db.ExecContext(ctx,
		"UPDATE dose_forms SET name = ?, description = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		d.Name, d.Description, id)
	if err != nil {
		return fmt.Errorf("error updating dose form: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNodeNotFound
	}
	return nil
}

func (s *sqliteDoseFormStore) DeleteDoseForm(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM dose_forms WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("error deleting dose form: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNodeNotFound
	}
	return nil
}
