package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ammiranda/medicine_service/config"
	"github.com/ammiranda/medicine_service/migrations"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/lib/pq"
)

// Advisory lock keyspaces, one per tree table, so category and ATC
// mutations never contend with each other.
const (
	lockSpaceCategories = 1
	lockSpaceATCCodes   = 2
)

// PostgresRepository owns the PostgreSQL connection and hands out the
// per-entity repositories that share it.
type PostgresRepository struct {
	db     *sql.DB
	config *config.DatabaseConfig
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(cfgProvider config.Provider) (*PostgresRepository, error) {
	ctx := context.Background()
	cfg, err := config.GetDatabaseConfig(ctx, cfgProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to get database config: %w", err)
	}

	return &PostgresRepository{
		config: cfg,
	}, nil
}

// Initialize opens the connection pool, verifies connectivity and applies
// pending migrations.
func (r *PostgresRepository) Initialize(ctx context.Context) error {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		r.config.Host,
		r.config.Port,
		r.config.User,
		r.config.Password,
		r.config.DBName,
		r.config.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("error pinging database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return fmt.Errorf("error running migrations: %w", err)
	}

	r.db = db
	return nil
}

// runMigrations applies the embedded SQL migrations
func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("error creating migration driver: %w", err)
	}

	src, err := migrations.Source()
	if err != nil {
		return fmt.Errorf("error loading embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("error creating migration instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("error running migrations: %w", err)
	}

	return nil
}

// Cleanup closes the database connection
func (r *PostgresRepository) Cleanup(ctx context.Context) error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Categories returns the tree repository backed by the categories table.
func (r *PostgresRepository) Categories() TreeRepository {
	return &postgresTreeStore{
		db:        r.db,
		table:     "categories",
		treeSeq:   "categories_tree_id_seq",
		lockSpace: lockSpaceCategories,
	}
}

// ATCCodes returns the tree repository backed by the atc_codes table.
func (r *PostgresRepository) ATCCodes() TreeRepository {
	return &postgresTreeStore{
		db:        r.db,
		table:     "atc_codes",
		treeSeq:   "atc_codes_tree_id_seq",
		lockSpace: lockSpaceATCCodes,
	}
}

// Medicines returns the medicine repository sharing this connection.
func (r *PostgresRepository) Medicines() MedicineRepository {
	return &postgresMedicineStore{db: r.db}
}

// DoseForms returns the dose form repository sharing this connection.
func (r *PostgresRepository) DoseForms() DoseFormRepository {
	return &postgresDoseFormStore{db: r.db}
}

// postgresTreeStore implements TreeRepository against one nested set table.
// The table name is a package constant, never caller input, so building the
// statements with Sprintf is safe.
type postgresTreeStore struct {
	db        *sql.DB
	table     string
	treeSeq   string
	lockSpace int
}

const nodeColumns = "id, parent_id, tree_id, lft, rgt, level, name, slug, code, description, status, created_by, updated_by, deleted_by, created_at, updated_at, deleted_at"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNode(row rowScanner) (*Node, error) {
	var node Node
	var parentID sql.NullInt64
	var deletedAt sql.NullTime
	err := row.Scan(
		&node.ID, &parentID, &node.TreeID, &node.Left, &node.Right, &node.Level,
		&node.Name, &node.Slug, &node.Code, &node.Description, &node.Status,
		&node.CreatedBy, &node.UpdatedBy, &node.DeletedBy,
		&node.CreatedAt, &node.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		node.ParentID = &parentID.Int64
	}
	if deletedAt.Valid {
		node.DeletedAt = &deletedAt.Time
	}
	return &node, nil
}

func collectNodes(rows *sql.Rows) ([]*Node, error) {
	defer rows.Close()
	nodes := []*Node{}
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning node: %w", err)
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}
	return nodes, nil
}

// GetNode retrieves a node by ID
func (s *postgresTreeStore) GetNode(ctx context.Context, id int64) (*Node, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", nodeColumns, s.table)
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
func (s *postgresTreeStore) GetChildren(ctx context.Context, parentID int64) ([]*Node, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE parent_id = $1 ORDER BY lft", nodeColumns, s.table)
	rows, err := s.db.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("error getting children: %w", err)
	}
	return collectNodes(rows)
}

// GetRoots retrieves all root nodes
func (s *postgresTreeStore) GetRoots(ctx context.Context) ([]*Node, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE parent_id IS NULL ORDER BY tree_id", nodeColumns, s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error getting roots: %w", err)
	}
	return collectNodes(rows)
}

// GetSubtree retrieves a node and all descendants by interval containment.
// The anchor lookup and the interval query share one snapshot so a
// concurrent coordinate shift can never split the read.
func (s *postgresTreeStore) GetSubtree(ctx context.Context, rootID int64) ([]*Node, error) {
	var nodes []*Node
	err := s.withReadTx(ctx, func(tx *sql.Tx) error {
		root, err := s.getNodeTx(ctx, tx, rootID)
		if err != nil {
			return err
		}
		query := fmt.Sprintf(
			"SELECT %s FROM %s WHERE tree_id = $1 AND lft >= $2 AND rgt <= $3 ORDER BY lft",
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

// GetAncestors retrieves the ancestor chain root-first. Single snapshot,
// same as GetSubtree.
func (s *postgresTreeStore) GetAncestors(ctx context.Context, id int64) ([]*Node, error) {
	var nodes []*Node
	err := s.withReadTx(ctx, func(tx *sql.Tx) error {
		node, err := s.getNodeTx(ctx, tx, id)
		if err != nil {
			return err
		}
		query := fmt.Sprintf(
			"SELECT %s FROM %s WHERE tree_id = $1 AND lft < $2 AND rgt > $3 ORDER BY lft",
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
func (s *postgresTreeStore) GetChildCount(ctx context.Context, parentID int64) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE parent_id = $1", s.table)
	var count int64
	if err := s.db.QueryRowContext(ctx, query, parentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting children: %w", err)
	}
	return count, nil
}

// withTx runs fn inside a transaction, rolling back on any error.
func (s *postgresTreeStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
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

// withReadTx runs fn inside a repeatable-read read-only transaction so that
// multi-statement reads observe a single snapshot.
func (s *postgresTreeStore) withReadTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *postgresTreeStore) getNodeTx(ctx context.Context, tx *sql.Tx, id int64) (*Node, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", nodeColumns, s.table)
	node, err := scanNode(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNodeNotFound
		}
		return nil, fmt.Errorf("error getting node: %w", err)
	}
	return node, nil
}

func (s *postgresTreeStore) lockTreeID(ctx context.Context, tx *sql.Tx, treeID int64) error {
	_, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1::int, $2::int)", s.lockSpace, treeID)
	if err != nil {
		return fmt.Errorf("error acquiring tree lock: %w", err)
	}
	return nil
}

// lockTree serializes the mutation against every other mutation of the tree
// the node currently belongs to. The node's tree can change between the
// first read and the lock landing (a concurrent cross-tree move), so the
// membership is re-read under the lock and the lock retried until stable.
func (s *postgresTreeStore) lockTree(ctx context.Context, tx *sql.Tx, id int64) (*Node, error) {
	for {
		node, err := s.getNodeTx(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if err := s.lockTreeID(ctx, tx, node.TreeID); err != nil {
			return nil, err
		}
		locked, err := s.getNodeTx(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if locked.TreeID == node.TreeID {
			return locked, nil
		}
	}
}

// lockTrees locks the trees of both nodes in ascending tree order so two
// concurrent cross-tree moves cannot deadlock. Stale locks picked up during
// a retry are held until commit, which is harmless.
func (s *postgresTreeStore) lockTrees(ctx context.Context, tx *sql.Tx, aID, bID int64) (*Node, *Node, error) {
	for {
		a, err := s.getNodeTx(ctx, tx, aID)
		if err != nil {
			return nil, nil, err
		}
		b, err := s.getNodeTx(ctx, tx, bID)
		if err != nil {
			return nil, nil, err
		}
		first, second := a.TreeID, b.TreeID
		if first > second {
			first, second = second, first
		}
		if err := s.lockTreeID(ctx, tx, first); err != nil {
			return nil, nil, err
		}
		if second != first {
			if err := s.lockTreeID(ctx, tx, second); err != nil {
				return nil, nil, err
			}
		}
		aLocked, err := s.getNodeTx(ctx, tx, aID)
		if err != nil {
			return nil, nil, err
		}
		bLocked, err := s.getNodeTx(ctx, tx, bID)
		if err != nil {
			return nil, nil, err
		}
		if aLocked.TreeID == a.TreeID && bLocked.TreeID == b.TreeID {
			return aLocked, bLocked, nil
		}
	}
}

func (s *postgresTreeStore) nextTreeID(ctx context.Context, tx *sql.Tx) (int64, error) {
	var treeID int64
	if err := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT nextval('%s')", s.treeSeq)).Scan(&treeID); err != nil {
		return 0, fmt.Errorf("error allocating tree id: %w", err)
	}
	return treeID, nil
}

func (s *postgresTreeStore) insertNode(ctx context.Context, tx *sql.Tx, node *Node) (int64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (parent_id, tree_id, lft, rgt, level, name, slug, code, description, status, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`, s.table)
	var id int64
	err := tx.QueryRowContext(ctx, query,
		node.ParentID, node.TreeID, node.Left, node.Right, node.Level,
		node.Name, node.Slug, node.Code, node.Description, node.Status,
		node.CreatedBy, node.UpdatedBy,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("error creating node: %w", err)
	}
	return id, nil
}

// InsertRoot creates a new single-node tree. No locking is needed: the tree
// id is fresh, so no concurrent mutation can touch it.
func (s *postgresTreeStore) InsertRoot(ctx context.Context, node *Node) (int64, error) {
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
func (s *postgresTreeStore) AppendChild(ctx context.Context, parentID int64, node *Node) (int64, error) {
	if node.Name == "" {
		return 0, ErrInvalidInput
	}
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		parent, err := s.lockTree(ctx, tx, parentID)
		if err != nil {
			if errors.Is(err, ErrNodeNotFound) {
				return ErrParentNotFound
			}
			return err
		}

		// Open a two-wide gap immediately before the parent's right boundary.
		boundary := parent.Right
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET lft = lft + 2 WHERE tree_id = $1 AND lft >= $2", s.table),
			parent.TreeID, boundary); err != nil {
			return fmt.Errorf("error shifting left coordinates: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET rgt = rgt + 2 WHERE tree_id = $1 AND rgt >= $2", s.table),
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

// MoveSubtree relocates a subtree under a new parent or to a fresh tree.
// The subtree rows are parked on negated coordinates while the old gap
// closes and the new one opens, then re-homed with a single uniform shift.
func (s *postgresTreeStore) MoveSubtree(ctx context.Context, id int64, newParentID *int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var node, parent *Node
		var err error
		if newParentID == nil {
			node, err = s.lockTree(ctx, tx, id)
			if err != nil {
				return err
			}
			if node.ParentID == nil {
				return nil // already a root
			}
		} else {
			node, parent, err = s.lockTrees(ctx, tx, id, *newParentID)
			if err != nil {
				return err
			}
			if parent.ID == node.ID || node.Contains(parent) {
				return ErrInvalidMove
			}
		}

		width := node.Width()
		srcTree, srcLeft, srcRight, srcLevel := node.TreeID, node.Left, node.Right, node.Level

		// Park the subtree on negated coordinates so the shifts below
		// cannot touch it.
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET lft = -lft, rgt = -rgt WHERE tree_id = $1 AND lft >= $2 AND rgt <= $3", s.table),
			srcTree, srcLeft, srcRight); err != nil {
			return fmt.Errorf("error detaching subtree: %w", err)
		}

		// Close the gap at the old location.
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET lft = lft - $1 WHERE tree_id = $2 AND lft > $3", s.table),
			width, srcTree, srcRight); err != nil {
			return fmt.Errorf("error closing gap: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET rgt = rgt - $1 WHERE tree_id = $2 AND rgt > $3", s.table),
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
				fmt.Sprintf("UPDATE %s SET lft = lft + $1 WHERE tree_id = $2 AND lft >= $3", s.table),
				width, parent.TreeID, boundary); err != nil {
				return fmt.Errorf("error opening gap: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("UPDATE %s SET rgt = rgt + $1 WHERE tree_id = $2 AND rgt >= $3", s.table),
				width, parent.TreeID, boundary); err != nil {
				return fmt.Errorf("error opening gap: %w", err)
			}
			dstTree, newLeft, newLevel = parent.TreeID, boundary, parent.Level+1
		}

		// Re-home the parked rows with one uniform shift.
		offset := newLeft - srcLeft
		levelDelta := newLevel - srcLevel
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET lft = $1 - lft, rgt = $1 - rgt, level = level + $2, tree_id = $3 WHERE tree_id = $4 AND lft < 0", s.table),
			offset, levelDelta, dstTree, srcTree); err != nil {
			return fmt.Errorf("error reattaching subtree: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET parent_id = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2", s.table),
			newParentID, node.ID); err != nil {
			return fmt.Errorf("error updating parent link: %w", err)
		}
		return nil
	})
}

// DeleteSubtree removes a node with all descendants and closes the gap.
func (s *postgresTreeStore) DeleteSubtree(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		node, err := s.lockTree(ctx, tx, id)
		if err != nil {
			return err
		}
		width := node.Width()

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE tree_id = $1 AND lft >= $2 AND rgt <= $3", s.table),
			node.TreeID, node.Left, node.Right); err != nil {
			return fmt.Errorf("error deleting subtree: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET lft = lft - $1 WHERE tree_id = $2 AND lft > $3", s.table),
			width, node.TreeID, node.Right); err != nil {
			return fmt.Errorf("error closing gap: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET rgt = rgt - $1 WHERE tree_id = $2 AND rgt > $3", s.table),
			width, node.TreeID, node.Right); err != nil {
			return fmt.Errorf("error closing gap: %w", err)
		}
		return nil
	})
}

// UpdateNode updates payload attributes only
func (s *postgresTreeStore) UpdateNode(ctx context.Context, id int64, node *Node) error {
	if node.Name == "" {
		return ErrInvalidInput
	}
	query := fmt.Sprintf(`
		UPDATE %s SET name = $1, slug = $2, code = $3, description = $4, status = $5,
			updated_by = $6, updated_at = CURRENT_TIMESTAMP
		WHERE id = $7`, s.table)
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
func (s *postgresTreeStore) SoftDeleteNode(ctx context.Context, id int64, deletedBy string) error {
	query := fmt.Sprintf(
		"UPDATE %s SET deleted_at = CURRENT_TIMESTAMP, deleted_by = $1 WHERE id = $2 AND deleted_at IS NULL",
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
func (s *postgresTreeStore) Rebuild(ctx context.Context, treeID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.lockTreeID(ctx, tx, treeID); err != nil {
			return err
		}

		query := fmt.Sprintf("SELECT %s FROM %s WHERE tree_id = $1 ORDER BY lft", nodeColumns, s.table)
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

		update := fmt.Sprintf("UPDATE %s SET lft = $1, rgt = $2, level = $3 WHERE id = $4", s.table)
		for _, n := range nodes {
			if _, err := tx.ExecContext(ctx, update, n.Left, n.Right, n.Level, n.ID); err != nil {
				return fmt.Errorf("error writing rebuilt coordinates: %w", err)
			}
		}
		return nil
	})
}
