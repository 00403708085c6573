package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nodeTestColumns = []string{
	"id", "parent_id", "tree_id", "lft", "rgt", "level",
	"name", "slug", "code", "description", "status",
	"created_by", "updated_by", "deleted_by",
	"created_at", "updated_at", "deleted_at",
}

func newMockTreeStore(t *testing.T) (*postgresTreeStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store := &postgresTreeStore{
		db:        db,
		table:     "categories",
		treeSeq:   "categories_tree_id_seq",
		lockSpace: lockSpaceCategories,
	}
	return store, mock, func() { db.Close() }
}

func nodeRow(n *Node) *sqlmock.Rows {
	rows := sqlmock.NewRows(nodeTestColumns)
	var parent interface{}
	if n.ParentID != nil {
		parent = *n.ParentID
	}
	now := time.Now()
	rows.AddRow(n.ID, parent, n.TreeID, n.Left, n.Right, n.Level,
		n.Name, n.Slug, n.Code, n.Description, n.Status,
		n.CreatedBy, n.UpdatedBy, n.DeletedBy, now, now, nil)
	return rows
}

func TestPostgresGetNode(t *testing.T) {
	store, mock, cleanup := newMockTreeStore(t)
	defer cleanup()

	want := &Node{ID: 1, TreeID: 7, Left: 1, Right: 4, Name: "Analgesics", Slug: "analgesics", Status: "active"}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + nodeColumns + " FROM categories WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(nodeRow(want))

	node, err := store.GetNode(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, want.Name, node.Name)
	assert.Equal(t, want.TreeID, node.TreeID)
	assert.Nil(t, node.ParentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetNodeNotFound(t *testing.T) {
	store, mock, cleanup := newMockTreeStore(t)
	defer cleanup()

	mock.ExpectQuery("SELECT .* FROM categories WHERE id").
		WithArgs(int64(42)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetNode(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetChildren(t *testing.T) {
	store, mock, cleanup := newMockTreeStore(t)
	defer cleanup()

	parentID := int64(1)
	now := time.Now()
	rows := sqlmock.NewRows(nodeTestColumns).
		AddRow(int64(2), parentID, int64(7), int64(2), int64(3), 1,
			"Opioids", "opioids", "", "", "active", "", "", "", now, now, nil).
		AddRow(int64(3), parentID, int64(7), int64(4), int64(5), 1,
			"NSAIDs", "nsaids", "", "", "active", "", "", "", now, now, nil)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE parent_id = $1 ORDER BY lft")).
		WithArgs(parentID).
		WillReturnRows(rows)

	children, err := store.GetChildren(context.Background(), parentID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "Opioids", children[0].Name)
	assert.Equal(t, parentID, *children[1].ParentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetSubtree(t *testing.T) {
	store, mock, cleanup := newMockTreeStore(t)
	defer cleanup()

	root := &Node{ID: 1, TreeID: 7, Left: 1, Right: 6, Name: "Analgesics", Slug: "analgesics", Status: "active"}
	now := time.Now()
	interval := sqlmock.NewRows(nodeTestColumns).
		AddRow(root.ID, nil, root.TreeID, root.Left, root.Right, 0,
			root.Name, root.Slug, "", "", "active", "", "", "", now, now, nil).
		AddRow(int64(2), root.ID, root.TreeID, int64(2), int64(5), 1,
			"Opioids", "opioids", "", "", "active", "", "", "", now, now, nil).
		AddRow(int64(3), int64(2), root.TreeID, int64(3), int64(4), 2,
			"Morphine", "morphine", "", "", "active", "", "", "", now, now, nil)

	// Anchor read and interval scan share one transaction.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM categories WHERE id").
		WithArgs(root.ID).WillReturnRows(nodeRow(root))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE tree_id = $1 AND lft >= $2 AND rgt <= $3 ORDER BY lft")).
		WithArgs(root.TreeID, root.Left, root.Right).
		WillReturnRows(interval)
	mock.ExpectCommit()

	nodes, err := store.GetSubtree(context.Background(), root.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, "Morphine", nodes[2].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetAncestors(t *testing.T) {
	store, mock, cleanup := newMockTreeStore(t)
	defer cleanup()

	two := int64(2)
	leaf := &Node{ID: 3, ParentID: &two, TreeID: 7, Left: 3, Right: 4, Level: 2, Name: "Morphine", Slug: "morphine", Status: "active"}
	now := time.Now()
	chain := sqlmock.NewRows(nodeTestColumns).
		AddRow(int64(1), nil, leaf.TreeID, int64(1), int64(6), 0,
			"Analgesics", "analgesics", "", "", "active", "", "", "", now, now, nil).
		AddRow(int64(2), int64(1), leaf.TreeID, int64(2), int64(5), 1,
			"Opioids", "opioids", "", "", "active", "", "", "", now, now, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM categories WHERE id").
		WithArgs(leaf.ID).WillReturnRows(nodeRow(leaf))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE tree_id = $1 AND lft < $2 AND rgt > $3 ORDER BY lft")).
		WithArgs(leaf.TreeID, leaf.Left, leaf.Right).
		WillReturnRows(chain)
	mock.ExpectCommit()

	ancestors, err := store.GetAncestors(context.Background(), leaf.ID)
	require.NoError(t, err)
	require.Len(t, ancestors, 2)
	assert.Equal(t, "Analgesics", ancestors[0].Name)
	assert.Equal(t, "Opioids", ancestors[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertRoot(t *testing.T) {
	store, mock, cleanup := newMockTreeStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT nextval('categories_tree_id_seq')")).
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(int64(11)))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO categories")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectCommit()

	node := &Node{Name: "Antibiotics", Slug: "antibiotics", Status: "active"}
	id, err := store.InsertRoot(context.Background(), node)
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
	assert.Equal(t, int64(5), node.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertRootRequiresName(t *testing.T) {
	store, _, cleanup := newMockTreeStore(t)
	defer cleanup()

	_, err := store.InsertRoot(context.Background(), &Node{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPostgresAppendChild(t *testing.T) {
	store, mock, cleanup := newMockTreeStore(t)
	defer cleanup()

	parent := &Node{ID: 1, TreeID: 7, Left: 1, Right: 4, Level: 0, Name: "Analgesics", Status: "active"}

	mock.ExpectBegin()
	// Tree lock: read, lock, re-read under the lock.
	mock.ExpectQuery("SELECT .* FROM categories WHERE id").
		WithArgs(parent.ID).WillReturnRows(nodeRow(parent))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1::int, $2::int)")).
		WithArgs(lockSpaceCategories, parent.TreeID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .* FROM categories WHERE id").
		WithArgs(parent.ID).WillReturnRows(nodeRow(parent))
	// Gap opens at the parent's right boundary.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE categories SET lft = lft + 2 WHERE tree_id = $1 AND lft >= $2")).
		WithArgs(parent.TreeID, parent.Right).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE categories SET rgt = rgt + 2 WHERE tree_id = $1 AND rgt >= $2")).
		WithArgs(parent.TreeID, parent.Right).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO categories")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectCommit()

	node := &Node{Name: "Opioids", Slug: "opioids", Status: "active"}
	id, err := store.AppendChild(context.Background(), parent.ID, node)
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendChildParentNotFound(t *testing.T) {
	store, mock, cleanup := newMockTreeStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM categories WHERE id").
		WithArgs(int64(99)).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := store.AppendChild(context.Background(), 99, &Node{Name: "Orphan"})
	assert.ErrorIs(t, err, ErrParentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMoveSubtreeCycleRejected(t *testing.T) {
	store, mock, cleanup := newMockTreeStore(t)
	defer cleanup()

	two := int64(2)
	three := int64(3)
	node := &Node{ID: 2, ParentID: int64p(1), TreeID: 7, Left: 2, Right: 7, Level: 1, Name: "Opioids"}
	inside := &Node{ID: 3, ParentID: &two, TreeID: 7, Left: 3, Right: 4, Level: 2, Name: "Morphine"}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM categories WHERE id").
		WithArgs(node.ID).WillReturnRows(nodeRow(node))
	mock.ExpectQuery("SELECT .* FROM categories WHERE id").
		WithArgs(inside.ID).WillReturnRows(nodeRow(inside))
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(lockSpaceCategories, node.TreeID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .* FROM categories WHERE id").
		WithArgs(node.ID).WillReturnRows(nodeRow(node))
	mock.ExpectQuery("SELECT .* FROM categories WHERE id").
		WithArgs(inside.ID).WillReturnRows(nodeRow(inside))
	mock.ExpectRollback()

	err := store.MoveSubtree(context.Background(), node.ID, &three)
	assert.ErrorIs(t, err, ErrInvalidMove)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteSubtree(t *testing.T) {
	store, mock, cleanup := newMockTreeStore(t)
	defer cleanup()

	node := &Node{ID: 2, ParentID: int64p(1), TreeID: 7, Left: 2, Right: 5, Level: 1, Name: "Opioids"}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM categories WHERE id").
		WithArgs(node.ID).WillReturnRows(nodeRow(node))
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(lockSpaceCategories, node.TreeID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .* FROM categories WHERE id").
		WithArgs(node.ID).WillReturnRows(nodeRow(node))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM categories WHERE tree_id = $1 AND lft >= $2 AND rgt <= $3")).
		WithArgs(node.TreeID, node.Left, node.Right).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE categories SET lft = lft - $1 WHERE tree_id = $2 AND lft > $3")).
		WithArgs(node.Width(), node.TreeID, node.Right).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE categories SET rgt = rgt - $1 WHERE tree_id = $2 AND rgt > $3")).
		WithArgs(node.Width(), node.TreeID, node.Right).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.DeleteSubtree(context.Background(), node.ID)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateNodeNotFound(t *testing.T) {
	store, mock, cleanup := newMockTreeStore(t)
	defer cleanup()

	mock.ExpectExec("UPDATE categories SET name").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateNode(context.Background(), 42, &Node{Name: "Renamed"})
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSoftDeleteNode(t *testing.T) {
	store, mock, cleanup := newMockTreeStore(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("SET deleted_at = CURRENT_TIMESTAMP, deleted_by = $1 WHERE id = $2 AND deleted_at IS NULL")).
		WithArgs("pharmacist", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.SoftDeleteNode(context.Background(), 2, "pharmacist")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRebuildEmptyTree(t *testing.T) {
	store, mock, cleanup := newMockTreeStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(lockSpaceCategories, int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE tree_id = $1 ORDER BY lft")).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(nodeTestColumns))
	mock.ExpectRollback()

	err := store.Rebuild(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
