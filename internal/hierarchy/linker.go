// Package hierarchy manages parent to child edges between content items.
//
// Edges are defined on content item ids, not on context bindings, so the
// same content keeps its children wherever it is placed. An edge with a
// nil order is unordered membership (e.g. one of several valid children);
// a non-nil order is a position in a sequence.
//
// The import pipeline does not produce edges yet.
package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/olxstore/api"
	"github.com/agentic-research/olxstore/internal/store"
)

var ErrSelfEdge = errors.New("content item cannot be its own child")

// Linker reads and writes content_item_child through a connection or a
// transaction.
type Linker struct {
	db store.DBTX
}

func New(db store.DBTX) *Linker {
	return &Linker{db: db}
}

// AddEdge links child under parent. A nil order adds unordered membership.
// Repeating an unordered edge or an ordered position fails with
// api.ErrUniqueness.
func (l *Linker) AddEdge(ctx context.Context, parentID, childID int64, order *int64) error {
	if parentID == childID {
		return fmt.Errorf("edge %d -> %d: %w", parentID, childID, ErrSelfEdge)
	}
	for _, id := range []int64{parentID, childID} {
		var n int
		if err := l.db.QueryRowContext(ctx,
			`SELECT count(*) FROM content_item WHERE id = ?`, id,
		).Scan(&n); err != nil {
			return fmt.Errorf("check item %d: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("content item %d: %w", id, api.ErrNotFound)
		}
	}
	if order != nil {
		var n int
		if err := l.db.QueryRowContext(ctx,
			`SELECT count(*) FROM content_item_child WHERE parent_id = ? AND order_num = ?`,
			parentID, *order,
		).Scan(&n); err != nil {
			return fmt.Errorf("check position: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("edge %d -> %d at %d: %w", parentID, childID, *order, api.ErrUniqueness)
		}
	} else {
		var n int
		if err := l.db.QueryRowContext(ctx,
			`SELECT count(*) FROM content_item_child WHERE parent_id = ? AND child_id = ? AND order_num IS NULL`,
			parentID, childID,
		).Scan(&n); err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("edge %d -> %d: %w", parentID, childID, api.ErrUniqueness)
		}
	}

	if _, err := l.db.ExecContext(ctx,
		`INSERT INTO content_item_child (parent_id, child_id, order_num) VALUES (?, ?, ?)`,
		parentID, childID, order,
	); err != nil {
		return fmt.Errorf("insert edge %d -> %d: %w", parentID, childID, err)
	}
	return nil
}

// OrderedChildren returns the sequence children of parent by position.
func (l *Linker) OrderedChildren(ctx context.Context, parentID int64) ([]api.ContentItemChild, error) {
	return l.edges(ctx,
		`SELECT parent_id, child_id, order_num FROM content_item_child
		 WHERE parent_id = ? AND order_num IS NOT NULL ORDER BY order_num`, parentID)
}

// UnorderedChildren returns the set members of parent, by child id.
func (l *Linker) UnorderedChildren(ctx context.Context, parentID int64) ([]api.ContentItemChild, error) {
	return l.edges(ctx,
		`SELECT parent_id, child_id, order_num FROM content_item_child
		 WHERE parent_id = ? AND order_num IS NULL ORDER BY child_id`, parentID)
}

// Parents returns every edge pointing at child, by parent id.
func (l *Linker) Parents(ctx context.Context, childID int64) ([]api.ContentItemChild, error) {
	return l.edges(ctx,
		`SELECT parent_id, child_id, order_num FROM content_item_child
		 WHERE child_id = ? ORDER BY parent_id, order_num`, childID)
}

// Descendants returns the ids reachable from root through any edge,
// root excluded. Cycles are tolerated.
func (l *Linker) Descendants(ctx context.Context, rootID int64) (*roaring.Bitmap, error) {
	seen := roaring.New()
	queue := []int64{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		kids, err := l.childIDs(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, k := range kids {
			if k < 0 || k > math.MaxUint32 {
				return nil, fmt.Errorf("content item id %d out of range", k)
			}
			if k == rootID || !seen.CheckedAdd(uint32(k)) {
				continue
			}
			queue = append(queue, k)
		}
	}
	return seen, nil
}

func (l *Linker) childIDs(ctx context.Context, parentID int64) ([]int64, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT DISTINCT child_id FROM content_item_child WHERE parent_id = ? ORDER BY child_id`, parentID)
	if err != nil {
		return nil, fmt.Errorf("query children of %d: %w", parentID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (l *Linker) edges(ctx context.Context, query string, id int64) ([]api.ContentItemChild, error) {
	rows, err := l.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query edges of %d: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	var out []api.ContentItemChild
	for rows.Next() {
		var e api.ContentItemChild
		if err := rows.Scan(&e.ParentID, &e.ChildID, &e.Order); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
