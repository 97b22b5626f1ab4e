package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/agentic-research/olxstore/api"
	"github.com/agentic-research/olxstore/internal/hierarchy"
	"github.com/agentic-research/olxstore/internal/locator"
	"github.com/agentic-research/olxstore/internal/store"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"
)

var (
	showDefinition bool
	showSelect     string
)

func init() {
	showCmd.Flags().BoolVar(&showDefinition, "definition", false, "Write the raw definition instead of JSON")
	showCmd.Flags().StringVar(&showSelect, "select", "", "JSONPath applied to the output, e.g. $.content.title")
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show [store.db] [locator|course key]",
	Short: "Print a stored block, or the course context for a course key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		ctx := cmd.Context()
		c, err := s.Context(ctx)
		if err != nil {
			return err
		}

		var doc map[string]any
		if strings.HasPrefix(args[1], locator.CoursePrefix) {
			if showDefinition {
				return fmt.Errorf("--definition needs a block locator, got course key %s", args[1])
			}
			key, err := locator.ParseCourseKey(args[1])
			if err != nil {
				return err
			}
			if key.String() != c.ExtID {
				return fmt.Errorf("course %s: %w", key, api.ErrNotFound)
			}
			doc, err = contextDoc(ctx, s, c)
			if err != nil {
				return err
			}
		} else {
			loc, err := locator.Parse(args[1])
			if err != nil {
				return err
			}
			item, err := s.ItemByLocator(ctx, c.ID, loc.String())
			if err != nil {
				return err
			}
			if showDefinition {
				_, err = cmd.OutOrStdout().Write(item.Content.Definition)
				return err
			}
			doc, err = itemDoc(ctx, s, loc, item)
			if err != nil {
				return err
			}
		}
		return writeJSON(cmd.OutOrStdout(), doc, showSelect)
	},
}

func contextDoc(ctx context.Context, s *store.Store, c *api.Context) (map[string]any, error) {
	entries, err := s.ConfigEntries(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	cfg := make(map[string]any, len(entries))
	for _, e := range entries {
		cfg[e.Key] = e.Value
	}

	files, err := s.Assets(ctx)
	if err != nil {
		return nil, err
	}
	var total int64
	paths := make([]any, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.FilePath)
		total += f.Size
	}

	items, err := s.ContextItems(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	byType := map[string]any{}
	for _, it := range items {
		n, _ := byType[it.Content.Type].(int64)
		byType[it.Content.Type] = n + 1
	}

	apps, err := s.Apps(ctx)
	if err != nil {
		return nil, err
	}
	appList := make([]any, 0, len(apps))
	for _, a := range apps {
		appList = append(appList, map[string]any{"name": a.Name, "version": int64(a.Version)})
	}

	return map[string]any{
		"context": map[string]any{
			"id":      c.ID,
			"ext_id":  c.ExtID,
			"type":    c.Type,
			"version": c.Version,
			"title":   deref(c.Title),
		},
		"config": cfg,
		"assets": map[string]any{"count": int64(len(files)), "bytes": total, "paths": paths},
		"items":  byType,
		"apps":   appList,
	}, nil
}

func itemDoc(ctx context.Context, s *store.Store, loc locator.BlockLocator, item *store.Item) (map[string]any, error) {
	l := hierarchy.New(s.DB())
	parents, err := l.Parents(ctx, item.Content.ID)
	if err != nil {
		return nil, err
	}
	ordered, err := l.OrderedChildren(ctx, item.Content.ID)
	if err != nil {
		return nil, err
	}
	unordered, err := l.UnorderedChildren(ctx, item.Content.ID)
	if err != nil {
		return nil, err
	}
	reach, err := l.Descendants(ctx, item.Content.ID)
	if err != nil {
		return nil, err
	}
	descendants := make([]any, 0, reach.GetCardinality())
	for _, id := range reach.ToArray() {
		descendants = append(descendants, int64(id))
	}

	return map[string]any{
		"locator": loc.String(),
		"course":  loc.Course.String(),
		"kind":    loc.Kind,
		"name":    loc.Name,
		"slug":    deref(item.Slug),
		"content": map[string]any{
			"id":              item.Content.ID,
			"natural_key":     item.Content.NaturalKey,
			"type":            item.Content.Type,
			"title":           deref(item.Content.Title),
			"definition_size": int64(len(item.Content.Definition)),
		},
		"parents":     edgeList(parents, func(e api.ContentItemChild) int64 { return e.ParentID }),
		"children":    edgeList(append(ordered, unordered...), func(e api.ContentItemChild) int64 { return e.ChildID }),
		"descendants": descendants,
	}, nil
}

func edgeList(edges []api.ContentItemChild, id func(api.ContentItemChild) int64) []any {
	out := make([]any, 0, len(edges))
	for _, e := range edges {
		m := map[string]any{"id": id(e)}
		if e.Order != nil {
			m["order"] = *e.Order
		}
		out = append(out, m)
	}
	return out
}

// writeJSON prints doc, or each match of the JSONPath sel, one value per line.
func writeJSON(w io.Writer, doc any, sel string) error {
	opts := &ojg.Options{Indent: 2, Sort: true}
	values := []any{doc}
	if sel != "" {
		x, err := jp.ParseString(sel)
		if err != nil {
			return fmt.Errorf("invalid jsonpath '%s': %w", sel, err)
		}
		values = x.Get(doc)
	}
	for _, v := range values {
		if _, err := fmt.Fprintln(w, oj.JSON(v, opts)); err != nil {
			return err
		}
	}
	return nil
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
