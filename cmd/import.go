package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/agentic-research/olxstore/internal/ingest"
	"github.com/agentic-research/olxstore/internal/olx"
	"github.com/agentic-research/olxstore/internal/store"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import [course_dir] [output.db]",
	Short: "Import an OLX course directory into a new store",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, output := args[0], args[1]

		bundle, err := olx.OpenDir(source)
		if err != nil {
			return err
		}

		// The store must be new.
		if err := os.Remove(output); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", output, err)
		}
		s, err := store.Create(cmd.Context(), output,
			store.WithPageSize(cfg.Store.PageSize),
			store.WithSynchronous(cfg.Store.Synchronous),
			store.WithJournalMode(cfg.Store.JournalMode),
		)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		start := time.Now()
		im := ingest.NewImporter(s, bundle, cfg.Assets)
		if err := im.Run(cmd.Context()); err != nil {
			return fmt.Errorf("import %s: %w", source, err)
		}

		st := im.Stats()
		items := 0
		for _, n := range st.Items {
			items += n
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d config entries, %d assets (%s), %d items in %v\n",
			im.CourseKey(), st.ConfigEntries, st.Assets, humanize.Bytes(uint64(st.AssetBytes)), items,
			time.Since(start).Round(time.Millisecond))
		return err
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
