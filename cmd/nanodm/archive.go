package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arthur-debert/nanodm/nanodm/archive"
	"github.com/arthur-debert/nanodm/nanodm/store"
)

func (cli *CLI) exportCommand() *cobra.Command {
	var (
		collections []string
		query       string
	)

	cmd := &cobra.Command{
		Use:   "export <archive.zip>",
		Short: "Export collections to a zip archive",
		Long: `Write collections, their records and index definitions to a zip archive.

Examples:
  nanodm export backup.zip
  nanodm export authors.zip --collection authors --query '{"born": {"$exists": true}}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseQuery(query)
			if err != nil {
				return err
			}
			return cli.withStore(func(s *store.Store) error {
				manifest, err := archive.ExportToPath(cmd.Context(), s, args[0], archive.ExportOptions{
					Collections: collections,
					Query:       q,
				})
				if err != nil {
					return err
				}
				total := 0
				for _, c := range manifest.Collections {
					total += c.Count
				}
				cli.logger.Debug("exported archive", zap.String("path", args[0]), zap.Int("records", total))
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records from %d collections to %s\n",
					total, len(manifest.Collections), args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&collections, "collection", "c", nil, "collections to export (default all)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "query selecting the exported records")
	return cmd
}

func (cli *CLI) importCommand() *cobra.Command {
	var (
		collections []string
		clearFirst  bool
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "import <archive.zip>",
		Short: "Import collections from a zip archive",
		Long: `Import the collections of an archive written by export. Records keep
their ids; records the store rejects (for example unique index violations)
are reported and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withStore(func(s *store.Store) error {
				result, err := archive.ImportFromPath(cmd.Context(), s, args[0], archive.ImportOptions{
					Collections: collections,
					Clear:       clearFirst,
					DryRun:      dryRun,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				for _, info := range result.Manifest.Collections {
					if n, ok := result.Imported[info.Name]; ok {
						fmt.Fprintf(out, "%s: %d/%d records\n", info.Name, n, info.Count)
					}
				}
				for _, f := range result.Failed {
					fmt.Fprintf(cmd.ErrOrStderr(), "WARN: %s\n", f.Error())
				}
				if dryRun {
					fmt.Fprintln(out, "(DRY RUN - no changes applied)")
				}
				if len(result.Failed) > 0 {
					return fmt.Errorf("%d records were rejected", len(result.Failed))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&collections, "collection", "c", nil, "collections to import (default all)")
	cmd.Flags().BoolVar(&clearFirst, "clear", false, "empty each collection before importing")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "check the archive without writing")
	return cmd
}
