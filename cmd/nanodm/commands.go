package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arthur-debert/nanodm/nanodm/store"
	"github.com/arthur-debert/nanodm/types"
)

func (cli *CLI) findCommand() *cobra.Command {
	var (
		query string
		sort  []string
		desc  bool
		skip  int
		limit int
	)

	cmd := &cobra.Command{
		Use:   "find <collection>",
		Short: "List the records of a collection",
		Long: `List the records of a collection that match a query.

Queries use the operators $eq $ne $gt $gte $lt $lte $in $nin $exists $regex
and the logical operators $and $or $not. They may be written as JSON or YAML.

Examples:
  nanodm find books
  nanodm find books --query '{"genre": "scifi"}' --sort year --desc --limit 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseQuery(query)
			if err != nil {
				return err
			}
			opts := types.FindOptions{Skip: skip, Limit: limit}
			for _, field := range sort {
				opts.Sort = append(opts.Sort, types.SortField{Field: field, Descending: desc})
			}

			return cli.withStore(func(s *store.Store) error {
				records, err := s.Find(cmd.Context(), args[0], q, opts)
				if err != nil {
					return err
				}
				cli.logger.Debug("find",
					zap.String("collection", args[0]),
					zap.Int("matched", len(records)))
				return cli.print(cmd, records)
			})
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "query document (JSON or YAML)")
	cmd.Flags().StringSliceVar(&sort, "sort", nil, "fields to sort by")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort in descending order")
	cmd.Flags().IntVar(&skip, "skip", 0, "number of records to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of records (0 for all)")
	return cmd
}

func (cli *CLI) countCommand() *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "count <collection>",
		Short: "Count the records of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseQuery(query)
			if err != nil {
				return err
			}
			return cli.withStore(func(s *store.Store) error {
				n, err := s.Count(cmd.Context(), args[0], q)
				if err != nil {
					return err
				}
				return cli.print(cmd, map[string]any{"collection": args[0], "count": n})
			})
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "query document (JSON or YAML)")
	return cmd
}

func (cli *CLI) clearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <collection>",
		Short: "Remove every record of a collection, keeping its indexes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withStore(func(s *store.Store) error {
				n, err := s.Count(cmd.Context(), args[0], types.Query{})
				if err != nil {
					return err
				}
				if err := s.ClearCollection(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d records from %s\n", n, args[0])
				return nil
			})
		},
	}
}

func (cli *CLI) dropCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Remove every collection and index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("drop removes all data; pass --force to confirm")
			}
			return cli.withStore(func(s *store.Store) error {
				if err := s.DropDatabase(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Dropped all collections")
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "confirm dropping all data")
	return cmd
}

func (cli *CLI) indexCommand() *cobra.Command {
	var unique bool

	cmd := &cobra.Command{
		Use:   "index <collection> <field>",
		Short: "Create an index on a field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withStore(func(s *store.Store) error {
				err := s.CreateIndex(cmd.Context(), args[0], args[1], types.IndexOptions{Unique: unique})
				if err != nil {
					return err
				}
				kind := "index"
				if unique {
					kind = "unique index"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s on %s.%s\n", kind, args[0], args[1])
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&unique, "unique", false, "reject duplicate values")
	return cmd
}

func (cli *CLI) indexesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "indexes <collection>",
		Short: "List the indexes of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withStore(func(s *store.Store) error {
				defs, err := s.Indexes(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := make([]map[string]any, len(defs))
				for i, d := range defs {
					out[i] = map[string]any{"field": d.Field, "unique": d.Unique}
				}
				return cli.print(cmd, out)
			})
		},
	}
}

func (cli *CLI) collectionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List collections with their record counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withStore(func(s *store.Store) error {
				ctx := cmd.Context()
				names, err := s.Collections(ctx)
				if err != nil {
					return err
				}
				out := make([]map[string]any, 0, len(names))
				for _, name := range names {
					n, err := s.Count(ctx, name, types.Query{})
					if err != nil {
						return err
					}
					out = append(out, map[string]any{"collection": name, "count": n})
				}
				return cli.print(cmd, out)
			})
		},
	}
}
