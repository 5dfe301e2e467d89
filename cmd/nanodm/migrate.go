package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/nanodm/nanodm/migration"
	"github.com/arthur-debert/nanodm/nanodm/store"
)

func (cli *CLI) migrateCommand() *cobra.Command {
	var (
		dryRun  bool
		verbose bool
	)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Field migrations over the records of a collection",
		Long: `Rename, remove, add or transform a field on every record of a collection.

Examples:
  nanodm migrate rename books writer author --dry-run
  nanodm migrate add books tags '[]'
  nanodm migrate transform books year toNumber`,
	}
	migrateCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "preview changes without applying them")
	migrateCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show detailed output")

	run := func(cmd *cobra.Command, collection string, command migration.Command) error {
		return cli.withStore(func(s *store.Store) error {
			runner := migration.NewRunner(s, migration.WithLogger(cli.logger))
			result, err := runner.Run(cmd.Context(), collection, command, migration.Options{DryRun: dryRun})
			if result != nil {
				printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), result, verbose, dryRun)
			}
			if err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("migration failed (code %d)", result.Code)
			}
			return nil
		})
	}

	var overwrite bool
	addCmd := &cobra.Command{
		Use:   "add <collection> <field> <value>",
		Short: "Set a field on every record that lacks it",
		Long: `Set a field on every record that lacks it. The value is parsed as YAML,
so 42, true, "text" and [] keep their types.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value any
			if err := yaml.Unmarshal([]byte(args[2]), &value); err != nil {
				return fmt.Errorf("invalid value: %w", err)
			}
			return run(cmd, args[0], &migration.AddField{
				FieldName:    args[1],
				DefaultValue: value,
				Overwrite:    overwrite,
			})
		},
	}
	addCmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace existing values too")

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "rename <collection> <old-name> <new-name>",
			Short: "Rename a field",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, args[0], &migration.RenameField{OldName: args[1], NewName: args[2]})
			},
		},
		&cobra.Command{
			Use:   "remove <collection> <field>",
			Short: "Remove a field",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, args[0], &migration.RemoveField{FieldName: args[1]})
			},
		},
		addCmd,
		&cobra.Command{
			Use:   "transform <collection> <field> <transformer>",
			Short: "Convert the values of a field",
			Long:  fmt.Sprintf("Convert the values of a field. Transformers: %v", migration.TransformerNames()),
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, args[0], &migration.TransformField{FieldName: args[1], TransformerName: args[2]})
			},
		},
	)
	return migrateCmd
}

// printResult writes the migration messages and a summary
func printResult(out, errOut io.Writer, result *migration.Result, verbose, dryRun bool) {
	for _, msg := range result.Messages {
		switch msg.Level {
		case migration.LevelError:
			fmt.Fprintf(errOut, "ERROR: %s\n", msg.Text)
		case migration.LevelWarning:
			fmt.Fprintf(errOut, "WARN: %s\n", msg.Text)
		case migration.LevelInfo:
			fmt.Fprintln(out, msg.Text)
		case migration.LevelDebug:
			if verbose {
				fmt.Fprintf(out, "DEBUG: %s\n", msg.Text)
			}
		}
		if verbose {
			for k, v := range msg.Details {
				fmt.Fprintf(out, "  %s: %v\n", k, v)
			}
		}
	}

	fmt.Fprintln(out)
	if !result.Success {
		fmt.Fprintln(out, "Migration failed")
		return
	}
	fmt.Fprintln(out, "Migration completed successfully")
	if result.Stats.TotalDocs > 0 {
		fmt.Fprintf(out, "  Modified: %d/%d records\n", result.Stats.ModifiedDocs, result.Stats.TotalDocs)
		if verbose {
			fmt.Fprintf(out, "  Duration: %v\n", result.Stats.Duration)
		}
	}
	if dryRun {
		fmt.Fprintln(out, "  (DRY RUN - no changes applied)")
	}
}
