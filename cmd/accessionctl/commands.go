package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/accession-studio/engine/internal/app"
	"github.com/accession-studio/engine/internal/models"
	"github.com/accession-studio/engine/pkg/database"
)

type builder func(ctx context.Context) (*app.App, error)

func newRootCmd(build builder) *cobra.Command {
	root := &cobra.Command{
		Use:           "accessionctl",
		Short:         "Assign and administer accessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		submitCmd(build),
		getCmd(build),
		historyCmd(build),
		patchCmd(build),
		deprecateCmd(build),
		mergeCmd(build),
		migrateCmd(build),
	)
	return root
}

// withApp builds the stack, runs fn and releases it.
func withApp(cmd *cobra.Command, build builder, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := build(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readInput reads path, or stdin when path is "-" or empty.
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func submitCmd(build builder) *cobra.Command {
	var file string
	var lookupOnly bool
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Get or create accessions for a JSON array of documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			var docs []models.Document
			if err := json.Unmarshal(raw, &docs); err != nil {
				return fmt.Errorf("documents must be a JSON array of objects: %w", err)
			}
			return withApp(cmd, build, func(ctx context.Context, a *app.App) error {
				get := a.Accessioning.GetOrCreateAccessions
				if lookupOnly {
					get = a.Accessioning.GetAccessions
				}
				res, err := get(ctx, docs)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "documents file, - for stdin")
	cmd.Flags().BoolVar(&lookupOnly, "lookup", false, "only look documents up, never create")
	return cmd
}

func getCmd(build builder) *cobra.Command {
	return &cobra.Command{
		Use:   "get ACCESSION...",
		Short: "Show the active version of accessions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, build, func(ctx context.Context, a *app.App) error {
				res, err := a.Accessioning.GetByAccessions(ctx, args)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

func historyCmd(build builder) *cobra.Command {
	var version int
	var status bool
	cmd := &cobra.Command{
		Use:   "history ACCESSION",
		Short: "Show every version of an accession, one version, or its lifecycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, build, func(ctx context.Context, a *app.App) error {
				var out any
				var err error
				switch {
				case status:
					out, err = a.Database.FindLifecycle(ctx, args[0])
				case version > 0:
					out, err = a.Database.FindAccessionVersion(ctx, args[0], version)
				default:
					out, err = a.Database.FindAccession(ctx, args[0])
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().IntVar(&version, "version", 0, "show a single version")
	cmd.Flags().BoolVar(&status, "status", false, "show lifecycle state instead of versions")
	return cmd
}

func patchCmd(build builder) *cobra.Command {
	var file string
	var version int
	cmd := &cobra.Command{
		Use:   "patch ACCESSION",
		Short: "Append a version to an accession, or rewrite one with --version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			var doc models.Document
			if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
				return fmt.Errorf("document must be a JSON object")
			}
			return withApp(cmd, build, func(ctx context.Context, a *app.App) error {
				if version > 0 {
					out, err := a.Accessioning.Update(ctx, args[0], version, doc)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), out)
				}
				out, err := a.Accessioning.Patch(ctx, args[0], doc)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "document file, - for stdin")
	cmd.Flags().IntVar(&version, "version", 0, "rewrite this version in place")
	return cmd
}

func deprecateCmd(build builder) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "deprecate ACCESSION",
		Short: "Retire an accession",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, build, func(ctx context.Context, a *app.App) error {
				if err := a.Accessioning.Deprecate(ctx, args[0], reason); err != nil {
					return err
				}
				lc, err := a.Database.FindLifecycle(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), lc)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the accession is retired")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func mergeCmd(build builder) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "merge SOURCE TARGET",
		Short: "Merge SOURCE into the canonical TARGET",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, build, func(ctx context.Context, a *app.App) error {
				if err := a.Accessioning.Merge(ctx, args[0], args[1], reason); err != nil {
					return err
				}
				lc, err := a.Database.FindLifecycle(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), lc)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the accessions are merged")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func migrateCmd(build builder) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the accession tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, build, func(ctx context.Context, a *app.App) error {
				if err := database.Migrate(a.DB); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "migrations completed")
				return err
			})
		},
	}
}
