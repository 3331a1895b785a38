package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	catalogpage "packtrack/frontend/catalog"
	"packtrack/infrastructure/catalog"
)

func newImportLabelsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import-labels <file.csv>",
		Short: "Import printed labels from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open labels: %w", err)
			}
			defer f.Close()
			summary, err := catalogpage.ImportLabelsCSV(cmd.Context(), app.DB, app.Audit, ctx.actor(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d inserted, %d updated, %d errors\n", summary.Inserted, summary.Updated, summary.Errors)
			return nil
		},
	}
}

func newPackersCommand(ctx *commandContext) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "packers",
		Short: "List packers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			packers, err := app.Catalog.Packers(cmd.Context(), role)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(packers))
			for _, p := range packers {
				rows = append(rows, []string{strconv.FormatInt(p.ID, 10), p.Name, p.Role})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(), []string{"ID", "Name", "Role"}, rows, []columnAlignment{alignRight}))
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "Only list packers with this role")

	var addRole string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a packer or change its role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			p, err := app.Catalog.AddPacker(cmd.Context(), args[0], addRole, ctx.actor())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", p.Name, p.Role)
			return nil
		},
	}
	add.Flags().StringVar(&addRole, "role", catalog.RoleEncargado, "Packer role")
	cmd.AddCommand(add)
	return cmd
}
