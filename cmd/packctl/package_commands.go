package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"packtrack/infrastructure/lifecycle"
	"packtrack/models"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied to %s\n", app.Config.SQLitePath)
			return nil
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "status <code>...",
		Aliases: []string{"lookup"},
		Short:   "Show the lifecycle status of packages",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(args))
			for _, code := range args {
				st, rec, err := app.Machine.Status(cmd.Context(), code)
				if err != nil {
					return err
				}
				rows = append(rows, recordRow(code, st, rec))
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(), recordHeaders, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}))
			return nil
		},
	}
}

func newAssignCommand(ctx *commandContext) *cobra.Command {
	var packer string
	cmd := &cobra.Command{
		Use:   "assign <code>",
		Short: "Assign a printed package to a packer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			label, found, err := app.Catalog.Label(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("code %s was not found in the printed labels", args[0])
			}
			rec, err := app.Machine.Assign(cmd.Context(), lifecycle.Assignment{
				Code:   label.Code,
				Packer: packer,
				Metadata: lifecycle.Metadata{
					Product:       label.Product,
					SKU:           label.SKU,
					Quantity:      label.Quantity,
					Organization:  label.Organization,
					SaleReference: label.SaleReference,
				},
			}, ctx.actor())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s assigned to %s\n", rec.Code, rec.AssignedTo)
			return nil
		},
	}
	cmd.Flags().StringVar(&packer, "packer", "", "Packer receiving the package")
	return cmd
}

func newReportCommand(ctx *commandContext) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "report <code>",
		Short: "Report a problem with an assigned or qualified package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			rec, err := app.Machine.Report(cmd.Context(), args[0], reason, ctx.actor())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s reported: %s\n", rec.Code, rec.Report())
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Report reason")
	return cmd
}

// newBatchCommand builds the qualify and deliver bulk commands.
func newBatchCommand(ctx *commandContext, verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <code>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			apply := app.Machine.QualifyBatch
			if verb == "deliver" {
				apply = app.Machine.DeliverBatch
			}
			res, err := apply(cmd.Context(), args, ctx.actor())
			if err != nil {
				return err
			}
			rows := batchRows(res)
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(), []string{"Code", "Result", "Detail"}, rows, nil))
			if len(res.Failed) > 0 {
				return errors.New(pluralize(len(res.Failed), "code was", "codes were") + " not updated")
			}
			return nil
		},
	}
}

func newProgressCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Count packages per packer and status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			p, err := app.Machine.Progress(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(p.ByPacker)+1)
			for _, row := range append(p.ByPacker, p.Totals) {
				rows = append(rows, []string{
					row.Packer,
					strconv.FormatInt(row.Assigned, 10),
					strconv.FormatInt(row.Qualified, 10),
					strconv.FormatInt(row.Reported, 10),
					strconv.FormatInt(row.Delivered, 10),
					strconv.FormatInt(row.Total, 10),
				})
			}
			aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(), []string{"Packer", "Assigned", "Qualified", "Reported", "Delivered", "Total"}, rows, aligns))
			return nil
		},
	}
}

var recordHeaders = []string{"Code", "Status", "Packer", "Product", "Qty", "Report"}

func recordRow(code string, st lifecycle.Status, rec models.PackageRecord) []string {
	if st == lifecycle.StatusUnassigned {
		return []string{code, string(st), "", "", "", ""}
	}
	return []string{rec.Code, string(st), rec.AssignedTo, rec.Product, strconv.FormatInt(rec.Quantity, 10), rec.Report()}
}

func batchRows(res lifecycle.BatchResult) [][]string {
	rows := make([][]string, 0, len(res.Updated)+len(res.Failed))
	for _, code := range res.Updated {
		rows = append(rows, []string{code, "updated", ""})
	}
	for _, f := range res.SortedFailures() {
		rows = append(rows, []string{f.Code, "failed", f.Error()})
	}
	return rows
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}
