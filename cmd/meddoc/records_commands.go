package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"meddoc/internal/index"
	"meddoc/internal/logging"
	"meddoc/internal/taxonomy"
)

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	recordsCmd := &cobra.Command{
		Use:     "records",
		Aliases: []string{"r"},
		Short:   "Inspect and manage indexed documents",
	}
	recordsCmd.AddCommand(newRecordsListCommand(ctx))
	recordsCmd.AddCommand(newRecordsShowCommand(ctx))
	recordsCmd.AddCommand(newRecordsApproveCommand(ctx))
	recordsCmd.AddCommand(newRecordsEditCommand(ctx))
	recordsCmd.AddCommand(newRecordsDeleteCommand(ctx))
	recordsCmd.AddCommand(newRecordsStatsCommand(ctx))
	return recordsCmd
}

func newRecordsListCommand(ctx *commandContext) *cobra.Command {
	var (
		query     index.Query
		drafts    bool
		confirmed bool
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records",
		RunE: func(cmd *cobra.Command, args []string) error {
			if drafts && confirmed {
				return fmt.Errorf("--drafts and --confirmed are mutually exclusive")
			}
			if drafts || confirmed {
				value := confirmed
				query.Confirmed = &value
			}
			if query.DocType != "" {
				query.DocType = taxonomy.NormalizeDocType(query.DocType)
			}
			return ctx.withStore(func(store *index.Store) error {
				records, err := store.Search(cmd.Context(), query)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, records)
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No records")
					return nil
				}
				root := ctx.configValue().Paths.WatchRoot
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					rows = append(rows, []string{
						strconv.FormatInt(rec.ID, 10),
						stateLabel(rec),
						taxonomy.DocTypeLabel(rec.DocType),
						rec.DeviceSlug,
						fmt.Sprintf("%.2f", rec.Confidence),
						relativeTo(root, rec.Path),
					})
				}
				fmt.Fprintln(out, renderTable([]tableColumn{
					numCol("ID"), col("State"), col("Type"), col("Device"), numCol("Conf"), pathCol("Path"),
				}, rows))
				return nil
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&query.DocType, "doc-type", "", "Filter by doc type")
	flags.StringVar(&query.DeviceSlug, "device", "", "Filter by device slug")
	flags.StringVar(&query.Category, "category", "", "Filter by category slug")
	flags.StringVar(&query.Group, "group", "", "Filter by group slug")
	flags.StringVarP(&query.Keyword, "query", "q", "", "Match path or summary")
	flags.StringVar(&query.OrderBy, "order-by", "", "Order column (updated_at, created_at, confidence, size_bytes, path) with optional asc|desc")
	flags.IntVar(&query.Limit, "limit", 50, "Maximum rows (0 for all)")
	flags.BoolVar(&drafts, "drafts", false, "Only drafts awaiting approval")
	flags.BoolVar(&confirmed, "confirmed", false, "Only confirmed records")
	bindJSONFlag(cmd, &asJSON)
	return cmd
}

func newRecordsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *index.Store) error {
				rec, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if rec == nil {
					return fmt.Errorf("record %d not found", id)
				}
				if asJSON {
					return writeJSON(cmd, rec)
				}
				printRecord(cmd, ctx.configValue().Paths.WatchRoot, rec)
				return nil
			})
		},
	}
	bindJSONFlag(cmd, &asJSON)
	return cmd
}

func newRecordsApproveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id>...",
		Short: "Confirm drafts and move them into their device folders",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseRecordID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			root := ctx.configValue().Paths.WatchRoot
			return ctx.withRecordActions(cmd.Context(), func(actions recordActions) error {
				var failed int
				for _, id := range ids {
					rec, err := actions.Approve(cmd.Context(), id)
					if err != nil {
						failed++
						fmt.Fprintf(cmd.ErrOrStderr(), "record %d: %v\n", id, err)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Confirmed %d -> %s\n", rec.ID, relativeTo(root, rec.Path))
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d approvals failed", failed, len(ids))
				}
				return nil
			})
		},
	}
}

func newRecordsEditCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> <field> <value>",
		Short: "Edit a draft field (doc_type, vendor, model, category_slug, group_slug, summary)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			return ctx.withRecordActions(cmd.Context(), func(actions recordActions) error {
				rec, err := actions.Edit(cmd.Context(), id, args[1], args[2])
				if err != nil {
					return err
				}
				printRecord(cmd, ctx.configValue().Paths.WatchRoot, rec)
				return nil
			})
		},
	}
}

func newRecordsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a record from the index (the file is left in place)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *index.Store) error {
				rec, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if rec == nil {
					return fmt.Errorf("record %d not found", id)
				}
				removed, err := store.Delete(cmd.Context(), rec.Path)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("record %d not found", id)
				}
				if err := store.LogEvent(cmd.Context(), index.EventDeleted, rec.Path, "cli"); err != nil {
					ctx.log().Warn("audit log write failed", logging.Error(err))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted record %d (%s)\n", id, filepath.Base(rec.Path))
				return nil
			})
		},
	}
}

func newRecordsStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show record counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *index.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, stats)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderCounts("Records", [][]string{
					{"Total", strconv.Itoa(stats.Total)},
					{"Confirmed", strconv.Itoa(stats.Confirmed)},
					{"Drafts", strconv.Itoa(stats.Drafts)},
				}))
				if rows := docTypeRows(stats.ByDocType); len(rows) > 0 {
					fmt.Fprintln(out, renderCounts("Doc type", rows))
				}
				return nil
			})
		},
	}
	bindJSONFlag(cmd, &asJSON)
	return cmd
}

func printRecord(cmd *cobra.Command, root string, rec *index.Record) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %d\n", rec.ID)
	fmt.Fprintf(out, "State:       %s\n", stateLabel(*rec))
	fmt.Fprintf(out, "Path:        %s\n", relativeTo(root, rec.Path))
	fmt.Fprintf(out, "Doc type:    %s (%s)\n", taxonomy.DocTypeLabel(rec.DocType), rec.DocType)
	fmt.Fprintf(out, "Vendor:      %s\n", rec.Vendor)
	fmt.Fprintf(out, "Model:       %s\n", rec.Model)
	fmt.Fprintf(out, "Placement:   %s/%s\n", rec.CategorySlug, rec.GroupSlug)
	fmt.Fprintf(out, "Device:      %s\n", rec.DeviceSlug)
	fmt.Fprintf(out, "Confidence:  %.2f\n", rec.Confidence)
	if strings.TrimSpace(rec.Summary) != "" {
		fmt.Fprintf(out, "Summary:     %s\n", rec.Summary)
	}
	if rec.ConfirmedAt != nil {
		fmt.Fprintf(out, "Confirmed:   %s\n", rec.ConfirmedAt.Local().Format("2006-01-02 15:04"))
	}
}

func stateLabel(rec index.Record) string {
	if rec.Confirmed {
		return "confirmed"
	}
	return "draft"
}

func parseRecordID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid record id %q", raw)
	}
	return id, nil
}

func relativeTo(root, path string) string {
	if root == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
