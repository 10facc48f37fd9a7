package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"meddoc/internal/daemon"
	"meddoc/internal/daemonctl"
	"meddoc/internal/index"
	"meddoc/internal/search"
	"meddoc/internal/taxonomy"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over confirmed documents",
		Long: "Search confirmed documents by file name, vendor, model and summary.\n" +
			"A doc type keyword in the query (for example \"hd\", \"báo giá\", \"hdsd\") becomes a filter.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.Join(args, " ")
			resp, err := runSearch(cmd.Context(), ctx, raw, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			if resp.DocType != "" {
				fmt.Fprintf(out, "Doc type filter: %s\n", taxonomy.DocTypeLabel(resp.DocType))
			}
			if len(resp.Hits) == 0 {
				fmt.Fprintln(out, "No matches")
				return nil
			}
			root := ctx.configValue().Paths.WatchRoot
			rows := make([][]string, 0, len(resp.Hits))
			for _, hit := range resp.Hits {
				rows = append(rows, []string{
					strconv.FormatInt(hit.Record.ID, 10),
					taxonomy.DocTypeLabel(hit.Record.DocType),
					hit.Record.DeviceSlug,
					relativeTo(root, hit.Record.Path),
				})
			}
			fmt.Fprintln(out, renderTable([]tableColumn{
				numCol("ID"), col("Type"), col("Device"), pathCol("Path"),
			}, rows))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum hits")
	bindJSONFlag(cmd, &asJSON)
	return cmd
}

// runSearch asks the daemon first; the search index is single-writer, so it
// is only opened in-process when no daemon holds the instance lock.
func runSearch(ctx context.Context, cc *commandContext, raw string, limit int) (*daemon.SearchResponse, error) {
	cfg, err := cc.ensureConfig()
	if err != nil {
		return nil, err
	}
	if client := cc.client(); client != nil {
		resp, err := client.Search(ctx, raw, limit)
		if err == nil {
			return resp, nil
		}
		if !daemonctl.IsUnavailable(err) {
			return nil, err
		}
	}
	locked, err := daemonctl.DaemonLocked(cfg)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, errors.New("daemon is running but its API is unreachable; check paths.api_bind and paths.api_token")
	}

	idx, err := search.Open(cfg.SearchIndexPath())
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	defer idx.Close()

	docType, keyword := search.ParseQuery(raw)
	resp := &daemon.SearchResponse{Query: raw, DocType: docType, Keyword: keyword, Hits: []daemon.SearchHit{}}
	err = cc.withStore(func(store *index.Store) error {
		hits, err := idx.Search(ctx, raw, limit)
		if err != nil {
			return err
		}
		for _, hit := range hits {
			rec, err := store.GetByID(ctx, hit.RecordID)
			if err != nil {
				return err
			}
			if rec == nil || !rec.Confirmed {
				continue
			}
			resp.Hits = append(resp.Hits, daemon.SearchHit{Score: hit.Score, Record: *rec})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
