package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawler/internal/config"
	"github.com/nao1215/sitecrawler/internal/database"
	"github.com/nao1215/sitecrawler/internal/model"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [domain]",
		Short: "Show stored crawl history",
		Long: `History reads the results database written by 'sitecrawler crawl'.

Without arguments it lists every crawled domain with the status bucket
it is in now, followed by the success rate over all runs. With a domain
it lists that domain's dated entries, marking the days its content
changed.

Examples:
  # List all domains
  sitecrawler history

  # List only domains whose last crawl failed
  sitecrawler history --status fail

  # Show the dated history of one domain
  sitecrawler history example.com

  # List every stored crawl of a root URL
  sitecrawler history --root https://example.com/

  # Print the text collected by the latest crawl of a root
  sitecrawler history --text https://example.com/`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("status", "s", "", "Only list domains in this status bucket")
	cmd.Flags().String("root", "", "List every stored crawl of this root URL")
	cmd.Flags().String("text", "", "Print the text of the latest crawl of this root URL")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the results database")
	cmd.Flags().BoolP("json", "j", false, "Output JSON")

	return cmd
}

// historyOptions are the parsed history flags.
type historyOptions struct {
	status  model.Status
	root    string
	text    string
	dbDir   string
	jsonOut bool
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	r := &flagReader{flags: cmd.Flags()}
	opts := historyOptions{
		status:  model.Status(r.String("status")),
		root:    r.String("root"),
		text:    r.String("text"),
		dbDir:   r.String("db-dir"),
		jsonOut: r.Bool("json"),
	}
	if r.err != nil {
		return r.err
	}
	if opts.status != "" && !opts.status.Valid() {
		return fmt.Errorf("unknown status %q (want one of %s)", opts.status, statusNames())
	}

	// history only reads; a missing database is an error, not created.
	db, err := database.Open(opts.dbDir, database.Options{EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case opts.text != "":
		return showText(ctx, out, db, opts.text)
	case opts.root != "":
		return listRootCrawls(ctx, out, db, opts.root, opts.jsonOut)
	case len(args) == 1:
		return listSiteHistory(ctx, out, db, args[0], opts.jsonOut)
	default:
		return listDomains(ctx, out, db, opts.status, opts.jsonOut)
	}
}

func statusNames() string {
	names := make([]string, len(model.Statuses))
	for i, s := range model.Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// listDomains prints every domain with its current status and the
// success rate.
func listDomains(ctx context.Context, out io.Writer, db *database.CrawlDB, status model.Status, jsonOut bool) error {
	domains, err := db.ListDomains(ctx, status)
	if err != nil {
		return err
	}
	rate, err := db.SuccessRate(ctx)
	if err != nil {
		return err
	}

	if jsonOut {
		return writeJSON(out, struct {
			Domains     []database.DomainStatus `json:"domains"`
			SuccessRate model.SuccessRate       `json:"success_rate"`
		}{Domains: domains, SuccessRate: rate})
	}

	if len(domains) == 0 {
		fmt.Fprintln(out, "No crawled domains found in the database.")
		fmt.Fprintln(out, "\nUse 'sitecrawler crawl <url>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(out, "Crawled domains (%d):\n\n", len(domains))
	fmt.Fprintf(out, "  %-40s  %-10s  %s\n", "Domain", "Status", "Date")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 64))
	for _, d := range domains {
		fmt.Fprintf(out, "  %-40s  %-10s  %s\n", truncate(d.Domain, 40), d.Status, d.Date)
	}
	fmt.Fprintf(out, "\nSuccess rate: %.1f%% (success %d, fail %d, bad sites %d)\n",
		rate.Rate()*100, rate.Success, rate.Fail, rate.BadSite)
	fmt.Fprintln(out, "\nUse 'sitecrawler history <domain>' to see the history of a domain.")
	return nil
}

// listSiteHistory prints the dated entries of domain.
func listSiteHistory(ctx context.Context, out io.Writer, db *database.CrawlDB, domain string, jsonOut bool) error {
	entries, err := db.SiteHistory(ctx, domain)
	if err != nil {
		return err
	}

	if jsonOut {
		return writeJSON(out, entries)
	}

	if len(entries) == 0 {
		fmt.Fprintf(out, "No history found for %s\n", domain)
		return nil
	}

	fmt.Fprintf(out, "History for %s (%d entries):\n\n", domain, len(entries))
	fmt.Fprintf(out, "  %-10s  %-10s  %7s  %8s  %4s  %s\n", "Date", "Status", "Pages", "Words", "Code", "Changed")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))
	for _, e := range entries {
		changed := ""
		if e.Changed {
			changed = "yes"
		}
		code := "-"
		if e.ResponseCode != 0 {
			code = strconv.Itoa(e.ResponseCode)
		}
		fmt.Fprintf(out, "  %-10s  %-10s  %7d  %8d  %4s  %s\n",
			e.Date, e.Status, e.PagesVisited, e.TotalWords, code, changed)
	}
	return nil
}

// listRootCrawls prints every stored crawl of root.
func listRootCrawls(ctx context.Context, out io.Writer, db *database.CrawlDB, root string, jsonOut bool) error {
	crawls, err := db.ListCrawlResults(ctx, root)
	if err != nil {
		return err
	}

	if jsonOut {
		return writeJSON(out, crawls)
	}

	if len(crawls) == 0 {
		fmt.Fprintf(out, "No crawls found for %s\n", root)
		return nil
	}

	fmt.Fprintf(out, "Crawls of %s (%d):\n\n", root, len(crawls))
	fmt.Fprintf(out, "  %-6s  %-19s  %7s  %8s  %s\n", "ID", "Time", "Pages", "Words", "Timed out")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))
	for _, c := range crawls {
		timedOut := ""
		if c.TimedOut {
			timedOut = "yes"
		}
		fmt.Fprintf(out, "  %-6d  %-19s  %7d  %8d  %s\n",
			c.ID, c.Timestamp.Format("2006-01-02 15:04:05"), c.PagesVisited, c.TotalWords, timedOut)
	}
	return nil
}

// showText prints the text collected by the latest crawl of root.
func showText(ctx context.Context, out io.Writer, db *database.CrawlDB, root string) error {
	result, err := db.GetCrawlResult(ctx, root)
	if err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("no crawl stored for %s", root)
	}
	_, err = fmt.Fprintln(out, result.Text())
	return err
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
