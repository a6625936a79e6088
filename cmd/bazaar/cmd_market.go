package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bookbazaar/bazaar/internal/market"
	"github.com/bookbazaar/bazaar/pkg/domain"
)

var (
	listQuery    string
	listCategory string
)

func registerMarketCommands(root *cobra.Command) {
	listingsCmd := &cobra.Command{
		Use:   "listings",
		Short: "List books on the market, newest first",
		Long: `Lists every book on the market. --query matches title or author
(case-insensitive); --category narrows to one category.`,
		Args: cobra.NoArgs,
		RunE: runListings,
	}
	listingsCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Filter by title or author")
	listingsCmd.Flags().StringVarP(&listCategory, "category", "c", domain.CategoryAll,
		"Filter by category ("+strings.Join(domain.Categories, ", ")+")")

	outboxCmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect or replay queued seller notifications",
	}
	outboxCmd.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Deliver queued seller notifications now",
		Args:  cobra.NoArgs,
		RunE:  runOutboxFlush,
	})
	outboxCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show how many of your notifications are queued",
		Args:  cobra.NoArgs,
		RunE:  runOutboxStatus,
	})

	root.AddCommand(listingsCmd, outboxCmd)
}

func runListings(cmd *cobra.Command, args []string) error {
	if listCategory != "" && !strings.EqualFold(listCategory, domain.CategoryAll) && !domain.ValidCategory(listCategory) {
		return fmt.Errorf("%w: %q", domain.ErrUnknownCategory, listCategory)
	}
	svc, err := newServices()
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck

	listings, err := svc.market.Browse(cmdContext(cmd), listQuery, listCategory)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(listings) == 0 {
		fmt.Fprintln(out, "No books match.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TITLE\tAUTHOR\tCATEGORY\tCONDITION\tPRICE\tSELLER")
	for _, l := range listings {
		seller := l.SellerName()
		if seller == "" {
			seller = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", l.Title, l.Author, l.Category, l.Condition, l.PriceLabel(), seller)
	}
	return w.Flush()
}

func runOutboxFlush(cmd *cobra.Command, args []string) error {
	svc, err := newServices()
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck

	ctx := cmdContext(cmd)
	sess, err := svc.auth.Restore(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		return market.ErrNotAuthenticated
	}
	res, err := svc.market.FlushOutbox(ctx, sess)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Delivered %d, still queued %d\n", res.Delivered, res.Failed)
	return nil
}

func runOutboxStatus(cmd *cobra.Command, args []string) error {
	svc, err := newServices()
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck

	ctx := cmdContext(cmd)
	sess, err := svc.auth.Restore(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		return market.ErrNotAuthenticated
	}
	n, err := svc.market.PendingNotifications(ctx, sess)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d queued notification(s) for %s in %s\n", n, sess.User.DisplayName(), svc.outbox.Path())
	return nil
}
