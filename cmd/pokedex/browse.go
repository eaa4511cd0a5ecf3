package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/pokeapi-browser/pkg/browse"
	"github.com/Sternrassler/pokeapi-browser/pkg/catalog"
	"github.com/Sternrassler/pokeapi-browser/pkg/history"
)

var browseSelect int

var browseCmd = &cobra.Command{
	Use:   "browse [query]",
	Short: "Load the catalog and show one page",
	Long: `Load the catalog, apply a query string and print the resulting page.
The applied query is recorded in the history.

Query parameters: search, types, generations, abilities, stats
(e.g. hp:50-100,speed:80-255), sortField, sortDirection, page, itemsPerPage.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		return runShow(cmd.Context(), query, true)
	},
}

var backCmd = &cobra.Command{
	Use:   "back",
	Short: "Show the previous query in the history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistoryMove(cmd.Context(), (*history.Store).Back, "Already at the oldest entry")
	},
}

var forwardCmd = &cobra.Command{
	Use:   "forward",
	Short: "Show the next query in the history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistoryMove(cmd.Context(), (*history.Store).Forward, "Already at the newest entry")
	},
}

func init() {
	browseCmd.Flags().IntVar(&browseSelect, "select", 0, "Show details for the Pokemon with this id")
}

func runShow(ctx context.Context, query string, record bool) error {
	a, err := newAppWithHistory(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return show(ctx, os.Stdout, a, query, record)
}

func runHistoryMove(ctx context.Context, move func(*history.Store) (history.Entry, error), edge string) error {
	a, err := newAppWithHistory(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	entry, err := move(a.history)
	if errors.Is(err, history.ErrNoEntry) {
		fmt.Println(edge)
		return nil
	}
	if err != nil {
		return err
	}
	return show(ctx, os.Stdout, a, entry.Query, false)
}

// show loads the catalog, applies query and renders the page to w. When
// record is set the canonical query is pushed to the history.
func show(ctx context.Context, w io.Writer, a *app, query string, record bool) error {
	if err := a.session.Load(ctx); err != nil {
		return err
	}
	a.session.Navigate(query)

	if record && a.history != nil {
		if err := a.history.Push(a.session.Query()); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to record history")
		}
	}

	view, err := a.session.View(ctx)
	if err != nil {
		return err
	}
	renderPage(w, view)

	if browseSelect > 0 {
		item, err := a.session.Select(browseSelect)
		if err != nil {
			return err
		}
		renderDetail(w, item)
	}
	return nil
}

var statAbbrev = [catalog.NumStats]string{"HP", "Atk", "Def", "SpA", "SpD", "Spe"}

func renderPage(w io.Writer, view browse.PageView) {
	bold := color.New(color.Bold)
	faint := color.New(color.Faint)
	cyan := color.New(color.FgCyan)
	red := color.New(color.FgRed)

	bold.Fprintf(w, "Page %d/%d", view.Page, view.TotalPages)
	fmt.Fprintf(w, "  (%d matching)", view.TotalItems)
	if view.Query != "" {
		faint.Fprintf(w, "  ?%s", view.Query)
	}
	fmt.Fprintln(w)

	if view.Error != "" {
		red.Fprintf(w, "error: %s\n", view.Error)
	}
	if len(view.Items) == 0 {
		faint.Fprintln(w, "No Pokemon match these filters")
		return
	}

	for _, item := range view.Items {
		cyan.Fprintf(w, "#%04d ", item.ID)
		fmt.Fprintf(w, "%-16s %-18s", item.Name, strings.Join(item.Types, "/"))
		for stat, value := range item.Stats {
			faint.Fprintf(w, " %s", statAbbrev[stat])
			fmt.Fprintf(w, " %3d", value)
		}
		fmt.Fprintln(w)
	}
}

func renderDetail(w io.Writer, item catalog.Item) {
	fmt.Fprintln(w)
	color.New(color.Bold, color.FgYellow).Fprintf(w, "#%04d %s\n", item.ID, item.Name)
	fmt.Fprintf(w, "  Types:     %s\n", strings.Join(item.Types, ", "))
	fmt.Fprintf(w, "  Abilities: %s\n", strings.Join(item.Abilities, ", "))
	for _, stat := range catalog.AllStats() {
		fmt.Fprintf(w, "  %-16s %3d\n", stat.String()+":", item.Stats[stat])
	}
}
