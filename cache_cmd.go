package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/yomu-app/koe/internal/cache"
)

var clearYes bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the audio cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many clips are cached and their size",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, release, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer release()

		stats, err := a.CacheStats()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), formatStats(stats, cfg.Cache.Dir))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached clip",
	Long:  paragraph(fmt.Sprintf("\n%s every cached clip. This cannot be undone; you are asked to confirm unless --yes is given.", keyword("Delete"))),
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, release, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer release()

		if !clearYes {
			stats, err := a.CacheStats()
			if err != nil {
				return err
			}
			if stats.EntryCount == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Cache is already empty.")
				return nil
			}
			if !term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec
				return errors.New("refusing to clear the cache without a terminal: pass --yes")
			}
			prompt := fmt.Sprintf("Delete %d clips (%s)? [y/N] ", stats.EntryCount, humanize.IBytes(uint64(stats.TotalSizeBytes))) //nolint:gosec
			if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
		}

		if err := a.ClearCache(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
		return nil
	},
}

func formatStats(s cache.Stats, dir string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", keyword("clips"), humanize.Comma(int64(s.EntryCount)))
	fmt.Fprintf(&b, "%s  %s\n", keyword("size"), humanize.IBytes(uint64(s.TotalSizeBytes))) //nolint:gosec
	fmt.Fprintf(&b, "%s   %s", keyword("dir"), faint(dir))
	return b.String()
}

// confirm asks a yes/no question; anything but y or yes is no.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func init() {
	cacheClearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "do not ask for confirmation")
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
}
