package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/yomu-app/koe/ui"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Browse and hear the kana in an interactive board",
	Long:  paragraph(fmt.Sprintf("\nOpen the %s. Moving the cursor plays each kana; enter replays, s stops, X clears the cache.", keyword("kana board"))),
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Log lines would tear the board; keep only file logging.
		if cfg.Log.File == "" {
			log.SetOutput(io.Discard)
		}

		a, release, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer release()

		if _, err := ui.NewProgram(a).Run(); err != nil {
			return fmt.Errorf("unable to run tui program: %w", err)
		}
		return nil
	},
}
