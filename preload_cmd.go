package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yomu-app/koe/internal/assets"
)

var preloadAllKana bool

var preloadCmd = &cobra.Command{
	Use:   "preload [TOKEN...]",
	Short: "Store kana clips in the cache for offline use",
	Long: paragraph(fmt.Sprintf("\n%s the bundled clips for the given kana tokens, or the whole alphabet with --all-kana. Clips already cached are skipped.",
		keyword("Preload"))),
	Example: paragraph("koe preload --all-kana\nkoe preload ka ki ku ke ko"),
	RunE: func(cmd *cobra.Command, args []string) error {
		texts := args
		if preloadAllKana {
			texts = assets.Alphabet()
		}
		if len(texts) == 0 {
			return fmt.Errorf("give kana tokens or use --all-kana")
		}

		a, release, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer release()

		report, err := a.Preload(cmd.Context(), texts)
		for _, f := range report.Failures {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %v\n", warning("✗"), f.Text, f.Err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.String())
		return err
	},
}

func init() {
	preloadCmd.Flags().BoolVar(&preloadAllKana, "all-kana", false, "preload every kana in the alphabet")
}
