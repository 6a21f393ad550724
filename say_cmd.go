package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var sayCmd = &cobra.Command{
	Use:   "say TEXT...",
	Short: "Play a kana token or a Japanese phrase",
	Long: paragraph(fmt.Sprintf("\n%s a kana romaji token (ka, shi, n) or any Japanese text. Cached audio plays first, then the bundled kana clip, then the device speech engine.",
		keyword("Say"))),
	Example: paragraph("koe say ka\nkoe say おはようございます"),
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := joinArgs(args)
		if text == "" {
			return errors.New("nothing to say")
		}

		a, release, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer release()

		a.Play(text)

		done := make(chan struct{})
		go func() {
			a.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-cmd.Context().Done():
			a.Stop()
			<-done
		}
		return nil
	},
}
