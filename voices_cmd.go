package main

import (
	"fmt"
	"io"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/yomu-app/koe/internal/voice"
)

var voicesFilter string

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List the speech engine's voices",
	Long:  paragraph(fmt.Sprintf("\nList the voices of the configured speech engine. The voice used for live synthesis is marked with %s.", keyword("*"))),
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, release, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer release()

		voices, err := a.Voices(cmd.Context())
		if err != nil {
			return err
		}
		best, ok := a.BestVoice(cmd.Context())
		if !ok {
			best = voice.Descriptor{}
		}

		printVoices(cmd.OutOrStdout(), filterVoices(voices, voicesFilter), best)
		return nil
	},
}

// filterVoices keeps voices whose name or language fuzzily matches q, best
// match first.
func filterVoices(voices []voice.Descriptor, q string) []voice.Descriptor {
	if q == "" {
		return voices
	}
	targets := make([]string, len(voices))
	for i, v := range voices {
		targets[i] = v.Name + " " + v.Lang
	}

	matches := fuzzy.Find(q, targets)
	out := make([]voice.Descriptor, 0, len(matches))
	for _, m := range matches {
		out = append(out, voices[m.Index])
	}
	return out
}

func printVoices(w io.Writer, voices []voice.Descriptor, best voice.Descriptor) {
	if len(voices) == 0 {
		fmt.Fprintln(w, faint("no voices"))
		return
	}
	for _, v := range voices {
		mark := " "
		if v == best {
			mark = keyword("*")
		}
		where := "local"
		if !v.IsLocal {
			where = "network"
		}
		fmt.Fprintf(w, "%s %-32s %-8s %s\n", mark, v.Name, v.Lang, faint(where))
	}
}

func init() {
	voicesCmd.Flags().StringVarP(&voicesFilter, "filter", "f", "", "fuzzy filter on voice name and language")
}
