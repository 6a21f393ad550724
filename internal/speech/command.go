package speech

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/yomu-app/koe/internal/voice"
)

// Flavor selects the command-line synthesiser.
type Flavor string

const (
	// FlavorEspeak drives espeak-ng (or classic espeak).
	FlavorEspeak Flavor = "espeak"

	// FlavorSay drives the macOS say command.
	FlavorSay Flavor = "say"
)

// Both synthesisers default to roughly this many words per minute.
const baseWPM = 175

// CommandEngine speaks through a synthesiser binary that plays audio
// itself. The text goes in on stdin so it never has to be quoted.
type CommandEngine struct {
	flavor Flavor
	binary string
}

// NewCommandEngine resolves the binary for flavor. binary overrides the
// default lookup when non-empty.
func NewCommandEngine(flavor Flavor, binary string) (*CommandEngine, error) {
	var candidates []string
	switch flavor {
	case FlavorEspeak:
		candidates = []string{binary, "espeak-ng", "espeak"}
	case FlavorSay:
		candidates = []string{binary, "say"}
	default:
		return nil, fmt.Errorf("unknown speech command flavor %q", flavor)
	}
	if binary != "" {
		candidates = candidates[:1]
	}

	path, err := lookPath(candidates...)
	if err != nil {
		return nil, err
	}
	return &CommandEngine{flavor: flavor, binary: path}, nil
}

func (e *CommandEngine) Name() string {
	return string(e.flavor)
}

// Binary returns the resolved synthesiser path.
func (e *CommandEngine) Binary() string {
	return e.binary
}

// Args returns the synthesiser arguments for opts.
func (e *CommandEngine) Args(opts Options) []string {
	wpm := clamp(int(math.Round(baseWPM*opts.rate())), 80, 450)

	switch e.flavor {
	case FlavorSay:
		args := []string{"-r", strconv.Itoa(wpm), "-f", "-"}
		if opts.Voice != nil && opts.Voice.Name != "" {
			args = append([]string{"-v", opts.Voice.Name}, args...)
		}
		return args
	default:
		// espeak picks voices by language; 50 is its neutral pitch.
		pitch := clamp(int(math.Round(50*opts.pitch())), 0, 99)
		args := []string{"-s", strconv.Itoa(wpm), "-p", strconv.Itoa(pitch), "--stdin"}
		if opts.Voice != nil && opts.Voice.Lang != "" {
			args = append([]string{"-v", opts.Voice.Lang}, args...)
		}
		return args
	}
}

func (e *CommandEngine) Speak(ctx context.Context, text string, opts Options) error {
	cmd := command(ctx, e.binary, e.Args(opts)...)
	cmd.Stdin = strings.NewReader(text)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %v, stderr: %s", ErrSynthesisFailed, e.flavor, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (e *CommandEngine) Voices(ctx context.Context) ([]voice.Descriptor, error) {
	var args []string
	switch e.flavor {
	case FlavorSay:
		args = []string{"-v", "?"}
	default:
		args = []string{"--voices"}
	}

	out, err := command(ctx, e.binary, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("list %s voices: %w", e.flavor, err)
	}

	if e.flavor == FlavorSay {
		return parseSayVoices(out), nil
	}
	return parseEspeakVoices(out), nil
}

func (e *CommandEngine) Close() error { return nil }

// parseEspeakVoices reads `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  ja              --/M      Japanese           jpx/ja
func parseEspeakVoices(out []byte) []voice.Descriptor {
	var voices []voice.Descriptor
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}
		voices = append(voices, voice.Descriptor{
			Name:    fields[3],
			Lang:    fields[1],
			IsLocal: true,
		})
	}
	return voices
}

// parseSayVoices reads `say -v ?`:
//
//	Kyoko               ja_JP    # こんにちは、私の名前はKyokoです。
func parseSayVoices(out []byte) []voice.Descriptor {
	var voices []voice.Descriptor
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		cut := strings.LastIndexAny(line, " \t")
		if cut < 0 {
			continue
		}
		name := strings.TrimSpace(line[:cut])
		lang := line[cut+1:]
		if name == "" || lang == "" {
			continue
		}
		voices = append(voices, voice.Descriptor{Name: name, Lang: lang, IsLocal: true})
	}
	return voices
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
