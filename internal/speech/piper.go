package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/yomu-app/koe/internal/audio"
	"github.com/yomu-app/koe/internal/voice"
)

const (
	modelExt  = ".onnx"
	configExt = ".onnx.json"

	// Sanity bound on raw PCM for one utterance (~2 minutes at 22 kHz).
	maxPiperOutput = 10 * 1024 * 1024
)

// PiperConfig holds configuration for the Piper engine.
type PiperConfig struct {
	Binary   string // defaults to "piper" on PATH
	ModelDir string // directory of *.onnx voices with *.onnx.json configs
	Player   audio.AudioPlayer
	Logger   *log.Logger
}

type piperModel struct {
	name       string
	modelPath  string
	configPath string
	lang       string
	sampleRate int
}

// piperModelConfig is the subset of a Piper voice config we read.
type piperModelConfig struct {
	Language struct {
		Code string `json:"code"`
	} `json:"language"`
	Audio struct {
		SampleRate int `json:"sample_rate"`
	} `json:"audio"`
	Espeak struct {
		Voice string `json:"voice"`
	} `json:"espeak"`
}

// PiperEngine speaks with local Piper neural voices. The model directory is
// watched, so installing or removing a voice updates the voice list and
// emits a change event without a restart.
type PiperEngine struct {
	binary   string
	modelDir string
	player   audio.AudioPlayer
	logger   *log.Logger

	mu     sync.RWMutex
	models []piperModel

	changes chan struct{}

	watcher *fsnotify.Watcher
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewPiperEngine creates the engine and scans the model directory.
func NewPiperEngine(config PiperConfig) (*PiperEngine, error) {
	if config.Player == nil {
		return nil, errors.New("piper engine needs an audio player")
	}
	if config.ModelDir == "" {
		return nil, fmt.Errorf("%w: no piper model directory configured", ErrSynthesisUnavailable)
	}
	if st, err := os.Stat(config.ModelDir); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("%w: piper model directory %s not found", ErrSynthesisUnavailable, config.ModelDir)
	}

	binary, err := lookPath(defaultString(config.Binary, "piper"))
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("piper")
	}

	e := &PiperEngine{
		binary:   binary,
		modelDir: config.ModelDir,
		player:   config.Player,
		logger:   logger,
		changes:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	e.rescan()
	return e, nil
}

func (e *PiperEngine) Name() string { return "piper" }

func (e *PiperEngine) Voices(context.Context) ([]voice.Descriptor, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]voice.Descriptor, len(e.models))
	for i, m := range e.models {
		out[i] = voice.Descriptor{Name: m.name, Lang: m.lang, IsLocal: true}
	}
	return out, nil
}

// Changes fires after the model directory changed.
func (e *PiperEngine) Changes() <-chan struct{} {
	return e.changes
}

// Watch starts watching the model directory.
func (e *PiperEngine) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := w.Add(e.modelDir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", e.modelDir, err)
	}

	e.watcher = w
	e.wg.Add(1)
	go e.watchLoop()

	e.logger.Debug("fsnotify watching dir", "dir", e.modelDir)
	return nil
}

func (e *PiperEngine) watchLoop() {
	defer e.wg.Done()

	for {
		select {
		case <-e.stop:
			return
		case event, ok := <-e.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, modelExt) && !strings.HasSuffix(event.Name, configExt) {
				continue
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			e.logger.Debug("fsnotify event", "file", event.Name, "event", event.Op)
			e.rescan()
			e.notify()
		case err, ok := <-e.watcher.Errors:
			if !ok {
				return
			}
			e.logger.Debug("fsnotify error", "dir", e.modelDir, "error", err)
		}
	}
}

func (e *PiperEngine) notify() {
	select {
	case e.changes <- struct{}{}:
	default:
	}
}

// rescan rebuilds the model list. Models without a readable config are
// skipped: piper cannot load them either.
func (e *PiperEngine) rescan() {
	paths, _ := filepath.Glob(filepath.Join(e.modelDir, "*"+modelExt))
	sort.Strings(paths)

	models := make([]piperModel, 0, len(paths))
	for _, p := range paths {
		m, err := loadPiperModel(p)
		if err != nil {
			e.logger.Debug("skipping piper model", "model", p, "error", err)
			continue
		}
		models = append(models, m)
	}

	e.mu.Lock()
	e.models = models
	e.mu.Unlock()
}

func loadPiperModel(modelPath string) (piperModel, error) {
	configPath := modelPath + ".json"
	data, err := os.ReadFile(configPath)
	if err != nil {
		return piperModel{}, err
	}

	var cfg piperModelConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return piperModel{}, fmt.Errorf("parse %s: %w", configPath, err)
	}

	lang := cfg.Language.Code
	if lang == "" {
		lang = cfg.Espeak.Voice
	}
	rate := cfg.Audio.SampleRate
	if rate == 0 {
		rate = 22050
	}

	return piperModel{
		name:       strings.TrimSuffix(filepath.Base(modelPath), modelExt),
		modelPath:  modelPath,
		configPath: configPath,
		lang:       lang,
		sampleRate: rate,
	}, nil
}

func (e *PiperEngine) model(opts Options) (piperModel, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.models) == 0 {
		return piperModel{}, fmt.Errorf("%w: no piper voices in %s", ErrSynthesisUnavailable, e.modelDir)
	}
	if opts.Voice != nil {
		for _, m := range e.models {
			if m.name == opts.Voice.Name {
				return m, nil
			}
		}
	}
	return e.models[0], nil
}

// args returns the piper arguments for model m.
func (e *PiperEngine) args(m piperModel, opts Options) []string {
	// length scale is inverse speed: 0.5x speed doubles the length
	lengthScale := 1.0 / opts.rate()
	return []string{
		"--model", m.modelPath,
		"--config", m.configPath,
		"--output-raw",
		"--length-scale", fmt.Sprintf("%.2f", lengthScale),
	}
}

// Speak synthesises text to raw PCM, then plays it.
func (e *PiperEngine) Speak(ctx context.Context, text string, opts Options) error {
	m, err := e.model(opts)
	if err != nil {
		return err
	}

	cmd := command(ctx, e.binary, e.args(m, opts)...)
	// Pre-configured stdin: piper reads the whole text before synthesising.
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: piper failed: %v, stderr: %s", ErrSynthesisFailed, err, strings.TrimSpace(stderr.String()))
	}

	pcm := stdout.Bytes()
	if len(pcm) == 0 {
		return fmt.Errorf("%w: piper produced no audio output, stderr: %s", ErrSynthesisFailed, strings.TrimSpace(stderr.String()))
	}
	if len(pcm) > maxPiperOutput {
		return fmt.Errorf("%w: piper output too large: %d bytes", ErrSynthesisFailed, len(pcm))
	}
	// Drop a trailing odd byte so the clip stays frame aligned.
	pcm = pcm[:len(pcm)&^1]

	clip := audio.Clip{
		Format: audio.Format{SampleRate: m.sampleRate, Channels: 1, BitDepth: 16},
		Data:   pcm,
	}
	return e.player.Play(ctx, clip)
}

// Close stops the directory watch.
func (e *PiperEngine) Close() error {
	select {
	case <-e.stop:
		return nil
	default:
		close(e.stop)
	}

	var err error
	if e.watcher != nil {
		err = e.watcher.Close()
	}
	e.wg.Wait()
	return err
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

var (
	_ Engine       = (*PiperEngine)(nil)
	_ voice.Source = (*PiperEngine)(nil)
	_ Engine       = (*CommandEngine)(nil)
	_ Engine       = None{}
)
