package playback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yomu-app/koe/internal/assets"
	"github.com/yomu-app/koe/internal/audio"
	"github.com/yomu-app/koe/internal/cache"
	"github.com/yomu-app/koe/internal/speech"
	"github.com/yomu-app/koe/internal/voice"
)

func TestChain_CacheHit(t *testing.T) {
	r := newRig(t)
	if err := r.store.Put("ねこ", wavBlob(10*time.Millisecond)); err != nil {
		t.Fatal(err)
	}

	res, err := r.chain.Resolve(context.Background(), "ねこ")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Source != "cache" || res.Stage != 0 {
		t.Errorf("resolved from %s (%d), want cache (0)", res.Source, res.Stage)
	}
	if err := res.Handle.Play(context.Background()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if r.player.Completed() != 1 {
		t.Errorf("completed = %d", r.player.Completed())
	}
}

func TestChain_StaticWritesThrough(t *testing.T) {
	r := newRig(t)
	r.fetcher.clips["ka"] = wavBlob(10 * time.Millisecond)

	res, err := r.chain.Resolve(context.Background(), "ka")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Source != "static" {
		t.Fatalf("source = %s, want static", res.Source)
	}
	if !r.store.Contains("ka") {
		t.Fatal("static clip was not written to the store")
	}

	res, err = r.chain.Resolve(context.Background(), "ka")
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != "cache" {
		t.Errorf("second resolve from %s, want cache", res.Source)
	}
	if r.fetcher.Calls() != 1 {
		t.Errorf("fetcher called %d times, want 1", r.fetcher.Calls())
	}
}

func TestChain_KanaWithMissingAssetFallsToLive(t *testing.T) {
	r := newRig(t)

	res, err := r.chain.Resolve(context.Background(), "ka")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Source != "live" {
		t.Fatalf("source = %s, want live", res.Source)
	}
	if err := res.Handle.Play(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := r.engine.Spoken(); len(got) != 1 || got[0] != "か" {
		t.Errorf("engine spoke %q, want [か]", got)
	}
	if r.store.Contains("ka") {
		t.Error("live synthesis must not populate the store")
	}
	if r.player.PlayCount() != 0 {
		t.Error("live utterance should not go through the clip player")
	}
}

func TestChain_NonKanaSkipsStatic(t *testing.T) {
	r := newRig(t)

	res, err := r.chain.Resolve(context.Background(), "おはようございます")
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != "live" {
		t.Errorf("source = %s, want live", res.Source)
	}
	if r.fetcher.Calls() != 0 {
		t.Error("static stage fetched a non-kana text")
	}
}

func TestChain_LiveOptions(t *testing.T) {
	r := newRig(t)
	src := voice.NewMemorySource(
		voice.Descriptor{Name: "Network", Lang: "ja-JP"},
		voice.Descriptor{Name: "Kyoko", Lang: "ja_JP", IsLocal: true},
		voice.Descriptor{Name: "Alex", Lang: "en-US", IsLocal: true},
	)
	live := &LiveStage{Engine: r.engine, Resolver: voice.NewResolver(src, nil), Metrics: r.metrics}

	h, err := live.Resolve(context.Background(), "ねこ")
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Play(context.Background()); err != nil {
		t.Fatal(err)
	}

	opts := r.engine.opts[0]
	if opts.Voice == nil || opts.Voice.Name != "Kyoko" {
		t.Errorf("voice = %+v, want Kyoko", opts.Voice)
	}
	if opts.Rate != 0.9 || opts.Pitch != 1.0 {
		t.Errorf("rate/pitch = %v/%v, want 0.9/1.0", opts.Rate, opts.Pitch)
	}
}

func TestChain_LiveWithoutVoicesUsesDefault(t *testing.T) {
	r := newRig(t)
	live := &LiveStage{Engine: r.engine, Resolver: voice.NewResolver(voice.NewMemorySource(), nil)}

	h, err := live.Resolve(context.Background(), "ねこ")
	if err != nil {
		t.Fatal(err)
	}
	h.Play(context.Background())
	if r.engine.opts[0].Voice != nil {
		t.Errorf("voice = %+v, want engine default", r.engine.opts[0].Voice)
	}
}

func TestChain_EmptyInputTouchesNothing(t *testing.T) {
	for _, text := range []string{"", "   ", "\t\n"} {
		r := newRig(t)

		_, err := r.chain.Resolve(context.Background(), text)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Resolve(%q) = %v, want ErrInvalidInput", text, err)
		}
		if r.store.Calls() != 0 || r.fetcher.Calls() != 0 || len(r.engine.Spoken()) != 0 {
			t.Errorf("Resolve(%q) touched store=%d fetcher=%d engine=%d",
				text, r.store.Calls(), r.fetcher.Calls(), len(r.engine.Spoken()))
		}
	}
}

func TestChain_TotalFailure(t *testing.T) {
	store := newTestStore(t)
	chain := NewChain([]Stage{
		&CacheStage{Store: store, Player: audio.NewMockPlayer(0)},
		&StaticStage{Store: store, Fetcher: &fakeFetcher{}, Player: audio.NewMockPlayer(0)},
		&LiveStage{Engine: speech.None{}},
	})

	_, err := chain.Resolve(context.Background(), "ka")
	if !errors.Is(err, ErrNoAudio) {
		t.Errorf("Resolve = %v, want ErrNoAudio", err)
	}
	if !errors.Is(err, speech.ErrSynthesisUnavailable) {
		t.Errorf("Resolve = %v, want the live stage cause", err)
	}
}

func TestChain_UnavailableCacheStillPlays(t *testing.T) {
	fetcher := &fakeFetcher{clips: map[string][]byte{"a": wavBlob(5 * time.Millisecond)}}
	player := audio.NewMockPlayer(0)
	store := cache.Unavailable{}
	chain := NewChain([]Stage{
		&CacheStage{Store: store, Player: player},
		&StaticStage{Store: store, Fetcher: fetcher, Player: player},
	})

	res, err := chain.Resolve(context.Background(), "a")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Source != "static" {
		t.Errorf("source = %s, want static", res.Source)
	}
}

func TestChain_DamagedCacheEntryIsRefetched(t *testing.T) {
	r := newRig(t)
	r.store.Put("ka", []byte("not a wav"))
	r.fetcher.clips["ka"] = wavBlob(5 * time.Millisecond)

	res, err := r.chain.Resolve(context.Background(), "ka")
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != "static" {
		t.Fatalf("source = %s, want static", res.Source)
	}
	blob, _ := r.store.Get("ka")
	if _, err := audio.DecodeWAV(blob); err != nil {
		t.Errorf("store still holds the damaged entry: %v", err)
	}
}

func TestChain_ResolveFrom(t *testing.T) {
	r := newRig(t)
	r.store.Put("ka", wavBlob(5*time.Millisecond))

	res, err := r.chain.ResolveFrom(context.Background(), "ka", 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != "live" {
		t.Errorf("source = %s, want live (static has no clip)", res.Source)
	}

	if _, err := r.chain.ResolveFrom(context.Background(), "ka", r.chain.Stages()); !errors.Is(err, ErrNoAudio) {
		t.Errorf("ResolveFrom past the end = %v, want ErrNoAudio", err)
	}
}

func TestChain_Cancelled(t *testing.T) {
	r := newRig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.chain.Resolve(ctx, "ka"); !errors.Is(err, context.Canceled) {
		t.Errorf("Resolve = %v, want context.Canceled", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, ""},
		{"cache unavailable", cache.ErrCacheUnavailable, CodeCacheUnavailable},
		{"too large", cache.ErrItemTooLarge, CodeCacheUnavailable},
		{"asset", assets.ErrAssetNotFound, CodeAssetNotFound},
		{"synthesis", speech.ErrSynthesisUnavailable, CodeSynthesisUnavailable},
		{"engine failed", speech.ErrSynthesisFailed, CodeSynthesisUnavailable},
		{"device", audio.ErrDeviceUnavailable, CodePlaybackFailed},
		{"closed player", audio.ErrPlayerClosed, CodePlaybackFailed},
		{"input", ErrInvalidInput, CodeInvalidInput},
		{"canceled", context.Canceled, CodeCanceled},
		{"typed", NewAudioError(CodePlaybackFailed, "x", errors.New("y")), CodePlaybackFailed},
		{"other", errors.New("boom"), CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAudioError(t *testing.T) {
	cause := assets.ErrAssetNotFound
	err := NewAudioError(CodeAssetNotFound, "kana clip", cause).WithContext("token", "ka")

	if !errors.Is(err, assets.ErrAssetNotFound) {
		t.Error("AudioError does not unwrap to its cause")
	}
	if err.Context["token"] != "ka" {
		t.Errorf("context = %v", err.Context)
	}
	if got := err.Error(); got != "ASSET_NOT_FOUND: kana clip: static asset not found" {
		t.Errorf("Error() = %q", got)
	}
}
