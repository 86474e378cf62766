package adprobe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

type fakePage struct {
	mu   sync.Mutex
	html string
	url  string
	err  error
}

func (p *fakePage) HTML(context.Context) (io.Reader, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return strings.NewReader(p.html), nil
}

func (p *fakePage) SourceURL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	return p.url, nil
}

func (p *fakePage) set(html, url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.html, p.url = html, url
}

func TestCompileSelector(t *testing.T) {
	sel, err := compileSelector(` div#player.ad-showing[data-uia="ads info"] > span `)
	require.NoError(t, err)

	doc, err := html.Parse(strings.NewReader(
		`<div id="player" class="big ad-showing" data-uia="ads info"><span>1</span></div>` +
			`<div id="player" class="big" data-uia="ads info"><span>2</span></div>`,
	))
	require.NoError(t, err)
	nodes := sel.MatchAll(doc)
	require.Len(t, nodes, 1)
	assert.Equal(t, "1", textContent(nodes[0]))

	for _, bad := range []string{"#", "div >", `[data-x="1"`} {
		_, err := compileSelector(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseCountdown(t *testing.T) {
	tests := map[string]int64{
		"0:30":           30_000,
		"Ad · 1:05":      65_000,
		"Ad 1 of 2 0:15": 15_000,
		"1:02:03":        3_723_000,
		"15s":            15_000,
		"Ends in 7":      7_000,
	}
	for text, want := range tests {
		got, ok := parseCountdown(text)
		assert.True(t, ok, text)
		assert.Equal(t, want, got, text)
	}

	_, ok := parseCountdown("Skip ad")
	assert.False(t, ok)
}

func TestSelectorIndicator(t *testing.T) {
	page := &fakePage{}
	ind, err := NewSelectorIndicator(page, []string{".ytp-ad-player-overlay"}, ".ytp-ad-duration-remaining")
	require.NoError(t, err)
	ctx := context.Background()

	page.set(`<div id="movie_player"><video></video></div>`, "")
	signal, err := ind.Detect(ctx)
	require.NoError(t, err)
	assert.False(t, signal.InAd)

	page.set(`<div class="ytp-ad-player-overlay" style="display: none"></div>`, "")
	signal, err = ind.Detect(ctx)
	require.NoError(t, err)
	assert.False(t, signal.InAd, "hidden overlay is not an ad")

	page.set(`<div aria-hidden="true"><div class="ytp-ad-player-overlay"></div></div>`, "")
	signal, err = ind.Detect(ctx)
	require.NoError(t, err)
	assert.False(t, signal.InAd, "hidden ancestor")

	page.set(`<div class="ytp-ad-player-overlay x"><span class="ytp-ad-duration-remaining">0:12</span></div>`, "")
	signal, err = ind.Detect(ctx)
	require.NoError(t, err)
	assert.True(t, signal.InAd)
	require.NotNil(t, signal.EstimatedDurationMs)
	assert.Equal(t, int64(12_000), *signal.EstimatedDurationMs)

	page.set(`<div class="ytp-ad-player-overlay"></div>`, "")
	signal, err = ind.Detect(ctx)
	require.NoError(t, err)
	assert.True(t, signal.InAd)
	assert.Nil(t, signal.EstimatedDurationMs)
}

func TestURLSignatureIndicator(t *testing.T) {
	page := &fakePage{}
	ind, err := NewURLSignatureIndicator(page, urlSignatures...)
	require.NoError(t, err)

	page.set("", "https://cdn.example.com/content/episode-1.m3u8")
	signal, err := ind.Detect(context.Background())
	require.NoError(t, err)
	assert.False(t, signal.InAd)

	page.set("", "https://ad.doubleclick.net/creative.mp4")
	signal, err = ind.Detect(context.Background())
	require.NoError(t, err)
	assert.True(t, signal.InAd)

	_, err = NewURLSignatureIndicator(page, "(")
	assert.Error(t, err)
}

func TestAnyOf(t *testing.T) {
	failing := &fakePage{err: errors.New("detached")}
	ok := &fakePage{url: "https://x.test/ads/1.mp4"}

	bad, err := NewURLSignatureIndicator(failing, urlSignatures...)
	require.NoError(t, err)
	good, err := NewURLSignatureIndicator(ok, urlSignatures...)
	require.NoError(t, err)

	signal, err := AnyOf(bad, good).Detect(context.Background())
	require.NoError(t, err)
	assert.True(t, signal.InAd)

	_, err = AnyOf(bad, bad).Detect(context.Background())
	assert.Error(t, err)

	plain := &fakePage{url: "https://cdn.example.com/movie.mp4"}
	quiet, err := NewURLSignatureIndicator(plain, urlSignatures...)
	require.NoError(t, err)
	_, err = AnyOf(bad, quiet).Detect(context.Background())
	assert.Error(t, err, "a failed read must not pass for no ad")

	signal, err = AnyOf(quiet, quiet).Detect(context.Background())
	require.NoError(t, err)
	assert.False(t, signal.InAd)
}

func TestForPlatform(t *testing.T) {
	page := &fakePage{}
	for _, platform := range domain.Platforms() {
		ind, interval, err := ForPlatform(platform, page)
		require.NoError(t, err, platform)
		assert.NotNil(t, ind)
		assert.Greater(t, interval, time.Duration(0))
	}

	_, interval, err := ForPlatform(domain.PlatformNetflix, page)
	require.NoError(t, err)
	assert.Equal(t, time.Second, interval)

	ind, interval, err := ForPlatform(domain.PlatformGeneric, page)
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, interval)

	page.set(`<div data-uia="ads-info-container"></div>`, "https://cdn.example.com/movie.mp4")
	signal, err := ind.Detect(context.Background())
	require.NoError(t, err)
	assert.False(t, signal.InAd, "generic platform only checks the source url")
}

type edges struct {
	mu     sync.Mutex
	starts []*int64
	ends   int
}

func (e *edges) callbacks() Callbacks {
	return Callbacks{
		OnAdStart: func(ms *int64) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.starts = append(e.starts, ms)
		},
		OnAdEnd: func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.ends++
		},
	}
}

func (e *edges) counts() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.starts), e.ends
}

func TestProbeIsEdgeTriggered(t *testing.T) {
	page := &fakePage{}
	ind, err := NewSelectorIndicator(page, []string{".ad"}, "")
	require.NoError(t, err)

	e := &edges{}
	probe := NewProbe(ind, DefaultInterval, clockwork.NewFakeClock(), e.callbacks(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	page.set(`<p></p>`, "")
	probe.Poll(ctx)
	starts, ends := e.counts()
	assert.Equal(t, 0, starts)
	assert.Equal(t, 0, ends)

	page.set(`<div class="ad"></div>`, "")
	probe.Poll(ctx)
	probe.Poll(ctx)
	starts, ends = e.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 0, ends)
	assert.True(t, probe.InAd())

	page.mu.Lock()
	page.err = errors.New("navigating")
	page.mu.Unlock()
	probe.Poll(ctx)
	assert.True(t, probe.InAd(), "failed poll keeps the flag")

	page.mu.Lock()
	page.err = nil
	page.mu.Unlock()
	page.set(`<p></p>`, "")
	probe.Poll(ctx)
	probe.Poll(ctx)
	starts, ends = e.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, ends)
	assert.False(t, probe.InAd())
}

// flakyIndicator fails while err is set and otherwise reports inAd.
type flakyIndicator struct {
	mu   sync.Mutex
	inAd bool
	err  error
}

func (f *flakyIndicator) Detect(context.Context) (Signal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return Signal{}, f.err
	}
	return Signal{InAd: f.inAd}, nil
}

func (f *flakyIndicator) set(inAd bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inAd, f.err = inAd, err
}

func TestPollKeepsAdWhenOneIndicatorFails(t *testing.T) {
	page := &fakePage{url: "https://cdn.example.com/movie.mp4"}
	byURL, err := NewURLSignatureIndicator(page, urlSignatures...)
	require.NoError(t, err)
	overlay := &flakyIndicator{inAd: true}

	e := &edges{}
	watcher := NewProbe(AnyOf(overlay, byURL), DefaultInterval, clockwork.NewFakeClock(), e.callbacks(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	watcher.Poll(ctx)
	require.True(t, watcher.InAd())

	overlay.set(false, errors.New("page detached"))
	watcher.Poll(ctx)
	watcher.Poll(ctx)
	starts, ends := e.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 0, ends)
	assert.True(t, watcher.InAd())

	overlay.set(false, nil)
	watcher.Poll(ctx)
	_, ends = e.counts()
	assert.Equal(t, 1, ends)
	assert.False(t, watcher.InAd())
}

func TestProbeRun(t *testing.T) {
	page := &fakePage{}
	page.set(`<div class="ad"></div>`, "")
	ind, err := NewSelectorIndicator(page, []string{".ad"}, "")
	require.NoError(t, err)

	clock := clockwork.NewFakeClock()
	e := &edges{}
	probe := NewProbe(ind, 0, clock, e.callbacks(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- probe.Run(ctx) }()

	blockCtx, blockCancel := context.WithTimeout(context.Background(), time.Second)
	defer blockCancel()
	require.NoError(t, clock.BlockUntilContext(blockCtx, 1))

	clock.Advance(DefaultInterval)
	require.Eventually(t, func() bool {
		starts, _ := e.counts()
		return starts == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
