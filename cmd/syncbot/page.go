package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sharetube/syncroom/internal/domain"
)

// simPage renders a player page that shows an ad break of adLength every adEvery.
type simPage struct {
	clock    clockwork.Clock
	platform domain.Platform
	started  time.Time
	adEvery  time.Duration
	adLength time.Duration
}

func newSimPage(clock clockwork.Clock, platform domain.Platform, adEvery, adLength time.Duration) *simPage {
	return &simPage{
		clock:    clock,
		platform: platform,
		started:  clock.Now(),
		adEvery:  adEvery,
		adLength: adLength,
	}
}

// adRemaining reports whether an ad break is showing and how long it has left.
func (p *simPage) adRemaining() (time.Duration, bool) {
	if p.adEvery <= 0 || p.adLength <= 0 {
		return 0, false
	}

	elapsed := p.clock.Since(p.started)
	if elapsed < p.adEvery {
		return 0, false
	}

	into := (elapsed - p.adEvery) % p.adEvery
	if into >= p.adLength {
		return 0, false
	}

	return p.adLength - into, true
}

func (p *simPage) HTML(context.Context) (io.Reader, error) {
	remaining, inAd := p.adRemaining()
	if !inAd {
		return strings.NewReader(`<html><body><div class="html5-video-player"><video></video></div></body></html>`), nil
	}

	secs := int(remaining.Seconds())
	countdown := fmt.Sprintf("%d:%02d", secs/60, secs%60)

	var overlay string
	switch p.platform {
	case domain.PlatformYouTube:
		overlay = fmt.Sprintf(`<div class="html5-video-player ad-showing"><span class="ytp-ad-duration-remaining">%s</span></div>`, countdown)
	case domain.PlatformNetflix:
		overlay = fmt.Sprintf(`<div data-uia="ads-info-container"><span data-uia="ads-info-time">%s</span></div>`, countdown)
	case domain.PlatformHulu:
		overlay = fmt.Sprintf(`<div class="AdUnitView"><span class="AdUnitView__countdown">%s</span></div>`, countdown)
	default:
		overlay = `<div class="html5-video-player"><video></video></div>`
	}

	return strings.NewReader("<html><body>" + overlay + "</body></html>"), nil
}

func (p *simPage) SourceURL(context.Context) (string, error) {
	if _, inAd := p.adRemaining(); inAd {
		return "https://ad.doubleclick.net/creative/1.mp4", nil
	}
	return "https://cdn.example.com/content/main.m3u8", nil
}
