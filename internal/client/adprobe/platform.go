package adprobe

import (
	"fmt"
	"time"

	"github.com/sharetube/syncroom/internal/domain"
)

const DefaultInterval = 500 * time.Millisecond

type profile struct {
	selectors []string
	countdown string
	interval  time.Duration
}

var profiles = map[domain.Platform]profile{
	domain.PlatformYouTube: {
		selectors: []string{".ad-showing", ".ytp-ad-player-overlay", ".ytp-ad-text"},
		countdown: ".ytp-ad-duration-remaining",
	},
	domain.PlatformNetflix: {
		selectors: []string{`[data-uia="ads-info-container"]`, `[data-uia="ad-break"]`},
		countdown: `[data-uia="ads-info-time"]`,
		interval:  time.Second,
	},
	domain.PlatformHulu: {
		selectors: []string{".AdUnitView", ".ad-container"},
		countdown: ".AdUnitView__countdown",
	},
	domain.PlatformDisney: {
		selectors: []string{".ad-badge-overlay", `[data-testid="ad-badge"]`},
		countdown: ".ad-remaining-time",
	},
	domain.PlatformPrime: {
		selectors: []string{".atvwebplayersdk-ad-timer", ".atvwebplayersdk-adtimeindicator-text"},
		countdown: ".atvwebplayersdk-ad-timer-remaining-time",
	},
	domain.PlatformMax: {
		selectors: []string{`[data-testid="ad-overlay"]`, ".ad-indicator"},
		countdown: `[data-testid="ad-countdown"]`,
	},
}

// urlSignatures match ad creatives served in place of the content stream.
var urlSignatures = []string{
	`doubleclick\.net`,
	`[?&](oad|ad_type|adformat)=`,
	`/ads?/`,
	`imasdk\.googleapis\.com`,
}

// ForPlatform builds the indicator and poll interval for a platform. Every platform also checks
// the generic source URL signature; unknown platforms check only that.
func ForPlatform(platform domain.Platform, page PageSource) (Indicator, time.Duration, error) {
	urlIndicator, err := NewURLSignatureIndicator(page, urlSignatures...)
	if err != nil {
		return nil, 0, err
	}

	p, ok := profiles[platform]
	if !ok {
		return urlIndicator, DefaultInterval, nil
	}

	selectorIndicator, err := NewSelectorIndicator(page, p.selectors, p.countdown)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid %s profile: %w", platform, err)
	}

	interval := p.interval
	if interval == 0 {
		interval = DefaultInterval
	}

	return AnyOf(selectorIndicator, urlIndicator), interval, nil
}
