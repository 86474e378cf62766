package adprobe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Signal is one observation of the page.
type Signal struct {
	InAd                bool
	EstimatedDurationMs *int64
}

type Indicator interface {
	Detect(ctx context.Context) (Signal, error)
}

// PageSource exposes the local page to indicators.
type PageSource interface {
	HTML(ctx context.Context) (io.Reader, error)
	SourceURL(ctx context.Context) (string, error)
}

// SelectorIndicator reports an ad when any of its selectors matches a visible element. The
// remaining time, when shown, is read from the first visible countdown element.
type SelectorIndicator struct {
	page      PageSource
	selectors []cascadia.Selector
	countdown cascadia.Selector
}

func NewSelectorIndicator(page PageSource, selectors []string, countdownSelector string) (*SelectorIndicator, error) {
	ind := &SelectorIndicator{page: page}
	for _, s := range selectors {
		sel, err := compileSelector(s)
		if err != nil {
			return nil, err
		}
		ind.selectors = append(ind.selectors, sel)
	}

	if countdownSelector != "" {
		sel, err := compileSelector(countdownSelector)
		if err != nil {
			return nil, err
		}
		ind.countdown = sel
	}

	return ind, nil
}

func (ind *SelectorIndicator) Detect(ctx context.Context) (Signal, error) {
	r, err := ind.page.HTML(ctx)
	if err != nil {
		return Signal{}, fmt.Errorf("failed to read page: %w", err)
	}

	doc, err := html.Parse(r)
	if err != nil {
		return Signal{}, fmt.Errorf("failed to parse page: %w", err)
	}

	inAd := false
	for _, sel := range ind.selectors {
		if firstVisible(doc, sel) != nil {
			inAd = true
			break
		}
	}
	if !inAd {
		return Signal{}, nil
	}

	signal := Signal{InAd: true}
	if ind.countdown != nil {
		for _, n := range ind.countdown.MatchAll(doc) {
			if !isVisible(n) {
				continue
			}
			if ms, ok := parseCountdown(textContent(n)); ok {
				signal.EstimatedDurationMs = &ms
				break
			}
		}
	}

	return signal, nil
}

var (
	clockCountdownRe   = regexp.MustCompile(`(?:(\d+):)?(\d{1,2}):(\d{2})`)
	secondsCountdownRe = regexp.MustCompile(`(\d+)\s*s?\b`)
)

// parseCountdown reads "1:05", "0:30", "1:02:03" or "15" / "15s" as a remaining duration.
func parseCountdown(text string) (int64, bool) {
	atoi := func(s string) int64 {
		v, _ := strconv.ParseInt(s, 10, 64)
		return v
	}

	if m := clockCountdownRe.FindStringSubmatch(text); m != nil {
		return (atoi(m[1])*3600 + atoi(m[2])*60 + atoi(m[3])) * 1000, true
	}

	if m := secondsCountdownRe.FindStringSubmatch(text); m != nil {
		return atoi(m[1]) * 1000, true
	}

	return 0, false
}

// URLSignatureIndicator reports an ad when the content source URL matches any pattern.
type URLSignatureIndicator struct {
	page     PageSource
	patterns []*regexp.Regexp
}

func NewURLSignatureIndicator(page PageSource, patterns ...string) (*URLSignatureIndicator, error) {
	ind := &URLSignatureIndicator{page: page}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid url pattern %q: %w", p, err)
		}
		ind.patterns = append(ind.patterns, re)
	}

	return ind, nil
}

func (ind *URLSignatureIndicator) Detect(ctx context.Context) (Signal, error) {
	url, err := ind.page.SourceURL(ctx)
	if err != nil {
		return Signal{}, fmt.Errorf("failed to read source url: %w", err)
	}

	for _, re := range ind.patterns {
		if re.MatchString(url) {
			return Signal{InAd: true}, nil
		}
	}

	return Signal{}, nil
}

type anyOf []Indicator

// AnyOf reports an ad when any indicator does. Without a positive reading, a failure of any
// indicator is returned so that a broken read is never taken for the end of an ad.
func AnyOf(indicators ...Indicator) Indicator {
	return anyOf(indicators)
}

func (a anyOf) Detect(ctx context.Context) (Signal, error) {
	var errs []error
	for _, ind := range a {
		signal, err := ind.Detect(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if signal.InAd {
			return signal, nil
		}
	}

	if len(errs) > 0 {
		return Signal{}, errors.Join(errs...)
	}

	return Signal{}, nil
}
