package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"
)

var (
	// ErrNoMatch is returned when a selector matches nothing.
	ErrNoMatch = errors.New("selector matched no element")

	// ErrEmptyContent is returned when a strategy finds only whitespace.
	ErrEmptyContent = errors.New("no content extracted")
)

// DefaultSelector is the default content selector.
const DefaultSelector = "article, main, [role='main']"

// Result is the output of a successful extraction.
type Result struct {
	// HTML is the extracted content fragment.
	HTML string

	// Title is the title the strategy found, if any.
	Title string

	// Strategy is the name of the strategy that produced the result.
	Strategy string

	// Attempts records strategies that were tried before this one and
	// why each of them failed.
	Attempts []Attempt
}

// Attempt is one failed strategy in a chain run.
type Attempt struct {
	Strategy string
	Err      error
}

// Strategy extracts a content fragment from a full HTML document.
type Strategy interface {
	// Name identifies the strategy.
	Name() string

	// TryExtract returns the fragment or an error explaining why the
	// strategy does not apply to doc.
	TryExtract(doc string) (Result, error)
}

// SelectorStrategy extracts the inner HTML of the first element that
// matches a CSS selector.
type SelectorStrategy struct {
	selector string
}

// NewSelectorStrategy creates a SelectorStrategy.
func NewSelectorStrategy(selector string) *SelectorStrategy {
	return &SelectorStrategy{selector: selector}
}

// Name implements Strategy.
func (s *SelectorStrategy) Name() string {
	return "selector"
}

// TryExtract implements Strategy.
func (s *SelectorStrategy) TryExtract(doc string) (Result, error) {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return Result{}, fmt.Errorf("parse document: %w", err)
	}

	sel := d.Find(s.selector).First()
	if sel.Length() == 0 {
		return Result{}, fmt.Errorf("%w: %q", ErrNoMatch, s.selector)
	}
	inner, err := sel.Html()
	if err != nil {
		return Result{}, fmt.Errorf("render %q: %w", s.selector, err)
	}
	if strings.TrimSpace(inner) == "" {
		return Result{}, fmt.Errorf("%w: %q matched an empty element", ErrEmptyContent, s.selector)
	}
	return Result{HTML: inner}, nil
}

// ReadabilityStrategy finds the main content with go-trafilatura.
type ReadabilityStrategy struct{}

// NewReadabilityStrategy creates a ReadabilityStrategy.
func NewReadabilityStrategy() *ReadabilityStrategy {
	return &ReadabilityStrategy{}
}

// Name implements Strategy.
func (s *ReadabilityStrategy) Name() string {
	return "readability"
}

// TryExtract implements Strategy.
func (s *ReadabilityStrategy) TryExtract(doc string) (Result, error) {
	result, err := trafilatura.Extract(strings.NewReader(doc), trafilatura.Options{})
	if err != nil {
		return Result{}, fmt.Errorf("readability: %w", err)
	}
	if result == nil || result.ContentNode == nil || strings.TrimSpace(result.ContentText) == "" {
		return Result{}, ErrEmptyContent
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, result.ContentNode); err != nil {
		return Result{}, fmt.Errorf("render readable content: %w", err)
	}
	return Result{
		HTML:  buf.String(),
		Title: strings.TrimSpace(result.Metadata.Title),
	}, nil
}

// RawStrategy returns the document body unchanged.
// It is the last resort and only fails on an empty body.
type RawStrategy struct{}

// NewRawStrategy creates a RawStrategy.
func NewRawStrategy() *RawStrategy {
	return &RawStrategy{}
}

// Name implements Strategy.
func (s *RawStrategy) Name() string {
	return "raw"
}

// TryExtract implements Strategy.
func (s *RawStrategy) TryExtract(doc string) (Result, error) {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return Result{}, fmt.Errorf("parse document: %w", err)
	}
	body, err := d.Find("body").First().Html()
	if err != nil {
		return Result{}, fmt.Errorf("render body: %w", err)
	}
	if strings.TrimSpace(body) == "" {
		return Result{}, ErrEmptyContent
	}
	return Result{HTML: body}, nil
}

// DefaultStrategies returns selector, readability and raw strategies in
// that order. An empty selector disables the selector strategy.
func DefaultStrategies(selector string) []Strategy {
	strategies := make([]Strategy, 0, 3)
	if strings.TrimSpace(selector) != "" {
		strategies = append(strategies, NewSelectorStrategy(selector))
	}
	return append(strategies, NewReadabilityStrategy(), NewRawStrategy())
}

// Chain runs strategies in order and keeps the first success.
type Chain struct {
	strategies []Strategy
}

// NewChain creates a Chain.
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// Extract returns the result of the first strategy that succeeds.
// Earlier failures are listed in Result.Attempts. When every strategy
// fails the joined errors are returned.
func (c *Chain) Extract(doc string) (Result, error) {
	attempts := make([]Attempt, 0, len(c.strategies))
	for _, s := range c.strategies {
		res, err := s.TryExtract(doc)
		if err != nil {
			attempts = append(attempts, Attempt{Strategy: s.Name(), Err: err})
			continue
		}
		res.Strategy = s.Name()
		res.Attempts = attempts
		return res, nil
	}

	errs := make([]error, 0, len(attempts)+1)
	errs = append(errs, ErrEmptyContent)
	for _, a := range attempts {
		errs = append(errs, fmt.Errorf("%s: %w", a.Strategy, a.Err))
	}
	return Result{Attempts: attempts}, errors.Join(errs...)
}
