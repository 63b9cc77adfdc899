package technology

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/donbonifacio/scavenger8/internal/config"
	"github.com/donbonifacio/scavenger8/internal/model"
	"github.com/donbonifacio/scavenger8/internal/stage"
)

// ErrNoBody is returned by the match task for items that were never fetched.
var ErrNoBody = errors.New("item has no body")

// Technology is a named detector.
type Technology struct {
	// Name is reported in item matches, e.g. "Segment.io".
	Name string

	// Match reports whether body uses the technology.
	Match func(body string) bool
}

// Regexp returns a Technology that matches when pattern occurs anywhere in
// the body. The pattern is compiled once.
func Regexp(name, pattern string) (Technology, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Technology{}, fmt.Errorf("invalid pattern for %s: %w", name, err)
	}
	return Technology{Name: name, Match: re.MatchString}, nil
}

func mustRegexp(name, pattern string) Technology {
	t, err := Regexp(name, pattern)
	if err != nil {
		panic(err)
	}
	return t
}

// Built-in technologies.
var (
	Segment          = mustRegexp("Segment.io", `cdn\.segment\.com`)
	Intercom         = mustRegexp("Intercom.io", `widget\.intercom\.io/widget`)
	GoogleTagManager = mustRegexp("Google Tag Manager", `//www\.googletagmanager\.com/ns\.html`)
)

// Defaults returns the built-in technologies in reporting order.
func Defaults() []Technology {
	return []Technology{Segment, Intercom, GoogleTagManager}
}

// FromConfig compiles configured signatures.
func FromConfig(techs []config.TechnologyConfig) ([]Technology, error) {
	out := make([]Technology, 0, len(techs))
	for _, tc := range techs {
		t, err := Regexp(tc.Name, tc.Pattern)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Set is an ordered, immutable collection of technologies. It is safe for
// concurrent use.
type Set struct {
	techs []Technology
}

// NewSet creates a Set. Technologies keep the given order.
func NewSet(techs ...Technology) *Set {
	return &Set{techs: append([]Technology(nil), techs...)}
}

// Match returns the names of every technology found in body, in set order.
// It returns nil when nothing matches.
func (s *Set) Match(body string) []string {
	var names []string
	for _, t := range s.techs {
		if t.Match(body) {
			names = append(names, t.Name)
		}
	}
	return names
}

// Names returns the names of the technologies in the set.
func (s *Set) Names() []string {
	names := make([]string, len(s.techs))
	for i, t := range s.techs {
		names[i] = t.Name
	}
	return names
}

// Task returns the match stage task. It attaches the matching names to each
// item and fails with ErrNoBody for items without a body.
func (s *Set) Task() stage.TaskFunc {
	return func(_ context.Context, item model.Item) (model.Item, error) {
		body, ok := item.Body()
		if !ok {
			return model.Item{}, fmt.Errorf("%w: %s", ErrNoBody, item.Key())
		}
		return item.WithMatches(s.Match(body)), nil
	}
}
