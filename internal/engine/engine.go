// Package engine adapts concrete browser-automation libraries to session.Engine.
package engine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"

	"ListingHarvester/internal/session"
)

// Names of the built-in engines.
const (
	Rod      = "rod"
	Chromedp = "chromedp"
)

// ErrUnknownEngine is returned by New for an unregistered engine name.
var ErrUnknownEngine = errors.New("unknown browser engine")

var constructors = map[string]func(arbor.ILogger) session.Engine{
	Rod:      func(l arbor.ILogger) session.Engine { return NewRod(l) },
	Chromedp: func(l arbor.ILogger) session.Engine { return NewChromedp(l) },
}

// New returns the engine registered under name.
func New(name string, logger arbor.ILogger) (session.Engine, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
	return ctor(logger), nil
}

// Names lists the built-in engine names in sorted order.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for n := range constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
