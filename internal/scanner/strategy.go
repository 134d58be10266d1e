package scanner

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/streamsave/streamsave-go/pkg/logger"
)

// errNoMatch signals that a strategy found nothing; it is not logged as a failure.
var errNoMatch = errors.New("no match")

// Strategy is one named, independently fallible way of extracting a value from a page.
type Strategy[T any] struct {
	Name    string
	Extract func(p *Page) (T, error)
}

// FirstSuccess runs strategies in order and returns the first value produced without
// error, along with the name of the strategy that produced it.
func FirstSuccess[T any](p *Page, strategies []Strategy[T]) (T, string, bool) {
	for _, s := range strategies {
		v, err := run(p, s.Name, s.Extract)
		if err == nil {
			return v, s.Name, true
		}
	}
	var zero T
	return zero, "", false
}

// run invokes fn with panic isolation so a misbehaving extractor cannot abort a scan.
func run[T any](p *Page, name string, fn func(*Page) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s panicked: %v", name, r)
		}
		if err != nil && !errors.Is(err, errNoMatch) {
			logger.Log.Debug("Scan strategy failed",
				zap.String("strategy", name),
				zap.Error(err),
			)
		}
	}()
	return fn(p)
}
