package gateway

import (
	"fmt"

	"github.com/vyrodovalexey/avaimg/internal/config"
	"github.com/vyrodovalexey/avaimg/internal/observability"
	"github.com/vyrodovalexey/avaimg/internal/pipeline"
	"github.com/vyrodovalexey/avaimg/internal/processor"
)

// FromConfig builds a Gateway whose routes come from configuration, in
// declaration order.
func FromConfig(routes []config.Route, queue processor.Fetcher, opts ...Option) (*Gateway, error) {
	b := NewBuilder(queue, opts...)
	for i := range routes {
		r := &routes[i]

		fn, err := pipeline.Compile(r.Steps, pipeline.WithMaxDimension(r.MaxDimension))
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", r.DisplayName(), err)
		}
		if err := b.Register(r.Pattern, r.Source, ProcessorOptions(r), fn); err != nil {
			return nil, fmt.Errorf("route %s: %w", r.DisplayName(), err)
		}
	}

	gw := b.Build()
	b.logger.Info("route table built",
		observability.Int("routes", len(gw.routes)),
		observability.Strings("patterns", gw.Routes()),
	)
	return gw, nil
}

// ProcessorOptions maps a configured route to processor options.
func ProcessorOptions(r *config.Route) processor.Options {
	return processor.Options{
		CacheExpiration: r.CacheExpiration,
		SocketTimeout:   r.SocketTimeout.Duration(),
		GIFFirstFrame:   r.GIFFirstFrame,
		Stream:          r.Stream,
		MaxSourceBytes:  r.MaxSourceBytes,
		MaxPixels:       r.MaxPixels,
	}
}
