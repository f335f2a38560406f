package app

import (
	"fmt"
	"log/slog"
	"net/url"

	"github.com/zsiec/metamix/internal/container"
	"github.com/zsiec/metamix/internal/container/srt"
	"github.com/zsiec/metamix/internal/container/tsdemux"
	"github.com/zsiec/metamix/internal/container/tsmux"
)

// newSource builds the container.Source for rawURL, dispatching on its
// scheme. Only "srt" is backed by a real transport; every other scheme is
// rejected, since this system has no generic in-pack byte-source loader for
// arbitrary synthetic fixtures (those are built directly against memsource
// in tests and test/tools/gen-streams, never through a URL).
func newSource(rawURL string, log *slog.Logger) (container.Source, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("app: parsing source url %q: %w", rawURL, err)
	}
	switch u.Scheme {
	case "srt":
		return srt.New(tsdemux.New(), log), nil
	default:
		return nil, fmt.Errorf("app: unsupported source scheme %q", u.Scheme)
	}
}

// newSink is newSource's write-side counterpart.
func newSink(rawURL string, log *slog.Logger) (container.Sink, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("app: parsing sink url %q: %w", rawURL, err)
	}
	switch u.Scheme {
	case "srt":
		return srt.NewSink(tsmux.New(), log), nil
	default:
		return nil, fmt.Errorf("app: unsupported sink scheme %q", u.Scheme)
	}
}
