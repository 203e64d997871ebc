package feedservice

import (
	"context"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-socialfeed/pkg/archive"
	"github.com/illmade-knight/go-socialfeed/pkg/cache"
	"github.com/illmade-knight/go-socialfeed/pkg/feed"
	"github.com/illmade-knight/go-socialfeed/pkg/invalidation"
	"github.com/illmade-knight/go-socialfeed/pkg/notify"
	"github.com/illmade-knight/go-socialfeed/pkg/origin"
	"github.com/illmade-knight/go-socialfeed/pkg/socialgraph"
	"github.com/illmade-knight/go-socialfeed/pkg/types"
)

// Sources bundles the collaborator contracts a session consumes. A single
// FirestoreOrigin satisfies all of them in production; tests inject fakes.
type Sources struct {
	Entities   origin.EntitySource
	Activities origin.ActivitySource
	Explore    origin.ExploreSource
	Graph      origin.GraphSource
	Settings   origin.SettingsSource
}

// Archival bundles the optional cold paths. Either batcher may be nil.
type Archival struct {
	Activities *archive.Batcher[archive.ActivityRow]
	Audit      *archive.Batcher[types.NotificationEvent]
}

// Session owns the engine state for one process lifetime: exactly one store
// instance per kind, constructed here and passed by reference to every
// component. Nothing reaches the stores through ambient globals.
type Session struct {
	Stores      *cache.Stores
	Coordinator *invalidation.Coordinator
	Graph       *socialgraph.Accessor
	Builder     *feed.Builder

	fanout   *notify.FanoutService
	explore  *cache.ReadThrough[cache.Key, types.ExplorePage]
	library  *cache.ReadThrough[cache.Key, types.LibraryEntry]
	archival Archival
	closers  []io.Closer
	logger   zerolog.Logger
}

// NewSession wires the engine. publisher delivers fan-out output; archival
// batchers are optional. ctx is used only to establish client connections
// configured here, such as the Redis tier.
func NewSession(
	ctx context.Context,
	cfg *Config,
	src Sources,
	publisher notify.Publisher,
	archival Archival,
	logger zerolog.Logger,
) (*Session, error) {
	stores := cache.NewStores(cfg.TTLs, nil)

	var contentSource cache.Fetcher[cache.Key, types.ContentSummary] = cache.FetchFunc[cache.Key, types.ContentSummary](
		func(ctx context.Context, key cache.Key) (types.ContentSummary, error) {
			return src.Entities.FetchContent(ctx, key.Scope)
		})
	var remoteDetail invalidation.RemoteInvalidator
	if cfg.Redis != nil {
		tier, err := cache.NewRedisTier(ctx, cfg.Redis, contentSource, logger)
		if err != nil {
			return nil, err
		}
		contentSource = tier
		remoteDetail = tier
	}
	contentFallback := maybeCoalesce[cache.Key, types.ContentSummary](cfg, contentSource)

	coordinator := invalidation.NewCoordinator(stores, remoteDetail, logger)
	profileFallback := maybeCoalesce[cache.Key, types.ProfileStats](cfg, cache.FetchFunc[cache.Key, types.ProfileStats](
		func(ctx context.Context, key cache.Key) (types.ProfileStats, error) {
			return src.Entities.FetchProfile(ctx, key.Scope)
		}))

	contents := cache.NewReadThrough(stores.Detail, contentFallback, logger)
	profiles := cache.NewReadThrough(stores.Profile, profileFallback, logger)

	graph := socialgraph.NewAccessor(stores.Follow, src.Graph, coordinator, logger)

	var sink feed.ActivitySink
	if archival.Activities != nil {
		sink = archive.NewActivityMirror(archival.Activities)
	}
	builder := feed.NewBuilder(stores.Feed, src.Activities, contents, profiles, graph, sink, logger)

	var audit notify.AuditSink
	if archival.Audit != nil {
		audit = archive.NewAuditMirror(archival.Audit)
	}
	fanout := notify.NewFanoutService(cfg.Fanout, src.Settings, publisher, audit, logger)

	explore := cache.NewReadThrough(stores.Explore, cache.FetchFunc[cache.Key, types.ExplorePage](
		func(ctx context.Context, key cache.Key) (types.ExplorePage, error) {
			sort, cursor := splitDims(key.Dims)
			return src.Explore.FetchExplore(ctx, origin.ExploreQuery{Filter: key.Scope, Sort: sort, Cursor: cursor})
		}), logger)

	library := cache.NewReadThrough(stores.Library, cache.FetchFunc[cache.Key, types.LibraryEntry](
		func(ctx context.Context, key cache.Key) (types.LibraryEntry, error) {
			return src.Entities.FetchLibraryEntry(ctx, key.Scope, key.Dims)
		}), logger)

	return &Session{
		Stores:      stores,
		Coordinator: coordinator,
		Graph:       graph,
		Builder:     builder,
		fanout:      fanout,
		explore:     explore,
		library:     library,
		archival:    archival,
		closers:     []io.Closer{contents, profiles, explore, library},
		logger:      logger.With().Str("component", "Session").Logger(),
	}, nil
}

// Start launches the background services: fan-out workers and any archival
// batchers.
func (s *Session) Start(ctx context.Context) {
	s.fanout.Start(ctx)
	if s.archival.Activities != nil {
		s.archival.Activities.Start(ctx)
	}
	if s.archival.Audit != nil {
		s.archival.Audit.Start(ctx)
	}
}

// Stop drains the background services and closes the fetcher chains,
// including any remote tier client, respecting the context's deadline.
func (s *Session) Stop(ctx context.Context) error {
	var firstErr error
	if err := s.fanout.Stop(ctx); err != nil {
		firstErr = err
	}
	if s.archival.Activities != nil {
		if err := s.archival.Activities.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.archival.Audit != nil {
		if err := s.archival.Audit.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, closer := range s.closers {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// OnMutationSuccess is the single entry point for a mutation that succeeded
// upstream: the invalidation policy is applied synchronously, then the event
// is handed to fan-out. Neither path can fail the mutation; if the fan-out
// buffer is full the event is dropped and logged rather than blocking the
// caller.
func (s *Session) OnMutationSuccess(ctx context.Context, event types.MutationEvent) {
	s.Coordinator.OnMutationSuccess(ctx, event)

	select {
	case s.fanout.Input() <- event:
	default:
		s.logger.Warn().Str("mutation_kind", string(event.Kind)).Msg("Fan-out buffer full, dropping mutation event.")
	}
}

// ExplorePage reads one discovery page through the explore store.
func (s *Session) ExplorePage(ctx context.Context, filter, sort, cursor string) (types.ExplorePage, error) {
	return s.explore.Fetch(ctx, cache.ExploreKey(filter, sort, cursor))
}

// LibraryEntry reads one (user, content) library entry through the library
// store.
func (s *Session) LibraryEntry(ctx context.Context, userID, contentID string) (types.LibraryEntry, error) {
	return s.library.Fetch(ctx, cache.LibraryKey(userID, contentID))
}

// maybeCoalesce wraps the fallback in single-flight suppression when the
// session opted in; the default keeps the uncoalesced behaviour.
func maybeCoalesce[K comparable, V any](cfg *Config, fallback cache.Fetcher[K, V]) cache.Fetcher[K, V] {
	if cfg.CoalesceFetches {
		return cache.NewSingleFlightFetcher(fallback)
	}
	return fallback
}

func splitDims(dims string) (string, string) {
	parts := strings.SplitN(dims, "|", 2)
	if len(parts) != 2 {
		return dims, ""
	}
	return parts[0], parts[1]
}
