//go:generate go run go.uber.org/mock/mockgen -source=directory.go -destination=../mocks/mock_directory.go -package=mocks

package service

import (
	"context"
	"sync"
	"time"

	"github.com/chat-service/internal/logger"
	"github.com/chat-service/internal/model"
	"github.com/chat-service/internal/storage"
	"github.com/samber/lo"
)

// DefaultProfileTTL: время жизни профиля в кеше по умолчанию.
const DefaultProfileTTL = 10 * time.Minute

// ProfileFetcher: удалённый сервис идентификации, один вызов на пачку id.
type ProfileFetcher interface {
	FetchProfiles(ctx context.Context, ids []int64) (map[int64]model.RemoteUserProfile, error)
}

// Resolver превращает id в профили по схеме cache-aside: сначала кеш, затем один пакетный
// запрос за промахами, результаты которого прогревают кеш.
type Resolver struct {
	cache    storage.ProfileCache
	fetcher  ProfileFetcher
	ttl      time.Duration
	coalesce bool

	mu       sync.Mutex
	inflight map[int64]*fetchCall
}

type fetchCall struct {
	done     chan struct{}
	profiles map[int64]model.RemoteUserProfile
}

type ResolverOption func(*Resolver)

// WithCoalescing: параллельные Resolve делят запросы, уже летящие за теми же id,
// вместо повторного запроса за тем же промахом.
func WithCoalescing(on bool) ResolverOption { return func(r *Resolver) { r.coalesce = on } }

func NewResolver(cache storage.ProfileCache, fetcher ProfileFetcher, ttl time.Duration, opts ...ResolverOption) *Resolver {
	if ttl <= 0 {
		ttl = DefaultProfileTTL
	}
	r := &Resolver{
		cache:    cache,
		fetcher:  fetcher,
		ttl:      ttl,
		inflight: make(map[int64]*fetchCall),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve не возвращает ошибок: id, которые не удалось получить, в результате отсутствуют.
func (r *Resolver) Resolve(ctx context.Context, ids []int64) map[int64]model.RemoteUserProfile {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return map[int64]model.RemoteUserProfile{}
	}
	defer logger.DeferLogDuration("resolver.Resolve", time.Now())()

	result, err := r.cache.GetMany(ctx, ids)
	if err != nil {
		logger.Warnf("resolver: cache read for %d ids: %v", len(ids), err)
		result = make(map[int64]model.RemoteUserProfile, len(ids))
	}
	missing := lo.Filter(ids, func(id int64, _ int) bool {
		_, ok := result[id]
		return !ok
	})
	if len(missing) == 0 {
		return result
	}

	if !r.coalesce {
		for id, p := range r.fetch(ctx, missing) {
			result[id] = p
		}
		return result
	}
	r.resolveShared(ctx, missing, result)
	return result
}

// sharedFetchTimeout ограничивает общий запрос, который больше не привязан к контексту инициатора.
const sharedFetchTimeout = 15 * time.Second

// resolveShared запрашивает одной пачкой id, которые никто не тянет, и ждёт остальные.
// Общий запрос идёт на контексте без отмены: уход инициатора не лишает профилей других ждущих.
func (r *Resolver) resolveShared(ctx context.Context, missing []int64, result map[int64]model.RemoteUserProfile) {
	var own []int64
	waits := make(map[int64]*fetchCall, len(missing))

	r.mu.Lock()
	for _, id := range missing {
		if c, ok := r.inflight[id]; ok {
			waits[id] = c
			continue
		}
		own = append(own, id)
	}
	if len(own) > 0 {
		call := &fetchCall{done: make(chan struct{})}
		for _, id := range own {
			r.inflight[id] = call
			waits[id] = call
		}
		go r.runShared(context.WithoutCancel(ctx), call, own)
	}
	r.mu.Unlock()

	for id, c := range waits {
		select {
		case <-c.done:
			if p, ok := c.profiles[id]; ok {
				result[id] = p
			}
		case <-ctx.Done():
			return
		}
	}
}

func (r *Resolver) runShared(ctx context.Context, call *fetchCall, ids []int64) {
	ctx, cancel := context.WithTimeout(ctx, sharedFetchTimeout)
	defer cancel()
	call.profiles = r.fetch(ctx, ids)
	r.mu.Lock()
	for _, id := range ids {
		delete(r.inflight, id)
	}
	r.mu.Unlock()
	close(call.done)
}

// fetch делает один запрос в сервис идентификации и прогревает кеш. При сбое профилей нет.
func (r *Resolver) fetch(ctx context.Context, ids []int64) map[int64]model.RemoteUserProfile {
	fetched, err := r.fetcher.FetchProfiles(ctx, ids)
	if err != nil {
		logger.Warnf("resolver: fetch %d profiles: %v", len(ids), err)
		return nil
	}
	for _, p := range fetched {
		if err := r.cache.Put(ctx, p, r.ttl); err != nil {
			logger.Warnf("resolver: cache put user %d: %v", p.ID, err)
		}
	}
	return fetched
}
