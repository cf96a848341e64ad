package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

type StatsSnapshot struct {
	PostingsFetched  uint64            `json:"postings_fetched"`
	PostingsEmbedded uint64            `json:"postings_embedded"`
	EmbedCalls       uint64            `json:"embed_calls"`
	URLsValidated    uint64            `json:"urls_validated"`
	URLsRejected     uint64            `json:"urls_rejected"`
	ErrorsTotal      uint64            `json:"errors_total"`
	FetchSecondsAvg  float64           `json:"fetch_seconds_avg"`
	MatchSecondsAvg  float64           `json:"match_seconds_avg"`
	CacheHits        uint64            `json:"cache_hits"`
	CacheMisses      uint64            `json:"cache_misses"`
	LastRefreshAt    *time.Time        `json:"last_refresh_at,omitempty"`
	FetchBySource    map[string]uint64 `json:"fetch_by_source,omitempty"`
	ErrorsByType     map[string]uint64 `json:"errors_by_type,omitempty"`
}

var (
	postingsFetched  uint64
	postingsEmbedded uint64
	embedCalls       uint64
	urlsValidated    uint64
	urlsRejected     uint64
	errorsTotal      uint64
	cacheHits        uint64
	cacheMisses      uint64

	fetchCount uint64
	fetchNanos uint64
	matchCount uint64
	matchNanos uint64

	statsMu       sync.Mutex
	fetchBySource = map[string]uint64{}
	errorsByType  = map[string]uint64{}
	lastRefresh   time.Time
)

func IncPostingsFetched(sourceName string, n int) {
	if n <= 0 {
		return
	}
	atomic.AddUint64(&postingsFetched, uint64(n))
	if sourceName == "" {
		sourceName = "unknown"
	}
	statsMu.Lock()
	fetchBySource[sourceName] += uint64(n)
	statsMu.Unlock()
}

func IncPostingsEmbedded(n int) {
	if n > 0 {
		atomic.AddUint64(&postingsEmbedded, uint64(n))
	}
}

func IncEmbedCall() {
	atomic.AddUint64(&embedCalls, 1)
}

func IncURLValidated(ok bool) {
	atomic.AddUint64(&urlsValidated, 1)
	if !ok {
		atomic.AddUint64(&urlsRejected, 1)
	}
}

func IncCacheHit() {
	atomic.AddUint64(&cacheHits, 1)
}

func IncCacheMiss() {
	atomic.AddUint64(&cacheMisses, 1)
}

func IncError(errType string) {
	if errType == "" {
		errType = "unknown"
	}
	atomic.AddUint64(&errorsTotal, 1)
	statsMu.Lock()
	errorsByType[errType]++
	statsMu.Unlock()
}

func ObserveFetchDuration(seconds float64) {
	if seconds <= 0 {
		return
	}
	atomic.AddUint64(&fetchCount, 1)
	atomic.AddUint64(&fetchNanos, uint64(seconds*1e9))
}

func ObserveMatchDuration(seconds float64) {
	if seconds <= 0 {
		return
	}
	atomic.AddUint64(&matchCount, 1)
	atomic.AddUint64(&matchNanos, uint64(seconds*1e9))
}

func SetLastRefresh(t time.Time) {
	statsMu.Lock()
	lastRefresh = t
	statsMu.Unlock()
}

func Snapshot() StatsSnapshot {
	statsMu.Lock()
	sourceCopy := copyMap(fetchBySource)
	errorsCopy := copyMap(errorsByType)
	refreshedAt := lastRefresh
	statsMu.Unlock()

	snap := StatsSnapshot{
		PostingsFetched:  atomic.LoadUint64(&postingsFetched),
		PostingsEmbedded: atomic.LoadUint64(&postingsEmbedded),
		EmbedCalls:       atomic.LoadUint64(&embedCalls),
		URLsValidated:    atomic.LoadUint64(&urlsValidated),
		URLsRejected:     atomic.LoadUint64(&urlsRejected),
		ErrorsTotal:      atomic.LoadUint64(&errorsTotal),
		FetchSecondsAvg:  avgSeconds(&fetchCount, &fetchNanos),
		MatchSecondsAvg:  avgSeconds(&matchCount, &matchNanos),
		CacheHits:        atomic.LoadUint64(&cacheHits),
		CacheMisses:      atomic.LoadUint64(&cacheMisses),
		FetchBySource:    sourceCopy,
		ErrorsByType:     errorsCopy,
	}
	if !refreshedAt.IsZero() {
		snap.LastRefreshAt = &refreshedAt
	}
	return snap
}

func avgSeconds(count, nanos *uint64) float64 {
	c := atomic.LoadUint64(count)
	if c == 0 {
		return 0
	}
	return float64(atomic.LoadUint64(nanos)) / float64(c) / 1e9
}

func copyMap(src map[string]uint64) map[string]uint64 {
	if len(src) == 0 {
		return map[string]uint64{}
	}
	out := make(map[string]uint64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
