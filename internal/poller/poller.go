// Package poller owns the live per-symbol state and the timer that keeps it
// fresh: each tick filters the watchlist through the trading-window gate,
// issues one batched quote fetch, merges the results, evaluates alert rules,
// and persists the day's snapshot.
package poller

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/alert"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/market"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/metrics"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/models"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/portfolio"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/quote"
)

// Provider issues one batched quote fetch. Missing symbols are simply absent
// from the result; the provider never errors into the loop.
type Provider interface {
	FetchQuotes(ctx context.Context, symbols []string) map[string]models.Quote
}

// Store is the durable-store surface the poller needs.
type Store interface {
	LoadHoldings(ctx context.Context) (*models.HoldingsConfig, error)
	ConfigRevision(ctx context.Context) (int64, error)
	SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error
}

// QuoteCache persists previous closes across restarts and shares fetched
// quotes with other consumers. Optional.
type QuoteCache interface {
	GetPreviousClose(ctx context.Context, date, symbol string) (float64, error)
	SetPreviousClose(ctx context.Context, date, symbol string, close float64, ttl time.Duration) error
	SetQuote(ctx context.Context, q models.Quote, ttl time.Duration) error
}

// Notifier receives fired alerts. Implementations are fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, event models.AlertEvent)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, event models.AlertEvent)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, event models.AlertEvent) {
	f(ctx, event)
}

// Options configures the poll loop.
type Options struct {
	Interval      time.Duration
	ConfigRefresh time.Duration
	FetchTimeout  time.Duration
	CostMethod    portfolio.CostMethod
}

func (o *Options) fill() {
	if o.Interval <= 0 {
		o.Interval = 5 * time.Second
	}
	if o.ConfigRefresh <= 0 {
		o.ConfigRefresh = 30 * time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 10 * time.Second
	}
	if o.CostMethod == "" {
		o.CostMethod = portfolio.MethodAverage
	}
}

// Poller drives the fetch/merge/alert cycle. All writes to the state map
// funnel through the apply step under the mutex; overlapping in-flight
// fetches are allowed and resolve last-write-wins per symbol.
type Poller struct {
	store     Store
	provider  Provider
	opts      Options
	cache     QuoteCache
	notifiers []Notifier
	broadcast func(any)

	now func() time.Time

	mu     sync.RWMutex
	cfg    *models.HoldingsConfig
	state  map[string]*models.SymbolState
	closed bool
}

// New creates a poller. Cache, notifiers and broadcast hook are optional.
func New(store Store, provider Provider, opts Options) *Poller {
	opts.fill()
	return &Poller{
		store:    store,
		provider: provider,
		opts:     opts,
		now:      time.Now,
		cfg:      models.DefaultHoldingsConfig(),
		state:    make(map[string]*models.SymbolState),
	}
}

// WithCache attaches the quote cache.
func (p *Poller) WithCache(cache QuoteCache) *Poller {
	p.cache = cache
	return p
}

// AddNotifier registers a fired-alert sink.
func (p *Poller) AddNotifier(n Notifier) {
	p.notifiers = append(p.notifiers, n)
}

// SetBroadcast registers the dashboard push hook, called after every
// applied merge.
func (p *Poller) SetBroadcast(fn func(any)) {
	p.broadcast = fn
}

// ApplyConfig replaces the watchlist. Live quote fields survive for symbols
// that stay; positions are recomputed from the transaction lists and all
// alert triggers re-arm so edited rules start in the armed state.
func (p *Poller) ApplyConfig(cfg *models.HoldingsConfig) {
	cfg.Normalize()
	method := p.opts.CostMethod
	if cfg.CostMethod != "" {
		method = portfolio.ParseMethod(cfg.CostMethod)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	next := make(map[string]*models.SymbolState, len(cfg.Stocks))
	for code, entry := range cfg.Stocks {
		st := &models.SymbolState{
			Code:      code,
			Name:      entry.Name,
			Triggered: make(map[string]struct{}),
		}
		if prev, ok := p.state[code]; ok {
			st.Name = prev.Name
			st.LastPrice = prev.LastPrice
			st.PreviousClose = prev.PreviousClose
			st.LastUpdateTime = prev.LastUpdateTime
			st.LastChangePct = prev.LastChangePct
		}
		if st.Name == "" {
			st.Name = code
		}
		st.Position = portfolio.Compute(entry.Transactions, method)
		st.Alerts = append([]models.AlertRule(nil), entry.Alerts...)
		next[code] = st
	}
	p.cfg = cfg
	p.state = next
	metrics.TrackedSymbols.Set(float64(len(next)))
}

// Reload re-reads the stored config and applies it. The API mutation path
// calls this so edits take effect on the next tick.
func (p *Poller) Reload(ctx context.Context) error {
	cfg, err := p.store.LoadHoldings(ctx)
	if err != nil {
		return err
	}
	if cfg == nil {
		cfg = models.DefaultHoldingsConfig()
	}
	p.ApplyConfig(cfg)
	return nil
}

// Run drives the loop until ctx is cancelled. The first fetch skips the
// trading-window gate so the dashboard is populated immediately.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.Reload(ctx); err != nil {
		log.Printf("Initial config load failed: %v (starting empty)", err)
	}
	p.tick(ctx, true)

	interval := p.effectiveInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	refresh := time.NewTicker(p.opts.ConfigRefresh)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			p.Close()
			return nil
		case <-ticker.C:
			p.tick(ctx, false)
		case <-refresh.C:
			p.refreshConfig(ctx)
			if next := p.effectiveInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
				log.Printf("Poll interval now %s", interval)
			}
		}
	}
}

// Close marks the poller dead; fetch results still in flight are discarded
// when they arrive.
func (p *Poller) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// effectiveInterval is the configured tick period, with the stored config's
// per-deployment override taking precedence.
func (p *Poller) effectiveInterval() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cfg.PollIntervalSeconds > 0 {
		return time.Duration(p.cfg.PollIntervalSeconds) * time.Second
	}
	return p.opts.Interval
}

// tick runs one scheduling step. The fetch happens on its own goroutine so
// a slow provider never delays the next tick.
func (p *Poller) tick(ctx context.Context, ignoreGate bool) {
	now := p.now()
	if market.AfterHardStop(now) {
		metrics.PollTicks.WithLabelValues("hard_stop").Inc()
		return
	}

	eligible := p.eligibleSymbols(now, ignoreGate)
	if len(eligible) == 0 {
		metrics.PollTicks.WithLabelValues("no_eligible").Inc()
		return
	}
	metrics.PollTicks.WithLabelValues("polled").Inc()

	go func() {
		fetchCtx, cancel := context.WithTimeout(ctx, p.opts.FetchTimeout)
		defer cancel()
		batch := p.provider.FetchQuotes(fetchCtx, eligible)
		p.apply(ctx, batch, len(eligible))
	}()
}

func (p *Poller) eligibleSymbols(now time.Time, ignoreGate bool) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	eligible := make([]string, 0, len(p.state))
	for code := range p.state {
		if ignoreGate || market.IsTradingNow(code, p.cfg.MarketHours, now) {
			eligible = append(eligible, code)
		}
	}
	return eligible
}

// apply merges a batch into the state, evaluates alerts, and kicks off the
// snapshot write. Safe to call from any goroutine; results arriving after
// Close are dropped.
func (p *Poller) apply(ctx context.Context, batch map[string]models.Quote, requested int) {
	p.enrichPreviousClose(ctx, batch)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		metrics.StaleResults.Inc()
		return
	}

	old := p.state
	next := quote.Merge(batch, old)
	p.state = next

	merged := 0
	var fired []models.AlertEvent
	now := p.now()
	for code, st := range next {
		q, ok := batch[code]
		if !ok {
			continue
		}
		merged++

		var previous *float64
		if prev, ok := old[code]; ok && prev.LastPrice != nil {
			previous = prev.LastPrice
		}
		for _, rule := range alert.Evaluate(q.Price, previous, st.Alerts, st.Triggered) {
			metrics.AlertsFired.WithLabelValues(string(rule.Type)).Inc()
			fired = append(fired, models.AlertEvent{
				Symbol:    code,
				Name:      st.Name,
				Rule:      rule,
				Price:     q.Price,
				Timestamp: now.UTC(),
			})
		}
	}
	snapshot := p.buildSnapshotLocked(now)
	view := p.dashboardLocked(now)
	p.mu.Unlock()

	metrics.QuotesMerged.Add(float64(merged))
	if miss := requested - merged; miss > 0 {
		metrics.FetchMisses.Add(float64(miss))
	}

	if p.cache != nil {
		for _, q := range batch {
			if err := p.cache.SetQuote(ctx, q, time.Minute); err != nil {
				log.Printf("Quote cache write failed for %s: %v", q.Code, err)
			}
		}
	}

	for _, event := range fired {
		for _, n := range p.notifiers {
			n.Notify(ctx, event)
		}
	}
	if p.broadcast != nil {
		p.broadcast(view)
	}

	// Fire and forget: a failed snapshot write is a log line, never a
	// failed tick.
	go func() {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.store.SaveSnapshot(saveCtx, snapshot); err != nil {
			metrics.SnapshotFailures.Inc()
			log.Printf("Snapshot save failed for %s: %v", snapshot.Date, err)
		}
	}()
}

// enrichPreviousClose fills quotes that arrived without a previous close
// from the live state or the cache, and caches closes that did arrive.
func (p *Poller) enrichPreviousClose(ctx context.Context, batch map[string]models.Quote) {
	date := p.now().Format("2006-01-02")
	for code, q := range batch {
		if q.PreviousClose > 0 {
			if p.cache != nil {
				if err := p.cache.SetPreviousClose(ctx, date, code, q.PreviousClose, 24*time.Hour); err != nil {
					log.Printf("Previous-close cache write failed for %s: %v", code, err)
				}
			}
			continue
		}

		p.mu.RLock()
		st, ok := p.state[code]
		var known float64
		if ok {
			known = st.PreviousClose
		}
		p.mu.RUnlock()

		if known <= 0 && p.cache != nil {
			if cached, err := p.cache.GetPreviousClose(ctx, date, code); err == nil {
				known = cached
			}
		}
		if known <= 0 {
			// Last resort: treat the current price as the close so
			// change% reads zero rather than garbage.
			known = q.Price
		}
		q.PreviousClose = known
		batch[code] = q
	}
}

func (p *Poller) refreshConfig(ctx context.Context) {
	revision, err := p.store.ConfigRevision(ctx)
	if err != nil {
		log.Printf("Config revision check failed: %v", err)
		return
	}

	p.mu.RLock()
	current := p.cfg.Revision
	p.mu.RUnlock()
	if revision == current {
		return
	}

	if err := p.Reload(ctx); err != nil {
		log.Printf("Config reload failed: %v", err)
		return
	}
	log.Printf("Applied config revision %d (was %d)", revision, current)
}
