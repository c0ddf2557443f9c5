package library

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/igolaizola/sunostudio/pkg/suno"
)

const DefaultInterval = 4 * time.Second

// StatusFetcher returns the canonical status of a remote task.
type StatusFetcher interface {
	Status(ctx context.Context, taskID string) (*suno.CanonicalStatus, error)
}

// Poller periodically refreshes unsettled tasks of a store.
type Poller struct {
	fetcher  StatusFetcher
	store    *Store
	interval time.Duration
	debug    bool

	wg       sync.WaitGroup
	lck      sync.Mutex
	inflight map[string]struct{}
}

type PollerConfig struct {
	Interval time.Duration
	Debug    bool
}

func NewPoller(fetcher StatusFetcher, store *Store, cfg *PollerConfig) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		fetcher:  fetcher,
		store:    store,
		interval: interval,
		debug:    cfg.Debug,
		inflight: map[string]struct{}{},
	}
}

func (p *Poller) log(format string, args ...interface{}) {
	if p.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}

// Run sweeps at every interval until the context is done. In-flight checks
// are cancelled with the context.
func (p *Poller) Run(ctx context.Context) error {
	log.Println("library: poller started")
	defer log.Println("library: poller stopped")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			return nil
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Sweep launches one status check per unsettled task and returns without
// waiting for them. Tasks whose previous check is still running are
// skipped. It returns the number of checks launched.
func (p *Poller) Sweep(ctx context.Context) int {
	var n int
	for _, t := range p.store.Pending() {
		id := t.ID
		p.lck.Lock()
		_, busy := p.inflight[id]
		if !busy {
			p.inflight[id] = struct{}{}
		}
		p.lck.Unlock()
		if busy {
			continue
		}
		n++
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			defer func() {
				p.lck.Lock()
				delete(p.inflight, id)
				p.lck.Unlock()
			}()
			p.poll(ctx, id)
		}()
	}
	return n
}

// Wait blocks until every launched check has finished.
func (p *Poller) Wait() {
	p.wg.Wait()
}

func (p *Poller) poll(ctx context.Context, id string) {
	st, err := p.fetcher.Status(ctx, id)
	if err != nil {
		log.Printf("library: couldn't poll task %s: %v\n", id, err)
		return
	}
	if st == nil || st.TaskID != id {
		p.log("library: discarding status for %s, got task %q", id, taskIDOf(st))
		return
	}
	t, err := p.store.Update(id, func(t Task) Task {
		return Merge(t, st)
	})
	if err != nil {
		log.Printf("library: couldn't update task %s: %v\n", id, err)
		return
	}
	p.log("library: task %s is %s", id, t.Status)
}

func taskIDOf(st *suno.CanonicalStatus) string {
	if st == nil {
		return ""
	}
	return st.TaskID
}
