// Package hub serialises all changes to a roster. There is one hub per channel; each hub runs the jobs for its
// roster one after another, every job sees the stored roster, mutates it and the result is written back.
package hub

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/tcriess/lightspeed-roster/globals"
	"github.com/tcriess/lightspeed-roster/persistence"
	"github.com/tcriess/lightspeed-roster/roster"
)

const lockRetryDelay = 50 * time.Millisecond

// ErrStopped is returned by Hub.Do once the hub has been stopped.
var ErrStopped = errors.New("hub stopped")

// Tx is the roster of one channel as seen by a job. Roster is nil if the channel has no roster.
type Tx struct {
	ChannelID string
	Roster    *roster.Roster
	deleted   bool
}

// Create replaces the roster of the channel.
func (tx *Tx) Create(r *roster.Roster) {
	tx.Roster = r
	tx.deleted = false
}

// Delete removes the roster once the job returns successfully.
func (tx *Tx) Delete() {
	tx.Roster = nil
	tx.deleted = true
}

// A Job changes a roster. If it returns an error nothing is written.
type Job func(ctx context.Context, tx *Tx) error

type outcome struct {
	present bool
	err     error
}

type request struct {
	ctx    context.Context
	job    Job
	result chan outcome
}

type Hub struct {
	// there is one hub per channel
	channelID string

	persister persistence.Persister

	// optional lock file shared with other processes, nil if not configured
	fileLock *flock.Flock

	requests chan *request
	quit     chan struct{}
	stopped  chan struct{}
}

// NewHub creates a hub for the channel. If lockDir is not empty, every job also holds <lockDir>/<channel>.lock.
func NewHub(channelID string, persister persistence.Persister, lockDir string) *Hub {
	h := &Hub{
		channelID: channelID,
		persister: persister,
		requests:  make(chan *request),
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	if lockDir != "" {
		h.fileLock = flock.New(filepath.Join(lockDir, channelID+".lock"))
	}
	return h
}

// Run processes jobs until Stop is called.
func (h *Hub) Run() {
	defer close(h.stopped)
	globals.AppLogger.Debug("start hub run loop", "channel", h.channelID)
	for {
		select {
		case req := <-h.requests:
			present, err := h.process(req.ctx, req.job)
			req.result <- outcome{present: present, err: err}

		case <-h.quit:
			globals.AppLogger.Debug("stop hub run loop", "channel", h.channelID)
			return
		}
	}
}

// Stop ends the run loop and waits for the current job to finish.
func (h *Hub) Stop() {
	close(h.quit)
	<-h.stopped
}

// Do runs job on the hub's goroutine and waits for it. present reports whether the channel has a roster
// after the job.
func (h *Hub) Do(ctx context.Context, job Job) (present bool, err error) {
	req := &request{ctx: ctx, job: job, result: make(chan outcome, 1)}
	select {
	case h.requests <- req:
	case <-h.quit:
		return false, ErrStopped
	case <-ctx.Done():
		return false, ctx.Err()
	}
	res := <-req.result
	return res.present, res.err
}

func (h *Hub) process(ctx context.Context, job Job) (bool, error) {
	if h.fileLock != nil {
		locked, err := h.fileLock.TryLockContext(ctx, lockRetryDelay)
		if err != nil {
			return true, fmt.Errorf("could not lock %s: %w", h.fileLock.Path(), err)
		}
		if !locked {
			return true, fmt.Errorf("could not lock %s", h.fileLock.Path())
		}
		defer h.fileLock.Unlock()
	}

	tx := &Tx{ChannelID: h.channelID}
	snapshot, err := h.persister.GetRoster(ctx, h.channelID)
	switch {
	case err == nil:
		tx.Roster, err = roster.FromSnapshot(*snapshot)
		if err != nil {
			return true, fmt.Errorf("could not restore roster %s: %w", h.channelID, err)
		}
	case errors.Is(err, persistence.ErrNotFound):
	default:
		return true, err
	}
	existed := tx.Roster != nil
	var before uint64
	if existed {
		if before, err = tx.Roster.Fingerprint(); err != nil {
			return true, err
		}
	}

	if err = job(ctx, tx); err != nil {
		return existed, err
	}

	if tx.Roster == nil {
		if existed && tx.deleted {
			if err = h.persister.DeleteRoster(ctx, h.channelID); err != nil {
				return true, err
			}
			globals.AppLogger.Debug("deleted roster", "channel", h.channelID)
		}
		return !tx.deleted && existed, nil
	}
	after, err := tx.Roster.Fingerprint()
	if err != nil {
		return true, err
	}
	if existed && after == before {
		return true, nil
	}
	s := tx.Roster.ToSnapshot()
	if err = h.persister.StoreRoster(ctx, h.channelID, &s); err != nil {
		return existed, err
	}
	return true, nil
}

// Registry keeps the running hubs by channel id.
type Registry struct {
	persister persistence.Persister
	lockDir   string

	hubs map[string]*Hub
	sync.Mutex
}

// NewRegistry creates an empty registry, lockDir is created if it does not exist yet.
func NewRegistry(persister persistence.Persister, lockDir string) (*Registry, error) {
	if lockDir != "" {
		if err := os.MkdirAll(lockDir, 0o755); err != nil {
			return nil, err
		}
	}
	return &Registry{
		persister: persister,
		lockDir:   lockDir,
		hubs:      make(map[string]*Hub),
	}, nil
}

func (r *Registry) hub(channelID string) *Hub {
	r.Lock()
	defer r.Unlock()
	if h, ok := r.hubs[channelID]; ok {
		return h
	}
	h := NewHub(channelID, r.persister, r.lockDir)
	r.hubs[channelID] = h
	go h.Run()
	return h
}

// remove stops the hub while holding the registry lock, so no second hub for the channel can start before all
// jobs already accepted by this one are done.
func (r *Registry) remove(channelID string, h *Hub) {
	r.Lock()
	defer r.Unlock()
	if r.hubs[channelID] != h {
		return
	}
	delete(r.hubs, channelID)
	h.Stop()
}

// Do runs job for the roster of channelID. Hubs of channels without a roster are stopped after the job.
func (r *Registry) Do(ctx context.Context, channelID string, job Job) error {
	for {
		h := r.hub(channelID)
		present, err := h.Do(ctx, job)
		if errors.Is(err, ErrStopped) {
			continue
		}
		if err == nil && !present {
			r.remove(channelID, h)
		}
		return err
	}
}

// Len returns the number of running hubs.
func (r *Registry) Len() int {
	r.Lock()
	defer r.Unlock()
	return len(r.hubs)
}

// Close stops all hubs.
func (r *Registry) Close() {
	r.Lock()
	defer r.Unlock()
	for channelID, h := range r.hubs {
		h.Stop()
		delete(r.hubs, channelID)
	}
}
