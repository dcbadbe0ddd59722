// Package poller runs the periodic health checks that drive each
// server's reachability hysteresis and trigger panic migration.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"gitlab.com/infra.run/public/bbblb/pkg/bbb"
	"gitlab.com/infra.run/public/bbblb/pkg/store"
)

// maxReachable and maxUnreachable bound the hysteresis counters. A
// transition fires when, after a cycle's update, the counter equals
// its threshold and the server is still in the state the transition
// leaves; because the transition changes that state, further cycles
// at the threshold do not fire it again.
const (
	maxReachable   = 20
	maxUnreachable = 2
)

// DefaultInterval is how often the scheduler runs a poll cycle when
// Options.Interval is zero.
const DefaultInterval = 30 * time.Second

// PollGrace is how old a meeting must be before it's considered a poll
// candidate, giving a fresh create call room to complete. Meetings
// still holding TempInternalID are never poll candidates.
const PollGrace = 10 * time.Second

// Migrator evacuates a server's meetings once it enters PANIC.
type Migrator interface {
	Migrate(ctx context.Context, server *store.Server) error
}

// Options configure a Scheduler.
type Options struct {
	Interval time.Duration
	SSHUser  string
	Scripts  *ScriptPaths
}

// Scheduler runs the poll loop.
type Scheduler struct {
	registry Registry
	client   *bbb.Client
	migrator Migrator

	interval time.Duration
	sshUser  string
	scripts  *ScriptPaths
}

// New builds a Scheduler.
func New(registry Registry, client *bbb.Client, migrator Migrator, opts *Options) *Scheduler {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		registry: registry,
		client:   client,
		migrator: migrator,
		interval: interval,
		sshUser:  opts.SSHUser,
		scripts:  opts.Scripts,
	}
}

// Run executes poll cycles until ctx is cancelled. Each cycle re-reads
// the server and meeting lists fresh so additions/removals between
// cycles take effect immediately.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle runs exactly one poll cycle: a check bundle per server and
// a liveness probe per candidate meeting, all in parallel, then waits
// for every goroutine to finish before returning.
func (s *Scheduler) runCycle(ctx context.Context) {
	servers, err := s.registry.ListServers(ctx)
	if err != nil {
		log.Error().Err(err).Msg("poller: failed to list servers")
		return
	}
	meetings, err := s.registry.ListCandidateMeetingsForPoll(ctx, PollGrace)
	if err != nil {
		log.Error().Err(err).Msg("poller: failed to list candidate meetings")
		return
	}

	var wg sync.WaitGroup
	for _, server := range servers {
		wg.Add(1)
		go func(server *store.Server) {
			defer wg.Done()
			online := s.runCheckBundle(ctx, server)
			s.applyHysteresis(ctx, server, online)
		}(server)
	}
	for _, meeting := range meetings {
		wg.Add(1)
		go func(meeting *store.Meeting) {
			defer wg.Done()
			s.checkMeetingLiveness(ctx, meeting)
		}(meeting)
	}
	wg.Wait()
}
