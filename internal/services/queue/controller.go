package queue

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/ambrook/skirmishd/internal/dependencies/clock"
	"github.com/ambrook/skirmishd/internal/dependencies/random"
	"github.com/ambrook/skirmishd/internal/dispatch"
	"github.com/ambrook/skirmishd/internal/model"
	"github.com/ambrook/skirmishd/internal/services/rating"
	"github.com/ambrook/skirmishd/internal/services/registry"
)

const (
	// EntryIDLength is the length of generated entry identifiers
	EntryIDLength = 12
	// EntryIDAlphabet is the characters used in entry identifiers
	EntryIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// pool holds the standing entries of one queue. All mutation goes through
// the controller's per-pool mutex, so the match search always sees a
// consistent snapshot.
type pool struct {
	cfg     model.QueueConfig
	mu      sync.Mutex
	entries map[model.EntryID]model.QueueEntry
}

// containsLocked reports whether any entry holds the player. Caller holds mu.
func (p *pool) containsLocked(playerID model.PlayerID) bool {
	for _, e := range p.entries {
		if e.Party.Contains(playerID) {
			return true
		}
	}
	return false
}

// Controller manages the configured queues and the lifecycle of their
// entries: join, leave, disconnect eviction, and the reserve/release
// handshake the match search uses to consume entries atomically.
type Controller struct {
	pools      map[model.QueueID]*pool
	registry   *registry.Service
	rating     *rating.Service
	dispatcher *dispatch.Dispatcher
	clock      clock.Clock
	random     random.Random
	logger     *slog.Logger
}

// NewController creates a queue controller for the given queue configs
func NewController(
	configs []model.QueueConfig,
	reg *registry.Service,
	ratingService *rating.Service,
	dispatcher *dispatch.Dispatcher,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Controller {
	pools := make(map[model.QueueID]*pool, len(configs))
	for _, cfg := range configs {
		pools[cfg.ID] = &pool{
			cfg:     cfg,
			entries: make(map[model.EntryID]model.QueueEntry),
		}
	}
	return &Controller{
		pools:      pools,
		registry:   reg,
		rating:     ratingService,
		dispatcher: dispatcher,
		clock:      clock,
		random:     random,
		logger:     logger.With(slog.String("component", "queue")),
	}
}

// Queues returns the configs of all queues, sorted by ID
func (c *Controller) Queues() []model.QueueConfig {
	out := make([]model.QueueConfig, 0, len(c.pools))
	for _, p := range c.pools {
		out = append(out, p.cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Config returns the config of a single queue
func (c *Controller) Config(queueID model.QueueID) (model.QueueConfig, error) {
	p, ok := c.pools[queueID]
	if !ok {
		return model.QueueConfig{}, model.ErrUnknownQueue
	}
	return p.cfg, nil
}

// Size returns the number of entries currently waiting in the queue
func (c *Controller) Size(queueID model.QueueID) (int, error) {
	p, ok := c.pools[queueID]
	if !ok {
		return 0, model.ErrUnknownQueue
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries), nil
}

// Join enters a party into a queue. Every member must be connected and free
// of other commitments; the whole party joins or nobody does. The entry's
// rating is the members' pooled estimate at join time and stays fixed for
// the life of the entry.
func (c *Controller) Join(ctx context.Context, queueID model.QueueID, party model.Party) (model.QueueEntry, error) {
	p, ok := c.pools[queueID]
	if !ok {
		return model.QueueEntry{}, model.ErrUnknownQueue
	}
	if party.Size() < 1 || party.Size() > p.cfg.TeamSize {
		return model.QueueEntry{}, model.ErrInvalidPartySize
	}
	for _, member := range party.Members {
		if !c.registry.IsConnected(member) {
			return model.QueueEntry{}, model.ErrPlayerOffline
		}
	}

	memberRatings := make(map[model.PlayerID]model.Rating, party.Size())
	for _, member := range party.Members {
		est, err := c.rating.Estimate(ctx, member, p.cfg.Mode)
		if err != nil {
			return model.QueueEntry{}, err
		}
		memberRatings[member] = est
	}

	if err := c.registry.BindQueue(party, queueID); err != nil {
		return model.QueueEntry{}, err
	}

	entry := model.QueueEntry{
		ID:       model.EntryID(c.random.String(EntryIDLength, EntryIDAlphabet)),
		QueueID:  queueID,
		Party:    party,
		Rating:   partyRating(memberRatings, party),
		JoinedAt: c.clock.Now(),
	}

	p.mu.Lock()
	p.entries[entry.ID] = entry
	p.mu.Unlock()

	c.logger.Info("party joined queue",
		slog.String("queue_id", string(queueID)),
		slog.String("entry_id", string(entry.ID)),
		slog.Int("party_size", party.Size()),
		slog.Float64("rating_mu", entry.Rating.Mu))

	c.publish(ctx, model.Event{
		Type:      model.EventSearchStarted,
		Timestamp: entry.JoinedAt,
		QueueID:   queueID,
		Affected:  party.Members,
		Payload:   model.SearchStartedPayload{EntryID: entry.ID, Party: party},
	})
	c.notifyCalibrating(ctx, queueID, memberRatings)

	return entry, nil
}

// Leave removes the entry containing the given player from the queue. The
// whole party's entry is removed; a party member cannot leave alone.
func (c *Controller) Leave(ctx context.Context, queueID model.QueueID, playerID model.PlayerID) error {
	return c.remove(ctx, queueID, playerID, "cancelled")
}

// RemoveDisconnected evicts the entry containing a player who dropped.
// Wired as the registry's queue disconnect handler.
func (c *Controller) RemoveDisconnected(ctx context.Context, playerID model.PlayerID) {
	queueID, ok := c.registry.QueueOf(playerID)
	if !ok {
		return
	}
	if err := c.remove(ctx, queueID, playerID, "disconnected"); err != nil {
		c.logger.Warn("failed to evict disconnected player from queue",
			slog.String("player_id", string(playerID)),
			slog.String("queue_id", string(queueID)),
			slog.String("error", err.Error()))
	}
}

func (c *Controller) remove(ctx context.Context, queueID model.QueueID, playerID model.PlayerID, reason string) error {
	p, ok := c.pools[queueID]
	if !ok {
		return model.ErrUnknownQueue
	}

	p.mu.Lock()
	var entry model.QueueEntry
	found := false
	for _, e := range p.entries {
		if e.Party.Contains(playerID) {
			entry = e
			found = true
			break
		}
	}
	if found {
		delete(p.entries, entry.ID)
	}
	p.mu.Unlock()

	if !found {
		return model.ErrNotQueued
	}

	c.registry.UnbindQueue(entry.Party.Members...)

	c.logger.Info("entry left queue",
		slog.String("queue_id", string(queueID)),
		slog.String("entry_id", string(entry.ID)),
		slog.String("reason", reason))

	c.publish(ctx, model.Event{
		Type:      model.EventSearchStopped,
		Timestamp: c.clock.Now(),
		QueueID:   queueID,
		Affected:  entry.Party.Members,
		Payload:   model.SearchStoppedPayload{EntryID: entry.ID, Reason: reason},
	})
	if reason == "disconnected" {
		// Remaining party members learn why their search ended
		c.publish(ctx, model.Event{
			Type:      model.EventQueueRemoved,
			Timestamp: c.clock.Now(),
			QueueID:   queueID,
			Affected:  entry.Party.Members,
			Payload:   model.QueueRemovedPayload{EntryID: entry.ID, Disconnected: playerID},
		})
	}
	return nil
}

// EntryOf returns the queue entry containing the given player, if any
func (c *Controller) EntryOf(playerID model.PlayerID) (model.QueueEntry, bool) {
	queueID, ok := c.registry.QueueOf(playerID)
	if !ok {
		return model.QueueEntry{}, false
	}
	p, ok := c.pools[queueID]
	if !ok {
		return model.QueueEntry{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.entries {
		if e.Party.Contains(playerID) {
			return e, true
		}
	}
	return model.QueueEntry{}, false
}

// Snapshot returns the queue's entries ordered by join time, earliest first.
// The slice is a copy; the pool is free to change afterwards.
func (c *Controller) Snapshot(queueID model.QueueID) ([]model.QueueEntry, error) {
	p, ok := c.pools[queueID]
	if !ok {
		return nil, model.ErrUnknownQueue
	}
	p.mu.Lock()
	out := make([]model.QueueEntry, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e)
	}
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

// Reserve atomically removes the given entries from the pool for session
// confirmation. All-or-nothing: if any entry has already left the pool the
// reservation fails with ErrEntryNotFound and nothing is removed. Registry
// commitments are not touched; the session either moves them with
// BindSession or the entries come back via Release.
func (c *Controller) Reserve(queueID model.QueueID, entryIDs []model.EntryID) ([]model.QueueEntry, error) {
	p, ok := c.pools[queueID]
	if !ok {
		return nil, model.ErrUnknownQueue
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	reserved := make([]model.QueueEntry, 0, len(entryIDs))
	for _, id := range entryIDs {
		e, ok := p.entries[id]
		if !ok {
			return nil, model.ErrEntryNotFound
		}
		reserved = append(reserved, e)
	}
	for _, id := range entryIDs {
		delete(p.entries, id)
	}
	return reserved, nil
}

// Release returns reserved entries to their pool with their original join
// times, so a cancelled match costs the party none of its accrued wait.
// An entry is only requeued while its registry binding is (or can be made)
// its own queue; parties that dropped or committed to another queue in the
// meantime keep their newer state and the entry is discarded.
func (c *Controller) Release(ctx context.Context, entries []model.QueueEntry) {
	for _, entry := range entries {
		p, ok := c.pools[entry.QueueID]
		if !ok {
			continue
		}

		connected := true
		for _, member := range entry.Party.Members {
			if !c.registry.IsConnected(member) {
				connected = false
				break
			}
		}
		if !connected {
			c.registry.UnbindQueue(entry.Party.Members...)
			c.logger.Info("released entry dropped, member offline",
				slog.String("entry_id", string(entry.ID)))
			continue
		}

		leaderQueue, bound := c.registry.QueueOf(entry.Party.Leader)
		if bound && leaderQueue != entry.QueueID {
			c.logger.Info("released entry dropped, party queued elsewhere",
				slog.String("entry_id", string(entry.ID)),
				slog.String("queue_id", string(leaderQueue)))
			continue
		}
		if !bound {
			if err := c.registry.BindQueue(entry.Party, entry.QueueID); err != nil {
				c.logger.Warn("failed to rebind released entry",
					slog.String("entry_id", string(entry.ID)),
					slog.String("error", err.Error()))
				continue
			}
		}

		p.mu.Lock()
		requeued := false
		if !p.containsLocked(entry.Party.Leader) {
			p.entries[entry.ID] = entry
			requeued = true
		}
		p.mu.Unlock()

		if !requeued {
			// The party already holds a fresh entry in this queue
			c.logger.Info("released entry dropped, party rejoined",
				slog.String("entry_id", string(entry.ID)))
			continue
		}

		c.logger.Info("entry returned to queue",
			slog.String("queue_id", string(entry.QueueID)),
			slog.String("entry_id", string(entry.ID)))
	}
}

// Tolerance returns the entry's current acceptable skill gap under the
// queue's widening schedule
func (c *Controller) Tolerance(entry model.QueueEntry) float64 {
	p, ok := c.pools[entry.QueueID]
	if !ok {
		return 0
	}
	return p.cfg.Tolerance(entry.Waited(c.clock.Now()))
}

func (c *Controller) publish(ctx context.Context, event model.Event) {
	if c.dispatcher != nil {
		c.dispatcher.Publish(ctx, event)
	}
}

// notifyCalibrating tells members whose estimate is still converging how far
// along their calibration phase is
func (c *Controller) notifyCalibrating(ctx context.Context, queueID model.QueueID, ratings map[model.PlayerID]model.Rating) {
	for playerID, r := range ratings {
		progress, calibrating := c.rating.CalibrationProgress(r.Sigma)
		if !calibrating {
			continue
		}
		c.publish(ctx, model.Event{
			Type:      model.EventCalibration,
			Timestamp: c.clock.Now(),
			QueueID:   queueID,
			Affected:  []model.PlayerID{playerID},
			Payload:   model.CalibrationPayload{Sigma: r.Sigma, Progress: progress},
		})
	}
}

// partyRating pools the members' estimates into one entry rating: mean skill,
// with uncertainty the root mean square of the members' sigmas
func partyRating(ratings map[model.PlayerID]model.Rating, party model.Party) model.Rating {
	var muSum, varSum float64
	for _, member := range party.Members {
		r := ratings[member]
		muSum += r.Mu
		varSum += r.Sigma * r.Sigma
	}
	n := float64(party.Size())
	return model.Rating{
		Mu:    muSum / n,
		Sigma: math.Sqrt(varSum / n),
	}
}
