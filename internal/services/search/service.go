package search

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/ambrook/skirmishd/internal/dependencies/clock"
	"github.com/ambrook/skirmishd/internal/model"
	"github.com/ambrook/skirmishd/internal/services/queue"
)

// Config bounds the combinatorial search so a deep pool stays tractable
type Config struct {
	// MaxWindow caps how many compatible entries are considered around one
	// anchor entry. The subset search within a window is exponential in the
	// worst case, so this is the primary complexity bound: one tick costs at
	// most O(pool * MaxExpansions).
	MaxWindow int
	// MaxExpansions caps DFS node expansions per window
	MaxExpansions int
	// UncertaintyWeight scales how much a spread in team uncertainty worsens
	// a partition's score relative to the team skill gap
	UncertaintyWeight float64
}

// DefaultConfig returns the default search bounds
func DefaultConfig() Config {
	return Config{
		MaxWindow:         16,
		MaxExpansions:     4096,
		UncertaintyWeight: 0.5,
	}
}

// Service finds balanced matches in a queue's pool. One call inspects the
// pool once, emits zero or more disjoint candidates, and reserves their
// entries out of the pool so the same entry can never be booked twice in a
// tick.
type Service struct {
	queues *queue.Controller
	cfg    Config
	clock  clock.Clock
	logger *slog.Logger
}

// New creates a new search service
func New(queues *queue.Controller, cfg Config, clock clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		queues: queues,
		cfg:    cfg,
		clock:  clock,
		logger: logger.With(slog.String("component", "search")),
	}
}

// searchEntry pairs a pool entry with its tolerance at search time
type searchEntry struct {
	entry     model.QueueEntry
	tolerance float64
}

// compatible reports whether two entries accept each other: the skill gap
// must fit within both entries' current tolerance
func compatible(a, b searchEntry) bool {
	gap := math.Abs(a.entry.Rating.Mu - b.entry.Rating.Mu)
	return gap <= a.tolerance && gap <= b.tolerance
}

// Search runs one matchmaking pass over the queue's pool. Entries included
// in a returned candidate have been reserved out of the pool; the session
// machine either confirms them or releases them back.
//
// The pass walks entries oldest first. Each unmatched entry anchors a window
// of up to MaxWindow mutually-waiting compatible entries; within the window
// a bounded depth-first search picks the first subset (in wait order, so
// longer waits win ties) that fills the match and admits a whole-party team
// partition. The best partition of that subset by fairness becomes the
// candidate.
func (s *Service) Search(ctx context.Context, queueID model.QueueID) ([]model.MatchCandidate, error) {
	cfg, err := s.queues.Config(queueID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.queues.Snapshot(queueID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	entries := make([]searchEntry, len(snapshot))
	for i, e := range snapshot {
		entries[i] = searchEntry{entry: e, tolerance: cfg.Tolerance(e.Waited(now))}
	}

	candidates := s.findCandidates(cfg, entries)

	confirmed := make([]model.MatchCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		ids := make([]model.EntryID, 0, len(candidate.Teams))
		for _, e := range candidate.Entries() {
			ids = append(ids, e.ID)
		}
		if _, err := s.queues.Reserve(queueID, ids); err != nil {
			// Entry left between snapshot and reserve; drop the candidate,
			// the remaining entries get matched on the next tick
			s.logger.Info("candidate dropped, entry no longer in pool",
				slog.String("queue_id", string(queueID)))
			continue
		}
		confirmed = append(confirmed, candidate)
	}

	if len(confirmed) > 0 {
		s.logger.Info("search produced candidates",
			slog.String("queue_id", string(queueID)),
			slog.Int("pool_size", len(snapshot)),
			slog.Int("candidates", len(confirmed)))
	}
	return confirmed, nil
}

// findCandidates computes disjoint candidates over a snapshot. Pure given
// the entries and their tolerances.
func (s *Service) findCandidates(cfg model.QueueConfig, entries []searchEntry) []model.MatchCandidate {
	need := cfg.PlayersPerMatch()
	var candidates []model.MatchCandidate

	used := make(map[model.EntryID]bool)
	now := s.clock.Now()

	for i := range entries {
		anchor := entries[i]
		if used[anchor.entry.ID] {
			continue
		}

		window := s.collectWindow(anchor, entries, used)
		if totalPlayers(window) < need {
			continue
		}

		subset, teams, fairness, ok := s.selectSubset(window, cfg)
		if !ok {
			continue
		}

		for _, e := range subset {
			used[e.entry.ID] = true
		}
		candidates = append(candidates, model.MatchCandidate{
			QueueID:  cfg.ID,
			Teams:    teams,
			Fairness: fairness,
			FoundAt:  now,
		})
	}
	return candidates
}

// collectWindow gathers entries compatible with the anchor, in wait order
// with the anchor first, capped at MaxWindow
func (s *Service) collectWindow(anchor searchEntry, entries []searchEntry, used map[model.EntryID]bool) []searchEntry {
	window := []searchEntry{anchor}
	for _, e := range entries {
		if len(window) >= s.cfg.MaxWindow {
			break
		}
		if e.entry.ID == anchor.entry.ID || used[e.entry.ID] {
			continue
		}
		if compatible(anchor, e) {
			window = append(window, e)
		}
	}
	return window
}

// selectSubset runs the bounded DFS over the window. The anchor (window[0])
// is always included; the first subset in DFS order that fills the match
// with pairwise-compatible entries and admits a valid partition wins, which
// prefers the longest-waiting companions.
func (s *Service) selectSubset(window []searchEntry, cfg model.QueueConfig) ([]searchEntry, []model.Team, float64, bool) {
	need := cfg.PlayersPerMatch()
	expansions := 0

	var found []searchEntry
	var foundTeams []model.Team
	var foundFairness float64

	var extend func(chosen []searchEntry, next, size int) bool
	extend = func(chosen []searchEntry, next, size int) bool {
		if size == need {
			teams, fairness, ok := s.partitionTeams(chosen, cfg)
			if !ok {
				return false
			}
			found = append([]searchEntry(nil), chosen...)
			foundTeams = teams
			foundFairness = fairness
			return true
		}
		for i := next; i < len(window); i++ {
			if expansions >= s.cfg.MaxExpansions {
				return false
			}
			e := window[i]
			if size+e.entry.Party.Size() > need {
				continue
			}
			if !compatibleWithAll(chosen, e) {
				continue
			}
			expansions++
			if extend(append(chosen, e), i+1, size+e.entry.Party.Size()) {
				return true
			}
		}
		return false
	}

	anchor := window[0]
	if !extend([]searchEntry{anchor}, 1, anchor.entry.Party.Size()) {
		return nil, nil, 0, false
	}
	return found, foundTeams, foundFairness, true
}

func compatibleWithAll(chosen []searchEntry, e searchEntry) bool {
	for _, c := range chosen {
		if !compatible(c, e) {
			return false
		}
	}
	return true
}

func totalPlayers(entries []searchEntry) int {
	n := 0
	for _, e := range entries {
		n += e.entry.Party.Size()
	}
	return n
}

// partitionTeams places whole parties onto teams of exactly TeamSize,
// enumerating assignments largest-party first and keeping the one with the
// lowest score: the maximum pairwise team skill gap plus a weighted penalty
// for uneven team uncertainty. Fails when the party sizes cannot tile the
// teams, e.g. three parties of two into teams of three.
func (s *Service) partitionTeams(chosen []searchEntry, cfg model.QueueConfig) ([]model.Team, float64, bool) {
	entries := make([]model.QueueEntry, len(chosen))
	for i, e := range chosen {
		entries[i] = e.entry
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Party.Size() > entries[j].Party.Size()
	})

	teams := make([][]model.QueueEntry, cfg.TeamCount)
	sizes := make([]int, cfg.TeamCount)

	var best []model.Team
	bestScore := math.Inf(1)
	var bestFairness float64

	var assign func(i int)
	assign = func(i int) {
		if i == len(entries) {
			built := make([]model.Team, cfg.TeamCount)
			for t := range teams {
				built[t] = model.Team{Entries: append([]model.QueueEntry(nil), teams[t]...)}
			}
			score, fairness := scoreTeams(built, s.cfg.UncertaintyWeight)
			if score < bestScore {
				bestScore = score
				bestFairness = fairness
				best = built
			}
			return
		}
		triedEmpty := false
		for t := 0; t < cfg.TeamCount; t++ {
			if sizes[t]+entries[i].Party.Size() > cfg.TeamSize {
				continue
			}
			// Empty teams are interchangeable; trying more than one only
			// revisits mirrored assignments
			if sizes[t] == 0 {
				if triedEmpty {
					continue
				}
				triedEmpty = true
			}
			teams[t] = append(teams[t], entries[i])
			sizes[t] += entries[i].Party.Size()
			assign(i + 1)
			teams[t] = teams[t][:len(teams[t])-1]
			sizes[t] -= entries[i].Party.Size()
		}
	}
	assign(0)

	if best == nil {
		return nil, 0, false
	}
	return best, bestFairness, true
}

// scoreTeams returns the partition score and the fairness figure recorded on
// the candidate. Fairness is the maximum pairwise gap between team skill
// means; the score adds the spread in team uncertainty so that, between
// mean-equal partitions, the one with comparably predictable teams wins.
func scoreTeams(teams []model.Team, uncertaintyWeight float64) (score, fairness float64) {
	ratings := make([]model.Rating, len(teams))
	for i, t := range teams {
		ratings[i] = t.Rating()
	}

	var maxGap float64
	for i := 0; i < len(ratings); i++ {
		for j := i + 1; j < len(ratings); j++ {
			if gap := math.Abs(ratings[i].Mu - ratings[j].Mu); gap > maxGap {
				maxGap = gap
			}
		}
	}

	minSigma, maxSigma := math.Inf(1), math.Inf(-1)
	for _, r := range ratings {
		minSigma = math.Min(minSigma, r.Sigma)
		maxSigma = math.Max(maxSigma, r.Sigma)
	}

	return maxGap + uncertaintyWeight*(maxSigma-minSigma), maxGap
}
