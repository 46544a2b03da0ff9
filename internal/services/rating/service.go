package rating

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"

	"github.com/ambrook/skirmishd/internal/model"
	"github.com/ambrook/skirmishd/internal/storage"
)

// Config holds the tuning constants of the skill model. These are knobs, not
// invariants; changing them changes convergence speed, not correctness.
type Config struct {
	// InitialMu and InitialSigma are the prior for a player's first game in a mode
	InitialMu    float64
	InitialSigma float64
	// Beta is the per-player performance variance: how much a single game's
	// performance scatters around true skill
	Beta float64
	// DrawMargin is the performance gap within which a game is considered
	// even; draws inside it barely move estimates
	DrawMargin float64
	// SigmaMin stops uncertainty from collapsing to zero so estimates keep
	// responding to genuine skill changes
	SigmaMin float64
}

// DefaultConfig returns the standard ladder constants
func DefaultConfig() Config {
	return Config{
		InitialMu:    1500,
		InitialSigma: 500,
		Beta:         250,
		DrawMargin:   25,
		SigmaMin:     80,
	}
}

// RatedPlayer couples a player with their current estimate
type RatedPlayer struct {
	ID     model.PlayerID
	Rating model.Rating
}

// RankedTeam is a team's final standing: Rank 1 won, equal ranks drew
type RankedTeam struct {
	Players []RatedPlayer
	Rank    int
}

// Service produces and updates skill estimates. Update is pure computation:
// deterministic for identical inputs, and it never writes to storage or
// mutates its arguments; the caller persists the returned values.
type Service struct {
	storage storage.Storage
	cfg     Config
	logger  *slog.Logger
}

// New creates a new rating service
func New(storage storage.Storage, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "rating")),
	}
}

// Config returns the service's tuning constants
func (s *Service) Config() Config {
	return s.cfg
}

// Estimate returns the player's current estimate in the given mode, falling
// back to the configured prior for a player with no rated games
func (s *Service) Estimate(ctx context.Context, playerID model.PlayerID, mode model.GameMode) (model.Rating, error) {
	record, err := s.storage.GetLatestRating(ctx, playerID, mode)
	if err != nil {
		if errors.Is(err, model.ErrPlayerNotFound) {
			return model.Rating{Mu: s.cfg.InitialMu, Sigma: s.cfg.InitialSigma}, nil
		}
		return model.Rating{}, err
	}
	return record.Rating, nil
}

// CalibrationProgress reports how far a rating has converged out of the
// calibration phase. A player is calibrating while Sigma is above half the
// prior; progress runs 0 (fresh account) to 100 (converged).
func (s *Service) CalibrationProgress(sigma float64) (float64, bool) {
	threshold := s.cfg.InitialSigma / 2
	if sigma <= threshold {
		return 100, false
	}
	progress := (s.cfg.InitialSigma - sigma) / threshold * 100
	if progress < 0 {
		progress = 0
	}
	return progress, true
}

// Update computes revised estimates from a match outcome. Teams are ranked
// (1 = winner, equal ranks drew); for more than two teams, adjacent ranks are
// updated pairwise from best to worst. Returns the new rating for every
// participant; every Sigma is non-increasing.
func (s *Service) Update(teams []RankedTeam) (map[model.PlayerID]model.Rating, error) {
	if len(teams) < 2 {
		return nil, errors.New("rating update requires at least two teams")
	}

	// Work on a copy ordered by rank so input order never matters
	work := make([]RankedTeam, len(teams))
	for i, t := range teams {
		players := make([]RatedPlayer, len(t.Players))
		copy(players, t.Players)
		work[i] = RankedTeam{Players: players, Rank: t.Rank}
	}
	sort.SliceStable(work, func(i, j int) bool { return work[i].Rank < work[j].Rank })

	for i := 0; i < len(work)-1; i++ {
		s.updatePair(&work[i], &work[i+1], work[i].Rank == work[i+1].Rank)
	}

	out := make(map[model.PlayerID]model.Rating)
	for _, t := range work {
		for _, p := range t.Players {
			out[p.ID] = p.Rating
		}
	}
	return out, nil
}

// updatePair applies the two-team Gaussian belief update: team a placed at or
// above team b. Mutates the working copies in place.
func (s *Service) updatePair(a, b *RankedTeam, draw bool) {
	var muA, muB, varSum float64
	for _, p := range a.Players {
		muA += p.Rating.Mu
		varSum += p.Rating.Sigma * p.Rating.Sigma
	}
	for _, p := range b.Players {
		muB += p.Rating.Mu
		varSum += p.Rating.Sigma * p.Rating.Sigma
	}
	n := float64(len(a.Players) + len(b.Players))

	c := math.Sqrt(varSum + n*s.cfg.Beta*s.cfg.Beta)
	t := (muA - muB) / c
	eps := s.cfg.DrawMargin / c

	var v, w float64
	if draw {
		v = vDraw(t, eps)
		w = wDraw(t, eps)
	} else {
		v = vWin(t, eps)
		w = wWin(t, eps)
	}

	apply := func(p *RatedPlayer, sign float64) {
		sigma2 := p.Rating.Sigma * p.Rating.Sigma
		p.Rating.Mu += sign * (sigma2 / c) * v
		newSigma2 := sigma2 * (1 - (sigma2/(c*c))*w)
		sigma := math.Sqrt(math.Max(newSigma2, s.cfg.SigmaMin*s.cfg.SigmaMin))
		// Uncertainty never grows from observing an outcome
		if sigma > p.Rating.Sigma {
			sigma = p.Rating.Sigma
		}
		p.Rating.Sigma = sigma
	}

	for i := range a.Players {
		apply(&a.Players[i], 1)
	}
	for i := range b.Players {
		apply(&b.Players[i], -1)
	}
}

// Gaussian pdf and cdf

func pdf(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}

func cdf(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// vWin and wWin are the additive and multiplicative truncated-Gaussian
// corrections for a decisive outcome
func vWin(t, eps float64) float64 {
	denom := cdf(t - eps)
	if denom < 1e-10 {
		// Massive upset beyond float precision; cap the correction
		return eps - t
	}
	return pdf(t-eps) / denom
}

func wWin(t, eps float64) float64 {
	v := vWin(t, eps)
	w := v * (v + t - eps)
	return clamp01(w)
}

// vDraw and wDraw are the corrections for an even outcome inside the margin
func vDraw(t, eps float64) float64 {
	denom := cdf(eps-t) - cdf(-eps-t)
	if denom < 1e-10 {
		if t > 0 {
			return -t - eps
		}
		return -t + eps
	}
	return (pdf(-eps-t) - pdf(eps-t)) / denom
}

func wDraw(t, eps float64) float64 {
	denom := cdf(eps-t) - cdf(-eps-t)
	if denom < 1e-10 {
		return 1
	}
	v := vDraw(t, eps)
	w := v*v + ((eps-t)*pdf(eps-t)+(eps+t)*pdf(eps+t))/denom
	return clamp01(w)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
