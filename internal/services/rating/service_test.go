package rating

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ambrook/skirmishd/internal/model"
	"github.com/ambrook/skirmishd/internal/storage/memory"
	"github.com/ambrook/skirmishd/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.service = New(s.storage, DefaultConfig(), testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *ServiceSuite) team(rank int, players ...RatedPlayer) RankedTeam {
	return RankedTeam{Players: players, Rank: rank}
}

func (s *ServiceSuite) player(id string, mu, sigma float64) RatedPlayer {
	return RatedPlayer{ID: model.PlayerID(id), Rating: model.Rating{Mu: mu, Sigma: sigma}}
}

// Estimate tests

func (s *ServiceSuite) TestEstimateDefaultsForNewPlayer() {
	r, err := s.service.Estimate(s.ctx, "new-player", "ladder1v1")
	s.Require().NoError(err)
	s.Equal(1500.0, r.Mu)
	s.Equal(500.0, r.Sigma)
}

func (s *ServiceSuite) TestEstimateUsesLatestRecord() {
	record := &model.RatingRecord{
		PlayerID:  "player-1",
		Mode:      "ladder1v1",
		Rating:    model.Rating{Mu: 1640, Sigma: 120},
		CreatedAt: time.Now(),
	}
	s.Require().NoError(s.storage.AppendRatingRecord(s.ctx, record))

	r, err := s.service.Estimate(s.ctx, "player-1", "ladder1v1")
	s.Require().NoError(err)
	s.Equal(1640.0, r.Mu)
	s.Equal(120.0, r.Sigma)
}

// Update tests

func (s *ServiceSuite) TestDecisiveOutcomeMovesWinnerUpLoserDown() {
	winner := s.player("winner", 1500, 200)
	loser := s.player("loser", 1500, 200)

	updated, err := s.service.Update([]RankedTeam{
		s.team(1, winner),
		s.team(2, loser),
	})
	s.Require().NoError(err)

	s.Greater(updated["winner"].Mu, 1500.0)
	s.Less(updated["loser"].Mu, 1500.0)
	s.LessOrEqual(updated["winner"].Sigma, 200.0)
	s.LessOrEqual(updated["loser"].Sigma, 200.0)
}

func (s *ServiceSuite) TestSigmaNeverIncreases() {
	teams := []RankedTeam{
		s.team(1, s.player("a", 1200, 500), s.player("b", 1800, 90)),
		s.team(2, s.player("c", 1500, 300), s.player("d", 1500, 150)),
	}

	updated, err := s.service.Update(teams)
	s.Require().NoError(err)

	s.LessOrEqual(updated["a"].Sigma, 500.0)
	s.LessOrEqual(updated["b"].Sigma, 90.0)
	s.LessOrEqual(updated["c"].Sigma, 300.0)
	s.LessOrEqual(updated["d"].Sigma, 150.0)
}

func (s *ServiceSuite) TestHigherSigmaMovesMore() {
	newcomer := s.player("newcomer", 1500, 500)
	veteran := s.player("veteran", 1500, 100)

	updated, err := s.service.Update([]RankedTeam{
		s.team(1, newcomer, veteran),
		s.team(2, s.player("c", 1500, 200), s.player("d", 1500, 200)),
	})
	s.Require().NoError(err)

	newcomerDelta := updated["newcomer"].Mu - 1500
	veteranDelta := updated["veteran"].Mu - 1500
	s.Greater(newcomerDelta, veteranDelta)
	s.Greater(veteranDelta, 0.0)
}

func (s *ServiceSuite) TestDrawMovesLessThanDecisiveOutcome() {
	mk := func() []RankedTeam {
		return []RankedTeam{
			s.team(1, s.player("a", 1600, 200)),
			s.team(1, s.player("b", 1400, 200)),
		}
	}
	drawn, err := s.service.Update(mk())
	s.Require().NoError(err)

	decisive := mk()
	decisive[1].Rank = 2
	won, err := s.service.Update(decisive)
	s.Require().NoError(err)

	// The favorite drawing against a weaker player loses ground; winning gains
	s.Less(drawn["a"].Mu, 1600.0)
	s.Greater(won["a"].Mu, 1600.0)

	drawDelta := 1600.0 - drawn["a"].Mu
	winDelta := won["a"].Mu - 1600.0
	s.Less(drawDelta, winDelta)
}

func (s *ServiceSuite) TestDrawBetweenEqualsBarelyMovesMu() {
	updated, err := s.service.Update([]RankedTeam{
		s.team(1, s.player("a", 1500, 200)),
		s.team(1, s.player("b", 1500, 200)),
	})
	s.Require().NoError(err)

	s.InDelta(1500.0, updated["a"].Mu, 1.0)
	s.InDelta(1500.0, updated["b"].Mu, 1.0)
	// But the system still learned something
	s.Less(updated["a"].Sigma, 200.0)
}

func (s *ServiceSuite) TestUpdateIsDeterministic() {
	mk := func() []RankedTeam {
		return []RankedTeam{
			s.team(1, s.player("a", 1520, 180), s.player("b", 1480, 320)),
			s.team(2, s.player("c", 1510, 210), s.player("d", 1490, 190)),
		}
	}

	first, err := s.service.Update(mk())
	s.Require().NoError(err)
	second, err := s.service.Update(mk())
	s.Require().NoError(err)

	s.Equal(first, second)
}

func (s *ServiceSuite) TestUpdateDoesNotMutateInput() {
	teams := []RankedTeam{
		s.team(1, s.player("a", 1500, 200)),
		s.team(2, s.player("b", 1500, 200)),
	}

	_, err := s.service.Update(teams)
	s.Require().NoError(err)

	s.Equal(1500.0, teams[0].Players[0].Rating.Mu)
	s.Equal(200.0, teams[0].Players[0].Rating.Sigma)
}

func (s *ServiceSuite) TestUpdateInputOrderDoesNotMatter() {
	forward, err := s.service.Update([]RankedTeam{
		s.team(1, s.player("a", 1550, 150)),
		s.team(2, s.player("b", 1450, 250)),
	})
	s.Require().NoError(err)

	reversed, err := s.service.Update([]RankedTeam{
		s.team(2, s.player("b", 1450, 250)),
		s.team(1, s.player("a", 1550, 150)),
	})
	s.Require().NoError(err)

	s.Equal(forward, reversed)
}

func (s *ServiceSuite) TestThreeTeamRankedOrdering() {
	updated, err := s.service.Update([]RankedTeam{
		s.team(2, s.player("mid", 1500, 200)),
		s.team(1, s.player("top", 1500, 200)),
		s.team(3, s.player("bottom", 1500, 200)),
	})
	s.Require().NoError(err)

	s.Greater(updated["top"].Mu, updated["mid"].Mu)
	s.Greater(updated["mid"].Mu, updated["bottom"].Mu)
}

func (s *ServiceSuite) TestSigmaFloorHolds() {
	updated, err := s.service.Update([]RankedTeam{
		s.team(1, s.player("a", 1500, 81)),
		s.team(2, s.player("b", 1500, 81)),
	})
	s.Require().NoError(err)

	s.GreaterOrEqual(updated["a"].Sigma, s.service.Config().SigmaMin)
	s.GreaterOrEqual(updated["b"].Sigma, s.service.Config().SigmaMin)
}

func (s *ServiceSuite) TestSingleTeamRejected() {
	_, err := s.service.Update([]RankedTeam{
		s.team(1, s.player("a", 1500, 200)),
	})
	s.Error(err)
}
