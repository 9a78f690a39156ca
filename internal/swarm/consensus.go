package swarm

import (
	"time"

	"github.com/google/uuid"

	"swarm-trader/internal/models"
)

// Reduce collapses one tick's votes into a single decision.
//
// The winning decision needs a strict majority of responding voters
// (more than half). An exact tie or an empty vote set degrades to HOLD
// with confidence 0. Confidence is the arithmetic mean of the winning
// voters' confidences; a default HOLD reports 0 regardless of individual
// HOLD confidences. The result is deterministic and independent of vote
// ordering so historical decisions can be audited and replayed.
func Reduce(symbol string, votes []models.VoteRecord) models.ConsensusResult {
	tally := map[models.Vote]int{
		models.VoteBuy:  0,
		models.VoteSell: 0,
		models.VoteHold: 0,
	}
	for _, v := range votes {
		tally[v.Vote]++
	}

	result := models.ConsensusResult{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Decision:  models.VoteHold,
		Tally:     tally,
		Responded: len(votes),
		Timestamp: time.Now(),
	}

	if len(votes) == 0 {
		return result
	}

	winner, majority := models.VoteHold, false
	for _, candidate := range []models.Vote{models.VoteBuy, models.VoteSell, models.VoteHold} {
		if tally[candidate]*2 > len(votes) {
			winner, majority = candidate, true
			break
		}
	}
	if !majority {
		// No strict majority: capital-preservation default.
		return result
	}

	result.Decision = winner

	var sum float64
	for _, v := range votes {
		if v.Vote == winner {
			sum += v.Confidence
		}
	}
	result.Confidence = sum / float64(tally[winner])

	return result
}
