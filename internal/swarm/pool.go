package swarm

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"swarm-trader/internal/models"
)

// Pool holds a fixed ordered set of voters and collects their votes.
type Pool struct {
	voters    []Voter
	minVoters int
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewPool creates a voter pool. minVoters is the minimum number of
// responding voters for a tick to produce votes at all; timeout bounds
// each individual voter call.
func NewPool(voters []Voter, minVoters int, timeout time.Duration, logger zerolog.Logger) *Pool {
	if minVoters < 1 {
		minVoters = 1
	}
	return &Pool{
		voters:    voters,
		minVoters: minVoters,
		timeout:   timeout,
		logger:    logger,
	}
}

// Size returns the number of registered voters.
func (p *Pool) Size() int {
	return len(p.voters)
}

// CollectVotes invokes every voter concurrently with identical input and
// returns the votes of those that responded in time. A failing or slow
// voter abstains; it never aborts the tick. If fewer than the minimum
// number of voters respond, an empty slice is returned so consensus
// degrades to HOLD.
func (p *Pool) CollectVotes(ctx context.Context, symbol, marketContext string) []models.VoteRecord {
	results := make([]*models.VoteRecord, len(p.voters))

	var wg sync.WaitGroup
	for i, voter := range p.voters {
		wg.Add(1)
		go func(i int, v Voter) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()

			record, err := v.Vote(callCtx, symbol, marketContext)
			if err != nil {
				p.logger.Warn().
					Str("voter", v.ID()).
					Str("symbol", symbol).
					Err(err).
					Msg("Voter abstained")
				return
			}
			record.Confidence = ClampConfidence(record.Confidence)
			results[i] = record
		}(i, voter)
	}
	wg.Wait()

	votes := make([]models.VoteRecord, 0, len(p.voters))
	for _, r := range results {
		if r != nil {
			votes = append(votes, *r)
		}
	}

	if len(votes) < p.minVoters {
		p.logger.Warn().
			Str("symbol", symbol).
			Int("responded", len(votes)).
			Int("min_voters", p.minVoters).
			Msg("Too few voters responded, degrading to HOLD")
		return nil
	}

	return votes
}
