// Package swarm provides the AI voter pool and consensus calculation.
package swarm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"swarm-trader/internal/models"
	"swarm-trader/pkg/utils"
)

// Voter is an independent decision source producing a trade
// recommendation and confidence for one symbol.
type Voter interface {
	// ID returns the unique identity of the voter.
	ID() string
	// Vote analyzes the market context and returns a recommendation.
	Vote(ctx context.Context, symbol, marketContext string) (*models.VoteRecord, error)
}

// ClampConfidence ensures confidence is within the valid range [0, 100].
func ClampConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 100 {
		return 100
	}
	return confidence
}

const votingPrompt = `You are an expert cryptocurrency trading AI analyzing market data.

CRITICAL RULES:
1. Your response MUST be exactly one line: an action followed by a confidence number.
2. The action MUST be one of: Buy, Sell, Do Nothing
3. The confidence MUST be an integer from 0 to 100.
4. Do NOT provide any explanation, reasoning, or additional text.

Decide from the market data:
- "Buy" = strong bullish signals, recommend opening/holding a long
- "Sell" = bearish signals, recommend closing or shorting
- "Do Nothing" = unclear signals, stay out or hold current state

RESPOND WITH EXACTLY: <Buy|Sell|Do Nothing> <confidence>`

// LLMVoter is a Voter backed by an OpenAI-compatible chat model.
type LLMVoter struct {
	id     string
	model  string
	client *openai.Client
}

// NewLLMVoter creates a voter that queries the given model. baseURL may
// be empty for the default OpenAI endpoint.
func NewLLMVoter(apiKey, baseURL, model string) *LLMVoter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &LLMVoter{
		id:     model,
		model:  model,
		client: openai.NewClientWithConfig(cfg),
	}
}

// ID returns the voter identity.
func (v *LLMVoter) ID() string {
	return v.id
}

// Vote queries the model and parses the reply into a VoteRecord.
// Transient API failures get a couple of quick retries within the pool
// timeout; the pool treats anything beyond that as an abstention.
func (v *LLMVoter) Vote(ctx context.Context, symbol, marketContext string) (*models.VoteRecord, error) {
	retryCfg := utils.RetryConfig{
		MaxAttempts:   2,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
	resp, err := utils.RetryWithResult(ctx, retryCfg, func() (openai.ChatCompletionResponse, error) {
		return v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: v.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: votingPrompt},
				{Role: openai.ChatMessageRoleUser, Content: marketContext},
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from model %s", v.model)
	}

	vote, confidence, err := ParseReply(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	return &models.VoteRecord{
		VoterID:    v.id,
		Vote:       vote,
		Confidence: confidence,
		Timestamp:  time.Now(),
	}, nil
}

var confidenceRe = regexp.MustCompile(`\d+(\.\d+)?`)

// ParseReply extracts a vote and confidence from a model reply.
// The reply is expected to be "<Buy|Sell|Do Nothing> <confidence>" but
// models drift, so matching is lenient: the action word anywhere in the
// reply wins, a missing confidence defaults to 50.
func ParseReply(reply string) (models.Vote, float64, error) {
	upper := strings.ToUpper(strings.TrimSpace(reply))
	if upper == "" {
		return "", 0, fmt.Errorf("blank reply")
	}

	var vote models.Vote
	switch {
	case strings.Contains(upper, "BUY"):
		vote = models.VoteBuy
	case strings.Contains(upper, "SELL"):
		vote = models.VoteSell
	case strings.Contains(upper, "NOTHING") || strings.Contains(upper, "HOLD"):
		vote = models.VoteHold
	default:
		return "", 0, fmt.Errorf("unparseable reply: %q", reply)
	}

	confidence := 50.0
	if m := confidenceRe.FindString(upper); m != "" {
		if f, err := strconv.ParseFloat(m, 64); err == nil {
			confidence = ClampConfidence(f)
		}
	}

	return vote, confidence, nil
}
