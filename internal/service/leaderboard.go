package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	epicleaderboard "github.com/epicleaderboard/epicleaderboard-go"
	"github.com/epicleaderboard/epicleaderboard-go/internal/config"
	"github.com/epicleaderboard/epicleaderboard-go/internal/constants"
)

var (
	ErrGameKeyRequired   = errors.New("EPICLEADERBOARD_GAME_KEY is required to submit scores")
	ErrNoTimeframes      = errors.New("at least one timeframe is required")
	ErrTooManyTimeframes = fmt.Errorf("at most %d timeframes per query", constants.MaxTimeframesPerQuery)
)

// LeaderboardService binds the configured game to the client calls.
type LeaderboardService struct {
	client  *epicleaderboard.Client
	game    epicleaderboard.Game
	timeout time.Duration
	logger  zerolog.Logger
}

func NewLeaderboardService(client *epicleaderboard.Client, cfg *config.Config, logger zerolog.Logger) *LeaderboardService {
	return &LeaderboardService{
		client:  client,
		game:    epicleaderboard.Game{ID: cfg.GameID, Key: cfg.GameKey},
		timeout: cfg.RequestTimeout,
		logger:  logger,
	}
}

func (s *LeaderboardService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *LeaderboardService) GetEntries(ctx context.Context, board epicleaderboard.Leaderboard, username string, tf epicleaderboard.Timeframe, around, local bool) (*epicleaderboard.EntriesResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	s.logger.Debug().
		Str("primary_id", board.PrimaryID).
		Str("secondary_id", board.SecondaryID).
		Str("username", username).
		Stringer("timeframe", tf).
		Bool("around", around).
		Bool("local", local).
		Msg("getting leaderboard entries")

	result, err := s.client.FetchEntries(ctx, s.game, board, username,
		epicleaderboard.WithTimeframe(tf),
		epicleaderboard.WithAroundPlayer(around),
		epicleaderboard.WithLocalOnly(local),
	)
	if err != nil {
		s.logger.Error().Err(err).Str("primary_id", board.PrimaryID).Stringer("timeframe", tf).Msg("failed to get leaderboard entries")
		return nil, err
	}

	s.logger.Info().
		Str("primary_id", board.PrimaryID).
		Stringer("timeframe", tf).
		Int("count", len(result.Entries)).
		Msg("leaderboard entries fetched")
	return result, nil
}

// GetEntriesByTimeframe fetches the same board once per distinct timeframe,
// concurrently. The first failure cancels the others.
func (s *LeaderboardService) GetEntriesByTimeframe(ctx context.Context, board epicleaderboard.Leaderboard, username string, tfs []epicleaderboard.Timeframe, around, local bool) (map[epicleaderboard.Timeframe]*epicleaderboard.EntriesResult, error) {
	tfs = dedupe(tfs)
	if len(tfs) == 0 {
		return nil, ErrNoTimeframes
	}
	if len(tfs) > constants.MaxTimeframesPerQuery {
		return nil, ErrTooManyTimeframes
	}

	var mu sync.Mutex
	results := make(map[epicleaderboard.Timeframe]*epicleaderboard.EntriesResult, len(tfs))

	g, gCtx := errgroup.WithContext(ctx)
	for _, tf := range tfs {
		g.Go(func() error {
			result, err := s.GetEntries(gCtx, board, username, tf, around, local)
			if err != nil {
				return fmt.Errorf("timeframe %s: %w", tf, err)
			}
			mu.Lock()
			results[tf] = result
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *LeaderboardService) Submit(ctx context.Context, board epicleaderboard.Leaderboard, username string, score float64, meta map[string]string) error {
	if s.game.Key == "" {
		return ErrGameKeyRequired
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	s.logger.Info().
		Str("primary_id", board.PrimaryID).
		Str("secondary_id", board.SecondaryID).
		Str("username", username).
		Float64("score", score).
		Int("meta_fields", len(meta)).
		Msg("submitting score")

	if err := s.client.SubmitEntry(ctx, s.game, board, username, score, meta); err != nil {
		s.logger.Error().Err(err).Str("username", username).Msg("failed to submit score")
		return err
	}

	s.logger.Info().Str("username", username).Msg("score submitted successfully")
	return nil
}

func (s *LeaderboardService) CheckUsername(ctx context.Context, username string) (epicleaderboard.UsernameAvailability, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	availability, err := s.client.CheckUsernameAvailable(ctx, s.game, username)
	if err != nil {
		s.logger.Error().Err(err).Str("username", username).Msg("failed to check username")
		return availability, err
	}

	s.logger.Info().Str("username", username).Stringer("availability", availability).Msg("username checked")
	return availability, nil
}

func dedupe(tfs []epicleaderboard.Timeframe) []epicleaderboard.Timeframe {
	seen := make(map[epicleaderboard.Timeframe]bool, len(tfs))
	out := make([]epicleaderboard.Timeframe, 0, len(tfs))
	for _, tf := range tfs {
		if seen[tf] {
			continue
		}
		seen[tf] = true
		out = append(out, tf)
	}
	return out
}
