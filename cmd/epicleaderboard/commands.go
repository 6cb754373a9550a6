package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"

	epicleaderboard "github.com/epicleaderboard/epicleaderboard-go"
	"github.com/epicleaderboard/epicleaderboard-go/internal/service"
)

func newCommander(top *flag.FlagSet, svc *service.LeaderboardService, out io.Writer, logger zerolog.Logger) *subcommands.Commander {
	cdr := subcommands.NewCommander(top, "epicleaderboard")
	cdr.Output = out
	cdr.Register(cdr.HelpCommand(), "")
	cdr.Register(cdr.FlagsCommand(), "")
	cdr.Register(&scoresCmd{svc: svc, out: out, logger: logger}, "leaderboard")
	cdr.Register(&submitCmd{svc: svc, out: out, logger: logger}, "leaderboard")
	cdr.Register(&checkUsernameCmd{svc: svc, out: out, logger: logger}, "leaderboard")
	return cdr
}

type boardFlags struct {
	primary   string
	secondary string
}

func (b *boardFlags) register(f *flag.FlagSet) {
	f.StringVar(&b.primary, "primary", "", "primary leaderboard id (required)")
	f.StringVar(&b.secondary, "secondary", "", "secondary leaderboard id, e.g. a level")
}

func (b *boardFlags) board() epicleaderboard.Leaderboard {
	return epicleaderboard.Leaderboard{PrimaryID: b.primary, SecondaryID: b.secondary}
}

type scoresCmd struct {
	svc    *service.LeaderboardService
	out    io.Writer
	logger zerolog.Logger

	boardFlags
	user       string
	timeframes string
	around     bool
	local      bool
	asJSON     bool
}

func (*scoresCmd) Name() string     { return "scores" }
func (*scoresCmd) Synopsis() string { return "print leaderboard entries" }
func (*scoresCmd) Usage() string {
	return `scores -primary <id> [-secondary <id>] [-user <name>] [-timeframe all,week,...] [-around] [-local] [-json]:
  Print the entries of a leaderboard, once per requested timeframe.
`
}

func (c *scoresCmd) SetFlags(f *flag.FlagSet) {
	c.boardFlags.register(f)
	f.StringVar(&c.user, "user", "", "player to center the results on")
	f.StringVar(&c.timeframes, "timeframe", "all", "comma separated timeframes: all, year, month, week, day")
	f.BoolVar(&c.around, "around", true, "show entries around the player instead of the top")
	f.BoolVar(&c.local, "local", false, "only entries from the player's country")
	f.BoolVar(&c.asJSON, "json", false, "print JSON")
}

func (c *scoresCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.primary == "" {
		fmt.Fprintln(c.out, "-primary is required")
		return subcommands.ExitUsageError
	}

	tfs, err := parseTimeframes(c.timeframes)
	if err != nil {
		fmt.Fprintln(c.out, err)
		return subcommands.ExitUsageError
	}

	results, err := c.svc.GetEntriesByTimeframe(ctx, c.board(), c.user, tfs, c.around, c.local)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to get scores")
		return subcommands.ExitFailure
	}

	if c.asJSON {
		byName := make(map[string]*epicleaderboard.EntriesResult, len(results))
		for tf, r := range results {
			byName[tf.String()] = r
		}
		if err := writeJSON(c.out, byName); err != nil {
			c.logger.Error().Err(err).Msg("failed to write output")
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	for i, tf := range tfs {
		r, ok := results[tf]
		if !ok {
			continue
		}
		if i > 0 {
			fmt.Fprintln(c.out)
		}
		if len(tfs) > 1 {
			fmt.Fprintf(c.out, "== %s ==\n", tf)
		}
		if err := writeTable(c.out, r); err != nil {
			c.logger.Error().Err(err).Msg("failed to write output")
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}

type submitCmd struct {
	svc    *service.LeaderboardService
	out    io.Writer
	logger zerolog.Logger

	boardFlags
	user  string
	score float64
	meta  metaFlag
}

func (*submitCmd) Name() string     { return "submit" }
func (*submitCmd) Synopsis() string { return "submit a score" }
func (*submitCmd) Usage() string {
	return `submit -primary <id> [-secondary <id>] -user <name> -score <n> [-meta key=value]...:
  Submit a score. Needs EPICLEADERBOARD_GAME_KEY.
`
}

func (c *submitCmd) SetFlags(f *flag.FlagSet) {
	c.boardFlags.register(f)
	f.StringVar(&c.user, "user", "", "player name (required)")
	f.Float64Var(&c.score, "score", 0, "score to submit")
	c.meta = metaFlag{}
	f.Var(&c.meta, "meta", "metadata as key=value, repeatable")
}

func (c *submitCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.primary == "" || c.user == "" {
		fmt.Fprintln(c.out, "-primary and -user are required")
		return subcommands.ExitUsageError
	}

	if err := c.svc.Submit(ctx, c.board(), c.user, c.score, c.meta); err != nil {
		c.logger.Error().Err(err).Msg("failed to submit score")
		return subcommands.ExitFailure
	}

	fmt.Fprintf(c.out, "submitted %s for %s\n", epicleaderboard.FormatScore(c.score), c.user)
	return subcommands.ExitSuccess
}

type checkUsernameCmd struct {
	svc    *service.LeaderboardService
	out    io.Writer
	logger zerolog.Logger

	user string
}

func (*checkUsernameCmd) Name() string     { return "check-username" }
func (*checkUsernameCmd) Synopsis() string { return "check whether a username is available" }
func (*checkUsernameCmd) Usage() string {
	return `check-username -user <name>:
  Print available, invalid, profanity or taken. Exits 0 only when available.
`
}

func (c *checkUsernameCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "username to check (required)")
}

func (c *checkUsernameCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" {
		fmt.Fprintln(c.out, "-user is required")
		return subcommands.ExitUsageError
	}

	availability, err := c.svc.CheckUsername(ctx, c.user)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to check username")
		return subcommands.ExitFailure
	}

	fmt.Fprintln(c.out, availability)
	if availability != epicleaderboard.Available {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// metaFlag collects repeated -meta key=value flags.
type metaFlag map[string]string

func (m metaFlag) String() string {
	return formatMeta(m)
}

func (m metaFlag) Set(v string) error {
	key, value, ok := strings.Cut(v, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	m[key] = value
	return nil
}

func parseTimeframes(s string) ([]epicleaderboard.Timeframe, error) {
	var tfs []epicleaderboard.Timeframe
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		tf, err := epicleaderboard.ParseTimeframe(part)
		if err != nil {
			return nil, err
		}
		tfs = append(tfs, tf)
	}
	if len(tfs) == 0 {
		return nil, service.ErrNoTimeframes
	}
	return tfs, nil
}

func writeTable(w io.Writer, r *epicleaderboard.EntriesResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tUSERNAME\tSCORE\tCOUNTRY\tMETA")
	for _, e := range r.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.Rank, e.Username, e.Score, e.Country, formatMeta(e.Meta))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if r.PlayerEntry != nil {
		_, err := fmt.Fprintf(w, "player: #%d %s %s\n", r.PlayerEntry.Rank, r.PlayerEntry.Username, r.PlayerEntry.Score)
		return err
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatMeta(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+m[k])
	}
	return strings.Join(parts, ",")
}
