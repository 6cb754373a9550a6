// Package epicleaderboard is a client for the EpicLeaderboard web service:
// fetching leaderboard entries, submitting scores and checking usernames.
package epicleaderboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/epicleaderboard/epicleaderboard-go/internal/constants"
	"github.com/epicleaderboard/epicleaderboard-go/params"
)

const (
	DefaultBaseURL   = constants.DefaultBaseURL
	DefaultUserAgent = constants.DefaultUserAgent

	getScoresPath           = "/api/getScores"
	submitScorePath         = "/api/submitScore"
	isUsernameAvailablePath = "/api/isUsernameAvailable_v2"

	RequestIDHeader = "X-Request-ID"

	contentTypeForm = "application/x-www-form-urlencoded"
	acceptJSON      = "application/json"
)

// Doer executes fasthttp requests. *fasthttp.Client and *fasthttp.HostClient
// both implement it.
type Doer interface {
	Do(req *fasthttp.Request, resp *fasthttp.Response) error
	DoDeadline(req *fasthttp.Request, resp *fasthttp.Response, deadline time.Time) error
}

// Client talks to one EpicLeaderboard deployment. It holds no per-call state
// and is safe for concurrent use. A zero Client has no transport and fails
// every call.
type Client struct {
	baseURL   string
	userAgent string
	doer      Doer
	logger    zerolog.Logger
}

type Option func(*Client)

// WithBaseURL points the client at another deployment.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if strings.TrimSpace(baseURL) != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithDoer replaces the default fasthttp client.
func WithDoer(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.doer = d
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient builds a client for DefaultBaseURL unless WithBaseURL says
// otherwise.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		doer: &fasthttp.Client{
			MaxConnsPerHost:     constants.DefaultMaxConnsPerHost,
			MaxIdleConnDuration: constants.MaxIdleConnDuration,
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

type fetchOptions struct {
	timeframe    Timeframe
	aroundPlayer bool
	localOnly    bool
}

type FetchOption func(*fetchOptions)

// WithTimeframe scopes the query to a scoring window. Defaults to AllTime.
func WithTimeframe(tf Timeframe) FetchOption {
	return func(o *fetchOptions) {
		o.timeframe = tf
	}
}

// WithAroundPlayer asks for the entries around the named player instead of
// the top of the board. Defaults to true.
func WithAroundPlayer(around bool) FetchOption {
	return func(o *fetchOptions) {
		o.aroundPlayer = around
	}
}

// WithLocalOnly restricts the query to the player's country. Defaults to false.
func WithLocalOnly(local bool) FetchOption {
	return func(o *fetchOptions) {
		o.localOnly = local
	}
}

// FetchEntries reads a leaderboard. username may be empty; when it names a
// player with a score, the result carries that player's entry as well.
func (c *Client) FetchEntries(ctx context.Context, game Game, board Leaderboard, username string, opts ...FetchOption) (*EntriesResult, error) {
	const op = "Failed to get leaderboard entries"

	o := fetchOptions{timeframe: AllTime, aroundPlayer: true}
	for _, opt := range opts {
		opt(&o)
	}

	query := params.Params{}.
		Add("gameID", game.ID).
		Add("primaryID", board.PrimaryID).
		Add("secondaryID", board.SecondaryID).
		Add("username", username).
		Add("timeframe", strconv.Itoa(int(o.timeframe))).
		Add("around", boolParam(o.aroundPlayer)).
		Add("local", boolParam(o.localOnly))

	url := c.baseURL + getScoresPath + "?" + params.Encode(query)

	var result *EntriesResult
	err := c.do(ctx, fasthttp.MethodGet, url, "", func(resp *fasthttp.Response) error {
		if !isSuccess(resp.StatusCode()) {
			return statusError(op, resp.StatusCode())
		}
		var err error
		result, err = decodeEntries(resp.Body())
		return err
	})
	if err != nil {
		return nil, wrapError(op, err)
	}

	c.logger.Debug().
		Str("primary_id", board.PrimaryID).
		Str("secondary_id", board.SecondaryID).
		Stringer("timeframe", o.timeframe).
		Int("entries", len(result.Entries)).
		Bool("has_player_entry", result.PlayerEntry != nil).
		Msg("leaderboard entries fetched")

	return result, nil
}

// SubmitEntry records a score. meta may be nil.
func (c *Client) SubmitEntry(ctx context.Context, game Game, board Leaderboard, username string, score float64, meta map[string]string) error {
	const op = "Failed to submit leaderboard entry"

	if math.IsNaN(score) || math.IsInf(score, 0) {
		return &ClientError{Message: fmt.Sprintf("%s: score %v is not a finite number", op, score)}
	}

	form := params.Params{}.
		Add("gameID", game.ID).
		Add("gameKey", game.Key).
		Add("primaryID", board.PrimaryID).
		Add("secondaryID", board.SecondaryID).
		Add("username", username).
		Add("score", FormatScore(score)).
		Add("meta", params.SerializeMeta(meta))

	err := c.do(ctx, fasthttp.MethodPost, c.baseURL+submitScorePath, params.Encode(form), func(resp *fasthttp.Response) error {
		if !isSuccess(resp.StatusCode()) {
			return statusError(op, resp.StatusCode())
		}
		return nil
	})
	if err != nil {
		return wrapError(op, err)
	}

	c.logger.Debug().
		Str("primary_id", board.PrimaryID).
		Str("secondary_id", board.SecondaryID).
		Str("username", username).
		Msg("leaderboard entry submitted")

	return nil
}

// CheckUsernameAvailable asks whether username can be used in game.
func (c *Client) CheckUsernameAvailable(ctx context.Context, game Game, username string) (UsernameAvailability, error) {
	const op = "Failed to check username availability"

	query := params.Params{}.
		Add("gameID", game.ID).
		Add("username", username)

	url := c.baseURL + isUsernameAvailablePath + "?" + params.Encode(query)

	availability := Invalid
	err := c.do(ctx, fasthttp.MethodGet, url, "", func(resp *fasthttp.Response) error {
		if !isSuccess(resp.StatusCode()) {
			return statusError(op, resp.StatusCode())
		}
		availability = parseAvailability(string(resp.Body()))
		return nil
	})
	if err != nil {
		return Invalid, wrapError(op, err)
	}

	c.logger.Debug().Str("username", username).Stringer("availability", availability).Msg("username checked")
	return availability, nil
}

// FormatScore renders a score the way the service expects it: the shortest
// decimal form, switching to an exponent below 1e-6 and from 1e21 up
// ("1e-7", "1.5e+21").
func FormatScore(score float64) string {
	if score == 0 {
		return "0"
	}
	if abs := math.Abs(score); abs < 1e-6 || abs >= 1e21 {
		s := strconv.FormatFloat(score, 'e', -1, 64)
		s = strings.Replace(s, "e-0", "e-", 1)
		return strings.Replace(s, "e+0", "e+", 1)
	}
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// do performs one request and hands the response to handle before the
// response is released.
func (c *Client) do(ctx context.Context, method, url, body string, handle func(*fasthttp.Response) error) error {
	if c.doer == nil {
		return &ClientError{Message: errHTTPUnavailable}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	requestID := uuid.NewString()

	req.SetRequestURI(url)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderUserAgent, c.userAgent)
	req.Header.Set(fasthttp.HeaderAccept, acceptJSON)
	req.Header.Set(RequestIDHeader, requestID)
	if body != "" {
		req.Header.SetContentType(contentTypeForm)
		req.SetBodyString(body)
	}

	logger := c.logger.With().Str("request_id", requestID).Str("method", method).Logger()
	logger.Debug().Str("path", string(req.URI().Path())).Msg("request started")
	start := time.Now()

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.doer.DoDeadline(req, resp, deadline)
	} else {
		err = c.doer.Do(req, resp)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("request failed")
		return err
	}

	logger.Debug().
		Int("status", resp.StatusCode()).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("request completed")

	if err := handle(resp); err != nil {
		logger.Warn().Err(err).Int("status", resp.StatusCode()).Msg("request unsuccessful")
		return err
	}
	return nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func statusError(op string, status int) *ClientError {
	return &ClientError{
		Message:    fmt.Sprintf("%s: %d", op, status),
		StatusCode: status,
	}
}

// wrapError passes ClientErrors through and wraps everything else.
func wrapError(op string, err error) error {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr
	}
	return &ClientError{Message: fmt.Sprintf("%s: %v", op, err), Err: err}
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
