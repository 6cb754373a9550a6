package epicleaderboard

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicleaderboard/epicleaderboard-go/internal/fakeserver"
)

var (
	testGame  = Game{ID: "6657286243a2ea2c8ee39221", Key: "05e53664638847feccf3a0f3d4ab37aa"}
	testBoard = Leaderboard{PrimaryID: "Demo", SecondaryID: "level 1"}
)

type captured struct {
	method   string
	path     string
	rawQuery string
	header   http.Header
	body     string
}

// captureServer answers every request with status and body and reports what
// it received.
func captureServer(t *testing.T, status int, body string) (*httptest.Server, <-chan captured) {
	t.Helper()
	reqs := make(chan captured, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		reqs <- captured{
			method:   r.Method,
			path:     r.URL.Path,
			rawQuery: r.URL.RawQuery,
			header:   r.Header.Clone(),
			body:     string(b),
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, reqs
}

func requireClientError(t *testing.T, err error) *ClientError {
	t.Helper()
	require.Error(t, err)
	var clientErr *ClientError
	require.True(t, errors.As(err, &clientErr), "expected *ClientError, got %T: %v", err, err)
	return clientErr
}

func TestNewClient_Defaults(t *testing.T) {
	assert.Equal(t, "https://epicleaderboard.com", NewClient().BaseURL())
	assert.Equal(t, "https://custom.example.com", NewClient(WithBaseURL("https://custom.example.com/")).BaseURL())
	assert.Equal(t, DefaultBaseURL, NewClient(WithBaseURL("  ")).BaseURL())
}

func TestFetchEntries_Request(t *testing.T) {
	srv, reqs := captureServer(t, http.StatusOK, `{"scores":[]}`)
	client := NewClient(WithBaseURL(srv.URL))

	_, err := client.FetchEntries(context.Background(), testGame, testBoard, "Alice",
		WithTimeframe(Week), WithAroundPlayer(false), WithLocalOnly(true))
	require.NoError(t, err)

	req := <-reqs
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "/api/getScores", req.path)
	assert.Equal(t,
		"gameID=6657286243a2ea2c8ee39221&primaryID=Demo&secondaryID=level%201&username=Alice&timeframe=3&around=0&local=1",
		req.rawQuery)
	assert.NotContains(t, req.rawQuery, "gameKey")
	assert.Equal(t, "application/json", req.header.Get("Accept"))
	assert.Equal(t, DefaultUserAgent, req.header.Get("User-Agent"))
	_, err = uuid.Parse(req.header.Get(RequestIDHeader))
	assert.NoError(t, err)
}

func TestFetchEntries_DefaultOptions(t *testing.T) {
	srv, reqs := captureServer(t, http.StatusOK, `{}`)
	client := NewClient(WithBaseURL(srv.URL), WithUserAgent("my-game/1.0"))

	_, err := client.FetchEntries(context.Background(), testGame, Leaderboard{PrimaryID: "Demo"}, "")
	require.NoError(t, err)

	req := <-reqs
	assert.Equal(t, "gameID=6657286243a2ea2c8ee39221&primaryID=Demo&secondaryID=&username=&timeframe=0&around=1&local=0", req.rawQuery)
	assert.Equal(t, "my-game/1.0", req.header.Get("User-Agent"))
}

func TestFetchEntries_Decoding(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantEntries []Entry
		wantPlayer  *Entry
	}{
		{
			name: "full response",
			body: `{"scores":[{"rank":1,"username":"bob","score":"250","country":"US","meta":"{\"level\":\"1\"}"}],
				"playerscore":{"rank":"2","username":"Alice","score":"100","country":"PT","meta":"{}"}}`,
			wantEntries: []Entry{{Rank: 1, Username: "bob", Score: "250", Country: "US", Meta: map[string]string{"level": "1"}}},
			wantPlayer:  &Entry{Rank: 2, Username: "Alice", Score: "100", Country: "PT", Meta: map[string]string{}},
		},
		{
			name:        "missing playerscore",
			body:        `{"scores":[{"rank":1,"username":"bob","score":"250","country":"US","meta":"{}"}]}`,
			wantEntries: []Entry{{Rank: 1, Username: "bob", Score: "250", Country: "US", Meta: map[string]string{}}},
		},
		{
			name:        "null playerscore",
			body:        `{"scores":[],"playerscore":null}`,
			wantEntries: []Entry{},
		},
		{
			name:        "missing rank defaults to zero",
			body:        `{"scores":[{"username":"bob","score":"250"}]}`,
			wantEntries: []Entry{{Rank: 0, Username: "bob", Score: "250", Meta: map[string]string{}}},
		},
		{
			name: "odd rank formats",
			body: `{"scores":[{"rank":"12th"},{"rank":3.9},{"rank":-1},{"rank":"abc"},{"rank":true},{"rank":" 7"}]}`,
			wantEntries: []Entry{
				{Rank: 12, Meta: map[string]string{}},
				{Rank: 3, Meta: map[string]string{}},
				{Rank: 0, Meta: map[string]string{}},
				{Rank: 0, Meta: map[string]string{}},
				{Rank: 0, Meta: map[string]string{}},
				{Rank: 7, Meta: map[string]string{}},
			},
		},
		{
			name: "large ranks agree across number and string",
			body: `{"scores":[{"rank":3000000000},{"rank":"3000000000"},{"rank":1e30},{"rank":"99999999999999999999"}]}`,
			wantEntries: []Entry{
				{Rank: 3000000000, Meta: map[string]string{}},
				{Rank: 3000000000, Meta: map[string]string{}},
				{Rank: 0, Meta: map[string]string{}},
				{Rank: 0, Meta: map[string]string{}},
			},
		},
		{
			name: "numeric score and bad field types",
			body: `{"scores":[{"rank":1,"username":42,"score":60000001,"country":null,"meta":"not json"}]}`,
			wantEntries: []Entry{{Rank: 1, Username: "42", Score: "60000001", Meta: map[string]string{}}},
		},
		{
			name:        "inline meta object",
			body:        `{"scores":[{"rank":1,"meta":{"level":"2","deaths":3}}]}`,
			wantEntries: []Entry{{Rank: 1, Meta: map[string]string{"level": "2", "deaths": "3"}}},
		},
		{
			name:        "meta array",
			body:        `{"scores":[{"rank":1,"meta":"[1,2]"}]}`,
			wantEntries: []Entry{{Rank: 1, Meta: map[string]string{}}},
		},
		{
			name:        "non-object score element",
			body:        `{"scores":["junk",{"rank":4}]}`,
			wantEntries: []Entry{{Meta: map[string]string{}}, {Rank: 4, Meta: map[string]string{}}},
		},
		{
			name:        "scores not an array",
			body:        `{"scores":{"rank":1}}`,
			wantEntries: []Entry{},
		},
		{
			name:        "empty object",
			body:        `{}`,
			wantEntries: []Entry{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := captureServer(t, http.StatusOK, tt.body)
			client := NewClient(WithBaseURL(srv.URL))

			got, err := client.FetchEntries(context.Background(), testGame, testBoard, "Alice")
			require.NoError(t, err)
			require.NotNil(t, got.Entries)
			assert.Equal(t, tt.wantEntries, got.Entries)
			assert.Equal(t, tt.wantPlayer, got.PlayerEntry)
		})
	}
}

func TestFetchEntries_InvalidJSON(t *testing.T) {
	srv, _ := captureServer(t, http.StatusOK, `<html>oops</html>`)
	client := NewClient(WithBaseURL(srv.URL))

	_, err := client.FetchEntries(context.Background(), testGame, testBoard, "")
	clientErr := requireClientError(t, err)
	assert.False(t, clientErr.HasStatus())
	assert.True(t, strings.HasPrefix(clientErr.Message, "Failed to get leaderboard entries: "))
	assert.NotNil(t, clientErr.Err)
}

func TestSubmitEntry_Request(t *testing.T) {
	srv, reqs := captureServer(t, http.StatusOK, "")
	client := NewClient(WithBaseURL(srv.URL))
	game := Game{ID: "g1", Key: "k1"}
	board := Leaderboard{PrimaryID: "p", SecondaryID: "s"}

	err := client.SubmitEntry(context.Background(), game, board, "Alice", 100, map[string]string{"level": "1"})
	require.NoError(t, err)

	req := <-reqs
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/api/submitScore", req.path)
	assert.Empty(t, req.rawQuery)
	assert.Equal(t, "application/x-www-form-urlencoded", req.header.Get("Content-Type"))
	assert.Equal(t, "application/json", req.header.Get("Accept"))
	assert.Equal(t,
		"gameID=g1&gameKey=k1&primaryID=p&secondaryID=s&username=Alice&score=100&meta=%7B%22level%22%3A%221%22%7D",
		req.body)
}

func TestSubmitEntry_NilMetaAndFractionalScore(t *testing.T) {
	srv, reqs := captureServer(t, http.StatusOK, "")
	client := NewClient(WithBaseURL(srv.URL))

	require.NoError(t, client.SubmitEntry(context.Background(), testGame, testBoard, "SpeedRunner99", 89.45, nil))

	req := <-reqs
	assert.Contains(t, req.body, "&score=89.45&")
	assert.True(t, strings.HasSuffix(req.body, "&meta=%7B%7D"), req.body)
}

func TestSubmitEntry_RejectsNonFiniteScore(t *testing.T) {
	srv, reqs := captureServer(t, http.StatusOK, "")
	client := NewClient(WithBaseURL(srv.URL))

	for _, score := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		err := client.SubmitEntry(context.Background(), testGame, testBoard, "Alice", score, nil)
		clientErr := requireClientError(t, err)
		assert.False(t, clientErr.HasStatus())
	}
	assert.Empty(t, reqs)
}

func TestCheckUsernameAvailable_Mapping(t *testing.T) {
	tests := []struct {
		body string
		want UsernameAvailability
	}{
		{"0", Available},
		{"1", Invalid},
		{"2", Profanity},
		{"3", Taken},
		{"5", Invalid},
		{"", Invalid},
		{"0\n", Invalid},
		{"available", Invalid},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			srv, reqs := captureServer(t, http.StatusOK, tt.body)
			client := NewClient(WithBaseURL(srv.URL))

			got, err := client.CheckUsernameAvailable(context.Background(), testGame, "Player One")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			req := <-reqs
			assert.Equal(t, "/api/isUsernameAvailable_v2", req.path)
			assert.Equal(t, "gameID=6657286243a2ea2c8ee39221&username=Player%20One", req.rawQuery)
		})
	}
}

func TestOperations_HTTPErrorStatus(t *testing.T) {
	srv, _ := captureServer(t, http.StatusNotFound, "not found")
	client := NewClient(WithBaseURL(srv.URL))
	ctx := context.Background()

	_, err := client.FetchEntries(ctx, testGame, testBoard, "Alice")
	clientErr := requireClientError(t, err)
	assert.Equal(t, 404, clientErr.StatusCode)
	assert.Equal(t, "Failed to get leaderboard entries: 404", clientErr.Message)
	assert.Equal(t, "Not Found", clientErr.StatusText())

	err = client.SubmitEntry(ctx, testGame, testBoard, "Alice", 1, nil)
	clientErr = requireClientError(t, err)
	assert.Equal(t, 404, clientErr.StatusCode)
	assert.Equal(t, "Failed to submit leaderboard entry: 404", clientErr.Message)

	availability, err := client.CheckUsernameAvailable(ctx, testGame, "Alice")
	clientErr = requireClientError(t, err)
	assert.Equal(t, 404, clientErr.StatusCode)
	assert.Equal(t, "Failed to check username availability: 404", clientErr.Message)
	assert.Equal(t, Invalid, availability)
}

func TestOperations_NoHTTPClient(t *testing.T) {
	var client Client
	ctx := context.Background()

	check := func(err error) {
		clientErr := requireClientError(t, err)
		assert.False(t, clientErr.HasStatus())
		assert.Equal(t, errHTTPUnavailable, clientErr.Message)
	}

	_, err := client.FetchEntries(ctx, testGame, testBoard, "test")
	check(err)
	check(client.SubmitEntry(ctx, testGame, testBoard, "test", 1, nil))
	_, err = client.CheckUsernameAvailable(ctx, testGame, "test")
	check(err)
}

func TestOperations_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(WithBaseURL(url))

	_, err := client.FetchEntries(context.Background(), testGame, testBoard, "Alice")
	clientErr := requireClientError(t, err)
	assert.False(t, clientErr.HasStatus())
	assert.True(t, strings.HasPrefix(clientErr.Message, "Failed to get leaderboard entries: "))
	assert.NotNil(t, errors.Unwrap(clientErr))
}

func TestOperations_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = io.WriteString(w, "0")
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.CheckUsernameAvailable(ctx, testGame, "Alice")
	clientErr := requireClientError(t, err)
	assert.False(t, clientErr.HasStatus())
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestOperations_CanceledContext(t *testing.T) {
	srv, reqs := captureServer(t, http.StatusOK, "0")
	client := NewClient(WithBaseURL(srv.URL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.CheckUsernameAvailable(ctx, testGame, "Alice")
	requireClientError(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, reqs)
}

func TestClient_AgainstFakeServer(t *testing.T) {
	fake := fakeserver.New(zerolog.Nop(), fakeserver.Game{ID: testGame.ID, Key: testGame.Key})
	srv := httptest.NewServer(fake)
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	ctx := context.Background()
	board := Leaderboard{PrimaryID: "level-completion", SecondaryID: "maze-level-1"}

	availability, err := client.CheckUsernameAvailable(ctx, testGame, "PlayerAwesome123")
	require.NoError(t, err)
	assert.Equal(t, Available, availability)

	require.NoError(t, client.SubmitEntry(ctx, testGame, board, "PlayerAwesome123", 98750,
		map[string]string{"level": "1", "completionTime": "125.7"}))
	require.NoError(t, client.SubmitEntry(ctx, testGame, board, "SurvivalKing", 45632, nil))

	availability, err = client.CheckUsernameAvailable(ctx, testGame, "PlayerAwesome123")
	require.NoError(t, err)
	assert.Equal(t, Taken, availability)

	availability, err = client.CheckUsernameAvailable(ctx, testGame, "fvck-y0u")
	require.NoError(t, err)
	assert.Equal(t, Profanity, availability)

	result, err := client.FetchEntries(ctx, testGame, board, "SurvivalKing")
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, Entry{
		Rank:     1,
		Username: "PlayerAwesome123",
		Score:    "98750",
		Meta:     map[string]string{"level": "1", "completionTime": "125.7"},
	}, result.Entries[0])
	require.NotNil(t, result.PlayerEntry)
	assert.Equal(t, 2, result.PlayerEntry.Rank)

	err = client.SubmitEntry(ctx, Game{ID: testGame.ID, Key: "wrong"}, board, "Cheater", 1e9, nil)
	clientErr := requireClientError(t, err)
	assert.Equal(t, http.StatusForbidden, clientErr.StatusCode)

	_, err = client.FetchEntries(ctx, Game{ID: "unknown"}, board, "")
	clientErr = requireClientError(t, err)
	assert.Equal(t, http.StatusNotFound, clientErr.StatusCode)

	// every request carried a distinct request id
	ids := fake.RequestIDs()
	require.Len(t, ids, 8)
	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], id)
		seen[id] = true
	}
}

func TestFormatScore(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{100, "100"},
		{89.45, "89.45"},
		{60_000_001, "60000001"},
		{-0.5, "-0.5"},
		{0.3, "0.3"},
		{1e20, "100000000000000000000"},
		{1e21, "1e+21"},
		{1.5e300, "1.5e+300"},
		{0.000001, "0.000001"},
		{1e-7, "1e-7"},
		{-2.5e-10, "-2.5e-10"},
		{0, "0"},
		{math.Copysign(0, -1), "0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatScore(tt.in), "%v", tt.in)
	}

	a, b := 0.1, 0.2
	assert.Equal(t, "0.30000000000000004", FormatScore(a+b))
}
