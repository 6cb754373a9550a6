// Package fakeserver serves the three EpicLeaderboard routes from memory so
// the client, service and CLI can be tested end to end without the network.
package fakeserver

import (
	"encoding/json"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/epicleaderboard/epicleaderboard-go/internal/middleware"
)

const pageSize = 10

var (
	validUsername = regexp.MustCompile(`^[A-Za-z0-9_-]{2,20}$`)
	profanities   = []string{"fvck", "fuck", "shit", "sh1t"}
)

type Game struct {
	ID  string
	Key string
}

// Record is one stored score. Put and submissions keep the best score per
// player and board.
type Record struct {
	Username    string
	Country     string
	Score       float64
	Meta        string
	SubmittedAt time.Time
}

type boardKey struct {
	gameID      string
	primaryID   string
	secondaryID string
}

type Server struct {
	mu         sync.Mutex
	games      map[string]Game
	boards     map[boardKey]map[string]Record
	requestIDs []string
	now        func() time.Time
	logger     zerolog.Logger
	handler    http.Handler
}

func New(logger zerolog.Logger, games ...Game) *Server {
	s := &Server{
		games:  make(map[string]Game, len(games)),
		boards: make(map[boardKey]map[string]Record),
		now:    time.Now,
		logger: logger,
	}
	for _, g := range games {
		s.games[g.ID] = g
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/getScores", s.getScores)
	mux.HandleFunc("/api/submitScore", s.submitScore)
	mux.HandleFunc("/api/isUsernameAvailable_v2", s.isUsernameAvailable)

	s.handler = middleware.RequestID(logger)(s.recordRequestID(mux))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// SetClock replaces time.Now for timeframe filtering and submissions.
func (s *Server) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Put stores rec on a board, unless the player already has a better score.
func (s *Server) Put(gameID, primaryID, secondaryID string, rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = s.now()
	}
	if rec.Meta == "" {
		rec.Meta = "{}"
	}
	s.putLocked(boardKey{gameID, primaryID, secondaryID}, rec)
}

// Get returns the stored record of a player.
func (s *Server) Get(gameID, primaryID, secondaryID, username string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.boards[boardKey{gameID, primaryID, secondaryID}][strings.ToLower(username)]
	return rec, ok
}

// RequestIDs lists the X-Request-ID of every request served so far.
func (s *Server) RequestIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requestIDs...)
}

func (s *Server) putLocked(key boardKey, rec Record) bool {
	board, ok := s.boards[key]
	if !ok {
		board = make(map[string]Record)
		s.boards[key] = board
	}
	name := strings.ToLower(rec.Username)
	if prev, ok := board[name]; ok && prev.Score >= rec.Score {
		return false
	}
	board[name] = rec
	return true
}

func (s *Server) recordRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requestIDs = append(s.requestIDs, middleware.GetRequestID(r.Context()))
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

type scoreJSON struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Score    string `json:"score"`
	Country  string `json:"country"`
	Meta     string `json:"meta"`
}

type scoresJSON struct {
	Scores      []scoreJSON `json:"scores"`
	PlayerScore *scoreJSON  `json:"playerscore,omitempty"`
}

func (s *Server) getScores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.games[q.Get("gameID")]; !ok {
		http.Error(w, "unknown game", http.StatusNotFound)
		return
	}

	window, ok := timeframeWindow(q.Get("timeframe"))
	if !ok {
		http.Error(w, "invalid timeframe", http.StatusBadRequest)
		return
	}

	key := boardKey{q.Get("gameID"), q.Get("primaryID"), q.Get("secondaryID")}
	records := make([]Record, 0, len(s.boards[key]))
	cutoff := s.now().Add(-window)
	for _, rec := range s.boards[key] {
		if window > 0 && rec.SubmittedAt.Before(cutoff) {
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Score != records[j].Score {
			return records[i].Score > records[j].Score
		}
		if !records[i].SubmittedAt.Equal(records[j].SubmittedAt) {
			return records[i].SubmittedAt.Before(records[j].SubmittedAt)
		}
		return records[i].Username < records[j].Username
	})

	username := q.Get("username")
	playerIdx := indexOf(records, username)

	if q.Get("local") == "1" && playerIdx >= 0 {
		country := records[playerIdx].Country
		local := records[:0]
		for _, rec := range records {
			if rec.Country == country {
				local = append(local, rec)
			}
		}
		records = local
		playerIdx = indexOf(records, username)
	}

	start := 0
	if q.Get("around") == "1" && playerIdx >= 0 {
		start = playerIdx - pageSize/2
		if start+pageSize > len(records) {
			start = len(records) - pageSize
		}
		if start < 0 {
			start = 0
		}
	}
	end := start + pageSize
	if end > len(records) {
		end = len(records)
	}

	resp := scoresJSON{Scores: make([]scoreJSON, 0, end-start)}
	for i := start; i < end; i++ {
		resp.Scores = append(resp.Scores, toScoreJSON(records[i], i+1))
	}
	if playerIdx >= 0 {
		player := toScoreJSON(records[playerIdx], playerIdx+1)
		resp.PlayerScore = &player
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error().Err(err).Msg("failed to write scores")
	}
}

func (s *Server) submitScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	form := r.PostForm

	s.mu.Lock()
	defer s.mu.Unlock()

	game, ok := s.games[form.Get("gameID")]
	if !ok {
		http.Error(w, "unknown game", http.StatusNotFound)
		return
	}
	if form.Get("gameKey") != game.Key {
		http.Error(w, "invalid game key", http.StatusForbidden)
		return
	}

	username := form.Get("username")
	if !validUsername.MatchString(username) {
		http.Error(w, "invalid username", http.StatusBadRequest)
		return
	}

	score, err := strconv.ParseFloat(form.Get("score"), 64)
	if err != nil {
		http.Error(w, "invalid score", http.StatusBadRequest)
		return
	}

	meta := form.Get("meta")
	if meta == "" {
		meta = "{}"
	}

	key := boardKey{game.ID, form.Get("primaryID"), form.Get("secondaryID")}
	updated := s.putLocked(key, Record{
		Username:    username,
		Score:       score,
		Meta:        meta,
		SubmittedAt: s.now(),
	})

	zerolog.Ctx(r.Context()).Debug().
		Str("username", username).
		Float64("score", score).
		Bool("updated", updated).
		Msg("score submitted")

	w.WriteHeader(http.StatusOK)
}

func (s *Server) isUsernameAvailable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()

	s.mu.Lock()
	defer s.mu.Unlock()

	gameID := q.Get("gameID")
	if _, ok := s.games[gameID]; !ok {
		http.Error(w, "unknown game", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.availabilityLocked(gameID, q.Get("username"))))
}

func (s *Server) availabilityLocked(gameID, username string) string {
	if !validUsername.MatchString(username) {
		return "1"
	}
	lower := strings.ToLower(username)
	for _, word := range profanities {
		if strings.Contains(lower, word) {
			return "2"
		}
	}
	for key, board := range s.boards {
		if key.gameID != gameID {
			continue
		}
		if _, ok := board[lower]; ok {
			return "3"
		}
	}
	return "0"
}

func timeframeWindow(v string) (time.Duration, bool) {
	switch v {
	case "", "0":
		return 0, true
	case "1":
		return 365 * 24 * time.Hour, true
	case "2":
		return 30 * 24 * time.Hour, true
	case "3":
		return 7 * 24 * time.Hour, true
	case "4":
		return 24 * time.Hour, true
	}
	return 0, false
}

func indexOf(records []Record, username string) int {
	if username == "" {
		return -1
	}
	for i, rec := range records {
		if strings.EqualFold(rec.Username, username) {
			return i
		}
	}
	return -1
}

func toScoreJSON(rec Record, rank int) scoreJSON {
	return scoreJSON{
		Rank:     rank,
		Username: rec.Username,
		Score:    strconv.FormatFloat(rec.Score, 'f', -1, 64),
		Country:  rec.Country,
		Meta:     rec.Meta,
	}
}
