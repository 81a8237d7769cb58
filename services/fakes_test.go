package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bracketforge/tournament-engine/models"
	"github.com/bracketforge/tournament-engine/repositories"
)

// In-memory repository implementations. They ignore the exec argument;
// the fake transactor hands services a nil executor.

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeTransactor struct{}

func (fakeTransactor) WithinTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

// stubFinisher stands in for the tournament service where a test needs
// finalization to answer with a fixed error.
type stubFinisher struct {
	err   error
	calls int
}

func (f *stubFinisher) FinalizeTournament(context.Context, repositories.SQLExecutor, int, time.Time) error {
	f.calls++
	return f.err
}

type recordingDispatcher struct {
	mu            sync.Mutex
	statusChanges []models.TournamentStatus
	matchEvents   []int
	bracketEvents []int
}

func (d *recordingDispatcher) StatusChanged(_ int, _, newStatus models.TournamentStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statusChanges = append(d.statusChanges, newStatus)
}

func (d *recordingDispatcher) MatchCompleted(m *models.Match) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.matchEvents = append(d.matchEvents, m.ID)
}

func (d *recordingDispatcher) BracketGenerated(tournamentID int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bracketEvents = append(d.bracketEvents, tournamentID)
}

type fakeTournamentRepo struct {
	mu     sync.Mutex
	nextID int
	items  map[int]*models.Tournament
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{nextID: 1, items: make(map[int]*models.Tournament)}
}

func (r *fakeTournamentRepo) add(t *models.Tournament) *models.Tournament {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == 0 {
		t.ID = r.nextID
		r.nextID++
	}
	copied := *t
	r.items[t.ID] = &copied
	return t
}

func (r *fakeTournamentRepo) Create(_ context.Context, t *models.Tournament) error {
	r.add(t)
	return nil
}

func (r *fakeTournamentRepo) GetByID(_ context.Context, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTournamentRepo) List(_ context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Tournament
	for _, t := range r.items {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Format != nil && t.Format != *filter.Format {
			continue
		}
		if filter.OrganizerID != nil && t.OrganizerID != *filter.OrganizerID {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTournamentRepo) Update(_ context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[t.ID]; !ok {
		return repositories.ErrTournamentNotFound
	}
	copied := *t
	r.items[t.ID] = &copied
	return nil
}

func (r *fakeTournamentRepo) CompareAndSetStatus(_ context.Context, _ repositories.SQLExecutor, id int, from, to models.TournamentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	if t.Status != from {
		return repositories.ErrStatusConflict
	}
	t.Status = to
	return nil
}

func (r *fakeTournamentRepo) SetPublishedAt(_ context.Context, _ repositories.SQLExecutor, id int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.PublishedAt = &at
	return nil
}

func (r *fakeTournamentRepo) SetActualEndAt(_ context.Context, _ repositories.SQLExecutor, id int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.ActualEndAt = &at
	return nil
}

func (r *fakeTournamentRepo) UpdateBannerKey(_ context.Context, id int, bannerKey *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.BannerKey = bannerKey
	return nil
}

func (r *fakeTournamentRepo) ListDueForSweep(_ context.Context, now time.Time, grace time.Duration) ([]*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Tournament
	for _, t := range r.items {
		if t.Status.Terminal() || t.ArchivedAt != nil {
			continue
		}
		due := false
		switch t.Status {
		case models.StatusDraft:
			due = !now.Before(t.RegistrationStartsAt)
		case models.StatusRegistration:
			due = !now.Before(t.RegistrationEndsAt)
		case models.StatusCheckIn:
			due = !now.Before(t.StartsAt)
		case models.StatusInProgress:
			due = !now.Before(t.EstimatedEndAt.Add(grace))
		}
		if due {
			copied := *t
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTournamentRepo) ArchiveStaleDrafts(_ context.Context, before, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var archived int64
	for _, t := range r.items {
		if t.Status == models.StatusDraft && t.ArchivedAt == nil && t.CreatedAt.Before(before) {
			at := now
			t.ArchivedAt = &at
			archived++
		}
	}
	return archived, nil
}

type fakeParticipantRepo struct {
	mu     sync.Mutex
	nextID int
	items  map[int]*models.Participant
}

func newFakeParticipantRepo() *fakeParticipantRepo {
	return &fakeParticipantRepo{nextID: 1, items: make(map[int]*models.Participant)}
}

func (r *fakeParticipantRepo) add(p *models.Participant) *models.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		p.ID = r.nextID
		r.nextID++
	}
	copied := *p
	r.items[p.ID] = &copied
	return p
}

func (r *fakeParticipantRepo) Create(_ context.Context, p *models.Participant) error {
	r.mu.Lock()
	for _, existing := range r.items {
		if existing.TournamentID == p.TournamentID && existing.UserID == p.UserID {
			r.mu.Unlock()
			return repositories.ErrParticipantConflict
		}
	}
	r.mu.Unlock()
	r.add(p)
	return nil
}

func (r *fakeParticipantRepo) GetByID(_ context.Context, id int) (*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrParticipantNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakeParticipantRepo) GetByTournamentAndUser(_ context.Context, tournamentID, userID int) (*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.TournamentID == tournamentID && p.UserID == userID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repositories.ErrParticipantNotFound
}

func (r *fakeParticipantRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int, checkedInOnly bool) ([]*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Participant
	for _, p := range r.items {
		if p.TournamentID != tournamentID {
			continue
		}
		if checkedInOnly && !p.CheckedIn {
			continue
		}
		copied := *p
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *fakeParticipantRepo) CountCheckedIn(_ context.Context, tournamentID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, p := range r.items {
		if p.TournamentID == tournamentID && p.CheckedIn {
			count++
		}
	}
	return count, nil
}

func (r *fakeParticipantRepo) CountByTournament(_ context.Context, tournamentID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, p := range r.items {
		if p.TournamentID == tournamentID {
			count++
		}
	}
	return count, nil
}

func (r *fakeParticipantRepo) SetCheckedIn(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	p.CheckedIn = true
	return nil
}

func (r *fakeParticipantRepo) AssignSeed(_ context.Context, _ repositories.SQLExecutor, id, seed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok || p.Seed != nil {
		return repositories.ErrParticipantNotFound
	}
	p.Seed = &seed
	return nil
}

func (r *fakeParticipantRepo) AnySeeded(_ context.Context, _ repositories.SQLExecutor, tournamentID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.TournamentID == tournamentID && p.Seed != nil {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeParticipantRepo) AddMatchResult(_ context.Context, _ repositories.SQLExecutor, id int, won bool, gamesWon, gamesLost int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	if won {
		p.MatchesWon++
	} else {
		p.MatchesLost++
	}
	p.GamesWon += gamesWon
	p.GamesLost += gamesLost
	return nil
}

func (r *fakeParticipantRepo) SetPlacementAndPrize(_ context.Context, _ repositories.SQLExecutor, id, placement int, prize *decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	p.FinalPlacement = &placement
	p.PrizeWon = prize
	return nil
}

type fakeBracketRepo struct {
	mu     sync.Mutex
	nextID int
	items  map[int]*models.Bracket
}

func newFakeBracketRepo() *fakeBracketRepo {
	return &fakeBracketRepo{nextID: 1, items: make(map[int]*models.Bracket)}
}

func (r *fakeBracketRepo) Create(_ context.Context, _ repositories.SQLExecutor, b *models.Bracket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b.ID = r.nextID
	r.nextID++
	copied := *b
	r.items[b.ID] = &copied
	return nil
}

func (r *fakeBracketRepo) GetByID(_ context.Context, id int) (*models.Bracket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrBracketNotFound
	}
	copied := *b
	return &copied, nil
}

func (r *fakeBracketRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]*models.Bracket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Bracket
	for _, b := range r.items {
		if b.TournamentID == tournamentID {
			copied := *b
			out = append(out, &copied)
		}
	}
	// Main bracket first, matching the SQL ordering.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == models.BracketMain
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type fakeMatchRepo struct {
	mu     sync.Mutex
	nextID int
	items  map[int]*models.Match
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{nextID: 1, items: make(map[int]*models.Match)}
}

func (r *fakeMatchRepo) Create(_ context.Context, _ repositories.SQLExecutor, m *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = r.nextID
	r.nextID++
	copied := *m
	r.items[m.ID] = &copied
	return nil
}

func (r *fakeMatchRepo) get(id int) (*models.Match, error) {
	m, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	copied := *m
	return &copied, nil
}

func (r *fakeMatchRepo) GetByID(_ context.Context, id int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id)
}

func (r *fakeMatchRepo) GetByIDForUpdate(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id)
}

func (r *fakeMatchRepo) list(filter func(*models.Match) bool) []*models.Match {
	var out []*models.Match
	for _, m := range r.items {
		if filter(m) {
			copied := *m
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BracketID != out[j].BracketID {
			return out[i].BracketID < out[j].BracketID
		}
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		return out[i].MatchNumber < out[j].MatchNumber
	})
	return out
}

func (r *fakeMatchRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(m *models.Match) bool { return m.TournamentID == tournamentID }), nil
}

func (r *fakeMatchRepo) ListByBracket(_ context.Context, _ repositories.SQLExecutor, bracketID int) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(m *models.Match) bool { return m.BracketID == bracketID }), nil
}

func (r *fakeMatchRepo) ListFeeders(_ context.Context, _ repositories.SQLExecutor, matchID int) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(m *models.Match) bool {
		return (m.NextMatchWinnerID != nil && *m.NextMatchWinnerID == matchID) ||
			(m.NextMatchLoserID != nil && *m.NextMatchLoserID == matchID)
	}), nil
}

func (r *fakeMatchRepo) SetNextMatches(_ context.Context, _ repositories.SQLExecutor, id int, nextWinnerID, nextLoserID *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.NextMatchWinnerID = nextWinnerID
	m.NextMatchLoserID = nextLoserID
	return nil
}

func (r *fakeMatchRepo) UpdateSlots(_ context.Context, _ repositories.SQLExecutor, id int, p1, p2 *int, status models.MatchStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Participant1ID = p1
	m.Participant2ID = p2
	m.Status = status
	return nil
}

func (r *fakeMatchRepo) CompleteMatch(_ context.Context, _ repositories.SQLExecutor, id, score1, score2 int, winnerID int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok || m.Status != models.MatchReady {
		return repositories.ErrMatchStateConflict
	}
	m.Score1, m.Score2 = &score1, &score2
	m.WinnerID = &winnerID
	m.Status = models.MatchCompleted
	m.CompletedAt = &at
	return nil
}

func (r *fakeMatchRepo) CompleteWalkover(_ context.Context, _ repositories.SQLExecutor, id int, winnerID *int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok || m.Status == models.MatchCompleted {
		return repositories.ErrMatchStateConflict
	}
	m.WinnerID = winnerID
	m.Status = models.MatchCompleted
	m.CompletedAt = &at
	return nil
}

func (r *fakeMatchRepo) CountOpenInRound(_ context.Context, _ repositories.SQLExecutor, bracketID, round int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, m := range r.items {
		if m.BracketID == bracketID && m.Round == round && m.Status != models.MatchCompleted {
			count++
		}
	}
	return count, nil
}

func (r *fakeMatchRepo) CountOpenInTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, m := range r.items {
		if m.TournamentID == tournamentID && m.Status != models.MatchCompleted {
			count++
		}
	}
	return count, nil
}
