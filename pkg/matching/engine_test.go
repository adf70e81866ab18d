package matching

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/bloom/pkg/models"
)

type fakeProfileStore struct {
	profiles   map[string]models.RawProfileRecord
	matched    []string
	getErr     error
	byIDsErr   error
	queryErr   error
	matchedErr error

	byIDsCalls int
	queryCalls int
	lastQuery  CandidateQuery
}

func (f *fakeProfileStore) GetProfileByID(_ context.Context, id string) (models.RawProfileRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.profiles[id], nil
}

func (f *fakeProfileStore) GetProfilesByIDs(_ context.Context, ids []string) ([]models.RawProfileRecord, error) {
	f.byIDsCalls++
	if f.byIDsErr != nil {
		return nil, f.byIDsErr
	}
	rows := make([]models.RawProfileRecord, 0, len(ids))
	for _, id := range ids {
		if row, ok := f.profiles[id]; ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (f *fakeProfileStore) QueryProfiles(_ context.Context, query CandidateQuery) ([]models.RawProfileRecord, error) {
	f.queryCalls++
	f.lastQuery = query
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	rows := make([]models.RawProfileRecord, 0, len(f.profiles))
	for _, row := range f.profiles {
		rows = append(rows, row)
	}
	return rows, nil
}

func (f *fakeProfileStore) MatchedUserIDs(_ context.Context, _ string) ([]string, error) {
	if f.matchedErr != nil {
		return nil, f.matchedErr
	}
	return f.matched, nil
}

type fakeSocialGraph struct {
	hints      []models.SocialHint
	hintsErr   error
	mutuals    []string
	mutualsErr error
}

func (f *fakeSocialGraph) FriendsOfFriends(_ context.Context, _ string, _ int, _ []string) ([]models.SocialHint, error) {
	if f.hintsErr != nil {
		return nil, f.hintsErr
	}
	return f.hints, nil
}

func (f *fakeSocialGraph) MutualFriends(_ context.Context, _, _ string) ([]string, error) {
	if f.mutualsErr != nil {
		return nil, f.mutualsErr
	}
	return f.mutuals, nil
}

type fakeEmitter struct {
	calls      int
	lastUserID string
	lastResult *models.MatchSearchResult
}

func (f *fakeEmitter) EmitMatchesComputed(_ context.Context, userID string, result *models.MatchSearchResult) error {
	f.calls++
	f.lastUserID = userID
	f.lastResult = result
	return nil
}

func rawRecord(id, gender, city string, interests []string) models.RawProfileRecord {
	return models.RawProfileRecord{
		"id":        id,
		"name":      "User " + id,
		"age":       float64(30),
		"gender":    gender,
		"email":     id + "@example.com",
		"phone":     "+34600000000",
		"interests": interests,
		"location":  map[string]any{"city": city},
	}
}

// storeFixture holds a self profile plus one strong and one weak candidate.
func storeFixture() *fakeProfileStore {
	return &fakeProfileStore{
		profiles: map[string]models.RawProfileRecord{
			"self":     rawRecord("self", "single", "valencia", []string{"hiking", "jazz"}),
			"good":     rawRecord("good", "single", "valencia", []string{"hiking", "jazz"}),
			"mediocre": rawRecord("mediocre", "single", "sevilla", []string{"chess"}),
		},
	}
}

func newTestEngine(store ProfileStore, graph SocialGraph, emitter MatchEmitter) *Engine {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewEngine(logger, store, graph, emitter, DefaultEngineConfig())
}

func TestEngine_FindMatches(t *testing.T) {
	ctx := context.Background()

	t.Run("ranks matches by score descending", func(t *testing.T) {
		engine := newTestEngine(storeFixture(), nil, nil)

		result, err := engine.FindMatches(ctx, "self", models.MatchOptions{})
		require.NoError(t, err)
		require.Len(t, result.Matches, 2)
		assert.Equal(t, "good", result.Matches[0].UserID)
		assert.Equal(t, "mediocre", result.Matches[1].UserID)
		assert.Greater(t, result.Matches[0].TotalScore, result.Matches[1].TotalScore)
	})

	t.Run("equal scores break ties on user id ascending", func(t *testing.T) {
		store := &fakeProfileStore{
			profiles: map[string]models.RawProfileRecord{
				"self": rawRecord("self", "single", "valencia", []string{"hiking"}),
				"b":    rawRecord("b", "single", "valencia", []string{"hiking"}),
				"a":    rawRecord("a", "single", "valencia", []string{"hiking"}),
			},
		}
		engine := newTestEngine(store, nil, nil)

		result, err := engine.FindMatches(ctx, "self", models.MatchOptions{})
		require.NoError(t, err)
		require.Len(t, result.Matches, 2)
		assert.Equal(t, "a", result.Matches[0].UserID)
		assert.Equal(t, "b", result.Matches[1].UserID)
	})

	t.Run("sanitizes every returned profile", func(t *testing.T) {
		engine := newTestEngine(storeFixture(), nil, nil)

		result, err := engine.FindMatches(ctx, "self", models.MatchOptions{})
		require.NoError(t, err)
		require.NotEmpty(t, result.Matches)
		for _, match := range result.Matches {
			require.NotNil(t, match.Profile)
			assert.Empty(t, match.Profile.Email)
			assert.Empty(t, match.Profile.Phone)
			assert.NotEmpty(t, match.Profile.Name)
		}
	})

	t.Run("missing self profile yields an empty result", func(t *testing.T) {
		engine := newTestEngine(&fakeProfileStore{profiles: map[string]models.RawProfileRecord{}}, nil, nil)

		result, err := engine.FindMatches(ctx, "ghost", models.MatchOptions{})
		require.NoError(t, err)
		assert.NotNil(t, result.Matches)
		assert.Empty(t, result.Matches)
		assert.Zero(t, result.Total)
	})

	t.Run("profile store failure degrades to an empty result", func(t *testing.T) {
		engine := newTestEngine(&fakeProfileStore{getErr: errors.New("connection refused")}, nil, nil)

		result, err := engine.FindMatches(ctx, "self", models.MatchOptions{})
		require.NoError(t, err)
		assert.Empty(t, result.Matches)
	})

	t.Run("missing user id is a 400", func(t *testing.T) {
		engine := newTestEngine(storeFixture(), nil, nil)

		_, err := engine.FindMatches(ctx, "", models.MatchOptions{})
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})

	t.Run("limit above the maximum is a 400", func(t *testing.T) {
		engine := newTestEngine(storeFixture(), nil, nil)

		_, err := engine.FindMatches(ctx, "self", models.MatchOptions{Limit: 500})
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})

	t.Run("inverted age range is a 400", func(t *testing.T) {
		engine := newTestEngine(storeFixture(), nil, nil)

		_, err := engine.FindMatches(ctx, "self", models.MatchOptions{
			Filters: models.MatchFilters{AgeRange: &models.AgeRange{Min: 40, Max: 20}},
		})
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})

	t.Run("min score filter drops weak candidates but not the stats", func(t *testing.T) {
		engine := newTestEngine(storeFixture(), nil, nil)
		minScore := 50.0

		result, err := engine.FindMatches(ctx, "self", models.MatchOptions{
			Filters: models.MatchFilters{MinScore: &minScore},
		})
		require.NoError(t, err)
		require.Len(t, result.Matches, 1)
		assert.Equal(t, "good", result.Matches[0].UserID)
		assert.Equal(t, 2, result.Stats.TotalCandidates)
		assert.Equal(t, 1, result.Stats.MatchesFound)
	})

	t.Run("exclude matched removes confirmed matches", func(t *testing.T) {
		store := storeFixture()
		store.matched = []string{"good"}
		engine := newTestEngine(store, nil, nil)

		result, err := engine.FindMatches(ctx, "self", models.MatchOptions{ExcludeMatched: true})
		require.NoError(t, err)
		require.Len(t, result.Matches, 1)
		assert.Equal(t, "mediocre", result.Matches[0].UserID)
	})

	t.Run("limit truncates after stats are computed", func(t *testing.T) {
		engine := newTestEngine(storeFixture(), nil, nil)

		result, err := engine.FindMatches(ctx, "self", models.MatchOptions{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, result.Matches, 1)
		assert.Equal(t, 2, result.Total)
		assert.Equal(t, 2, result.Stats.MatchesFound)
	})

	t.Run("emits telemetry once per search", func(t *testing.T) {
		emitter := &fakeEmitter{}
		engine := newTestEngine(storeFixture(), nil, emitter)

		result, err := engine.FindMatches(ctx, "self", models.MatchOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, emitter.calls)
		assert.Equal(t, "self", emitter.lastUserID)
		assert.Equal(t, result.Stats, emitter.lastResult.Stats)
	})

	t.Run("graph hints hydrate by id and add a social bonus", func(t *testing.T) {
		baseline := newTestEngine(storeFixture(), nil, nil)
		base, err := baseline.FindMatches(ctx, "self", models.MatchOptions{})
		require.NoError(t, err)
		require.Equal(t, "good", base.Matches[0].UserID)

		store := storeFixture()
		graph := &fakeSocialGraph{hints: []models.SocialHint{{UserID: "good", MutualCount: 2}}}
		engine := newTestEngine(store, graph, nil)

		result, err := engine.FindMatches(ctx, "self", models.MatchOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, store.byIDsCalls)
		assert.Zero(t, store.queryCalls)
		require.Len(t, result.Matches, 1)
		assert.Equal(t, "good", result.Matches[0].UserID)
		assert.Equal(t, 2, result.Matches[0].MutualFriendsCount)
		assert.Equal(t, 6.0, result.Matches[0].SocialScore)
		assert.InDelta(t, base.Matches[0].TotalScore+6, result.Matches[0].TotalScore, 0.001)
	})

	t.Run("social bonus is capped", func(t *testing.T) {
		store := storeFixture()
		graph := &fakeSocialGraph{hints: []models.SocialHint{{UserID: "good", MutualCount: 40}}}
		engine := newTestEngine(store, graph, nil)

		result, err := engine.FindMatches(ctx, "self", models.MatchOptions{})
		require.NoError(t, err)
		require.Len(t, result.Matches, 1)
		assert.Equal(t, 15.0, result.Matches[0].SocialScore)
	})

	t.Run("a social bonus never resurrects a hard-filtered candidate", func(t *testing.T) {
		store := storeFixture()
		store.profiles["filtered"] = rawRecord("filtered", "throuple", "valencia", []string{"hiking"})
		graph := &fakeSocialGraph{hints: []models.SocialHint{{UserID: "filtered", MutualCount: 9}}}
		engine := newTestEngine(store, graph, nil)
		minScore := 0.0

		result, err := engine.FindMatches(ctx, "self", models.MatchOptions{
			Filters: models.MatchFilters{MinScore: &minScore},
		})
		require.NoError(t, err)
		require.Len(t, result.Matches, 1)
		assert.Zero(t, result.Matches[0].TotalScore)
		assert.Equal(t, 15.0, result.Matches[0].SocialScore)
	})

	t.Run("graph failure degrades to the filtered scan", func(t *testing.T) {
		store := storeFixture()
		graph := &fakeSocialGraph{hintsErr: errors.New("bolt handshake failed")}
		engine := newTestEngine(store, graph, nil)

		result, err := engine.FindMatches(ctx, "self", models.MatchOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, store.queryCalls)
		require.Len(t, result.Matches, 2)
		assert.Zero(t, result.Matches[0].SocialScore)
	})

	t.Run("hydration failure falls back to the filtered scan", func(t *testing.T) {
		store := storeFixture()
		store.byIDsErr = errors.New("too many connections")
		graph := &fakeSocialGraph{hints: []models.SocialHint{{UserID: "good", MutualCount: 1}}}
		engine := newTestEngine(store, graph, nil)

		result, err := engine.FindMatches(ctx, "self", models.MatchOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, store.byIDsCalls)
		assert.Equal(t, 1, store.queryCalls)
		assert.NotEmpty(t, result.Matches)
	})

	t.Run("candidate scan failure yields an empty result", func(t *testing.T) {
		store := storeFixture()
		store.queryErr = errors.New("relation does not exist")
		engine := newTestEngine(store, nil, nil)

		result, err := engine.FindMatches(ctx, "self", models.MatchOptions{})
		require.NoError(t, err)
		assert.Empty(t, result.Matches)
	})

	t.Run("unnormalizable candidate records are dropped", func(t *testing.T) {
		store := storeFixture()
		store.profiles["junk"] = models.RawProfileRecord{"age": float64(30)}
		engine := newTestEngine(store, nil, nil)

		result, err := engine.FindMatches(ctx, "self", models.MatchOptions{})
		require.NoError(t, err)
		assert.Len(t, result.Matches, 2)
	})
}

func TestEngine_CalculateCompatibility(t *testing.T) {
	ctx := context.Background()

	t.Run("missing ids are a 400", func(t *testing.T) {
		engine := newTestEngine(storeFixture(), nil, nil)

		_, err := engine.CalculateCompatibility(ctx, "", "good", models.ContextNone)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})

	t.Run("missing profile on either side yields no score", func(t *testing.T) {
		engine := newTestEngine(storeFixture(), nil, nil)

		score, err := engine.CalculateCompatibility(ctx, "self", "ghost", models.ContextNone)
		require.NoError(t, err)
		assert.Nil(t, score)

		score, err = engine.CalculateCompatibility(ctx, "ghost", "good", models.ContextNone)
		require.NoError(t, err)
		assert.Nil(t, score)
	})

	t.Run("returns the sanitized counterpart profile", func(t *testing.T) {
		engine := newTestEngine(storeFixture(), nil, nil)

		score, err := engine.CalculateCompatibility(ctx, "self", "good", models.ContextNone)
		require.NoError(t, err)
		require.NotNil(t, score)
		assert.Greater(t, score.TotalScore, 0.0)
		require.NotNil(t, score.Profile)
		assert.Equal(t, "good", score.Profile.ID)
		assert.Empty(t, score.Profile.Email)
		assert.Empty(t, score.Profile.Phone)
	})

	t.Run("mutual friends enrich the score", func(t *testing.T) {
		graph := &fakeSocialGraph{mutuals: []string{"m1", "m2"}}
		engine := newTestEngine(storeFixture(), graph, nil)

		score, err := engine.CalculateCompatibility(ctx, "self", "good", models.ContextNone)
		require.NoError(t, err)
		require.NotNil(t, score)
		assert.Equal(t, []string{"m1", "m2"}, score.MutualFriends)
		assert.Equal(t, 2, score.MutualFriendsCount)
		assert.Equal(t, 6.0, score.SocialScore)
	})

	t.Run("mutual friends lookup failure is non-fatal", func(t *testing.T) {
		graph := &fakeSocialGraph{mutualsErr: errors.New("session expired")}
		engine := newTestEngine(storeFixture(), graph, nil)

		score, err := engine.CalculateCompatibility(ctx, "self", "good", models.ContextNone)
		require.NoError(t, err)
		require.NotNil(t, score)
		assert.Greater(t, score.TotalScore, 0.0)
		assert.Zero(t, score.SocialScore)
	})
}

func TestEngine_RecommendedUsers(t *testing.T) {
	ctx := context.Background()

	t.Run("falls back to the scan pipeline without a graph", func(t *testing.T) {
		store := storeFixture()
		engine := newTestEngine(store, nil, nil)

		result, err := engine.RecommendedUsers(ctx, "self", 0, models.MatchOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, store.queryCalls)
		assert.Len(t, result.Matches, 2)
	})

	t.Run("falls back when the graph has no hints", func(t *testing.T) {
		store := storeFixture()
		engine := newTestEngine(store, &fakeSocialGraph{}, nil)

		result, err := engine.RecommendedUsers(ctx, "self", 0, models.MatchOptions{})
		require.NoError(t, err)
		assert.NotZero(t, store.queryCalls)
		assert.Len(t, result.Matches, 2)
	})

	t.Run("graph hints drive the candidate set", func(t *testing.T) {
		store := storeFixture()
		graph := &fakeSocialGraph{hints: []models.SocialHint{{UserID: "good", MutualCount: 3}}}
		engine := newTestEngine(store, graph, nil)

		result, err := engine.RecommendedUsers(ctx, "self", 0, models.MatchOptions{})
		require.NoError(t, err)
		assert.Zero(t, store.queryCalls)
		require.Len(t, result.Matches, 1)
		assert.Equal(t, "good", result.Matches[0].UserID)
		assert.Equal(t, 9.0, result.Matches[0].SocialScore)
	})

	t.Run("explicit limit overrides the options", func(t *testing.T) {
		store := storeFixture()
		graph := &fakeSocialGraph{hints: []models.SocialHint{
			{UserID: "good", MutualCount: 1},
			{UserID: "mediocre", MutualCount: 1},
		}}
		engine := newTestEngine(store, graph, nil)

		result, err := engine.RecommendedUsers(ctx, "self", 1, models.MatchOptions{Limit: 50})
		require.NoError(t, err)
		assert.Len(t, result.Matches, 1)
		assert.Equal(t, 2, result.Total)
	})
}
