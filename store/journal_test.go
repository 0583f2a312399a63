package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"heroai-go/core"
	"heroai-go/game"
)

func openJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:", zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func decision(turn string, pass int, kind, outcome string, heroes ...core.HeroID) game.Decision {
	return game.Decision{
		TurnID:   turn,
		Pass:     pass,
		Player:   1,
		Day:      3,
		Goal:     kind + " goal",
		Kind:     kind,
		Key:      kind + ":1",
		Priority: 0.25,
		Heroes:   heroes,
		Outcome:  outcome,
		At:       time.Date(2024, 5, 1, 12, 0, pass, 0, time.UTC),
	}
}

func TestJournal_RecordDecision(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)

	first := decision("turn-a", 1, "execute_chain", "completed", 2, 1)
	second := decision("turn-a", 2, "buy_army", "aborted")
	second.Reason = "not enough gold"
	other := decision("turn-b", 1, "visit_tile", "completed", 1)

	for _, d := range []game.Decision{first, second, other} {
		require.NoError(t, j.RecordDecision(ctx, d))
	}

	got, err := j.Decisions(ctx, "turn-a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first, got[0])
	assert.Equal(t, "not enough gold", got[1].Reason)
	assert.Empty(t, got[1].Heroes)

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestJournal_Decisions_UnknownTurn(t *testing.T) {
	got, err := openJournal(t).Decisions(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestJournal_Summary(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)

	require.NoError(t, j.RecordDecision(ctx, decision("t", 1, "execute_chain", "completed", 1)))
	require.NoError(t, j.RecordDecision(ctx, decision("t", 2, "execute_chain", "aborted", 1)))
	require.NoError(t, j.RecordDecision(ctx, decision("t", 3, "execute_chain", "completed", 1)))
	require.NoError(t, j.RecordDecision(ctx, decision("t", 4, "recruit_hero", "completed")))

	foreign := decision("t", 5, "recruit_hero", "aborted")
	foreign.Player = 2
	require.NoError(t, j.RecordDecision(ctx, foreign))

	summary, err := j.Summary(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []KindSummary{
		{Kind: "execute_chain", Completed: 2, Aborted: 1},
		{Kind: "recruit_hero", Completed: 1, Aborted: 0},
	}, summary)
}

func TestJournal_ReopenFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, j.RecordDecision(ctx, decision("t", 1, "visit_tile", "completed", 1)))
	require.NoError(t, j.Close())

	j, err = Open(path, nil)
	require.NoError(t, err)
	defer j.Close()

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestJournal_RecordsEngineTurn(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)

	var recorder game.DecisionRecorder = j
	require.NoError(t, recorder.RecordDecision(ctx, decision("t", 1, "gather_army", "completed", 3)))

	got, err := j.Decisions(ctx, "t")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []core.HeroID{3}, got[0].Heroes)
}
