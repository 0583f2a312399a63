package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"heroai-go/core"
	"heroai-go/game"
)

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	turn_id  TEXT    NOT NULL,
	pass     INTEGER NOT NULL,
	player   INTEGER NOT NULL,
	day      INTEGER NOT NULL,
	goal     TEXT    NOT NULL,
	kind     TEXT    NOT NULL,
	key      TEXT    NOT NULL,
	priority REAL    NOT NULL,
	heroes   TEXT    NOT NULL DEFAULT '[]',
	outcome  TEXT    NOT NULL,
	reason   TEXT    NOT NULL DEFAULT '',
	at       TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_turn ON decisions(turn_id);
CREATE INDEX IF NOT EXISTS idx_decisions_player_day ON decisions(player, day);
`

// Journal stores every decision the engine makes in SQLite.
type Journal struct {
	db     *sqlx.DB
	logger *zap.Logger
}

var _ game.DecisionRecorder = (*Journal)(nil)

type decisionRow struct {
	TurnID   string  `db:"turn_id"`
	Pass     int     `db:"pass"`
	Player   int     `db:"player"`
	Day      int     `db:"day"`
	Goal     string  `db:"goal"`
	Kind     string  `db:"kind"`
	Key      string  `db:"key"`
	Priority float64 `db:"priority"`
	Heroes   string  `db:"heroes"`
	Outcome  string  `db:"outcome"`
	Reason   string  `db:"reason"`
	At       string  `db:"at"`
}

// KindSummary counts decisions of one goal kind.
type KindSummary struct {
	Kind      string `db:"kind" json:"kind"`
	Completed int    `db:"completed" json:"completed"`
	Aborted   int    `db:"aborted" json:"aborted"`
}

// Open opens (or creates) the journal at path. ":memory:" keeps it in memory.
func Open(path string, logger *zap.Logger) (*Journal, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	// a single connection keeps an in-memory database alive and serialises writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{db: db, logger: logger.Named("journal")}, nil
}

// RecordDecision appends one decision.
func (j *Journal) RecordDecision(ctx context.Context, d game.Decision) error {
	heroes, err := json.Marshal(d.Heroes)
	if err != nil {
		return fmt.Errorf("failed to marshal heroes: %w", err)
	}
	if d.Heroes == nil {
		heroes = []byte("[]")
	}

	tx, err := j.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO decisions (turn_id, pass, player, day, goal, kind, key, priority, heroes, outcome, reason, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.TurnID, d.Pass, int(d.Player), d.Day, d.Goal, d.Kind, d.Key, d.Priority,
		string(heroes), d.Outcome, d.Reason, d.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit decision: %w", err)
	}
	j.logger.Debug("decision recorded", zap.String("turn", d.TurnID), zap.String("goal", d.Goal), zap.String("outcome", d.Outcome))
	return nil
}

// Decisions returns the decisions of one turn in the order they were made.
func (j *Journal) Decisions(ctx context.Context, turnID string) ([]game.Decision, error) {
	var rows []decisionRow
	err := j.db.SelectContext(ctx, &rows,
		`SELECT turn_id, pass, player, day, goal, kind, key, priority, heroes, outcome, reason, at
		 FROM decisions WHERE turn_id = ? ORDER BY id`, turnID)
	if err != nil {
		return nil, fmt.Errorf("failed to select decisions: %w", err)
	}

	decisions := make([]game.Decision, 0, len(rows))
	for _, row := range rows {
		d, err := row.decision()
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, nil
}

// Summary counts completed and aborted decisions per goal kind for a player.
func (j *Journal) Summary(ctx context.Context, player core.PlayerID) ([]KindSummary, error) {
	var summary []KindSummary
	err := j.db.SelectContext(ctx, &summary,
		`SELECT kind,
		        SUM(CASE WHEN outcome = 'completed' THEN 1 ELSE 0 END) AS completed,
		        SUM(CASE WHEN outcome = 'completed' THEN 0 ELSE 1 END) AS aborted
		 FROM decisions WHERE player = ? GROUP BY kind ORDER BY kind`, int(player))
	if err != nil {
		return nil, fmt.Errorf("failed to summarise decisions: %w", err)
	}
	return summary, nil
}

// Count returns the number of stored decisions.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM decisions"); err != nil {
		return 0, fmt.Errorf("failed to count decisions: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (r decisionRow) decision() (game.Decision, error) {
	var heroes []core.HeroID
	if err := json.Unmarshal([]byte(r.Heroes), &heroes); err != nil {
		return game.Decision{}, fmt.Errorf("failed to unmarshal heroes of %s: %w", r.Key, err)
	}
	at, err := time.Parse(time.RFC3339Nano, r.At)
	if err != nil {
		return game.Decision{}, fmt.Errorf("failed to parse time of %s: %w", r.Key, err)
	}
	return game.Decision{
		TurnID:   r.TurnID,
		Pass:     r.Pass,
		Player:   core.PlayerID(r.Player),
		Day:      r.Day,
		Goal:     r.Goal,
		Kind:     r.Kind,
		Key:      r.Key,
		Priority: r.Priority,
		Heroes:   heroes,
		Outcome:  r.Outcome,
		Reason:   r.Reason,
		At:       at,
	}, nil
}
