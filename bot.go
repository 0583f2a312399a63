package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"heroai-go/core"
	"heroai-go/game"
	"heroai-go/sim"
	"heroai-go/web"
)

const pausePoll = 100 * time.Millisecond

// Bot plays every AI player of a simulated match, one engine per player.
type Bot struct {
	World  *sim.World
	Config *core.Config

	players []core.PlayerID
	engines map[core.PlayerID]*game.Engine
	files   *core.FileManager
	hub     *web.Hub
	logger  *zap.Logger

	paused bool
	lock   sync.Mutex
}

// BotOptions holds the optional collaborators of a bot.
type BotOptions struct {
	// Recorder receives every decision of every engine.
	Recorder game.DecisionRecorder
	// Files saves one JSON report per player and day when set.
	Files *core.FileManager
}

// NewBot creates a bot for the AI players of world.
func NewBot(world *sim.World, config *core.Config, opts BotOptions, logger *zap.Logger) (*Bot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	bot := &Bot{
		World:   world,
		Config:  config,
		engines: make(map[core.PlayerID]*game.Engine),
		files:   opts.Files,
		logger:  logger,
	}
	for _, player := range world.Players() {
		if !player.AI {
			continue
		}
		engine, err := game.NewEngine(world.ForPlayer(player.ID), config, logger.With(zap.Int("player", int(player.ID))))
		if err != nil {
			return nil, fmt.Errorf("failed to create engine for player %d: %w", player.ID, err)
		}
		if opts.Recorder != nil {
			engine.SetRecorder(opts.Recorder)
		}
		bot.players = append(bot.players, player.ID)
		bot.engines[player.ID] = engine
	}
	if len(bot.players) == 0 {
		return nil, fmt.Errorf("scenario has no AI players")
	}
	return bot, nil
}

// SetHub attaches the websocket hub notified after every day.
func (b *Bot) SetHub(hub *web.Hub) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.hub = hub
}

// Engine returns the engine playing player.
func (b *Bot) Engine(player core.PlayerID) (*game.Engine, bool) {
	e, ok := b.engines[player]
	return e, ok
}

// PlayDay plans one turn for every AI player in ID order and then advances the calendar.
func (b *Bot) PlayDay(ctx context.Context) ([]*game.TurnReport, error) {
	day := b.World.Day()
	reports := make([]*game.TurnReport, 0, len(b.players))
	for _, player := range b.players {
		report, err := b.engines[player].PlanTurn(ctx)
		if err != nil {
			return reports, fmt.Errorf("failed to plan turn of player %d on day %d: %w", player, day, err)
		}
		reports = append(reports, report)
		b.logger.Info("turn planned",
			zap.Int("player", int(player)),
			zap.Int("day", day),
			zap.Int("passes", report.Passes),
			zap.Int("decisions", len(report.Decisions)),
			zap.Int("locked", len(report.Locked)),
		)
		if b.files != nil {
			path, err := b.files.SaveReport(player, day, report)
			if err != nil {
				return reports, fmt.Errorf("failed to save report of player %d: %w", player, err)
			}
			b.logger.Debug("report saved", zap.String("path", path))
		}
	}
	b.World.NextDay()

	b.lock.Lock()
	hub := b.hub
	b.lock.Unlock()
	hub.BroadcastFullState()
	return reports, nil
}

// Run plays a day every interval until days have been played or ctx is done.
// days <= 0 runs until ctx is done, interval <= 0 plays days back to back.
// While paused, no day is played.
func (b *Bot) Run(ctx context.Context, days int, interval time.Duration) error {
	b.logger.Info("starting bot", zap.Int("players", len(b.players)), zap.Int("days", days))
	backToBack := interval <= 0
	if backToBack {
		interval = pausePoll
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	played := 0
	for days <= 0 || played < days {
		if !b.IsPaused() {
			if _, err := b.PlayDay(ctx); err != nil {
				return err
			}
			played++
			if days > 0 && played >= days {
				break
			}
			if backToBack {
				continue
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	b.logger.Info("bot finished", zap.Int("days", played))
	return nil
}

// Pause pauses the bot.
func (b *Bot) Pause() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.paused = true
}

// Resume resumes the bot.
func (b *Bot) Resume() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.paused = false
}

// IsPaused returns true if the bot is paused.
func (b *Bot) IsPaused() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.paused
}

type playerState struct {
	ID         core.PlayerID          `json:"id"`
	Name       string                 `json:"name"`
	Gold       int                    `json:"gold"`
	Heroes     []core.Hero            `json:"heroes"`
	Engine     string                 `json:"engine"`
	Locked     map[core.HeroID]string `json:"locked"`
	LastReport *game.TurnReport       `json:"last_report,omitempty"`
}

type botState struct {
	Day     int           `json:"day"`
	Paused  bool          `json:"paused"`
	Players []playerState `json:"players"`
}

// State returns the JSON document served on /api/state and over the websocket.
func (b *Bot) State() ([]byte, error) {
	state := botState{Day: b.World.Day(), Paused: b.IsPaused()}
	for _, p := range b.World.Players() {
		engine, ok := b.engines[p.ID]
		if !ok {
			continue
		}
		locked := make(map[core.HeroID]string)
		for hero, reason := range engine.LockedHeroes() {
			locked[hero] = reason.String()
		}
		state.Players = append(state.Players, playerState{
			ID:         p.ID,
			Name:       p.Name,
			Gold:       p.Gold,
			Heroes:     b.World.ForPlayer(p.ID).Heroes(),
			Engine:     engine.State().String(),
			Locked:     locked,
			LastReport: engine.LastReport(),
		})
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bot state: %w", err)
	}
	return data, nil
}

// Status returns the summary rendered on the status page.
func (b *Bot) Status() web.Status {
	status := web.Status{Day: b.World.Day(), Paused: b.IsPaused()}
	for _, p := range b.World.Players() {
		engine, ok := b.engines[p.ID]
		if !ok {
			continue
		}
		ps := web.PlayerStatus{
			ID:     int(p.ID),
			Gold:   int64(p.Gold),
			Heroes: len(b.World.ForPlayer(p.ID).Heroes()),
			Locked: len(engine.LockedHeroes()),
		}
		if report := engine.LastReport(); report != nil {
			ps.Decisions = len(report.Decisions)
			ps.LastTurn = report.Finished
		}
		status.Players = append(status.Players, ps)
	}
	return status
}
