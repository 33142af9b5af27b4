// Package pipeline orchestrates the per-day extraction state machine:
// story, extraction, formatting, self-reflection, cross-verification,
// validation, confidence filtering, and persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agendad/internal/agents"
	"github.com/fyrsmithlabs/agendad/internal/llm"
	"github.com/fyrsmithlabs/agendad/internal/model"
	"github.com/fyrsmithlabs/agendad/internal/store"
)

// BatchSource supplies one day's raw conversation batch. The pipeline
// never fetches raw data itself.
type BatchSource interface {
	BatchForDay(ctx context.Context, date time.Time) (*model.RawConversationBatch, error)
}

// Config tunes the coordinator. Zero values fall back to defaults.
type Config struct {
	EnableSelfReflection         bool
	EnableMultiAgentVerification bool
	// QualityRetryThreshold: a critic score below this (with the critic
	// voting retry) triggers the single bounded re-extraction.
	QualityRetryThreshold float64
	// ConsensusThreshold: verification output replaces the working set
	// only at or above this consensus score.
	ConsensusThreshold float64
	RescanInterval     time.Duration
	RescanDays         int
}

const (
	defaultQualityRetryThreshold = 7.0
	defaultConsensusThreshold    = 0.6
	defaultRescanInterval        = 5 * time.Minute
	defaultRescanDays            = 7
)

// Deps wires the coordinator's collaborators.
type Deps struct {
	Source    BatchSource
	Store     store.Store
	Story     *agents.StoryAgent
	Extractor *agents.ExtractorAgent
	Formatter *agents.FormatterAgent
	Validator *agents.ValidatorAgent
	Critic    *agents.CriticAgent
	Verifier  *agents.VerifierAgent
	// LLMStats exposes the model access layer's counters for snapshots.
	LLMStats func() llm.Stats
	Metrics  *Metrics
	Logger   *zap.Logger
}

// Stats is a point-in-time snapshot, queryable without blocking the
// pipeline.
type Stats struct {
	IsRunning         bool      `json:"is_running"`
	DaysProcessed     uint64    `json:"days_processed"`
	EventsCreated     uint64    `json:"events_created"`
	TasksCreated      uint64    `json:"tasks_created"`
	ReflectionRetries uint64    `json:"reflection_retries"`
	ItemsDisputed     uint64    `json:"items_disputed"`
	TotalAPICalls     uint64    `json:"total_api_calls"`
	CacheHits         uint64    `json:"cache_hits"`
	CacheHitRate      float64   `json:"cache_hit_rate"`
	LastRescan        time.Time `json:"last_rescan"`
}

// Coordinator drives day processing. Mutable state (run flag, processed
// set, counters) is confined behind one mutex; stages themselves hold no
// coordinator state.
type Coordinator struct {
	cfg  Config
	deps Deps
	log  *zap.Logger

	mu                sync.Mutex
	running           bool
	rescanActive      bool
	cron              *cron.Cron
	processedDays     map[string]struct{}
	daysProcessed     uint64
	eventsCreated     uint64
	tasksCreated      uint64
	reflectionRetries uint64
	itemsDisputed     uint64
	lastRescan        time.Time

	now func() time.Time // test hook
}

// New creates a Coordinator.
func New(cfg Config, deps Deps) (*Coordinator, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("batch source required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if deps.Story == nil || deps.Extractor == nil || deps.Formatter == nil || deps.Validator == nil {
		return nil, fmt.Errorf("story, extractor, formatter, and validator agents required")
	}
	if cfg.EnableSelfReflection && deps.Critic == nil {
		return nil, fmt.Errorf("self-reflection enabled but no critic agent")
	}
	if cfg.EnableMultiAgentVerification && deps.Verifier == nil {
		return nil, fmt.Errorf("verification enabled but no verifier agent")
	}
	if cfg.QualityRetryThreshold <= 0 {
		cfg.QualityRetryThreshold = defaultQualityRetryThreshold
	}
	if cfg.ConsensusThreshold <= 0 {
		cfg.ConsensusThreshold = defaultConsensusThreshold
	}
	if cfg.RescanInterval <= 0 {
		cfg.RescanInterval = defaultRescanInterval
	}
	if cfg.RescanDays <= 0 {
		cfg.RescanDays = defaultRescanDays
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		cfg:           cfg,
		deps:          deps,
		log:           logger.Named("pipeline"),
		processedDays: make(map[string]struct{}),
		now:           time.Now,
	}, nil
}

// Start launches the background rescan loop. Safe to call once.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("coordinator already running")
	}
	c.running = true
	c.cron = cron.New()
	c.mu.Unlock()

	spec := fmt.Sprintf("@every %s", c.cfg.RescanInterval)
	if _, err := c.cron.AddFunc(spec, func() { c.Rescan(context.Background()) }); err != nil {
		return fmt.Errorf("scheduling rescan: %w", err)
	}
	c.cron.Start()
	c.log.Info("coordinator started",
		zap.Duration("rescan_interval", c.cfg.RescanInterval),
		zap.Int("rescan_days", c.cfg.RescanDays))

	// First pass immediately rather than one interval from now.
	go c.Rescan(context.Background())
	return nil
}

// Stop cancels the background loop. In-flight day processing finishes;
// no new day is scheduled.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	running := c.running
	cronRunner := c.cron
	c.running = false
	c.mu.Unlock()

	if running && cronRunner != nil {
		<-cronRunner.Stop().Done()
	}
	c.log.Info("coordinator stopped")
}

// Rescan processes the last RescanDays days sequentially. Today is always
// reprocessed; older days are skipped once they processed cleanly. A
// single day's failure never aborts the loop. At most one pass runs at a
// time: a tick that fires while a slow pass is still working is dropped,
// never queued behind it.
func (c *Coordinator) Rescan(ctx context.Context) {
	today := c.now()
	c.mu.Lock()
	if c.rescanActive {
		c.mu.Unlock()
		c.log.Debug("rescan already in progress, skipping pass")
		return
	}
	c.rescanActive = true
	c.lastRescan = today
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.rescanActive = false
		c.mu.Unlock()
	}()

	for i := 0; i < c.cfg.RescanDays; i++ {
		date := today.AddDate(0, 0, -i)
		key := model.DayKey(date)

		if i > 0 {
			c.mu.Lock()
			_, done := c.processedDays[key]
			c.mu.Unlock()
			if done {
				continue
			}
		}

		if _, err := c.ProcessDay(ctx, date); err != nil {
			c.deps.Metrics.dayFailure()
			c.log.Error("day processing failed", zap.String("day", key), zap.Error(err))
			continue
		}
		c.markProcessed(i, key)
	}
}

func (c *Coordinator) markProcessed(dayOffset int, key string) {
	if dayOffset == 0 {
		return // today keeps getting reprocessed to catch late arrivals
	}
	c.mu.Lock()
	c.processedDays[key] = struct{}{}
	c.mu.Unlock()
}

// ProcessDay runs the full stage sequence for one calendar day and
// persists the result.
func (c *Coordinator) ProcessDay(ctx context.Context, date time.Time) (*model.PipelineResult, error) {
	dayStart := c.now()
	key := model.DayKey(date)
	result := &model.PipelineResult{Date: date}

	batch, err := c.deps.Source.BatchForDay(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("building batch for %s: %w", key, err)
	}
	if batch.IsEmpty() {
		c.log.Debug("empty batch", zap.String("day", key))
		return result, nil
	}

	// Stage 1: story. Unchanged input is a normal skip, not a failure;
	// callers get an empty result the same as an empty day.
	stageStart := c.now()
	story, err := c.deps.Story.Summarize(ctx, batch)
	if errors.Is(err, agents.ErrDuplicateContent) {
		c.log.Debug("skipping day with duplicate content", zap.String("day", key))
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	result.Story = story
	result.Timings.Story = c.now().Sub(stageStart)

	// Stage 2: extraction. Nothing extracted ends the day early.
	stageStart = c.now()
	items, err := c.deps.Extractor.Extract(ctx, story, "")
	if err != nil {
		return nil, err
	}
	result.Timings.Extract = c.now().Sub(stageStart)
	if len(items) == 0 {
		c.log.Info("no actionable items", zap.String("day", key))
		result.Timings.Total = c.now().Sub(dayStart)
		return result, nil
	}

	// Stage 3: formatting.
	stageStart = c.now()
	events, tasks, err := c.deps.Formatter.Format(ctx, items, date)
	if err != nil {
		return nil, err
	}
	result.Timings.Format = c.now().Sub(stageStart)

	// Stage 4: self-reflection, capped at one retry per day.
	if c.cfg.EnableSelfReflection {
		stageStart = c.now()
		events, tasks, err = c.reflect(ctx, story, items, events, tasks)
		if err != nil {
			return nil, err
		}
		result.Timings.Reflect = c.now().Sub(stageStart)
	}

	// Stage 5: multi-agent verification.
	if c.cfg.EnableMultiAgentVerification && len(events)+len(tasks) > 0 {
		stageStart = c.now()
		verification := c.deps.Verifier.CrossVerify(ctx, events, tasks, story, date)
		c.mu.Lock()
		c.itemsDisputed += uint64(len(verification.DisputedItems))
		c.mu.Unlock()
		c.deps.Metrics.itemsDisputed(len(verification.DisputedItems))
		if verification.ConsensusScore >= c.cfg.ConsensusThreshold {
			events, tasks = verification.AgreedEvents, verification.AgreedTasks
		} else {
			c.log.Warn("low verification consensus, keeping pre-verification set",
				zap.String("day", key),
				zap.Float64("consensus", verification.ConsensusScore),
				zap.Strings("disputed", verification.DisputedItems))
		}
		result.Timings.Verify = c.now().Sub(stageStart)
	}

	// Stage 6: validation.
	stageStart = c.now()
	events, tasks, rejected, err := c.deps.Validator.Validate(ctx, events, tasks, date)
	if err != nil {
		return nil, err
	}
	result.Rejected = rejected
	result.Timings.Validate = c.now().Sub(stageStart)

	// Stage 7: confidence filter. Every event is kept: calendar clutter
	// is cheaper than a missed event. Undated low-confidence tasks are
	// pure noise and are rejected.
	for _, ev := range events {
		if ev.Confidence == model.ConfidenceLow {
			c.log.Info("keeping low-confidence event", zap.String("day", key), zap.String("title", ev.Title))
		}
	}
	keptTasks := tasks[:0]
	for _, task := range tasks {
		if task.Confidence == model.ConfidenceLow && task.DueDate == nil {
			result.Rejected = append(result.Rejected, model.RejectedItem{
				Title:  task.Title,
				Reason: "low-confidence task with no due date",
			})
			continue
		}
		keptTasks = append(keptTasks, task)
	}
	tasks = keptTasks

	// Stage 8: persistence via upsert.
	stageStart = c.now()
	source := batch.DominantSource()
	for i := range events {
		events[i].Source = source
	}
	for i := range tasks {
		tasks[i].Source = source
	}
	insertedEvents, err := c.deps.Store.UpsertEvents(ctx, events)
	if err != nil {
		return nil, fmt.Errorf("persisting events for %s: %w", key, err)
	}
	insertedTasks, err := c.deps.Store.UpsertTasks(ctx, tasks)
	if err != nil {
		return nil, fmt.Errorf("persisting tasks for %s: %w", key, err)
	}
	if err := c.deps.Store.LogActivity(ctx, store.ActivityEntry{
		Day:           key,
		EventsCreated: insertedEvents,
		TasksCreated:  insertedTasks,
		ItemsRejected: len(result.Rejected),
	}); err != nil {
		return nil, fmt.Errorf("logging activity for %s: %w", key, err)
	}
	result.Timings.Persist = c.now().Sub(stageStart)

	result.Events = events
	result.Tasks = tasks
	result.Timings.Total = c.now().Sub(dayStart)

	c.mu.Lock()
	c.daysProcessed++
	c.eventsCreated += uint64(insertedEvents)
	c.tasksCreated += uint64(insertedTasks)
	c.mu.Unlock()
	c.deps.Metrics.dayProcessed(insertedEvents, insertedTasks)

	c.log.Info("day processed",
		zap.String("day", key),
		zap.Int("events", len(events)),
		zap.Int("events_inserted", insertedEvents),
		zap.Int("tasks", len(tasks)),
		zap.Int("tasks_inserted", insertedTasks),
		zap.Int("rejected", len(result.Rejected)),
		zap.Duration("total", result.Timings.Total))
	return result, nil
}

// reflect runs the critic and, when warranted, the single re-extraction.
func (c *Coordinator) reflect(ctx context.Context, story *model.DailyStory, items []model.ExtractedItem, events []model.FormattedEvent, tasks []model.FormattedTask) ([]model.FormattedEvent, []model.FormattedTask, error) {
	review, err := c.deps.Critic.Review(ctx, story, items, events, tasks)
	if err != nil {
		return nil, nil, err
	}
	if !review.ShouldRetry || review.QualityScore >= c.cfg.QualityRetryThreshold {
		return events, tasks, nil
	}

	c.mu.Lock()
	c.reflectionRetries++
	c.mu.Unlock()
	c.deps.Metrics.reflectionRetry()
	c.log.Info("reflection retry",
		zap.String("day", model.DayKey(story.Date)),
		zap.Float64("quality_score", review.QualityScore),
		zap.Int("issues", len(review.Issues)))

	feedback := c.deps.Critic.GenerateFeedback(review)
	retried, err := c.deps.Extractor.Extract(ctx, story, feedback)
	if err != nil {
		return nil, nil, err
	}
	if len(retried) == 0 {
		// The retry found nothing better; keep the first pass.
		return events, tasks, nil
	}
	return c.deps.Formatter.Format(ctx, retried, story.Date)
}

// Stats returns a snapshot. Never blocks day processing beyond the
// counter mutex.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	s := Stats{
		IsRunning:         c.running,
		DaysProcessed:     c.daysProcessed,
		EventsCreated:     c.eventsCreated,
		TasksCreated:      c.tasksCreated,
		ReflectionRetries: c.reflectionRetries,
		ItemsDisputed:     c.itemsDisputed,
		LastRescan:        c.lastRescan,
	}
	c.mu.Unlock()

	if c.deps.LLMStats != nil {
		ls := c.deps.LLMStats()
		s.TotalAPICalls = ls.TotalCalls
		s.CacheHits = ls.CacheHits + ls.SemanticHits
		s.CacheHitRate = ls.HitRate
	}
	return s
}
