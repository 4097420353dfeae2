package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
	"github.com/mattermost/mattermost-plugin-geofence/server/store"
)

// Options configures a Coordinator.
type Options struct {
	Messages   MessageStore
	Monitor    RegionMonitor
	Reporter   Reporter
	Scheduler  WakeupScheduler
	Dispatcher Dispatcher

	// KV backs the campaign status, throttle counters, report queue and
	// wake-up stores.
	KV store.KVStore

	Logger Logger

	// Location is the time zone delivery windows are evaluated in.
	// Defaults to UTC.
	Location *time.Location

	// Now defaults to time.Now.
	Now func() time.Time
}

// Status is a snapshot of the coordinator state.
type Status struct {
	Registered     bool       `json:"registered"`
	Regions        int        `json:"regions"`
	PendingReports int        `json:"pendingReports"`
	NextRefresh    *time.Time `json:"nextRefresh,omitempty"`
	NextExpire     *time.Time `json:"nextExpire,omitempty"`
}

// Coordinator reacts to transitions, wake-ups and reporting results. It is
// the only component that talks to the location monitor, the reporting
// backend and the wake-up scheduler.
type Coordinator struct {
	messages   MessageStore
	monitor    RegionMonitor
	reporter   Reporter
	scheduler  WakeupScheduler
	dispatcher Dispatcher

	status   *store.StatusStore
	queue    *store.EventQueue
	wakeups  *store.WakeupStore
	throttle *Throttle

	log Logger
	now func() time.Time

	// planMu serializes planning passes.
	planMu sync.Mutex

	mu           sync.Mutex
	registered   bool
	generation   int
	regions      []geo.Region
	nextRefresh  *time.Time
	nextExpire   *time.Time
	flushing     bool
	flushPending bool
}

// NewCoordinator creates a coordinator from opts.
func NewCoordinator(opts Options) (*Coordinator, error) {
	switch {
	case opts.Messages == nil:
		return nil, errors.New("message store is required")
	case opts.Monitor == nil:
		return nil, errors.New("region monitor is required")
	case opts.Reporter == nil:
		return nil, errors.New("reporter is required")
	case opts.Scheduler == nil:
		return nil, errors.New("wake-up scheduler is required")
	case opts.Dispatcher == nil:
		return nil, errors.New("dispatcher is required")
	case opts.KV == nil:
		return nil, errors.New("kv store is required")
	case opts.Logger == nil:
		return nil, errors.New("logger is required")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Coordinator{
		messages:   opts.Messages,
		monitor:    opts.Monitor,
		reporter:   opts.Reporter,
		scheduler:  opts.Scheduler,
		dispatcher: opts.Dispatcher,
		status:     store.NewStatusStore(opts.KV),
		queue:      store.NewEventQueue(opts.KV),
		wakeups:    store.NewWakeupStore(opts.KV),
		throttle:   NewThrottle(store.NewCounterStore(opts.KV), opts.Location),
		log:        opts.Logger,
		now:        now,
	}, nil
}

// Start restores the state left by a previous run and brings the monitored
// region set up to date.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.queue.Recover(); err != nil {
		return fmt.Errorf("failed to recover report queue: %w", err)
	}

	now := c.now()
	for _, reason := range []geo.WakeupReason{geo.WakeupRefresh, geo.WakeupExpire} {
		at, err := c.wakeups.Get(reason)
		if err != nil {
			c.log.Warn("Failed to load wake-up", "reason", reason, "error", err.Error())
			continue
		}
		if at == nil {
			continue
		}
		if err := c.scheduler.Schedule(*geo.ClampToNow(at, now), reason); err != nil {
			c.log.Warn("Failed to restore wake-up", "reason", reason, "error", err.Error())
		}
	}

	if err := c.Replan(ctx); err != nil {
		c.log.Error("Initial planning failed", "error", err.Error())
	}
	if err := c.Flush(ctx); err != nil {
		c.log.Warn("Failed to deliver pending reports", "error", err.Error())
	}

	c.log.Info("Geofence coordinator started")
	return nil
}

// Stop cancels the scheduled wake-ups. The persisted wake-up dates are kept
// so that the next Start reschedules them.
func (c *Coordinator) Stop() error {
	var errs []error
	for _, reason := range []geo.WakeupReason{geo.WakeupRefresh, geo.WakeupExpire} {
		if err := c.scheduler.Cancel(reason); err != nil {
			errs = append(errs, fmt.Errorf("failed to cancel %s wake-up: %w", reason, err))
		}
	}
	return errors.Join(errs...)
}

// AddEntry stores a signaling entry and updates the monitored regions.
func (c *Coordinator) AddEntry(ctx context.Context, entry geo.Entry) error {
	if entry.ID == "" {
		return errors.New("entry id is required")
	}
	if entry.Geo == nil {
		return errors.New("entry geo payload is required")
	}
	if entry.ReceivedAt.IsZero() {
		entry.ReceivedAt = c.now()
	}

	if err := c.messages.SaveEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}
	return c.Replan(ctx)
}

// HandleTransition surfaces and reports the events of a region crossing.
// Eligibility and throttling run on the engine clock. The transition's own
// timestamp is only carried into the reports and messages.
func (c *Coordinator) HandleTransition(ctx context.Context, t geo.Transition) error {
	now := c.now()
	if t.OccurredAt.IsZero() {
		t.OccurredAt = now
	}

	entries, err := c.messages.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load entries: %w", err)
	}
	status, err := c.status.Get()
	if err != nil {
		return fmt.Errorf("failed to load campaign status: %w", err)
	}

	correlations, unmatched := geo.Correlate(t, entries, status, now)
	if len(unmatched) > 0 {
		c.log.Debug("Transition areas matched no active campaign", "areaIds", unmatched, "event", t.EventType)
	}

	var (
		reports []geo.Report
		events  []surfacedEvent
	)
	for _, correlation := range correlations {
		accepted := c.accept(correlation, t.EventType, now)
		if len(accepted) == 0 {
			continue
		}
		msg := newMessage(correlation.Entry, t, accepted[0])
		events = append(events, surfacedEvent{entry: correlation.Entry, message: msg})
		reports = append(reports, newReports(correlation.Entry, t, msg, accepted)...)
	}

	if len(reports) == 0 {
		return nil
	}

	// nothing is shown unless its report is queued
	if err := c.queue.Enqueue(reports); err != nil {
		for _, r := range reports {
			c.log.Error("Dropped geo report", "key", r.Key(), "messageId", r.MessageID)
		}
		return fmt.Errorf("failed to enqueue reports: %w", err)
	}

	for _, event := range events {
		c.dispatch(ctx, event)
	}

	if err := c.Flush(ctx); err != nil {
		c.log.Warn("Failed to deliver reports, keeping them for the next attempt", "count", len(reports), "error", err.Error())
	}
	return nil
}

// surfacedEvent is a message generated for one correlated entry.
type surfacedEvent struct {
	entry   geo.Entry
	message geo.Message
}

// accept runs the throttle at now over the areas of one correlated entry and
// returns the accepted areas.
func (c *Coordinator) accept(correlation geo.Correlation, et geo.EventType, now time.Time) []geo.Area {
	entry := correlation.Entry

	var accepted []geo.Area
	for _, area := range correlation.Areas {
		decision, err := c.throttle.Surface(entry.Geo, et, now)
		if err != nil {
			c.log.Error("Failed to evaluate throttle", "campaignId", entry.Geo.CampaignID, "areaId", area.ID, "error", err.Error())
			continue
		}
		if decision != geo.Surface {
			c.log.Debug("Event throttled", "campaignId", entry.Geo.CampaignID, "areaId", area.ID, "decision", decision)
			continue
		}
		accepted = append(accepted, area)
	}
	return accepted
}

func (c *Coordinator) dispatch(ctx context.Context, event surfacedEvent) {
	if err := c.messages.SaveMessage(ctx, event.message); err != nil {
		c.log.Error("Failed to save message", "entryId", event.entry.ID, "error", err.Error())
	}
	if err := c.dispatcher.Dispatch(event.entry, event.message); err != nil {
		c.log.Error("Failed to dispatch geo event", "entryId", event.entry.ID, "error", err.Error())
	}
}

func newReports(entry geo.Entry, t geo.Transition, msg geo.Message, areas []geo.Area) []geo.Report {
	reports := make([]geo.Report, 0, len(areas))
	for _, area := range areas {
		reports = append(reports, geo.Report{
			CampaignID:      entry.Geo.CampaignID,
			AreaID:          area.ID,
			EventType:       t.EventType,
			OccurredAt:      t.OccurredAt.UTC(),
			Location:        t.Location,
			SourceMessageID: entry.ID,
			MessageID:       msg.ID,
		})
	}
	return reports
}

func newMessage(entry geo.Entry, t geo.Transition, area geo.Area) geo.Message {
	title := area.Title
	if title == "" {
		title = area.ID
	}

	var body string
	switch t.EventType {
	case geo.EventEntry:
		body = fmt.Sprintf("Entered %s", title)
	}

	return geo.Message{
		ID:         uuid.NewString(),
		SourceID:   entry.ID,
		CampaignID: entry.Geo.CampaignID,
		AreaID:     area.ID,
		EventType:  t.EventType,
		Title:      title,
		Body:       body,
		CreatedAt:  t.OccurredAt.UTC(),
	}
}

// HandleWakeup runs the work scheduled for reason and re-plans.
func (c *Coordinator) HandleWakeup(ctx context.Context, reason geo.WakeupReason) error {
	switch reason {
	case geo.WakeupExpire:
		if err := c.sweepExpired(ctx); err != nil {
			c.log.Error("Expiry sweep failed", "error", err.Error())
		}
	case geo.WakeupRefresh:
	default:
		return fmt.Errorf("unknown wake-up reason %q", reason)
	}

	if err := c.Replan(ctx); err != nil {
		return err
	}

	// reports left over from a failed delivery get another chance
	if err := c.Flush(ctx); err != nil {
		c.log.Warn("Failed to deliver pending reports", "error", err.Error())
	}
	return nil
}

func (c *Coordinator) sweepExpired(ctx context.Context) error {
	entries, err := c.messages.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load entries: %w", err)
	}

	now := c.now()
	var expired []string
	for _, entry := range entries {
		if entry.Geo != nil && entry.Geo.Expired(now) {
			expired = append(expired, entry.ID)
		}
	}
	if len(expired) == 0 {
		return nil
	}

	if err := c.messages.DeleteByIDs(ctx, expired); err != nil {
		return fmt.Errorf("failed to delete expired entries: %w", err)
	}
	c.log.Info("Removed expired geo entries", "count", len(expired))
	return nil
}

// HandleRegionsUnavailable records that the location monitor lost the
// registered regions and registers the full set again.
func (c *Coordinator) HandleRegionsUnavailable(ctx context.Context) error {
	c.mu.Lock()
	c.registered = false
	c.generation++
	c.mu.Unlock()

	c.log.Warn("Monitored regions became unavailable, registering them again")
	return c.Replan(ctx)
}

// Flush delivers the queued reports and applies the backend's answer.
// Concurrent calls collapse into the delivery already running, which
// makes one more pass before returning.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.Lock()
	if c.flushing {
		c.flushPending = true
		c.mu.Unlock()
		return nil
	}
	c.flushing = true
	c.mu.Unlock()

	for {
		err := c.flushOnce(ctx)

		c.mu.Lock()
		if err != nil || !c.flushPending {
			c.flushing = false
			c.flushPending = false
			c.mu.Unlock()
			return err
		}
		c.flushPending = false
		c.mu.Unlock()
	}
}

func (c *Coordinator) flushOnce(ctx context.Context) error {
	batch, err := c.queue.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin report delivery: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}

	result, err := c.reporter.ReportSync(ctx, batch)
	if err != nil {
		if rollbackErr := c.queue.Rollback(); rollbackErr != nil {
			c.log.Error("Failed to restore undelivered reports", "count", len(batch), "error", rollbackErr.Error())
		}
		return fmt.Errorf("failed to report geo events: %w", err)
	}

	if err := c.queue.Commit(); err != nil {
		c.log.Error("Failed to clear delivered reports", "count", len(batch), "error", err.Error())
	}

	c.log.Debug("Reported geo events", "count", len(batch))
	c.applyResult(ctx, result)

	return c.Replan(ctx)
}

func (c *Coordinator) applyResult(ctx context.Context, result geo.ReportResult) {
	if len(result.MessageIDs) > 0 {
		if err := c.messages.RemapMessageIDs(ctx, result.MessageIDs); err != nil {
			c.log.Error("Failed to remap message ids", "error", err.Error())
		}
	}

	if err := c.status.Apply(result); err != nil {
		c.log.Error("Failed to update campaign status", "error", err.Error())
	}

	for _, id := range result.FinishedCampaignIDs {
		if err := c.throttle.Reset(id); err != nil {
			c.log.Warn("Failed to reset throttle counters", "campaignId", id, "error", err.Error())
		}
	}
}

// Replan recomputes the monitored regions from the stored entries, pushes
// them to the location monitor when needed and schedules the next wake-ups.
func (c *Coordinator) Replan(ctx context.Context) error {
	c.planMu.Lock()
	defer c.planMu.Unlock()

	entries, err := c.messages.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load entries: %w", err)
	}
	status, err := c.status.Get()
	if err != nil {
		return fmt.Errorf("failed to load campaign status: %w", err)
	}

	plan := geo.Plan(entries, status, c.now())

	c.pushRegions(plan.Regions)
	c.scheduleWakeup(geo.WakeupRefresh, plan.NextRefresh)
	c.scheduleWakeup(geo.WakeupExpire, plan.NextExpire)

	c.mu.Lock()
	c.nextRefresh = plan.NextRefresh
	c.nextExpire = plan.NextExpire
	c.mu.Unlock()

	return nil
}

// pushRegions hands the full region set to the monitor when it differs
// from the last pushed set or when that set is not registered.
func (c *Coordinator) pushRegions(regions []geo.Region) {
	c.mu.Lock()
	if c.registered && regionsEqual(c.regions, regions) {
		c.mu.Unlock()
		return
	}
	c.regions = regions
	c.registered = false
	c.generation++
	generation := c.generation
	c.mu.Unlock()

	done := func(err error) {
		c.registrationDone(generation, len(regions), err)
	}

	if len(regions) == 0 {
		c.monitor.UnregisterAll(done)
		return
	}
	c.monitor.RegisterRegions(regions, done)
}

func (c *Coordinator) registrationDone(generation, count int, err error) {
	if err != nil {
		c.log.Warn("Failed to register monitored regions", "regions", count, "error", err.Error())
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// a newer push or an unavailable signal superseded this registration
	if generation != c.generation {
		return
	}
	c.registered = true
	c.log.Debug("Monitored regions registered", "regions", count)
}

func (c *Coordinator) scheduleWakeup(reason geo.WakeupReason, at *time.Time) {
	if at == nil {
		if err := c.scheduler.Cancel(reason); err != nil {
			c.log.Warn("Failed to cancel wake-up", "reason", reason, "error", err.Error())
		}
	} else if err := c.scheduler.Schedule(*at, reason); err != nil {
		c.log.Warn("Failed to schedule wake-up", "reason", reason, "at", at.String(), "error", err.Error())
	}

	if err := c.wakeups.Save(reason, at); err != nil {
		c.log.Warn("Failed to persist wake-up", "reason", reason, "error", err.Error())
	}
}

// Status returns a snapshot of the coordinator state.
func (c *Coordinator) Status() (Status, error) {
	pending, err := c.queue.Len()
	if err != nil {
		return Status{}, fmt.Errorf("failed to count pending reports: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return Status{
		Registered:     c.registered,
		Regions:        len(c.regions),
		PendingReports: pending,
		NextRefresh:    c.nextRefresh,
		NextExpire:     c.nextExpire,
	}, nil
}

func regionsEqual(a, b []geo.Region) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Area != b[i].Area || !sameTime(a[i].Expiry, b[i].Expiry) {
			return false
		}
	}
	return true
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
