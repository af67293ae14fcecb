package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"quiz-portal/internal/domain"
)

// QuizAPI is the subset of the quiz API a quiz-taking session needs.
type QuizAPI interface {
	QuizLister
	StartAttempt(ctx context.Context, slug string) error
	CurrentQuestion(ctx context.Context, slug string) (domain.CurrentState, error)
	SubmitAnswer(ctx context.Context, slug string, submission domain.AnswerSubmission) (domain.CurrentState, error)
	MyAttempt(ctx context.Context, slug string) (domain.Attempt, error)
}

// Phase is the lifecycle step of a quiz session.
type Phase int

const (
	PhaseResolving Phase = iota
	PhaseLoading
	PhaseInProgress
	PhaseFinished
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseResolving:
		return "resolving-slug"
	case PhaseLoading:
		return "loading"
	case PhaseInProgress:
		return "in-progress"
	case PhaseFinished:
		return "finished"
	default:
		return "error"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Ticker is the countdown's time source.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc builds a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

func newStdTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// State is a snapshot of a quiz session as shown to the learner. The
// question never carries correctness flags.
type State struct {
	Phase    Phase            `json:"phase"`
	Slug     string           `json:"slug"`
	Position int              `json:"position"`
	Total    int              `json:"total"`
	TimeLeft int              `json:"time_left"`
	Question *domain.Question `json:"question,omitempty"`
	Selected int64            `json:"selected,omitempty"`
	Version  uint64           `json:"version"`
	Message  string           `json:"error,omitempty"`
	Err      error            `json:"-"`
}

// Controller drives a single quiz attempt for one mounted page. All event
// sources (ticker, page visibility, user actions) call into it; it is safe
// for concurrent use.
type Controller struct {
	api       QuizAPI
	newTicker TickerFunc

	ctx    context.Context
	cancel context.CancelFunc

	// forfeiting collapses concurrent forfeit triggers into one submission.
	forfeiting atomic.Bool

	mu            sync.Mutex
	closed        bool
	resolved      bool
	slug          string
	phase         Phase
	position      int
	total         int
	timeLeft      int
	question      *domain.Question
	selected      int64
	lastConfirmed int
	version       uint64
	autoForfeited uint64
	// submitting is the question version an explicit submit is in flight
	// for, zero when none is.
	submitting    uint64
	err           error
	result        *domain.Attempt
	stopTimer     func()
	subscribers   map[chan State]struct{}
}

// ControllerOption customises a Controller.
type ControllerOption func(*Controller)

// WithTicker replaces the one-second countdown source.
func WithTicker(f TickerFunc) ControllerOption {
	return func(c *Controller) { c.newTicker = f }
}

// NewController prepares a session for slug. An empty slug makes Start pick
// the first quiz of the catalog.
func NewController(api QuizAPI, slug string, opts ...ControllerOption) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		api:         api,
		newTicker:   newStdTicker,
		ctx:         ctx,
		cancel:      cancel,
		slug:        slug,
		phase:       PhaseLoading,
		subscribers: make(map[chan State]struct{}),
	}
	if slug == "" {
		c.phase = PhaseResolving
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start resolves the quiz if needed, starts or resumes the attempt and loads
// the current question.
func (c *Controller) Start(ctx context.Context) error {
	ctx, done := c.bind(ctx)
	defer done()

	slug, err := c.resolve(ctx)
	if err != nil {
		return err
	}
	if err := c.api.StartAttempt(ctx, slug); err != nil {
		return c.fail(err)
	}
	if err := c.loadCurrent(ctx); err != nil {
		return c.fail(err)
	}
	return nil
}

func (c *Controller) resolve(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", domain.ErrControllerClosed
	}
	if c.slug != "" {
		slug := c.slug
		c.mu.Unlock()
		return slug, nil
	}
	if c.resolved {
		err := c.err
		c.mu.Unlock()
		if err == nil {
			err = domain.ErrNoQuizAvailable
		}
		return "", err
	}
	c.resolved = true
	c.mu.Unlock()

	slug, err := ResolveSlug(ctx, c.api)
	if err != nil {
		return "", c.fail(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", domain.ErrControllerClosed
	}
	c.slug = slug
	c.phase = PhaseLoading
	c.broadcastLocked()
	return slug, nil
}

// fail moves a session that has not shown a question yet into the error
// phase. Later failures leave the phase alone.
func (c *Controller) fail(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrControllerClosed
	}
	c.err = err
	if c.phase == PhaseResolving || c.phase == PhaseLoading {
		c.phase = PhaseError
	}
	c.broadcastLocked()
	return err
}

func (c *Controller) loadCurrent(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrControllerClosed
	}
	if c.phase == PhaseFinished {
		c.mu.Unlock()
		return nil
	}
	slug, version := c.slug, c.version
	c.mu.Unlock()

	state, err := c.api.CurrentQuestion(ctx, slug)
	if err != nil {
		return err
	}
	return c.apply(state, version)
}

// apply installs a question-state payload requested while question version
// sent was displayed. A new question reseeds the countdown, clears the
// selection and confirms the position. A payload that lost a race against a
// newer one is dropped unless it is further ahead.
func (c *Controller) apply(state domain.CurrentState, sent uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrControllerClosed
	}
	if c.phase == PhaseFinished {
		return nil
	}
	if state.Finished || state.Question == nil {
		c.finishLocked()
		return nil
	}
	if sent != c.version && state.Position <= c.position {
		return nil
	}

	c.phase = PhaseInProgress
	c.position = state.Position
	c.total = state.Total
	c.timeLeft = max(0, state.TimeLeft)
	c.question = state.Question
	c.selected = 0
	c.lastConfirmed = state.Position
	c.err = nil
	c.version++
	c.restartTimerLocked()
	c.broadcastLocked()
	return nil
}

func (c *Controller) finishLocked() {
	c.phase = PhaseFinished
	c.selected = 0
	c.timeLeft = 0
	c.version++
	c.stopTimerLocked()
	c.broadcastLocked()
}

func (c *Controller) restartTimerLocked() {
	c.stopTimerLocked()

	ticker := c.newTicker(time.Second)
	version := c.version
	stop := make(chan struct{})
	var once sync.Once
	c.stopTimer = func() { once.Do(func() { close(stop) }) }

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C():
				c.tick(version)
			case <-stop:
				return
			case <-c.ctx.Done():
				return
			}
		}
	}()
}

func (c *Controller) stopTimerLocked() {
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
}

// tick advances the countdown of question version by one second. Reaching
// zero submits a forfeit, at most once per question.
func (c *Controller) tick(version uint64) {
	c.mu.Lock()
	if c.closed || c.phase != PhaseInProgress || version != c.version {
		c.mu.Unlock()
		return
	}
	if c.timeLeft > 0 {
		c.timeLeft--
		c.broadcastLocked()
	}
	// An explicit submit in flight already answers this question.
	fire := c.timeLeft == 0 && c.question != nil && c.autoForfeited != version && c.submitting != version
	if fire {
		c.autoForfeited = version
	}
	c.mu.Unlock()

	if fire {
		c.report(c.forfeitAt(c.ctx, version))
	}
}

// PageHidden handles blur and visibility loss. position is the question the
// page was displaying; a page that already advanced past the confirmed
// position does not forfeit.
func (c *Controller) PageHidden(ctx context.Context, position int) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrControllerClosed
	}
	fire := c.phase == PhaseInProgress && c.lastConfirmed == position
	version := c.version
	c.mu.Unlock()
	if !fire {
		return nil
	}

	ctx, done := c.bind(ctx)
	defer done()
	return c.forfeitAt(ctx, version)
}

// Forfeit gives up the current question for zero points.
func (c *Controller) Forfeit(ctx context.Context) error {
	c.mu.Lock()
	version := c.version
	c.mu.Unlock()

	ctx, done := c.bind(ctx)
	defer done()
	return c.forfeitAt(ctx, version)
}

func (c *Controller) forfeitAt(ctx context.Context, version uint64) error {
	if !c.forfeiting.CompareAndSwap(false, true) {
		return nil
	}
	defer c.forfeiting.Store(false)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrControllerClosed
	}
	if c.phase != PhaseInProgress || c.version != version {
		c.mu.Unlock()
		return nil
	}
	slug := c.slug
	c.mu.Unlock()

	state, err := c.api.SubmitAnswer(ctx, slug, domain.ForfeitSubmission())
	return c.afterSubmit(ctx, version, state, err)
}

// Select marks optionID as the learner's answer to the displayed question.
func (c *Controller) Select(optionID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrControllerClosed
	}
	if c.phase != PhaseInProgress || c.question == nil {
		return nil
	}
	for _, opt := range c.question.Options {
		if opt.ID == optionID {
			c.selected = optionID
			c.broadcastLocked()
			return nil
		}
	}
	return domain.ErrOptionNotFound
}

// Submit sends the selected option. Only a single option is sent even for
// questions that allow several.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrControllerClosed
	}
	if c.phase != PhaseInProgress {
		c.mu.Unlock()
		return nil
	}
	if c.selected == 0 {
		c.mu.Unlock()
		return domain.ErrNoSelection
	}
	slug, selected, version := c.slug, c.selected, c.version
	c.submitting = version
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.submitting == version {
			c.submitting = 0
		}
		c.mu.Unlock()
	}()

	ctx, done := c.bind(ctx)
	defer done()
	state, err := c.api.SubmitAnswer(ctx, slug, domain.AnswerSubmission{OptionIDs: []int64{selected}})
	return c.afterSubmit(ctx, version, state, err)
}

func (c *Controller) afterSubmit(ctx context.Context, sent uint64, state domain.CurrentState, err error) error {
	if err != nil {
		// The attempt already ended server-side.
		if errors.Is(err, domain.ErrValidation) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.closed {
				return domain.ErrControllerClosed
			}
			if c.phase != PhaseFinished {
				c.finishLocked()
			}
			return nil
		}
		return err
	}
	if state.Finished || state.Question != nil {
		return c.apply(state, sent)
	}
	return c.loadCurrent(ctx)
}

// Result fetches the finished attempt with its review data. It is cached
// after the first successful call.
func (c *Controller) Result(ctx context.Context) (domain.Attempt, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.Attempt{}, domain.ErrControllerClosed
	}
	if c.result != nil {
		result := *c.result
		c.mu.Unlock()
		return result, nil
	}
	if c.phase != PhaseFinished {
		c.mu.Unlock()
		return domain.Attempt{}, domain.ErrNotFinished
	}
	slug := c.slug
	c.mu.Unlock()

	ctx, done := c.bind(ctx)
	defer done()
	attempt, err := c.api.MyAttempt(ctx, slug)
	if err != nil {
		return domain.Attempt{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.Attempt{}, domain.ErrControllerClosed
	}
	c.result = &attempt
	return attempt, nil
}

// report records failures of background forfeits so subscribers see them.
func (c *Controller) report(err error) {
	if err == nil || errors.Is(err, domain.ErrControllerClosed) || errors.Is(err, context.Canceled) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	log.Printf("quiz %s: timeout forfeit failed: %v", c.slug, err)
	c.err = err
	c.broadcastLocked()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	state := State{
		Phase:    c.phase,
		Slug:     c.slug,
		Position: c.position,
		Total:    c.total,
		TimeLeft: c.timeLeft,
		Selected: c.selected,
		Version:  c.version,
		Err:      c.err,
	}
	if c.err != nil {
		state.Message = c.err.Error()
	}
	if c.phase == PhaseInProgress && c.question != nil {
		q := *c.question
		q.Options = make([]domain.Option, len(c.question.Options))
		for i, opt := range c.question.Options {
			q.Options[i] = domain.Option{ID: opt.ID, Text: opt.Text}
		}
		state.Question = &q
	}
	return state
}

// Subscribe returns a channel receiving every state change, starting with
// the current one. The caller must invoke cancel to avoid leaks.
func (c *Controller) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 8)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	c.subscribers[ch] = struct{}{}
	ch <- c.snapshotLocked()
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.subscribers[ch]; ok {
			delete(c.subscribers, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

func (c *Controller) broadcastLocked() {
	state := c.snapshotLocked()
	for ch := range c.subscribers {
		select {
		case ch <- state:
		default:
			// Slow subscriber: replace the oldest snapshot.
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
}

// Close unmounts the session. The countdown stops, in-flight requests are
// cancelled and their results are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTimerLocked()
	for ch := range c.subscribers {
		delete(c.subscribers, ch)
		close(ch)
	}
	c.mu.Unlock()
	c.cancel()
}

// bind derives a context that is also cancelled when the session closes.
func (c *Controller) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
