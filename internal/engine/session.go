package engine

import (
	"time"

	"github.com/verte-zerg/typekaro/internal/model"
)

// State is the lifecycle of a Session.
type State int

const (
	NotStarted State = iota
	InProgress
	Completed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case InProgress:
		return "in progress"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// CompletionReason tells which path completed a session.
type CompletionReason int

const (
	ReasonNone CompletionReason = iota
	ReasonFullInput
	ReasonTimeout
)

func (r CompletionReason) String() string {
	switch r {
	case ReasonFullInput:
		return "full input"
	case ReasonTimeout:
		return "timeout"
	default:
		return "none"
	}
}

// InputKind selects how an Input changes the typed buffer.
type InputKind int

const (
	// InputInsert appends Text to the buffer.
	InputInsert InputKind = iota
	// InputDelete removes the last typed rune.
	InputDelete
	// InputReplace sets the whole buffer to Text.
	InputReplace
)

// Input is one keystroke-derived event.
type Input struct {
	Kind  InputKind
	Text  string
	Paste bool
}

// Options tune a Session.
type Options struct {
	// BurstLimit is the most runes a single event may add before it is
	// treated as a paste. Values <= 0 mean 1.
	BurstLimit int
	// OnComplete runs once, from the call that completes the session.
	OnComplete func(model.ResultMetrics, CompletionReason)
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	State     State
	Typed     string
	Breakdown model.Breakdown
	Remaining time.Duration
	Progress  float64
	// Truncated is set when the event that produced the snapshot was cut
	// to the reference length.
	Truncated bool
	Abandoned bool
	Reason    CompletionReason
	Result    *model.ResultMetrics
}

// Session runs one attempt at a test. It is not safe for concurrent use; all
// events must be delivered from a single owner.
type Session struct {
	test       model.Test
	reference  []rune
	typed      []rune
	breakdown  model.Breakdown
	timer      *Countdown
	state      State
	reason     CompletionReason
	result     model.ResultMetrics
	abandoned  bool
	burstLimit int
	onComplete func(model.ResultMetrics, CompletionReason)
}

// NewSession validates the test and returns a session that has not started.
func NewSession(test model.Test, opts Options) (*Session, error) {
	reference := []rune(test.Content)
	if len(reference) == 0 {
		return nil, ErrEmptyReference
	}
	timer, err := NewCountdown(test.Duration())
	if err != nil {
		return nil, err
	}
	burst := opts.BurstLimit
	if burst <= 0 {
		burst = 1
	}
	return &Session{
		test:       test,
		reference:  reference,
		typed:      []rune{},
		breakdown:  model.Breakdown{MistypedIndexes: []int{}},
		timer:      timer,
		burstLimit: burst,
		onComplete: opts.OnComplete,
	}, nil
}

// Test returns the test being attempted.
func (s *Session) Test() model.Test {
	return s.test
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Start begins the attempt at now. Calling it again has no effect.
func (s *Session) Start(now time.Time) {
	if s.state != NotStarted || s.abandoned {
		return
	}
	s.state = InProgress
	s.timer.Start(now)
}

// StartedAt returns the start instant, zero before Start.
func (s *Session) StartedAt() time.Time {
	return s.timer.StartedAt()
}

// ApplyInput feeds one input event. Rejected events leave the session
// unchanged and return an error wrapping ErrInvalidInput. Events after
// completion are ignored.
func (s *Session) ApplyInput(now time.Time, in Input) (Snapshot, error) {
	if s.state == Completed || s.abandoned {
		return s.Snapshot(now), nil
	}
	proposed, truncated, err := s.propose(in)
	if err != nil {
		return s.Snapshot(now), err
	}
	if s.state == NotStarted && runesEqual(proposed, s.typed) {
		return s.Snapshot(now), nil
	}
	s.Start(now)

	full := len(proposed) == len(s.reference)
	if !full {
		if _, expired := s.timer.Poll(now); expired {
			s.completeByTimeout()
			return s.Snapshot(now), nil
		}
	}

	s.typed = proposed
	s.breakdown = Compare(s.reference, s.typed)
	if full {
		s.completeByFullInput(now)
	}
	snap := s.Snapshot(now)
	snap.Truncated = truncated
	return snap, nil
}

// OnTimerTick re-evaluates the countdown and completes the session when it
// has run out.
func (s *Session) OnTimerTick(now time.Time) Snapshot {
	if s.state != InProgress || s.abandoned {
		return s.Snapshot(now)
	}
	if _, expired := s.timer.Poll(now); expired {
		s.completeByTimeout()
	}
	return s.Snapshot(now)
}

// Abandon tears the session down without a result. The countdown is
// cancelled and later events are ignored.
func (s *Session) Abandon() {
	if s.state == Completed {
		return
	}
	s.abandoned = true
	s.timer.Cancel()
}

// Result returns the metrics once the session has completed.
func (s *Session) Result() (model.ResultMetrics, bool) {
	if s.state != Completed {
		return model.ResultMetrics{}, false
	}
	return copyResult(s.result), true
}

// Snapshot returns the session as seen at now.
func (s *Session) Snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		State:     s.state,
		Typed:     string(s.typed),
		Breakdown: copyBreakdown(s.breakdown),
		Remaining: s.timer.Remaining(now),
		Progress:  s.progress(),
		Abandoned: s.abandoned,
		Reason:    s.reason,
	}
	if s.state == Completed {
		res := copyResult(s.result)
		snap.Result = &res
	}
	return snap
}

func (s *Session) propose(in Input) ([]rune, bool, error) {
	var proposed []rune
	switch in.Kind {
	case InputDelete:
		if len(s.typed) == 0 {
			return s.typed, false, nil
		}
		proposed = append([]rune{}, s.typed[:len(s.typed)-1]...)
	case InputInsert:
		added := []rune(in.Text)
		if in.Paste || len(added) > s.burstLimit {
			return nil, false, ErrBulkInput
		}
		proposed = append(append([]rune{}, s.typed...), added...)
	case InputReplace:
		next := []rune(in.Text)
		if in.Paste || changedRunes(s.typed, next) > s.burstLimit {
			return nil, false, ErrBulkInput
		}
		proposed = next
	default:
		return nil, false, ErrInvalidInput
	}
	if len(proposed) > len(s.reference) {
		return proposed[:len(s.reference)], true, nil
	}
	return proposed, false, nil
}

// changedRunes counts the runes of next that are new past the longest common
// prefix with prev. A rewrite of existing positions counts like an insert.
func changedRunes(prev, next []rune) int {
	common := 0
	for common < len(prev) && common < len(next) && prev[common] == next[common] {
		common++
	}
	return len(next) - common
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (s *Session) completeByFullInput(now time.Time) {
	s.timer.Cancel()
	elapsed := now.Sub(s.timer.StartedAt())
	if elapsed < 0 {
		elapsed = 0
	}
	if d := s.timer.Duration(); elapsed > d {
		elapsed = d
	}
	s.complete(ReasonFullInput, elapsed.Seconds())
}

func (s *Session) completeByTimeout() {
	s.complete(ReasonTimeout, s.timer.Duration().Seconds())
}

func (s *Session) complete(reason CompletionReason, elapsedSeconds float64) {
	if s.state == Completed {
		return
	}
	s.state = Completed
	s.reason = reason
	s.result = Calculate(MetricsInput{
		ElapsedSeconds: elapsedSeconds,
		Reference:      s.test.Content,
		Breakdown:      s.breakdown,
		Progress:       s.progress(),
	})
	if s.onComplete != nil {
		s.onComplete(copyResult(s.result), reason)
	}
}

func (s *Session) progress() float64 {
	return float64(len(s.typed)) / float64(len(s.reference))
}

func copyBreakdown(b model.Breakdown) model.Breakdown {
	b.MistypedIndexes = append([]int{}, b.MistypedIndexes...)
	return b
}

func copyResult(r model.ResultMetrics) model.ResultMetrics {
	r.MistypedIndexes = append([]int{}, r.MistypedIndexes...)
	return r
}
