// Package classify is where terminal errors end up. It reports them to the
// diagnostic log and the run summary, then decides whether the scenario is
// skipped or failed.
package classify

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/xkilldash9x/bolt/internal/config"
	"github.com/xkilldash9x/bolt/internal/driver"
	"github.com/xkilldash9x/bolt/internal/observability"
	"go.uber.org/zap"
)

// Disposition is what a scenario does with a terminal error.
type Disposition int

const (
	// Skip stops the scenario and marks it skipped.
	Skip Disposition = iota
	// Fail stops the scenario and marks it failed.
	Fail
)

func (d Disposition) String() string {
	if d == Skip {
		return "skip"
	}
	return "fail"
}

// Signaler is told the disposition of every handled error. The scenario
// runner implements it.
type Signaler interface {
	Signal(d Disposition, err error)
}

// SignalerFunc adapts a func to Signaler.
type SignalerFunc func(d Disposition, err error)

func (f SignalerFunc) Signal(d Disposition, err error) { f(d, err) }

// ClassifiedError is what Handle returns in place of the raw error.
type ClassifiedError struct {
	Disposition Disposition
	Origin      string
	Message     string
	Err         error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s : %s: %v", e.Origin, e.Message, e.Err)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// DispositionOf returns the disposition of a handled error.
func DispositionOf(err error) (Disposition, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Disposition, true
	}
	return Fail, false
}

// IsSkip reports whether err was handled and downgraded to a skip.
func IsSkip(err error) bool {
	d, ok := DispositionOf(err)
	return ok && d == Skip
}

type scenarioKey struct{}

// WithScenario tags ctx with the running scenario's name for the diagnostic log.
func WithScenario(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, scenarioKey{}, name)
}

func scenarioFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	name, _ := ctx.Value(scenarioKey{}).(string)
	return name
}

// Handler classifies terminal errors. Technical errors are skips or failures
// depending on a single run-wide switch; assertion failures always fail.
type Handler struct {
	logger   *zap.Logger
	summary  *zap.Logger
	metrics  *observability.Metrics
	signaler Signaler
	prefix   string
	skipTech atomic.Bool
}

// NewHandler creates a Handler. summary receives the condensed report; metrics
// and signaler may be nil.
func NewHandler(cfg config.ClassificationConfig, logger, summary *zap.Logger, metrics *observability.Metrics, signaler Signaler) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if summary == nil {
		summary = zap.NewNop()
	}
	h := &Handler{
		logger:   logger.Named("ExceptionHandler"),
		summary:  summary,
		metrics:  metrics,
		signaler: signaler,
		prefix:   cfg.OwnPackagePrefix,
	}
	h.skipTech.Store(cfg.SkipTechnicalErrors)
	return h
}

// SetSkipTechnicalErrors flips the run-wide policy.
func (h *Handler) SetSkipTechnicalErrors(skip bool) { h.skipTech.Store(skip) }

// SkipTechnicalErrors reports the current policy.
func (h *Handler) SkipTechnicalErrors() bool { return h.skipTech.Load() }

// SetSignaler replaces the signaler, typically once per scenario.
func (h *Handler) SetSignaler(s Signaler) { h.signaler = s }

// Handle reports err and returns it classified. origin names the component
// that gave up; see OriginName for what it accepts. An error that was already
// handled is returned unchanged and not reported twice.
func (h *Handler) Handle(ctx context.Context, message string, err error, origin any) error {
	var done *ClassifiedError
	if errors.As(err, &done) {
		return err
	}

	name := OriginName(origin)
	fields := []zap.Field{zap.String("origin", name), zap.Error(err)}
	if scenario := scenarioFrom(ctx); scenario != "" {
		fields = append(fields, zap.String("scenario", scenario))
	}
	frames := Stack(err)
	if len(frames) == 0 {
		frames = driver.CaptureStack(1).Frames()
	}
	fields = append(fields, zap.Strings("stack", formatFrames(frames)))
	h.logger.Error("Exception thrown in "+ShortName(name)+" : "+message, fields...)
	h.summary.Error(name + " : " + message + essentials(err, frames, h.prefix))

	d := h.dispositionFor(err)
	h.metrics.IncClassified(d.String())
	ce := &ClassifiedError{Disposition: d, Origin: ShortName(name), Message: message, Err: err}
	if h.signaler != nil {
		h.signaler.Signal(d, ce)
	}
	return ce
}

func (h *Handler) dispositionFor(err error) Disposition {
	var ae *AssertionError
	if errors.As(err, &ae) {
		return Fail
	}
	if h.skipTech.Load() {
		return Skip
	}
	return Fail
}
