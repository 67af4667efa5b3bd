package classify

import (
	"fmt"
	"reflect"
	"runtime"

	"github.com/google/go-cmp/cmp"
	"github.com/xkilldash9x/bolt/internal/driver"
	"go.uber.org/zap"
)

// AssertionError is a failed check on application behaviour. It is always a
// hard failure, whatever the technical error policy says.
type AssertionError struct {
	Description string
	Detail      string
	stack       driver.Stack
}

func (e *AssertionError) Error() string {
	if e.Detail == "" {
		return e.Description
	}
	return e.Description + ": " + e.Detail
}

// StackFrames returns where the assertion was made.
func (e *AssertionError) StackFrames() []runtime.Frame { return e.stack.Frames() }

// Asserter checks step outcomes, logging passes to the diagnostic log and
// failures to both the diagnostic log and the run summary.
type Asserter struct {
	logger  *zap.Logger
	summary *zap.Logger
	prefix  string
}

func NewAsserter(logger, summary *zap.Logger, prefix string) *Asserter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if summary == nil {
		summary = zap.NewNop()
	}
	return &Asserter{logger: logger.Named("AssertLogger"), summary: summary, prefix: prefix}
}

// True checks cond.
func (a *Asserter) True(description string, cond bool) error {
	if cond {
		a.logger.Info(description + " ... passed!")
		return nil
	}
	return a.fail(description, "expected true")
}

// False checks !cond.
func (a *Asserter) False(description string, cond bool) error {
	if !cond {
		a.logger.Info(description + " ... passed!")
		return nil
	}
	return a.fail(description, "expected false")
}

// Equal checks that actual equals expected, reporting a diff when it does not.
func (a *Asserter) Equal(description string, expected, actual any) error {
	if cmp.Equal(expected, actual) {
		a.logger.Info(fmt.Sprintf("%s ... passed! Value = %v", description, expected))
		return nil
	}
	return a.fail(description, fmt.Sprintf("expected:<%v> but was:<%v>\n%s", expected, actual, cmp.Diff(expected, actual)))
}

// Nil checks that v is nil, including typed nils.
func (a *Asserter) Nil(description string, v any) error {
	if isNil(v) {
		a.logger.Info(description + " ... passed!")
		return nil
	}
	return a.fail(description, fmt.Sprintf("expected nil but was:<%v>", v))
}

func (a *Asserter) fail(description, detail string) error {
	err := &AssertionError{Description: description, Detail: detail, stack: driver.CaptureStack(2)}
	a.logger.Error(description, zap.Error(err), zap.Strings("stack", formatFrames(err.StackFrames())))
	a.summary.Error(description + essentials(err, err.StackFrames(), a.prefix))
	return err
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
