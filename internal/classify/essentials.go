package classify

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
)

// summaryPadding lines condensed stack frames up under the summary message.
var summaryPadding = strings.Repeat(" ", 36)

// selfPkg frames are the reporting machinery and never shown in the summary.
var selfPkg = reflect.TypeOf(Handler{}).PkgPath()

type stackTracer interface {
	StackFrames() []runtime.Frame
}

// Stack returns the stack captured by the first error in err's chain that
// carries one.
func Stack(err error) []runtime.Frame {
	var st stackTracer
	if errors.As(err, &st) {
		return st.StackFrames()
	}
	return nil
}

// Essentials condenses err for the run summary: the first line of its message
// followed by the frames that belong to packages under prefix, each on its
// own padded line. Framework and runtime frames are dropped.
func Essentials(err error, prefix string) string {
	return essentials(err, Stack(err), prefix)
}

func essentials(err error, frames []runtime.Frame, prefix string) string {
	if err == nil {
		return ""
	}
	var b strings.Builder
	first, _, _ := strings.Cut(err.Error(), "\n")
	b.WriteString("\n" + summaryPadding + first)
	for _, f := range frames {
		if !ownFrame(f, prefix) {
			continue
		}
		b.WriteString("\n" + summaryPadding + formatFrame(f))
	}
	return b.String()
}

func ownFrame(f runtime.Frame, prefix string) bool {
	if prefix == "" || !strings.HasPrefix(f.Function, prefix) {
		return false
	}
	for _, self := range []string{selfPkg + ".(*Handler)", selfPkg + ".(*Asserter)"} {
		if strings.HasPrefix(f.Function, self) {
			return false
		}
	}
	return true
}

func formatFrame(f runtime.Frame) string {
	return fmt.Sprintf("%s(%s:%d)", f.Function, filepath.Base(f.File), f.Line)
}

func formatFrames(frames []runtime.Frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = formatFrame(f)
	}
	return out
}

// OriginName names the component an error is reported against. A string is
// used as is, a func by its symbol, and anything else by its dynamic type with
// pointers removed, qualified by import path.
func OriginName(origin any) string {
	switch v := origin.(type) {
	case nil:
		return "unknown"
	case string:
		return v
	case reflect.Type:
		return typeName(v)
	}
	rv := reflect.ValueOf(origin)
	if rv.Kind() == reflect.Func {
		if fn := runtime.FuncForPC(rv.Pointer()); fn != nil {
			return fn.Name()
		}
	}
	return typeName(rv.Type())
}

func typeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" || t.Name() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// ShortName drops the import path from a name produced by OriginName.
func ShortName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}
