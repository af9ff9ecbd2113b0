package failfast

import (
	"fmt"
	"os"
	"reflect"
	"runtime/debug"
)

// Err panics with a stack trace when err != nil. Use it on calls whose
// failure would mean a broken invariant, not an expected error path.
func Err(err error) {
	if err != nil {
		panic(fmt.Errorf("fail-fast: %w\n%s", err, debug.Stack()))
	}
}

// If panics with the formatted message when condition is false
func If(condition bool, message string, args ...interface{}) {
	if !condition {
		panic(fmt.Errorf("fail-fast: "+message, args...))
	}
}

// NotNil panics when ptr is nil, including typed nil pointers and nil
// functions hidden behind an interface
func NotNil(ptr interface{}, name string) {
	if ptr == nil {
		panic(fmt.Errorf("fail-fast: %s is nil", name))
	}
	v := reflect.ValueOf(ptr)
	if v.Kind() == reflect.Ptr && v.IsNil() {
		panic(fmt.Errorf("fail-fast: %s is nil", name))
	}
	if v.Kind() == reflect.Func && v.IsNil() {
		panic(fmt.Errorf("fail-fast: %s is nil", name))
	}
}

// Exit prints a diagnostic to stderr and terminates the process with status 1.
// Reserved for the unrecoverable error class where continuing would mean
// running with corrupted state. No-op when err is nil.
func Exit(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
	osExit(1)
}

// Exitf is Exit with a formatted message. Always terminates.
func Exitf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "fatal: "+format+"\n", args...)
	osExit(1)
}

// osExit is swapped out in tests
var osExit = os.Exit
