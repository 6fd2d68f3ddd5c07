package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type fakeExec struct {
	calls []string
	fail  bool
}

func (f *fakeExec) record(name string) error {
	f.calls = append(f.calls, name)
	if f.fail {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeExec) NfcKey(context.Context) error    { return f.record("nfc-key") }
func (f *fakeExec) Start(context.Context) error     { return f.record("start") }
func (f *fakeExec) Provision(context.Context) error { return f.record("provision") }

func TestRunREPL_Commands(t *testing.T) {
	origPrint := printlnFn
	printlnFn = func(...any) (int, error) { return 0, nil }
	t.Cleanup(func() { printlnFn = origPrint })

	input := strings.NewReader(strings.Join([]string{
		"help",
		"nfc-key",
		"",
		"provision",
		"foobar",
		"start",
		"exit",
		"nfc-key",
	}, "\n"))

	exec := &fakeExec{}
	runREPL(context.Background(), exec, bufio.NewScanner(input))

	want := []string{"nfc-key", "provision", "start"}
	if fmt.Sprint(exec.calls) != fmt.Sprint(want) {
		t.Fatalf("got %v, want %v", exec.calls, want)
	}
}

func TestRunREPL_ErrorsDoNotStopLoop(t *testing.T) {
	var printed []string
	origPrint := printlnFn
	printlnFn = func(a ...any) (int, error) {
		printed = append(printed, fmt.Sprint(a...))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = origPrint })

	exec := &fakeExec{fail: true}
	runREPL(context.Background(), exec, bufio.NewScanner(strings.NewReader("start\nstart\n")))

	if len(exec.calls) != 2 {
		t.Fatalf("unexpected calls: %v", exec.calls)
	}
	if !strings.Contains(strings.Join(printed, "\n"), "boom") {
		t.Fatalf("error not printed: %v", printed)
	}
}
