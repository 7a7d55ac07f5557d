package buildpipeline

import (
	"testing"
	"time"
)

func TestTimings_Accumulate(t *testing.T) {
	var tm Timings
	tm.Add(StageCompile, 10*time.Millisecond)
	tm.Add(StageCompile, 5*time.Millisecond)
	tm.Add(StageEmit, 2*time.Millisecond)

	if !tm.Has(StageCompile) {
		t.Error("Has(compile) = false")
	}
	if tm.Has(StageRun) {
		t.Error("Has(run) = true for unrecorded stage")
	}
	if got := tm.Duration(StageCompile); got != 15*time.Millisecond {
		t.Errorf("Duration(compile) = %v, want 15ms", got)
	}
	if got := tm.Sum(StageCompile, StageEmit); got != 17*time.Millisecond {
		t.Errorf("Sum = %v, want 17ms", got)
	}
}

func TestTimings_NilReceiver(t *testing.T) {
	var tm *Timings
	tm.Add(StageRead, time.Millisecond) // must not panic
}

func TestMultiSink(t *testing.T) {
	var got []Event
	a := sinkFunc(func(ev Event) { got = append(got, ev) })
	b := sinkFunc(func(ev Event) { got = append(got, ev) })

	MultiSink{a, nil, b}.OnEvent(Event{File: "x", Stage: StageRead})
	if len(got) != 2 {
		t.Fatalf("events delivered = %d, want 2", len(got))
	}
}

type sinkFunc func(Event)

func (f sinkFunc) OnEvent(ev Event) { f(ev) }

func TestChannelSink(t *testing.T) {
	ch := make(chan Event, 1)
	ChannelSink{Ch: ch}.OnEvent(Event{File: "y"})
	select {
	case ev := <-ch:
		if ev.File != "y" {
			t.Errorf("File = %q", ev.File)
		}
	default:
		t.Fatal("event not forwarded")
	}

	ChannelSink{}.OnEvent(Event{}) // nil channel must not panic
}
