package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"drift/internal/buildpipeline"
	"drift/internal/driver"
	"drift/internal/ui"
)

type compileOutcome struct {
	results []*driver.Result
	err     error
}

func runCompileAllWithUI(ctx context.Context, title string, files []string, opts driver.Options) ([]*driver.Result, error) {
	events := make(chan buildpipeline.Event, 256)
	outcomeCh := make(chan compileOutcome, 1)

	go func() {
		optsCopy := opts
		optsCopy.Sink = buildpipeline.ChannelSink{Ch: events}
		results, err := driver.CompileAll(ctx, files, optsCopy)
		outcomeCh <- compileOutcome{results: results, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.results, uiErr
	}
	return outcome.results, outcome.err
}
