package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"pkgtrace/internal/bench"
	"pkgtrace/internal/ui"
)

type benchOutcome struct {
	result bench.Result
	err    error
}

func runBenchWithUI(ctx context.Context, title string, cfg bench.Config) (bench.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := make(chan bench.Event, 256)
	outcomeCh := make(chan benchOutcome, 1)

	go func() {
		cfg.Progress = bench.ChannelSink(events)
		res, err := bench.Run(ctx, cfg)
		outcomeCh <- benchOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	// The model may quit early; stop the run and drain what is left.
	cancel()
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
