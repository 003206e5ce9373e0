package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"symtrace/internal/driver"
	"symtrace/internal/ui"
)

type batchOutcome struct {
	results []driver.Result
	err     error
}

// runValidateWithUI runs the batch while a progress view renders its events.
func runValidateWithUI(ctx context.Context, title string, req *driver.Request) ([]driver.Result, error) {
	if req == nil {
		return nil, fmt.Errorf("missing validate request")
	}
	events := make(chan driver.Event, 256)
	outcomeCh := make(chan batchOutcome, 1)

	go func() {
		reqCopy := *req
		reqCopy.Progress = driver.ChannelSink{Ch: events}
		res, err := driver.ValidateFiles(ctx, &reqCopy)
		outcomeCh <- batchOutcome{results: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, req.Files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout), tea.WithContext(ctx))
	_, uiErr := program.Run()
	if uiErr != nil {
		// keep the producer from blocking on a view that stopped reading
		go func() {
			for range events {
			}
		}()
	}
	outcome := <-outcomeCh
	if uiErr != nil && ctx.Err() == nil {
		return outcome.results, uiErr
	}
	return outcome.results, outcome.err
}
