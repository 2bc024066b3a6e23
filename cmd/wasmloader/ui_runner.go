package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"wasmloader/internal/buildpipeline"
	"wasmloader/internal/ui"
)

// runWithUI drives run while a progress model renders the events it emits.
// run must stop sending on the sink before it returns.
func runWithUI(ctx context.Context, title string, labels []string, run func(context.Context, buildpipeline.ProgressSink) error) error {
	events := make(chan buildpipeline.Event, 256)
	outcomeCh := make(chan error, 1)

	go func() {
		err := run(ctx, buildpipeline.ChannelSink{Ch: events})
		outcomeCh <- err
		close(events)
	}()

	model := ui.NewProgressModel(title, labels, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout), tea.WithContext(ctx))
	_, uiErr := program.Run()
	if uiErr != nil {
		// Keep draining so the builds are not blocked on a full channel.
		go func() {
			for range events {
			}
		}()
	}
	err := <-outcomeCh
	if err != nil {
		return err
	}
	return uiErr
}
