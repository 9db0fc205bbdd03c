// Package tui renders a live terminal view of a heavy analysis: one card per
// agent showing its role, question variant, status and confidence, followed by
// the synthesized report once every slot has resolved.
//
// The view is driven by orchestrator events. Run starts the analysis in the
// background and feeds the emitter's channel into the bubbletea program:
//
//	events := orchestrator.NewEventEmitter(64)
//	heavy, _ := orchestrator.New(req, orchestrator.WithEvents(events))
//	analysis, err := tui.Run(ctx, question, events.Events(), func(ctx context.Context) (*models.HeavyAnalysis, error) {
//		return heavy.Analyze(ctx, request)
//	})
package tui
