// Package orchestrator runs heavy analyses: one question fanned out to
// several role-specialized agents and merged back into one report.
//
// The package provides:
//   - Question expansion: the original question plus three natural-language variants
//   - Dispatch: all agent tasks run concurrently under a per-agent timeout and
//     a single batch deadline, producing exactly one result per slot
//   - Synthesis: pluggable confidence aggregation, de-duplicated
//     recommendations, and an optional model-written summary
//
// The Heavy type ties the pieces together:
//
//	client, _ := api.NewClient(api.ClientConfig{Model: "claude-sonnet-4-20250514"})
//	heavy, err := orchestrator.New(orchestrator.RequiredConfig{Client: client},
//		orchestrator.WithPerAgentTimeout(60*time.Second))
//	analysis, err := heavy.Analyze(ctx, orchestrator.Request{
//		Question: "What school did player number 21 play for?",
//		DraftSQL: "SELECT col5 FROM table_1 WHERE col1 = 21;",
//	})
package orchestrator
