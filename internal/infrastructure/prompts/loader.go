package prompts

import (
	_ "embed"
)

//go:embed planner.txt
var PlannerPrompt string

//go:embed worker_system.txt
var WorkerSystemPrompt string

//go:embed worker_task.txt
var WorkerTaskTemplate string

//go:embed synthesizer.txt
var SynthesizerPrompt string

//go:embed synthesis_task.txt
var SynthesisTaskTemplate string
