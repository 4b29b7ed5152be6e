// Package agent runs the ReAct loop: compose a prompt, call the model, parse
// its text into an Outcome, dispatch at most one tool, feed the observation
// back and repeat until a final answer, the iteration budget, or the
// caller's context ends the run.
//
// One Run is strictly sequential. Cross-iteration state (the scratchpad and
// the iteration counter) lives on the Run's stack; an Executor holds only
// immutable wiring and may serve many concurrent runs.
//
// Outcomes of a run:
//
//   - final_answer: the model produced "Final Answer:".
//   - max_iterations_exceeded: the budget was spent; the output comes from
//     one forced generation (or a fixed text with early stopping "force").
//   - aborted: the caller's context was cancelled or hit its deadline. No
//     error is returned and memory is not touched.
//
// A failing model endpoint is the only loop-fatal condition. Run returns a
// *types.Error with code UPSTREAM_ERROR or UPSTREAM_TIMEOUT and no result.
package agent
