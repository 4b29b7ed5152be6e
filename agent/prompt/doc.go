// Package prompt builds the text sent to the model on each iteration.
//
// A Composer substitutes the slots {input}, {tools}, {tool_names},
// {chat_history} and {agent_scratchpad} into a template. Substitution is a
// single pass: slot values are never rescanned, and unknown {names} are
// left untouched.
//
// Templates come from a Source. StaticSource serves a fixed string,
// HubSource fetches one over HTTP, and CachedSource wraps either with a
// process cache, an optional Redis cache and request coalescing.
package prompt
