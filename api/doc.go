// Package api documents the AgentLoop HTTP API served by `agentloop serve`.
//
// # Endpoints
//
//   - POST /api/v1/run         run one task in a session
//   - GET  /api/v1/runs        list a session's runs (?session_id=, ?limit=)
//   - GET  /api/v1/runs/{id}   fetch one run
//   - GET  /health, /healthz   liveness
//   - GET  /ready              readiness (Redis and database pings)
//   - GET  /version            build information
//
// Prometheus metrics are served on the separate metrics port at /metrics.
//
// # Run request
//
//	POST /api/v1/run
//	Content-Type: application/json
//
//	{"session_id": "u-42", "input": "draw a lighthouse at dusk"}
//
// session_id is optional; an empty one starts a new session whose ID is
// returned. The response wraps the result in the common envelope:
//
//	{
//	  "success": true,
//	  "data": {
//	    "run_id": "…",
//	    "session_id": "u-42",
//	    "output": "Here it is: https://…",
//	    "termination": "final_answer",
//	    "iterations": 1,
//	    "steps": [{"index": 0, "kind": "action", "tool": "Image Generator", …}],
//	    "duration": "2.4s"
//	  },
//	  "timestamp": "…"
//	}
//
// termination is one of final_answer, max_iterations_exceeded or aborted.
// Model endpoint failures map to 502 (UPSTREAM_ERROR) and 504
// (UPSTREAM_TIMEOUT); a client that disconnects mid-run gets 499.
//
// # Authentication
//
// When server.jwt is configured every /api/ route requires
//
//	Authorization: Bearer <token>
//
// signed with HS256 (secret) or RS256 (public key).
package api
