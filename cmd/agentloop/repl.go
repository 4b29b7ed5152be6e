package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/BaSui01/agentloop/agent"
	"github.com/BaSui01/agentloop/api/handlers"
	"github.com/BaSui01/agentloop/types"
	"go.uber.org/zap"
)

// runOnce executes a single task in session sid and prints the answer.
// Errors are printed as code and message only; causes go to the logger.
func runOnce(ctx context.Context, runner handlers.Runner, sessions handlers.SessionSource, sid, input string, out, errOut io.Writer, logger *zap.Logger) int {
	ctx = types.WithSessionID(ctx, sid)
	mem, err := sessions.Get(ctx, sid)
	if err != nil {
		logger.Debug("load session failed", zap.String("session_id", sid), zap.Error(err))
		fmt.Fprintf(errOut, "load session: %s\n", userMessage(err))
		return 1
	}
	res, err := runner.Run(ctx, mem, input)
	if err != nil {
		logger.Debug("run failed", zap.String("session_id", sid), zap.Error(err))
		fmt.Fprintf(errOut, "run failed: %s\n", userMessage(err))
		return 1
	}
	if res.Termination == agent.TerminationAborted {
		fmt.Fprintln(errOut, "run aborted")
		return 130
	}
	fmt.Fprintln(out, res.Output)
	return 0
}

// runREPL reads one task per line until EOF, "exit" or "quit". All turns
// share session sid, so later inputs see earlier answers.
func runREPL(ctx context.Context, runner handlers.Runner, sessions handlers.SessionSource, sid string, in io.Reader, out, errOut io.Writer, logger *zap.Logger) int {
	fmt.Fprintf(errOut, "session %s (type \"exit\" to quit)\n", sid)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for {
		fmt.Fprint(errOut, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return 0
		}
		// 单次失败不结束会话
		if code := runOnce(ctx, runner, sessions, sid, line, out, errOut, logger); code == 130 && ctx.Err() != nil {
			return code
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(errOut, "read input: %v\n", err)
		return 1
	}
	return 0
}

// userMessage is the text safe to show for err: the *types.Error code and
// message without its cause, or a generic message for anything else.
func userMessage(err error) string {
	if e, ok := types.AsError(err); ok {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] internal error", types.ErrInternalError)
}

// stepPrinter renders each step the way it appears in the scratchpad.
func stepPrinter(w io.Writer) func(agent.Step) {
	return func(s agent.Step) {
		rec := s.Record()
		fmt.Fprintf(w, "--- step %d (%s)\n%s\n", rec.Index, rec.Kind, strings.TrimSpace(rec.Log))
		if rec.Kind != agent.KindFinalAnswer {
			fmt.Fprintf(w, "Observation: %s\n", rec.Observation)
		}
	}
}
