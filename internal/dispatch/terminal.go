package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/vico-ai/vico/internal/permission"
)

// maxTerminalOutputLength caps how much of each output stream is fed
// back to the model.
const maxTerminalOutputLength = 8000

// terminalTimeout is the hard deadline on any spawned command.
const terminalTimeout = 30 * time.Second

// forbiddenPatterns is the blocklist applied to every command before it
// runs: recursive deletes of / or ~, redirection into / or ~, piping into
// rm, sudo, and chmod granting world-execute.
var forbiddenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)rm\s+-rf\s+[/~]`),
	regexp.MustCompile(`(?i)>[>]?\s*[/~]`),
	regexp.MustCompile(`(?i)\|\s*rm`),
	regexp.MustCompile(`(?i)sudo`),
	regexp.MustCompile(`(?i)chmod\s+[0-7]*7\b`),
}

func (h *Handler) terminalCommand(ctx context.Context, args map[string]any) (string, error) {
	command := stringArg(args, "command")

	for _, pattern := range forbiddenPatterns {
		if pattern.MatchString(command) {
			return "Error: Forbidden command pattern detected", nil
		}
	}

	trimmed := strings.TrimSpace(command)
	if trimmed == "" || unicode.IsDigit(rune(trimmed[0])) {
		return "Error: Invalid command format", nil
	}

	// Extra parse gate on top of the regex blocklist: a command using
	// shell constructs a substring match can't see through (e.g.
	// "rm${IFS}-rf${IFS}/") is rejected rather than executed blind.
	if parsed, err := permission.ParseBashCommand(command); err == nil {
		for _, cmd := range parsed {
			// The parser keeps ${IFS} as "$IFS" inside one word; split such
			// words as the shell would, so "rm${IFS}-rf${IFS}/" is rm -rf /.
			var words []string
			for _, w := range append([]string{cmd.Name}, cmd.Args...) {
				if strings.Contains(w, "$IFS") {
					words = append(words, strings.Fields(strings.ReplaceAll(w, "$IFS", " "))...)
				} else {
					words = append(words, w)
				}
			}
			if len(words) > 0 && words[0] == "rm" {
				rm := permission.BashCommand{Name: "rm", Args: words[1:]}
				joined := strings.ToLower(strings.Join(rm.Args, " "))
				if strings.Contains(joined, "-rf") || (strings.Contains(joined, "-r") && strings.Contains(joined, "-f")) {
					for _, path := range permission.ExtractPaths(rm) {
						if path == "/" || strings.HasPrefix(path, "~") {
							return "Error: Forbidden command pattern detected", nil
						}
					}
				}
			}
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, terminalTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/bash", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return "Error: Command timed out after 30 seconds", nil
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Command executed: %s\n", command)
	fmt.Fprintf(&result, "Exit code: %d\n", cmd.ProcessState.ExitCode())

	if stdout.Len() > 0 {
		fmt.Fprintf(&result, "Output:\n%s\n", truncateTerminalOutput(stdout.String()))
	}
	if stderr.Len() > 0 {
		fmt.Fprintf(&result, "Error output:\n%s\n", truncateTerminalOutput(stderr.String()))
	}
	if stdout.Len() == 0 && stderr.Len() == 0 {
		result.WriteString("Command completed with no output.")
	}

	if runErr != nil {
		if _, ok := runErr.(*exec.ExitError); !ok {
			return "", fmt.Errorf("executing command: %w", runErr)
		}
	}

	return result.String(), nil
}

func truncateTerminalOutput(text string) string {
	if len(text) <= maxTerminalOutputLength {
		return text
	}
	return text[:maxTerminalOutputLength] + "\n\n[Output truncated to avoid exceeding context window]"
}
