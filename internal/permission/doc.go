// Package permission provides bash command parsing used to harden
// internal/dispatch's terminal_command tool beyond its substring-regex
// forbidden-pattern check.
//
// # Bash Command Parsing
//
// ParseBashCommand extracts the command name, subcommand, and arguments
// from a shell command line via mvdan.cc/sh/v3/syntax, catching forms a
// plain substring match can miss (argument-split or otherwise obscured
// dangerous invocations):
//
//	commands, err := ParseBashCommand("rm -rf ./build")
//	// Returns: []BashCommand{{Name: "rm", Args: ["-rf", "./build"]}}
//
// ExtractPaths pulls filesystem-looking arguments out of a parsed command
// so a caller can check them against ResolvePath/IsWithinDir.
package permission
