package directive

import "slices"

// HelpText is the output of %help.
const HelpText = `
Available Magic Commands:
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

📋 Variable Management:
  %who              List defined variables (limited in Swift REPL)
  %reset            Clear all variables and restart kernel
  %reset --quiet    Reset kernel without messages

⏱️  Performance:
  %timeit CODE      Time the execution of CODE

📦 Package Management:
  %install SPEC     Install Swift package (see docs)

🔧 Kernel Control:
  %enable_completion   Enable code completion
  %disable_completion  Disable code completion

ℹ️  Information:
  %help             Show this help message

━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

Examples:
  %who
  %reset --quiet
  %timeit let x = Array(1...1000).reduce(0, +)
`

// MagicList is the output of %lsmagic.
const MagicList = `
Available Magic Commands
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

Line Magics (single line):
  %help                     Show help message
  %lsmagic                  List all magic commands (this list)
  %who                      List defined variables
  %reset [-q]               Reset kernel (clear all state)
  %timeit CODE              Time code execution
  %env [VAR[=VALUE]]        Show/set environment variables
  %swift-version            Show Swift toolchain information
  %load FILE                Load and execute a Swift file
  %save FILE                Save cell history to a file
  %history [-n N]           Show execution history

Package Management:
  %install SPEC MODULE      Install Swift package
  %install-swiftpm-flags    Set SwiftPM build flags
  %install-location PATH    Set package install location
  %install-extra-include-command CMD
                            Link include directories printed by CMD
  %system CMD               Run a shell command (first cell only)

Kernel Control:
  %include "FILE"           Splice a file into the cell
  %enable_completion        Enable code completion
  %disable_completion       Disable code completion

━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
`

var otherNames = []string{
	"%install", "%install-swiftpm-flags", "%install-location",
	"%install-extra-include-command", "%system", "%include",
	"%enableCompletion", "%enable_completion",
	"%disableCompletion", "%disable_completion",
}

// Names returns the names of all directives, sorted.
func Names() []string {
	names := append([]string(nil), otherNames...)
	for name := range cellKinds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
