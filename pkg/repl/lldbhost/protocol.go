package lldbhost

import "src.swiftkernel.dev/pkg/repl"

// Methods of the debugger host protocol.
const (
	methodCreateTarget     = "debugger/createTarget"
	methodAppendSearchPath = "debugger/appendModuleSearchPath"
	methodSetBreakpoint    = "debugger/setBreakpoint"
	methodLaunch           = "debugger/launch"
	methodEvaluate         = "debugger/evaluate"
	methodReadStdout       = "debugger/readStdout"
	methodInterrupt        = "debugger/interrupt"
	methodValid            = "debugger/valid"
	methodStackTrace       = "debugger/stackTrace"
	methodVersion          = "debugger/version"
	methodClose            = "debugger/close"
)

type createTargetParams struct {
	Path string `json:"path"`
	Arch string `json:"arch"`
}

type searchPathParams struct {
	Dir string `json:"dir"`
}

type breakpointParams struct {
	Symbol string `json:"symbol"`
}

type evaluateParams struct {
	Code    string           `json:"code"`
	Options repl.EvalOptions `json:"options"`
}

type readStdoutParams struct {
	Max int `json:"max"`
}

type readStdoutResult struct {
	// Encoded as base64 by encoding/json, so that output split inside a UTF-8
	// sequence survives the trip.
	Data []byte `json:"data"`
}
