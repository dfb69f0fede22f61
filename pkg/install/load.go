package install

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"

	"src.swiftkernel.dev/pkg/repl"
)

// Evaluator evaluates code in the REPL. It is implemented by
// *repl.Controller.
type Evaluator interface {
	Evaluate(ctx context.Context, code string, cell int) (repl.Result, error)
}

// DynamicLoadCode returns Swift code that loads a dynamic library and
// evaluates to the handle.
func DynamicLoadCode(library string) string {
	module := "Glibc"
	if runtime.GOOS == "darwin" {
		module = "Darwin"
	}
	quoted, _ := json.Marshal(library)
	return fmt.Sprintf("import func %[1]s.dlopen\nimport var %[1]s.RTLD_NOW\ndlopen(%[2]s, RTLD_NOW)\n",
		module, quoted)
}

// Load loads the library of art into the REPL. Errors are always *Error.
func Load(ctx context.Context, ev Evaluator, art *Artifacts, progress Progress) error {
	step(progress, 5, "🔗 Loading packages into Swift REPL...")
	result, err := ev.Evaluate(ctx, DynamicLoadCode(art.Library), 0)
	if err != nil {
		return &Error{Step: StepLoad, Msg: fmt.Sprintf(msgLoadFailed, art.Library), Err: err}
	}
	value, ok := result.(repl.SuccessWithValue)
	if !ok {
		return &Error{Step: StepLoad, Msg: fmt.Sprintf(msgLoadFailed, art.Library), Err: resultError(result)}
	}
	if strings.HasSuffix(strings.TrimSpace(value.Value.PlainDescription()), "nil") {
		return &Error{Step: StepLoad, Msg: msgDlopenNil}
	}
	progress(fmt.Sprintf("\n✅ Successfully installed: %s\n", strings.Join(art.Products, ", ")))
	return nil
}

func resultError(r repl.Result) error {
	if err, ok := r.(*repl.EvalError); ok {
		return err
	}
	return fmt.Errorf("expected a value, got %T", r)
}
