package solve

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// enableDebugErrorPrinting makes errors include the frame that raised them when printed
const enableDebugErrorPrinting bool = false

type ErrCode int

const (
	None ErrCode = iota
	Overflow
	NegativeCycle
)

// SolveError is a fatal condition: the query is not well-founded and no
// sound answer exists. SolveErrors are raised with panic by the solver and
// turned back into errors by Recover.
type SolveError interface {
	Error() string
	Code() ErrCode

	withStack([]byte) SolveError
	getStack() []byte
}

func FormatWithCode(e SolveError) string {
	if enableDebugErrorPrinting && e.getStack() != nil {
		lines := strings.Split(string(e.getStack()), "\n")
		if len(lines) > 6 {
			return fmt.Sprintf("%s:(E%03d) %s", strings.TrimSpace(lines[6]), e.Code(), e.Error())
		}
	}
	return fmt.Sprintf("(E%03d) %s", e.Code(), e.Error())
}

func New[E SolveError](err E) SolveError {
	return err.withStack(debug.Stack())
}

// Recover converts a SolveError panic into an error stored in err. Any other
// panic is propagated. It must be deferred directly:
//
//	defer solve.Recover(&err)
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(SolveError); ok {
		*err = e
		return
	}
	panic(r)
}

type OverflowError struct {
	Goal  string
	Depth int
	stack []byte
}

func (e OverflowError) Error() string {
	return fmt.Sprintf("overflow depth %d reached while solving %s", e.Depth, e.Goal)
}
func (e OverflowError) Code() ErrCode    { return Overflow }
func (e OverflowError) getStack() []byte { return e.stack }
func (e OverflowError) withStack(stack []byte) SolveError {
	e.stack = stack
	return e
}

type NegativeCycleError struct {
	Goal  string
	stack []byte
}

func (e NegativeCycleError) Error() string {
	return fmt.Sprintf("negative cycle: %s depends on its own negation", e.Goal)
}
func (e NegativeCycleError) Code() ErrCode    { return NegativeCycle }
func (e NegativeCycleError) getStack() []byte { return e.stack }
func (e NegativeCycleError) withStack(stack []byte) SolveError {
	e.stack = stack
	return e
}
