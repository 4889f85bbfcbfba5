package extension

import "github.com/samber/oops"

// Error codes attached to resolution failures.
const (
	// CodeUnavailable covers both an unregistered dependency and a
	// registered dependency whose installed version fails the required
	// range. The error context carries "required" and "actual" only in
	// the version-mismatch case.
	CodeUnavailable = "UNAVAILABLE_EXTENSION"
	// CodeCircular marks a dependency id that reappears within its own
	// requirement chain.
	CodeCircular = "CIRCULAR_REQUIREMENT"
	// CodeNoOrder marks a graph linearization failure. Resolvers reject
	// cycles before sorting, so this code indicates a defect rather than
	// a user-facing condition.
	CodeNoOrder = "NO_TOPOLOGICAL_ORDER"
)

// requireChain renders a require stack innermost-requirer-first for error
// context.
func requireChain(stack []stackEntry) []string {
	chain := make([]string, 0, len(stack))
	for i := len(stack) - 1; i >= 0; i-- {
		chain = append(chain, stack[i].id+"@"+stack[i].version)
	}
	return chain
}

func errUnavailable(id string, stack []stackEntry) error {
	return oops.Code(CodeUnavailable).
		With("extension", id).
		With("require_chain", requireChain(stack)).
		Errorf("extension %s is not registered", id)
}

func errVersionMismatch(id, required, actual string, stack []stackEntry) error {
	return oops.Code(CodeUnavailable).
		With("extension", id).
		With("required", required).
		With("actual", actual).
		With("require_chain", requireChain(stack)).
		Errorf("extension %s@%s does not satisfy required range %s", id, actual, required)
}

func errCircular(id string, stack []stackEntry) error {
	return oops.Code(CodeCircular).
		With("extension", id).
		With("require_chain", requireChain(stack)).
		Errorf("extension %s reappears in its own requirement chain", id)
}

func errNoOrder(err error) error {
	return oops.Code(CodeNoOrder).
		Hint("edge construction should have rejected the cycle earlier").
		Wrap(err)
}
