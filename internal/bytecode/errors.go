package bytecode

import "fmt"

func errUnknownExpr() error {
	return fmt.Errorf("internal error: unknown expression node")
}
