package vm

import "fmt"

// ResolveBlocks fills in the Target of every loop, parallel, and func opener
// with the index of its matching end marker. It runs once per plan so the
// interpreter's hot loop never scans forward counting nesting depth.
//
// It is idempotent and validates balance: a dangling opener or a stray end
// marker is an error here, not a runtime surprise.
func ResolveBlocks(plan []Instruction) error {
	type opener struct {
		op    OpKind
		index int
	}
	var stack []opener

	closes := func(open, end OpKind) bool {
		switch end {
		case OpEndLoop:
			return open == OpLoop
		case OpEndParallel:
			return open == OpParallel
		case OpEndFunc:
			return open == OpFunc
		}
		return false
	}

	for i := range plan {
		switch plan[i].Op {
		case OpLoop, OpParallel, OpFunc:
			stack = append(stack, opener{op: plan[i].Op, index: i})

		case OpEndLoop, OpEndParallel, OpEndFunc:
			if len(stack) == 0 {
				return fmt.Errorf("%w: %s at %d has no opener", ErrUnbalancedBlocks, plan[i].Op, i)
			}
			top := stack[len(stack)-1]
			if !closes(top.op, plan[i].Op) {
				return fmt.Errorf("%w: %s at %d closes %s at %d", ErrUnbalancedBlocks, plan[i].Op, i, top.op, top.index)
			}
			stack = stack[:len(stack)-1]
			plan[top.index].Target = i
		}
	}

	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return fmt.Errorf("%w: %s at %d is never closed", ErrUnbalancedBlocks, top.op, top.index)
	}
	return nil
}
