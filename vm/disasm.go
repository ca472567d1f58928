package vm

import (
	"fmt"
	"strings"
)

// Disassemble renders a plan as one line per instruction, with indices,
// resolved block targets, and operand literals. The output is for humans and
// tests; it is not a parseable format.
func Disassemble(plan []Instruction) string {
	var b strings.Builder
	for i := range plan {
		in := &plan[i]
		fmt.Fprintf(&b, "%04d %-12s %-4s", i, in.Op, in.Op.UnitOf())
		if in.Op == OpInvoke {
			fmt.Fprintf(&b, " %s/%s", in.Unit, in.Verb)
		}
		if in.Name != "" {
			fmt.Fprintf(&b, " %s", in.Name)
		}
		if len(in.Names) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(in.Names, " "))
		}
		if in.Value.Kind != OperandNone {
			fmt.Fprintf(&b, " %s", formatOperand(in.Value))
		}
		for _, arg := range in.Args {
			fmt.Fprintf(&b, " %s", formatOperand(arg))
		}
		if in.Target != 0 {
			fmt.Fprintf(&b, " -> %04d", in.Target)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func formatOperand(op Operand) string {
	switch op.Kind {
	case OperandNumber:
		return fmt.Sprintf("%g", op.Number)
	case OperandString:
		return fmt.Sprintf("%q", op.Str)
	case OperandVar:
		return "$" + op.Name
	case OperandInstr:
		return "{" + op.Instr.String() + "}"
	case OperandList:
		parts := make([]string, len(op.Items))
		for i, item := range op.Items {
			parts[i] = formatOperand(item)
		}
		return "[" + strings.Join(parts, " ") + "]"
	default:
		return "_"
	}
}
