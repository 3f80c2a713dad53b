package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// IndentSize is the fixed width of one indentation level (spec §3).
const IndentSize = 4

// CompilerContext is the mutable state threaded through a single
// compilation: the symbol table and register allocator. It replaces the
// original's global-mutable-state class instance with an explicit value the
// caller owns (spec §9 design note).
type CompilerContext struct {
	Symbols *SymbolTable
	Regs    *RegisterFile
}

// NewCompilerContext returns a fresh context with an empty symbol table and
// every register free.
func NewCompilerContext() *CompilerContext {
	return &CompilerContext{Symbols: NewSymbolTable(), Regs: NewRegisterFile()}
}

// asmBuilder accumulates instructions for one level of statement
// compilation, offering the same splice-with-relative-renumbering semantics
// as the original's `__extend_code`/`__shift_pointers` pair, but over
// structured Instr values instead of string substitution (spec §4.5, §9).
type asmBuilder struct {
	lines []Instr
}

func (b *asmBuilder) len() int { return len(b.lines) }

// emit appends a single instruction and returns its index.
func (b *asmBuilder) emit(op string, args ...string) int {
	idx := len(b.lines)
	b.lines = append(b.lines, Instr{Op: op, Args: append([]string(nil), args...)})
	return idx
}

// extend splices a sub-block's instructions onto the end of b, shifting any
// already-resolved numeric branch target by the splice base. Placeholders
// ("ptr", "break") are left untouched; they are resolved later by the block
// that owns their fixup, against that block's own instruction count, and
// are then shifted like any other numeric target when that block is spliced.
func (b *asmBuilder) extend(instrs []Instr) {
	base := b.len()
	for _, in := range instrs {
		if isBranch(in) && len(in.Args) == 1 {
			if n, err := strconv.Atoi(in.Args[0]); err == nil {
				in = Instr{Op: in.Op, Args: []string{strconv.Itoa(n + base)}}
			}
		}
		b.lines = append(b.lines, in)
	}
}

// resolveBreaks replaces every "break" placeholder operand in b with target,
// matching the original's whole-block break-resolution scan (spec §4.5).
func resolveBreaks(lines []Instr, target int) {
	targetStr := strconv.Itoa(target)
	for i, in := range lines {
		if in.Op == "BAL" && len(in.Args) == 1 && in.Args[0] == "break" {
			lines[i] = Instr{Op: "BAL", Args: []string{targetStr}}
		}
	}
}

// numIndents returns the indentation level (in units of IndentSize) of raw,
// failing with ErrIndent if the leading whitespace isn't a clean multiple.
func numIndents(raw string) (int, error) {
	i := 0
	for i < len(raw) && raw[i] == ' ' {
		i++
	}
	if i == len(raw) {
		return 0, nil
	}
	if i%IndentSize != 0 {
		return 0, ErrIndent
	}
	return i / IndentSize, nil
}

func compactLine(raw string) string {
	return strings.ReplaceAll(raw, " ", "")
}

func isElifHeader(compact string) bool {
	return strings.HasPrefix(compact, "elif") && strings.HasSuffix(compact, ":")
}

func isElseHeader(compact string) bool {
	return compact == "else:"
}

// findEndOfIfStatement finds the first line at or below `indents` that is
// not part of the if/elif/else chain starting there — i.e. the true end of
// the whole chain (spec §4.5 item 1).
func findEndOfIfStatement(lines []string, start, indents int) int {
	for ln := start; ln < len(lines); ln++ {
		ind, err := numIndents(lines[ln])
		if err != nil {
			return ln
		}
		compact := compactLine(lines[ln])
		if ind <= indents && !isElseHeader(compact) && !isElifHeader(compact) {
			return ln
		}
	}
	return len(lines)
}

// findEndOfCurrIfBlock finds the first line back at exactly `indents`,
// i.e. the end of the immediately preceding if/elif/else/for/while body.
func findEndOfCurrIfBlock(lines []string, start, indents int) int {
	for ln := start; ln < len(lines); ln++ {
		ind, err := numIndents(lines[ln])
		if err != nil {
			return ln
		}
		if ind == indents {
			return ln
		}
	}
	return len(lines)
}

func isIfElifWhileHeader(compact string) bool {
	if !strings.HasSuffix(compact, ":") {
		return false
	}
	return strings.HasPrefix(compact, "if") || strings.HasPrefix(compact, "elif") || strings.HasPrefix(compact, "while")
}

func isForHeader(compact string) bool {
	return strings.HasPrefix(compact, "for(") && strings.HasSuffix(compact, "):")
}

func isArrayDecl(compact string) bool {
	idx := strings.Index(compact, "=array(")
	return idx > 0 && strings.HasSuffix(compact, "):")
}

func parseArrayDecl(compact string) (name, size string) {
	idx := strings.Index(compact, "=array(")
	name = compact[:idx]
	size = compact[idx+len("=array(") : len(compact)-2]
	return
}

func isArrayAssign(compact string) bool {
	idx := strings.Index(compact, "]=")
	if idx < 0 {
		return false
	}
	return strings.Contains(compact[:idx], "[")
}

var compoundOps = []string{"+=", "-=", "*=", "/=", "%=", "^=", "\\="}

func matchCompoundOp(compact string) (op string, ok bool) {
	for _, o := range compoundOps {
		if strings.Contains(compact, o) {
			return o, true
		}
	}
	return "", false
}

func isIncrement(compact string) bool { return strings.HasSuffix(compact, "++") }
func isDecrement(compact string) bool { return strings.HasSuffix(compact, "--") }

func isPrintCall(compact string) bool {
	return strings.HasPrefix(compact, "print(") && strings.HasSuffix(compact, ")")
}

// ensureEnd appends a synthetic "END" line at the block's own indentation if
// the block has no explicit END already; an empty block becomes a lone "END"
// (spec §9 supplement, SPEC_FULL.md §4 "Auto-END insertion").
func ensureEnd(lines []string) []string {
	if len(lines) == 0 {
		return []string{"END"}
	}
	for _, l := range lines {
		if compactLine(l) == "END" {
			return lines
		}
	}
	indent, err := numIndents(lines[0])
	if err != nil {
		indent = 0
	}
	synthetic := strings.Repeat(" ", IndentSize*indent) + "END"
	out := make([]string, len(lines)+1)
	copy(out, lines)
	out[len(lines)] = synthetic
	return out
}

// compileVariableStore emits the instructions that store value (an
// immediate "#N", an already-allocated register, or a bare variable name)
// into varName's scalar address, declaring the address if varName is new
// (spec §4.5 item 8, original `__compile_variable_store`).
func compileVariableStore(varName, value string, ctx *CompilerContext) ([]Instr, error) {
	var out []Instr
	var srcReg string

	switch {
	case len(value) > 0 && value[0] == '#':
		reg, err := ctx.Regs.Allocate()
		if err != nil {
			return nil, err
		}
		out = append(out, Instr{Op: "MOV", Args: []string{reg, value}})
		srcReg = reg
	case isRegister(value):
		srcReg = value
	default:
		loadInstrs, reg, err := compileVariableLoad(value, ctx.Symbols, ctx.Regs)
		if err != nil {
			return nil, err
		}
		out = append(out, loadInstrs...)
		srcReg = reg
	}

	addr, err := ctx.Symbols.DeclareScalar(varName)
	if err != nil {
		return nil, err
	}
	out = append(out, Instr{Op: "STR", Args: []string{srcReg, strconv.Itoa(addr)}})
	ctx.Regs.Free(srcReg)
	return out, nil
}

// compileComparison compiles the condition of an if/elif/while header
// (already rewritten to start with "if") into a CMP plus its trailing
// conditional branch, using a fresh local builder so that the caller's
// asmBuilder.extend can relocate it with one relative-renumbering pass
// (spec §4.5 item 1).
func compileComparison(headerCompact string, ctx *CompilerContext) ([]Instr, error) {
	condition := strings.TrimSuffix(strings.TrimPrefix(headerCompact, "if"), ":")

	ops := []struct{ sym, branch string }{
		{"==", "BEQ"}, {"!=", "BNE"}, {">", "BGT"}, {"<", "BLT"},
	}
	for _, o := range ops {
		idx := strings.Index(condition, o.sym)
		if idx < 0 {
			continue
		}
		lhsExpr := condition[:idx]
		rhsExpr := condition[idx+len(o.sym):]

		lb := &asmBuilder{}
		lhsInstrs, lhsOperand, err := CompileArgument(lhsExpr, ctx.Symbols, ctx.Regs)
		if err != nil {
			return nil, err
		}
		lb.extend(lhsInstrs)
		rhsInstrs, rhsOperand, err := CompileArgument(rhsExpr, ctx.Symbols, ctx.Regs)
		if err != nil {
			return nil, err
		}
		lb.extend(rhsInstrs)

		lb.emit("CMP", lhsOperand, rhsOperand)
		target := lb.len() + 2
		lb.emit(o.branch, strconv.Itoa(target))

		ctx.Regs.Free(lhsOperand)
		ctx.Regs.Free(rhsOperand)
		return lb.lines, nil
	}
	return nil, errors.Wrapf(ErrSyntax, "no comparison operator in condition %q", condition)
}

// CompileBlock recursively compiles a slice of already-indented source
// lines into a flat instruction list with unresolved "ptr"/"break"
// placeholders (spec §4.5's whole dispatch chain).
func CompileBlock(lines []string, ctx *CompilerContext) ([]Instr, error) {
	lines = ensureEnd(lines)

	b := &asmBuilder{}
	branchFixups := map[int][]int{}
	breakFixups := map[int]int{}

	ln := 0
	for ln < len(lines) {
		raw := lines[ln]
		indent, err := numIndents(raw)
		if err != nil {
			return nil, newCompileError(ln, ErrIndent, "")
		}
		compact := compactLine(raw)

		if sites, ok := branchFixups[ln]; ok {
			target := strconv.Itoa(b.len())
			for _, idx := range sites {
				last := len(b.lines[idx].Args) - 1
				b.lines[idx].Args[last] = target
			}
			delete(branchFixups, ln)
		}
		if target, ok := breakFixups[ln]; ok {
			resolveBreaks(b.lines, target)
			delete(breakFixups, ln)
		}

		switch {
		case isIfElifWhileHeader(compact):
			headerCompact := compact
			isWhile := false
			switch {
			case strings.HasPrefix(compact, "elif"):
				headerCompact = "if" + compact[len("elif"):]
			case strings.HasPrefix(compact, "while"):
				headerCompact = "if" + compact[len("while"):]
				isWhile = true
			}

			whileStart := 0
			if isWhile {
				whileStart = b.len()
			}

			condInstrs, err := compileComparison(headerCompact, ctx)
			if err != nil {
				return nil, newCompileError(ln, err, "")
			}
			b.extend(condInstrs)

			elseInstrIdx := b.emit("BAL", "ptr")

			endOfCurrIfBlock := findEndOfCurrIfBlock(lines, ln+1, indent)
			endOfIfStatement := findEndOfIfStatement(lines, ln+1, indent)

			bodyInstrs, err := CompileBlock(lines[ln+1:endOfCurrIfBlock], ctx)
			if err != nil {
				return nil, err
			}
			if isWhile {
				// A break in this loop's body exits to the instruction after
				// the trailing BAL back to the comparison; the target is
				// body-relative and is shifted by extend like any other.
				resolveBreaks(bodyInstrs, len(bodyInstrs)+1)
			}
			b.extend(bodyInstrs)

			if isWhile {
				b.emit("BAL", strconv.Itoa(whileStart))
			} else {
				trailingIdx := b.emit("BAL", "ptr")
				branchFixups[endOfIfStatement] = append(branchFixups[endOfIfStatement], trailingIdx)
			}

			b.lines[elseInstrIdx].Args[0] = strconv.Itoa(b.len())
			ln = endOfCurrIfBlock

		case isForHeader(compact):
			inner := strings.TrimSuffix(strings.TrimPrefix(compact, "for("), "):")
			parts := strings.SplitN(inner, ",", 3)
			if len(parts) != 3 {
				return nil, newCompileError(ln, ErrSyntax, "malformed for-loop header")
			}
			initStmt, condStmt, stepStmt := parts[0], parts[1], parts[2]

			endOfForLoop := findEndOfIfStatement(lines, ln+1, indent)
			bodyLines := lines[ln+1 : endOfForLoop]

			indentStr := strings.Repeat(" ", IndentSize*indent)
			deeperIndentStr := strings.Repeat(" ", IndentSize*(indent+1))
			loopLines := make([]string, 0, len(bodyLines)+3)
			loopLines = append(loopLines, indentStr+initStmt)
			loopLines = append(loopLines, indentStr+"while "+condStmt+":")
			loopLines = append(loopLines, bodyLines...)
			loopLines = append(loopLines, deeperIndentStr+stepStmt)

			loopInstrs, err := CompileBlock(loopLines, ctx)
			if err != nil {
				return nil, err
			}
			b.extend(loopInstrs)
			ln = endOfForLoop
			breakFixups[ln] = b.len()

		case isElseHeader(compact):
			endOfIfStatement := findEndOfIfStatement(lines, ln+1, indent)
			bodyInstrs, err := CompileBlock(lines[ln+1:endOfIfStatement], ctx)
			if err != nil {
				return nil, err
			}
			b.extend(bodyInstrs)
			ln = endOfIfStatement

		case compact == "break":
			b.emit("BAL", "break")
			ln++

		case isArrayDecl(compact):
			name, sizeStr := parseArrayDecl(compact)
			if !IsNumberLexeme(sizeStr) || isFloatLexeme(sizeStr) {
				return nil, newCompileError(ln, ErrVariableLengthArray, "")
			}
			size, convErr := strconv.Atoi(sizeStr)
			if convErr != nil {
				return nil, newCompileError(ln, ErrVariableLengthArray, "")
			}
			if _, err := ctx.Symbols.DeclareArray(name, size); err != nil {
				return nil, newCompileError(ln, err, "")
			}
			storeInstrs, err := compileVariableStore(arraySizeName(name), "#"+sizeStr, ctx)
			if err != nil {
				return nil, newCompileError(ln, err, "")
			}
			b.extend(storeInstrs)
			ln++

		case isArrayAssign(compact):
			parts := strings.SplitN(compact, "]=", 2)
			front, expression := parts[0], parts[1]
			bracketParts := strings.SplitN(front, "[", 2)
			arrayName, indexExpr := bracketParts[0], bracketParts[1]

			desc, ok := ctx.Symbols.ResolveArray(arrayName)
			if !ok {
				return nil, newCompileError(ln, ErrUndefinedSymbol, "array %q", arrayName)
			}

			indexInstrs, indexOperand, err := CompileArgument(indexExpr, ctx.Symbols, ctx.Regs)
			if err != nil {
				return nil, newCompileError(ln, err, "")
			}
			b.extend(indexInstrs)

			exprInstrs, exprOperand, err := CompileArgument(expression, ctx.Symbols, ctx.Regs)
			if err != nil {
				return nil, newCompileError(ln, err, "")
			}
			b.extend(exprInstrs)

			valueReg := exprOperand
			if len(exprOperand) > 0 && exprOperand[0] == '#' {
				reg, err := ctx.Regs.Allocate()
				if err != nil {
					return nil, newCompileError(ln, err, "")
				}
				b.emit("MOV", reg, exprOperand)
				valueReg = reg
			}

			addrReg, err := ctx.Regs.Allocate()
			if err != nil {
				return nil, newCompileError(ln, err, "")
			}
			b.emit("ADD", addrReg, "#"+strconv.Itoa(desc.Base), indexOperand)
			b.emit("STR", valueReg, addrReg)
			ctx.Regs.Free(valueReg)
			ctx.Regs.Free(addrReg)
			ctx.Regs.Free(indexOperand)
			ln++

		default:
			if op, ok := matchCompoundOp(compact); ok {
				parts := strings.SplitN(compact, op, 2)
				varName, rhs := parts[0], parts[1]
				baseOp := strings.TrimSuffix(op, "=")
				rewritten := fmt.Sprintf("%s=%s%s(%s)", varName, varName, baseOp, rhs)
				line := strings.Repeat(" ", IndentSize*indent) + rewritten
				subInstrs, err := CompileBlock([]string{line}, ctx)
				if err != nil {
					return nil, err
				}
				b.extend(subInstrs)
				ln++
				break
			}

			if strings.Contains(compact, "=") {
				parts := strings.SplitN(compact, "=", 2)
				lhs, rhs := parts[0], parts[1]
				rpn, err := ConvertExpression(rhs)
				if err != nil {
					return nil, newCompileError(ln, err, "")
				}
				var storeInstrs []Instr
				if len(rpn) == 1 {
					tok := rpn[0]
					operand := tok.Lexeme
					if tok.Kind == TokNumber {
						operand = "#" + tok.Lexeme
					}
					storeInstrs, err = compileVariableStore(lhs, operand, ctx)
				} else {
					var rpnInstrs []Instr
					var lastReg string
					rpnInstrs, lastReg, err = CompileRPN(rpn, ctx.Symbols, ctx.Regs)
					if err == nil {
						b.extend(rpnInstrs)
						storeInstrs, err = compileVariableStore(lhs, lastReg, ctx)
					}
				}
				if err != nil {
					return nil, newCompileError(ln, err, "")
				}
				b.extend(storeInstrs)
				ln++
				break
			}

			if isIncrement(compact) {
				varName := strings.TrimSuffix(compact, "++")
				rewritten := fmt.Sprintf("%s=%s+1", varName, varName)
				line := strings.Repeat(" ", IndentSize*indent) + rewritten
				subInstrs, err := CompileBlock([]string{line}, ctx)
				if err != nil {
					return nil, err
				}
				b.extend(subInstrs)
				ln++
				break
			}

			if isDecrement(compact) {
				varName := strings.TrimSuffix(compact, "--")
				rewritten := fmt.Sprintf("%s=%s-1", varName, varName)
				line := strings.Repeat(" ", IndentSize*indent) + rewritten
				subInstrs, err := CompileBlock([]string{line}, ctx)
				if err != nil {
					return nil, err
				}
				b.extend(subInstrs)
				ln++
				break
			}

			if isPrintCall(compact) {
				arg := compact[len("print(") : len(compact)-1]
				if IsNumberLexeme(arg) {
					b.emit("PRT", "#"+arg)
				} else {
					instrs, operand, err := CompileArgument(arg, ctx.Symbols, ctx.Regs)
					if err != nil {
						return nil, newCompileError(ln, err, "")
					}
					b.extend(instrs)
					b.emit("PRT", operand)
					ctx.Regs.Free(operand)
				}
				ln++
				break
			}

			if compact == "END" {
				b.emit("PASS")
				ln++
				break
			}

			return nil, newCompileError(ln, ErrSyntax, "%q", raw)
		}
	}

	if !ctx.Regs.AllFree() {
		return nil, errors.Wrap(ErrSyntax, "register leaked across statement boundary")
	}

	return b.lines, nil
}
