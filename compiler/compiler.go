// Package compiler implements the front end of the toolchain: lexing and
// shunting-yard conversion to RPN, register allocation, a flat-memory symbol
// table, expression and statement compilation, and PASS back-patching. It
// turns indentation-structured source text into a flat list of instructions
// ready for the virtual machine or the binary assembler.
package compiler

import "strings"

// CompileResult is the product of a full compile: the final instruction
// list (PASS-free, HALT-terminated) and the symbol table it was compiled
// against, for callers that need to map variable and array names to their
// addresses (the CLI and the assembler use only Instrs).
type CompileResult struct {
	Instrs  []Instr
	Symbols *SymbolTable
}

// stripBlankLines drops lines that are empty or all-whitespace. The source
// language has no comment syntax, so this is the only source-level
// normalization needed before statement compilation.
func stripBlankLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}

// CompileSource compiles a complete program given as raw source text (spec
// §4 end-to-end pipeline: lex/parse expressions as encountered, allocate
// registers, resolve symbols, emit instructions, then remove PASS markers).
func CompileSource(source string) (*CompileResult, error) {
	lines := stripBlankLines(strings.Split(source, "\n"))
	ctx := NewCompilerContext()

	instrs, err := CompileBlock(lines, ctx)
	if err != nil {
		return nil, err
	}

	return &CompileResult{
		Instrs:  RemovePassStatements(instrs),
		Symbols: ctx.Symbols,
	}, nil
}

// Render renders a compiled instruction list as assembly text, one
// instruction per line, in the same textual form the virtual machine and
// the binary assembler both parse back in.
func Render(instrs []Instr) string {
	var b strings.Builder
	for _, in := range instrs {
		b.WriteString(in.String())
		b.WriteByte('\n')
	}
	return b.String()
}
