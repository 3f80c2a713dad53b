package compiler

import "testing"

func TestLexNumbersVariablesOperators(t *testing.T) {
	toks, err := Lex("x+12.5*y")
	assert(t, err == nil, "unexpected error: %v", err)
	want := []string{"x", "+", "12.5", "*", "y"}
	assert(t, len(toks) == len(want), "expected %d tokens, got %d", len(want), len(toks))
	for i, w := range want {
		assert(t, toks[i].Lexeme == w, "token %d: expected %q, got %q", i, w, toks[i].Lexeme)
	}
}

func TestLexString(t *testing.T) {
	toks, err := Lex(`"hello"`)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, len(toks) == 1 && toks[0].Kind == TokString, "expected a single string token")
}

func TestLexUnterminatedString(t *testing.T) {
	_, err := Lex(`"hello`)
	assert(t, err != nil, "expected unterminated string error")
}

func TestLexArrayBracketsRewriteToTilde(t *testing.T) {
	toks, err := Lex("a[i]")
	assert(t, err == nil, "unexpected error: %v", err)
	want := []string{"a", "~", "(", "i", ")"}
	assert(t, len(toks) == len(want), "expected %d tokens, got %d", len(want), len(toks))
	for i, w := range want {
		assert(t, toks[i].Lexeme == w, "token %d: expected %q, got %q", i, w, toks[i].Lexeme)
	}
}

func TestLexUnknownPunctuation(t *testing.T) {
	_, err := Lex("x @ y")
	assert(t, err != nil, "expected error for unknown punctuation")
}

func TestLexEmptyExpression(t *testing.T) {
	_, err := Lex("   ")
	assert(t, err != nil, "expected error for empty expression")
}

func TestToRPNPrecedence(t *testing.T) {
	toks, err := Lex("2+3*4")
	assert(t, err == nil, "unexpected error: %v", err)
	rpn, err := ToRPN(toks)
	assert(t, err == nil, "unexpected error: %v", err)
	want := []string{"2", "3", "4", "*", "+"}
	assert(t, len(rpn) == len(want), "expected %d tokens, got %d", len(want), len(rpn))
	for i, w := range want {
		assert(t, rpn[i].Lexeme == w, "token %d: expected %q, got %q", i, w, rpn[i].Lexeme)
	}
}

func TestToRPNRightAssociativePower(t *testing.T) {
	toks, err := Lex("2^3^2")
	assert(t, err == nil, "unexpected error: %v", err)
	rpn, err := ToRPN(toks)
	assert(t, err == nil, "unexpected error: %v", err)
	want := []string{"2", "3", "2", "^", "^"}
	assert(t, len(rpn) == len(want), "expected %d tokens, got %d", len(want), len(rpn))
	for i, w := range want {
		assert(t, rpn[i].Lexeme == w, "token %d: expected %q, got %q", i, w, rpn[i].Lexeme)
	}
}

func TestToRPNMismatchedBrackets(t *testing.T) {
	toks, err := Lex("(1+2")
	assert(t, err == nil, "unexpected error: %v", err)
	_, err = ToRPN(toks)
	assert(t, err != nil, "expected mismatched bracket error")
}

func TestIsNumberLexeme(t *testing.T) {
	assert(t, IsNumberLexeme("123"), "expected 123 to be a number")
	assert(t, IsNumberLexeme("#123"), "expected #123 to be a number")
	assert(t, IsNumberLexeme("1.5"), "expected 1.5 to be a number")
	assert(t, !IsNumberLexeme("x1"), "expected x1 to not be a number")
	assert(t, !IsNumberLexeme(""), "expected empty string to not be a number")
}
