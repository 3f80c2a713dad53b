package vm

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

func getDefaultRecoverFuncForVM(vm *VM) func() {
	return func() {
		if r := recover(); r != nil {
			err := errSegmentationFault
			if vm.errcode != nil {
				err = vm.errcode
			}
			vm.errcode = err
			fmt.Printf("%s at instruction %d\n", err, vm.pc)
		}
	}
}

// RunProgram runs the program to completion (HALT or a fault), printing
// nothing but the PRT output and, on a fault, the error.
func (vm *VM) RunProgram() {
	defer getDefaultRecoverFuncForVM(vm)()

	for vm.Step() {
	}
	vm.stdout.Flush()

	if err := vm.errcode; err != nil && err != errProgramFinished {
		fmt.Printf("%s at instruction %d\n", err, vm.pc)
	}
}

// RunProgramDebugMode runs the program interactively: one instruction at a
// time, with optional breakpoints on instruction index.
func (vm *VM) RunProgramDebugMode() {
	defer getDefaultRecoverFuncForVM(vm)()

	fmt.Printf("Commands:\n\tn or next: execute next instruction\n\tr or run: run program\n\tb or break <line>: break on line (or remove break on line)\n\tregs: print register contents\n\n")

	vm.printCurrentState()

	reader := bufio.NewReader(os.Stdin)
	waitForInput := true
	breakAtLines := make(map[int]struct{})
	lastBreakLine := -1

	for {
		line := ""
		if waitForInput {
			fmt.Print("\n->")
			line, _ = reader.ReadString('\n')
			line = strings.ToLower(strings.TrimSpace(line))
		} else {
			curr := vm.pc
			if _, ok := breakAtLines[curr]; lastBreakLine != curr && ok {
				fmt.Println("breakpoint")
				vm.printCurrentState()
				waitForInput = true
				lastBreakLine = curr
				continue
			}
		}

		switch {
		case !waitForInput || line == "n" || line == "next":
			lastBreakLine = -1
			cont := vm.Step()
			vm.stdout.Flush()
			if waitForInput {
				vm.printCurrentState()
			}
			if !cont {
				if vm.errcode != errProgramFinished {
					fmt.Println(vm.formatInstructionStr(vm.pc, vm.errcode.Error()))
				} else {
					fmt.Println("program finished")
				}
				return
			}
		case line == "program":
			vm.printProgram()
		case line == "regs":
			vm.printRegisters()
		case line == "r" || line == "run":
			waitForInput = false
		case strings.HasPrefix(line, "b"):
			arg := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(line, "break"), "b"))
			target, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Println("unknown line number:", err)
				continue
			}
			if _, ok := breakAtLines[target]; ok {
				delete(breakAtLines, target)
			} else {
				breakAtLines[target] = struct{}{}
			}
		}
	}
}

func (vm *VM) printCurrentState() {
	in := "<end>"
	if vm.pc >= 0 && vm.pc < len(vm.program) {
		in = vm.formatInstruction(vm.pc)
	}
	fmt.Printf("pc=%d  next: %s\n", vm.pc, in)
}

func (vm *VM) printRegisters() {
	for i, v := range vm.registers {
		fmt.Printf("r%d = %s\n", i, v.String())
	}
}

func (vm *VM) printProgram() {
	for i, in := range vm.program {
		marker := "  "
		if i == vm.pc {
			marker = "->"
		}
		fmt.Printf("%s %3d: %s\n", marker, i, formatParsedInstr(in))
	}
}

func (vm *VM) formatInstruction(idx int) string {
	if idx < 0 || idx >= len(vm.program) {
		return "<out of range>"
	}
	return formatParsedInstr(vm.program[idx])
}

func (vm *VM) formatInstructionStr(idx int, suffix string) string {
	src := ""
	if vm.debugSym != nil {
		if s, ok := vm.debugSym.source[idx]; ok {
			src = fmt.Sprintf(" (source: %s)", s)
		}
	}
	return fmt.Sprintf("%s at instruction %d: %s%s", suffix, idx, vm.formatInstruction(idx), src)
}

func formatParsedInstr(in ParsedInstr) string {
	if len(in.Args) == 0 {
		return in.Op
	}
	return in.Op + " " + strings.Join(in.Args, " ")
}
