package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"pcompile/asmgen"
	"pcompile/compiler"
	"pcompile/vm"
)

const version = "v1.0"

const (
	colorGreen = "\033[92;1m"
	colorRed   = "\033[91;1m"
	colorCyan  = "\033[36;1m"
	colorReset = "\033[0m"
)

var (
	debugMode   = flag.Bool("debug", false, "step through execution one instruction at a time")
	outPath     = flag.String("o", "", "output file for compile/assemble (defaults next to the input)")
	showVersion = flag.Bool("version", false, "print version and exit")
)

func init() {
	flag.Parse()
}

func usage() {
	fmt.Printf(colorRed+"usage: pcompile [-debug] [-o <output file>] <compile|run|assemble> <source file>"+colorReset+"\n")
}

func main() {
	if *showVersion {
		fmt.Printf(colorCyan+"pcompile %s"+colorReset+"\n", version)
		return
	}

	args := os.Args[len(os.Args)-flag.NArg():]
	if len(args) < 2 {
		usage()
		os.Exit(1)
	}

	verb, path := args[0], args[1]
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf(colorRed+"%s"+colorReset+"\n", err)
		os.Exit(1)
	}

	result, err := compiler.CompileSource(string(source))
	if err != nil {
		fmt.Printf(colorRed+"%s"+colorReset+"\n", err)
		os.Exit(1)
	}

	switch verb {
	case "compile":
		runCompile(result, path)
	case "run":
		runRun(result)
	case "assemble":
		runAssemble(result, path)
	default:
		usage()
		os.Exit(1)
	}
}

func destPath(srcPath, ext string) string {
	if *outPath != "" {
		return *outPath
	}
	base := strings.TrimSuffix(srcPath, filepathExt(srcPath))
	return base + ext
}

func filepathExt(path string) string {
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		return path[idx:]
	}
	return ""
}

func runCompile(result *compiler.CompileResult, srcPath string) {
	dest := destPath(srcPath, ".asm")
	if err := os.WriteFile(dest, []byte(compiler.Render(result.Instrs)), 0644); err != nil {
		fmt.Printf(colorRed+"%s"+colorReset+"\n", err)
		os.Exit(1)
	}
	fmt.Printf(colorGreen+"Code compiled successfully into %s"+colorReset+"\n", dest)
}

func runRun(result *compiler.CompileResult) {
	program := mustParse(result)
	machine := vm.NewVirtualMachine(program)

	if *debugMode {
		machine.RunProgramDebugMode()
		return
	}

	machine.RunProgram()
	if machine.Faulted() {
		os.Exit(2)
	}
}

func runAssemble(result *compiler.CompileResult, srcPath string) {
	dest := destPath(srcPath, ".bin")
	encoded, err := asmgen.Assemble(result.Instrs)
	if err != nil {
		fmt.Printf(colorRed+"%s"+colorReset+"\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(dest, []byte(encoded), 0644); err != nil {
		fmt.Printf(colorRed+"%s"+colorReset+"\n", err)
		os.Exit(1)
	}
	fmt.Printf(colorGreen+"Assembly code assembled successfully into %s"+colorReset+"\n", dest)
}

func mustParse(result *compiler.CompileResult) []vm.ParsedInstr {
	lines := strings.Split(compiler.Render(result.Instrs), "\n")
	program, err := vm.ParseProgram(lines)
	if err != nil {
		fmt.Printf(colorRed+"%s"+colorReset+"\n", err)
		os.Exit(1)
	}
	return program
}
