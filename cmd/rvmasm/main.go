// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

// Command rvmasm assembles a source file into an object image.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ezrec/rvm/asm"
	"github.com/ezrec/rvm/objimage"
)

// version is overridden at release-build time via -ldflags.
var version = "dev"

// verboseFlag counts repeated -v occurrences, e.g. -v -v.
type verboseFlag int

func (v *verboseFlag) String() string { return fmt.Sprintf("%d", int(*v)) }
func (v *verboseFlag) IsBoolFlag() bool { return true }
func (v *verboseFlag) Set(string) error {
	*v++
	return nil
}

func main() {
	var output string
	var verbose verboseFlag
	var showVersion bool

	flag.StringVar(&output, "o", "", "output image path (default: source path with .o extension)")
	flag.Var(&verbose, "v", "increase verbosity (repeatable)")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %v [flags] SOURCE\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Println("rvmasm", version)
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	path := flag.Arg(0)
	if output == "" {
		output = trimExt(path) + ".o"
	}

	src, err := os.ReadFile(path)
	if err != nil {
		log.Print(err)
		os.Exit(1)
	}

	result, err := asm.Assemble(path, string(src))
	if err != nil {
		log.Print(err)
		os.Exit(1)
	}

	if int(verbose) > 0 {
		log.Printf("%v: entry %q, %d symbol(s), %d relocation(s)",
			path, result.Input.EntrySymbol, len(result.Input.Symbols), len(result.Input.Relocations))
	}

	outf, err := os.Create(output)
	if err != nil {
		log.Print(err)
		os.Exit(1)
	}
	defer outf.Close()

	if err := objimage.Write(outf, result.Input); err != nil {
		log.Print(err)
		os.Exit(1)
	}
}

func trimExt(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[:i]
		}
	}
	return path
}
