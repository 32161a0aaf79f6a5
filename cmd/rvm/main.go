// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

// Command rvm loads and executes an object image.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ezrec/rvm/vm"
)

var version = "dev"

func main() {
	var trace bool
	var showVersion bool

	flag.BoolVar(&trace, "v", false, "trace every dispatched instruction to stderr")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %v [flags] [IMAGE]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Println("rvm", version)
		os.Exit(0)
	}

	if flag.NArg() > 1 {
		flag.Usage()
		os.Exit(1)
	}

	path := "./a.out"
	if flag.NArg() == 1 {
		path = flag.Arg(0)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Print(err)
		os.Exit(1)
	}

	prog, err := vm.Load(raw)
	if err != nil {
		log.Print(err)
		os.Exit(1)
	}

	var tr *vm.Trace
	if trace {
		tr = vm.NewTrace(os.Stderr)
	}

	it := vm.New(prog, tr)
	if trace {
		it.OnPreempt = func(ip uint64) {
			tr.Printf("%#08x: preemption point", ip*8)
		}
	}
	if err := it.Run(context.Background()); err != nil {
		log.Print(err)
		os.Exit(1)
	}
}
