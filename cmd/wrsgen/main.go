// Command wrsgen generates pinned PSA pipeline constructors from
// //wrsgen:config directives left in ordinary Go source comments.
//
// Usage:
//
//	wrsgen -input pipelines.go -output pipelines_gen.go
//
// Or via go:generate:
//
//	//go:generate wrsgen -input $GOFILE -output pipelines_gen.go
//
// A directive names a tiling and its field values:
//
//	//wrsgen:config Default workgroupSize=64 rows=4 splitSize=256 splitWorkgroupSize=64 packWorkgroupSize=64 parallelLookbackDepth=8 maxBlockCount=4096
//
// wrsgen emits one New<Name> constructor per directive, each a thin
// wrapper around psa.New with that tiling's psa.Config literal filled in.
package main

import (
	"flag"
	"fmt"
	"os"
)

var (
	inputFile  = flag.String("input", "", "Input Go source file with //wrsgen:config directives (required)")
	outputFile = flag.String("output", "", "Output Go source file (default: <input>_gen.go)")
)

func main() {
	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -input flag is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	out := *outputFile
	if out == "" {
		out = defaultOutputPath(*inputFile)
	}

	if err := Generate(*inputFile, out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Successfully generated %s\n", out)
}

func defaultOutputPath(input string) string {
	const suffix = ".go"
	base := input
	if len(base) > len(suffix) && base[len(base)-len(suffix):] == suffix {
		base = base[:len(base)-len(suffix)]
	}
	return base + "_gen.go"
}
