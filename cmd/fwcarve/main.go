// Copyright 2025 The fwcarve Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// The fwcarve command extracts kernel images and root filesystems out of
// embedded-device firmware blobs.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fwcarve/fwcarve/binary/cli"
	"github.com/fwcarve/fwcarve/binary/extractrunner"
	"github.com/fwcarve/fwcarve/log"
)

func main() {
	flags := parseFlags()
	os.Exit(extractrunner.Run(flags))
}

func parseFlags() *cli.Flags {
	port := flag.Int("port", 0, "PostgreSQL port for the metadata sink (default 5432)")
	flag.IntVar(port, "p", 0, "shorthand for -port")
	noRootfs := flag.Bool("nf", false, "disable rootfs extraction")
	noKernel := flag.Bool("nk", false, "disable kernel extraction")
	noParallel := flag.Bool("np", false, "disable the parallel worker pool")
	brand := flag.String("b", "", "brand name recorded alongside extracted images")
	quiet := flag.Bool("quiet", false, "suppress per-item progress logging")
	flag.BoolVar(quiet, "q", false, "shorthand for -quiet")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	sqlHost := flag.String("sql", "", "host of the optional PostgreSQL metadata sink")
	scannerImage := flag.String("scanner-image", "binwalkv3", "Docker image providing the signature scanner")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: fwcarve <input> [<output>=images] [flags]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	flags := &cli.Flags{
		SQLHost:      *sqlHost,
		SQLPort:      *port,
		NoRootfs:     *noRootfs,
		NoKernel:     *noKernel,
		NoParallel:   *noParallel,
		Brand:        *brand,
		Quiet:        *quiet,
		Verbose:      *verbose,
		ScannerImage: *scannerImage,
	}
	if len(args) > 0 {
		flags.Input = args[0]
	}
	if len(args) > 1 {
		flags.Output = args[1]
	}

	if err := cli.ValidateFlags(flags); err != nil {
		log.Errorf("Error parsing CLI args: %v", err)
		os.Exit(1)
	}
	return flags
}
