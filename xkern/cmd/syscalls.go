// Copyright 2026 The xkern Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/google/subcommands"
	"xkern.dev/xkern/pkg/kernel"
	"xkern.dev/xkern/xkern/cmd/util"
)

// Syscalls implements subcommands.Command for the "syscalls" command.
type Syscalls struct {
	output string
	abi    string
}

// SyscallDoc represents a single item of syscall documentation.
type SyscallDoc struct {
	Num  uintptr `json:"num"`
	Name string  `json:"name"`
	Note string  `json:"note,omitempty"`
}

// ABIInfo maps an ABI name to the documentation of its syscalls, ordered by
// number.
type ABIInfo map[string][]SyscallDoc

type outputFunc func(io.Writer, ABIInfo) error

// The string name to use for printing all ABIs.
const abiAll = "all"

// A map of output type names to output functions.
var outputMap = map[string]outputFunc{
	"table": outputTable,
	"json":  outputJSON,
	"csv":   outputCSV,
}

// Name implements subcommands.Command.Name.
func (*Syscalls) Name() string {
	return "syscalls"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Syscalls) Synopsis() string {
	return "Print the syscalls implemented by each ABI."
}

// Usage implements subcommands.Command.Usage.
func (*Syscalls) Usage() string {
	return `syscalls [options] - Print the syscalls implemented by each ABI.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Syscalls) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.output, "o", "table", "Output format (table, csv, json).")
	f.StringVar(&s.abi, "abi", abiAll, "The ABI (e.g. xous).")
}

// Execute implements subcommands.Command.Execute.
func (s *Syscalls) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	out, ok := outputMap[s.output]
	if !ok {
		util.Fatalf("Unsupported output format %q", s.output)
	}
	info, err := getABIInfo(kernel.SyscallTables(), s.abi)
	if err != nil {
		util.Fatalf("%v", err)
	}
	if err := out(os.Stdout, info); err != nil {
		util.Fatalf("Error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

// getABIInfo documents the tables of the named ABI, or of every ABI if name
// is "all".
func getABIInfo(tables []*kernel.SyscallTable, name string) (ABIInfo, error) {
	info := make(ABIInfo)
	for _, t := range tables {
		if name != abiAll && t.ABI != name {
			continue
		}
		var docs []SyscallDoc
		for _, no := range t.Sysnos() {
			sc := t.Table[no]
			docs = append(docs, SyscallDoc{Num: uintptr(no), Name: sc.Name, Note: sc.Note})
		}
		info[t.ABI] = docs
	}
	if name != abiAll && len(info) == 0 {
		return nil, fmt.Errorf("syscall table for ABI %q not found", name)
	}
	return info, nil
}

func sortedABIs(info ABIInfo) []string {
	abis := make([]string, 0, len(info))
	for abi := range info {
		abis = append(abis, abi)
	}
	sort.Strings(abis)
	return abis
}

// outputTable outputs the syscall info in tabular format.
func outputTable(w io.Writer, info ABIInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, abi := range sortedABIs(info) {
		fmt.Fprintf(w, "%s:\n\n", abi)

		// Write the header
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\n", "NUM", "NAME", "NOTE"); err != nil {
			return err
		}
		for _, sc := range info[abi] {
			if _, err := fmt.Fprintf(tw, "%d\t%s\t%s\n", sc.Num, sc.Name, sc.Note); err != nil {
				return err
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// outputJSON outputs the syscall info in JSON format.
func outputJSON(w io.Writer, info ABIInfo) error {
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(info)
}

// outputCSV outputs the syscall info in CSV format.
func outputCSV(w io.Writer, info ABIInfo) error {
	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write([]string{"ABI", "Num", "Name", "Note"}); err != nil {
		return err
	}
	for _, abi := range sortedABIs(info) {
		for _, sc := range info[abi] {
			if err := csvWriter.Write([]string{abi, strconv.FormatUint(uint64(sc.Num), 10), sc.Name, sc.Note}); err != nil {
				return err
			}
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}
