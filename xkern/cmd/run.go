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

// Package cmd holds implementations of the xkern commands.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/mohae/deepcopy"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
	"xkern.dev/xkern/pkg/kernel"
	"xkern.dev/xkern/pkg/log"
	"xkern.dev/xkern/pkg/metric"
	"xkern.dev/xkern/pkg/scenario"
	"xkern.dev/xkern/xkern/cmd/util"
	"xkern.dev/xkern/xkern/config"
)

// Run implements subcommands.Command for the "run" command.
type Run struct {
	jobs    int
	verbose bool
	metrics bool
}

// Name implements subcommands.Command.Name.
func (*Run) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Run) Synopsis() string {
	return "Run scenarios, each on a fresh kernel."
}

// Usage implements subcommands.Command.Usage.
func (*Run) Usage() string {
	return `run [flags] <path>... - Run scenario files (.toml, .yaml, .yml).

A directory runs every scenario file directly inside it.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Run) SetFlags(f *flag.FlagSet) {
	f.IntVar(&r.jobs, "j", runtime.NumCPU(), "number of scenarios to run at once.")
	f.BoolVar(&r.verbose, "v", false, "print the outcome of every step.")
	f.BoolVar(&r.metrics, "metrics", false, "print kernel metrics in Prometheus text format after the run.")
}

// outcome is the result of one scenario.
type outcome struct {
	path   string
	name   string
	report *scenario.Report
	err    error
}

// Execute implements subcommands.Command.Execute.
func (r *Run) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if r.jobs < 1 {
		return util.Errorf("-j must be at least 1, got %d", r.jobs)
	}
	conf := args[0].(*config.Config)

	paths, err := scenarioPaths(f.Args())
	if err != nil {
		return util.Errorf("%v", err)
	}
	base := conf.KernelConfig()
	results := make([]outcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.jobs)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = runScenario(path, base)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return util.Errorf("running scenarios: %v", err)
	}

	failed := printResults(os.Stdout, results, r.verbose, term.IsTerminal(int(os.Stdout.Fd())))
	if r.metrics {
		if err := metric.WriteText(os.Stdout); err != nil {
			return util.Errorf("writing metrics: %v", err)
		}
	}
	if failed > 0 {
		log.Warningf("%d of %d scenarios failed", failed, len(results))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// scenarioPaths expands directories among args into the scenario files they
// contain.
func scenarioPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		fi, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if _, err := scenario.FormatOf(e.Name()); err == nil {
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("no scenario files in %q", arg)
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	return paths, nil
}

// runScenario loads the scenario at path and runs it on a kernel configured
// by base and the scenario's overrides.
func runScenario(path string, base kernel.Config) outcome {
	out := outcome{path: path, name: path}
	s, err := scenario.Load(path)
	if err != nil {
		out.err = err
		return out
	}
	out.name = s.Name

	// Apply must not share the windows of base with other scenarios.
	kc := deepcopy.Copy(base).(kernel.Config)
	s.Kernel.Apply(&kc)
	k, err := kernel.New(kc)
	if err != nil {
		out.err = fmt.Errorf("creating kernel: %w", err)
		return out
	}
	defer func() {
		if err := k.Release(); err != nil {
			log.Warningf("Releasing kernel memory of %q: %v", s.Name, err)
		}
	}()

	log.Debugf("Running scenario %q from %s", s.Name, path)
	out.report, out.err = s.Run(k)
	return out
}

// printResults writes one line per scenario to w and returns the number of
// failed scenarios. Columns are aligned if align is set, and separated by
// tabs otherwise.
func printResults(w io.Writer, results []outcome, verbose, align bool) int {
	out := w
	var tw *tabwriter.Writer
	if align {
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		out = tw
	}
	fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\n", "SCENARIO", "RESULT", "STEPS", "ACTIVATIONS", "DETAIL")
	failed := 0
	for _, o := range results {
		result, detail := "PASS", ""
		steps, activations := 0, uint64(0)
		if o.report != nil {
			steps, activations = len(o.report.Steps), o.report.Activations
			if o.report.Halted != nil {
				result, detail = "HALT", o.report.Halted.Message
			}
		}
		if o.err != nil {
			failed++
			result, detail = "FAIL", o.err.Error()
		}
		fmt.Fprintf(out, "%s\t%s\t%d\t%d\t%s\n", o.name, result, steps, activations, detail)
		if verbose && o.report != nil {
			for _, sr := range o.report.Steps {
				fmt.Fprintf(out, "  %d\t%s\tPID%d:%d\t\t%s\n", sr.Step, sr.Call, sr.PID, sr.TID, sr.Outcome)
			}
		}
	}
	if tw != nil {
		tw.Flush()
	}
	return failed
}
