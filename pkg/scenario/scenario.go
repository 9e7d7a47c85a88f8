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

// Package scenario runs scripted sequences of syscalls against a hosted
// kernel.
//
// A scenario is a TOML or YAML document holding optional kernel overrides and
// a list of steps. Each step names a syscall, or one of the pseudo-calls
// below, and the outcome it expects:
//
//	[[step]]
//	as = 2
//	call = "SendMessage"
//	args = { cid = "$conn", kind = "MutableBorrow", base = "$buf", size = "$buf.size" }
//	expect = "ResumeProcess"
//
// Arguments are integers, label references ("$name" or "$name.field") or,
// for names and flags, strings. A step with save = "name" records the values
// of its result under that label.
//
// Pseudo-calls act on the kernel from outside any process:
//
//	Resume         takes the pending return of the running context
//	Write          writes data at addr in pid
//	ExpectMemory   checks that addr in pid holds data
//	RaiseInterrupt fires irq
//	ExpectContext  checks the state of context tid of pid
//
// The expectation "Halt" requires the step to stop the kernel with an
// invariant violation; nothing may follow it.
package scenario

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
	"xkern.dev/xkern/pkg/abi/xous"
	"xkern.dev/xkern/pkg/hostarch"
	"xkern.dev/xkern/pkg/kernel"
	"xkern.dev/xkern/pkg/pgalloc"
)

// Format is the encoding of a scenario file.
type Format int

// Supported formats.
const (
	TOML Format = iota
	YAML
)

func (f Format) String() string {
	switch f {
	case TOML:
		return "toml"
	case YAML:
		return "yaml"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// FormatOf returns the format of path from its extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return TOML, nil
	case ".yaml", ".yml":
		return YAML, nil
	default:
		return 0, fmt.Errorf("unknown scenario format for %q, want .toml, .yaml or .yml", path)
	}
}

// Step is one action of a scenario.
type Step struct {
	// As is the process expected to be running before the step. Zero
	// skips the check.
	As xous.PID `toml:"as" yaml:"as"`

	Call string         `toml:"call" yaml:"call"`
	Args map[string]any `toml:"args" yaml:"args"`

	// Expect is a result kind ("Ok", "Message", ...), an error name
	// ("BadAddress", ...) or "Halt". Empty accepts any success.
	Expect string `toml:"expect" yaml:"expect"`

	// Check compares fields of the result, such as "id" or "arg0" of a
	// message, with expected values.
	Check map[string]any `toml:"check" yaml:"check"`

	Save string `toml:"save" yaml:"save"`
}

// Window is a device window added by a scenario.
type Window struct {
	Name string `toml:"name" yaml:"name"`
	Base uint64 `toml:"base" yaml:"base"`
	Size uint64 `toml:"size" yaml:"size"`
}

// Overrides are kernel parameters changed by a scenario. Zero fields keep
// the base configuration.
type Overrides struct {
	RAMPages     int      `toml:"ram_pages" yaml:"ram_pages"`
	HeapPages    int      `toml:"heap_pages" yaml:"heap_pages"`
	MaxProcesses int      `toml:"max_processes" yaml:"max_processes"`
	MaxContexts  int      `toml:"max_contexts" yaml:"max_contexts"`
	MaxServers   int      `toml:"max_servers" yaml:"max_servers"`
	QueueDepth   int      `toml:"queue_depth" yaml:"queue_depth"`
	ReplySlots   int      `toml:"reply_slots" yaml:"reply_slots"`
	Interrupts   int      `toml:"interrupts" yaml:"interrupts"`
	Windows      []Window `toml:"windows" yaml:"windows"`
}

// Apply changes conf according to o.
func (o *Overrides) Apply(conf *kernel.Config) {
	if o.RAMPages > 0 {
		conf.RAMSize = uint64(o.RAMPages) * hostarch.PageSize
	}
	if o.HeapPages > 0 {
		conf.HeapMax = uint64(o.HeapPages) * hostarch.PageSize
	}
	for _, l := range []struct {
		dst *int
		v   int
	}{
		{&conf.MaxProcesses, o.MaxProcesses},
		{&conf.MaxContexts, o.MaxContexts},
		{&conf.MaxServers, o.MaxServers},
		{&conf.QueueDepth, o.QueueDepth},
		{&conf.ReplySlots, o.ReplySlots},
		{&conf.Interrupts, o.Interrupts},
	} {
		if l.v > 0 {
			*l.dst = l.v
		}
	}
	for _, w := range o.Windows {
		conf.Windows = append(conf.Windows, pgalloc.Window{Name: w.Name, Base: hostarch.Addr(w.Base), Size: w.Size})
	}
}

// Scenario is a parsed scenario file.
type Scenario struct {
	Name        string    `toml:"name" yaml:"name"`
	Description string    `toml:"description" yaml:"description"`
	Kernel      Overrides `toml:"kernel" yaml:"kernel"`
	Steps       []Step    `toml:"step" yaml:"step"`
}

// Parse decodes a scenario. Unknown keys are rejected.
func Parse(data []byte, format Format) (*Scenario, error) {
	var s Scenario
	switch format {
	case TOML:
		md, err := toml.Decode(string(data), &s)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown keys %q", undecoded)
		}
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&s); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown format %v", format)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and parses the scenario at path. A scenario without a name is
// named after its file.
func Load(path string) (*Scenario, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

func (s *Scenario) validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario has no steps")
	}
	for i, st := range s.Steps {
		if !knownCall(st.Call) {
			return fmt.Errorf("step %d: unknown call %q", i+1, st.Call)
		}
		if st.Expect != "" && !knownExpectation(st.Expect) {
			return fmt.Errorf("step %d: unknown expectation %q", i+1, st.Expect)
		}
		if st.Expect == expectHalt && i != len(s.Steps)-1 {
			return fmt.Errorf("step %d: a step expecting Halt must be the last", i+1)
		}
		if strings.HasPrefix(st.Save, "$") || strings.Contains(st.Save, ".") {
			return fmt.Errorf("step %d: invalid label %q", i+1, st.Save)
		}
	}
	return nil
}
