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

// Package config provides basic infrastructure to set configuration settings
// for xkern. Each setting that can be changed from the command line must have
// a "flag" tag, and settings that can be read from a configuration file a
// "toml" tag.
package config

import (
	"fmt"
	"reflect"

	"xkern.dev/xkern/pkg/hostarch"
	"xkern.dev/xkern/pkg/kernel"
	"xkern.dev/xkern/pkg/log"
	"xkern.dev/xkern/pkg/pgalloc"
)

// Config holds configuration that is not part of a scenario.
type Config struct {
	// ConfigFile is a TOML file with settings. Flags given on the command
	// line take precedence over the file.
	ConfigFile string `flag:"config" toml:"-"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug" toml:"debug"`

	// DebugLog is the path to log debug information to, if not empty. If it
	// ends with '/', a file is created inside the directory. %TIMESTAMP% and
	// %COMMAND% are replaced.
	DebugLog string `flag:"debug-log" toml:"debug_log"`

	// LogFormat is the log format, "text" or "json".
	LogFormat string `flag:"log-format" toml:"log_format"`

	// AlsoLogToStderr allows to send log messages to stderr in addition to
	// DebugLog.
	AlsoLogToStderr bool `flag:"alsologtostderr" toml:"alsologtostderr"`

	// Strace indicates that every syscall should be logged.
	Strace bool `flag:"strace" toml:"strace"`

	// Kernel parameters. Sizes are in bytes.
	RAMSize        uint64 `flag:"ram-size" toml:"ram_size"`
	HeapMax        uint64 `flag:"heap-max" toml:"heap_max"`
	MaxProcesses   int    `flag:"max-processes" toml:"max_processes"`
	MaxContexts    int    `flag:"max-contexts" toml:"max_contexts"`
	MaxServers     int    `flag:"max-servers" toml:"max_servers"`
	MaxConnections int    `flag:"max-connections" toml:"max_connections"`
	QueueDepth     int    `flag:"queue-depth" toml:"queue_depth"`
	ReplySlots     int    `flag:"reply-slots" toml:"reply_slots"`
	Interrupts     int    `flag:"interrupts" toml:"interrupts"`

	// Windows are device windows added to every kernel. They can only be
	// given in the configuration file.
	Windows []Window `toml:"window"`
}

// Window is a device register range.
type Window struct {
	Name string `toml:"name"`
	Base uint64 `toml:"base"`
	Size uint64 `toml:"size"`
}

// Log logs important aspects of the configuration to the given log function.
func (c *Config) Log() {
	log.Infof("Config:")
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			continue
		}
		log.Infof("\t%s: %s", name, getVal(obj.Field(i)))
	}
	for _, w := range c.Windows {
		log.Infof("\twindow %q: %#x+%#x", w.Name, w.Base, w.Size)
	}
}

// KernelConfig returns the kernel parameters described by c.
func (c *Config) KernelConfig() kernel.Config {
	kc := kernel.DefaultConfig()
	kc.RAMSize = c.RAMSize
	kc.HeapMax = c.HeapMax
	kc.MaxProcesses = c.MaxProcesses
	kc.MaxContexts = c.MaxContexts
	kc.MaxServers = c.MaxServers
	kc.MaxConnections = c.MaxConnections
	kc.QueueDepth = c.QueueDepth
	kc.ReplySlots = c.ReplySlots
	kc.Interrupts = c.Interrupts
	kc.Strace = c.Strace
	for _, w := range c.Windows {
		kc.Windows = append(kc.Windows, pgalloc.Window{Name: w.Name, Base: hostarch.Addr(w.Base), Size: w.Size})
	}
	return kc
}

func (c *Config) validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q, must be text or json", c.LogFormat)
	}
	kc := c.KernelConfig()
	if err := kc.Validate(); err != nil {
		return fmt.Errorf("invalid kernel parameters: %w", err)
	}
	return nil
}
