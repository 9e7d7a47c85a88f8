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

// Package ipc implements the server and connection registry of the kernel.
//
// A Registry is not thread-safe. It is owned by the kernel and only used by
// the syscall being executed.
package ipc

import (
	"unicode/utf8"

	"xkern.dev/xkern/pkg/abi/xous"
	"xkern.dev/xkern/pkg/errors/kernerr"
	"xkern.dev/xkern/pkg/log"
)

// Config holds registry limits.
type Config struct {
	// MaxServers is the number of server slots.
	MaxServers int

	// QueueDepth bounds the queue of every server.
	QueueDepth int

	// ReplySlots bounds the blocking messages a server may hold unreplied.
	ReplySlots int

	// MaxConnections bounds the connection table of every process.
	MaxConnections int
}

// slot is a server table entry. gen survives the server so that SIDs of
// destroyed servers stay invalid.
type slot struct {
	gen    uint16
	server *Server
}

// connection is an entry of a process connection table.
type connection struct {
	sid  xous.SID
	refs int
}

// Registry tracks servers and the connections processes hold to them.
type Registry struct {
	conf Config

	// servers is indexed by SID index. Index 0 is never used.
	servers []slot

	// names maps a registered name to its server.
	names map[string]xous.SID

	// conns maps a process to its connection table, indexed by CID-1.
	conns map[xous.PID][]connection

	// lastIndex is used to find the next free server slot.
	lastIndex int
}

// NewRegistry returns an empty Registry.
func NewRegistry(conf Config) *Registry {
	return &Registry{
		conf:    conf,
		servers: make([]slot, conf.MaxServers+1),
		names:   make(map[string]xous.SID),
		conns:   make(map[xous.PID][]connection),
	}
}

// ValidName returns true if name may be registered.
func ValidName(name string) bool {
	return len(name) > 0 && len(name) <= xous.MaxServerName && utf8.ValidString(name)
}

// CreateServer registers a server named name owned by pid.
func (r *Registry) CreateServer(pid xous.PID, name string) (xous.SID, error) {
	if !ValidName(name) {
		return 0, kernerr.InvalidString
	}
	if _, ok := r.names[name]; ok {
		return 0, kernerr.ServerExists
	}
	idx, err := r.newIndex()
	if err != nil {
		return 0, err
	}
	s := &r.servers[idx]
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	sid := xous.NewSID(uint16(idx), s.gen)
	s.server = newServer(sid, name, pid, r.conf.QueueDepth, r.conf.ReplySlots)
	r.names[name] = sid
	return sid, nil
}

// newIndex finds the next unused server slot.
func (r *Registry) newIndex() (int, error) {
	n := len(r.servers) - 1
	for i := 1; i <= n; i++ {
		idx := (r.lastIndex+i-1)%n + 1
		if r.servers[idx].server == nil {
			r.lastIndex = idx
			return idx, nil
		}
	}
	log.Warningf("server slots exhausted, they may be leaking")
	return 0, kernerr.OutOfMemory
}

// Server returns the server identified by sid.
func (r *Registry) Server(sid xous.SID) (*Server, error) {
	idx := int(sid.Index())
	if idx == 0 || idx >= len(r.servers) {
		return nil, kernerr.ServerNotFound
	}
	s := r.servers[idx]
	if s.server == nil || s.gen != sid.Generation() {
		return nil, kernerr.ServerNotFound
	}
	return s.server, nil
}

// ServerMut returns the server identified by sid for modification by pid,
// which must own it.
func (r *Registry) ServerMut(pid xous.PID, sid xous.SID) (*Server, error) {
	s, err := r.Server(sid)
	if err != nil {
		return nil, err
	}
	if s.owner != pid {
		return nil, kernerr.ServerNotFound
	}
	return s, nil
}

// Lookup returns the server registered as name.
func (r *Registry) Lookup(name string) (xous.SID, bool) {
	sid, ok := r.names[name]
	return sid, ok
}

// ServerCount returns the number of registered servers.
func (r *Registry) ServerCount() int {
	return len(r.names)
}

// ServersOwnedBy returns the servers created by pid in SID order.
func (r *Registry) ServersOwnedBy(pid xous.PID) []xous.SID {
	var sids []xous.SID
	for _, s := range r.servers {
		if s.server != nil && s.server.owner == pid {
			sids = append(sids, s.server.sid)
		}
	}
	return sids
}

// ForAllServers calls f for every server in slot order.
func (r *Registry) ForAllServers(f func(s *Server)) {
	for _, s := range r.servers {
		if s.server != nil {
			f(s.server)
		}
	}
}

// Remove unregisters sid and returns the removed server. Its queue and
// reply slots are left for the caller to drain. Connections to it dangle.
func (r *Registry) Remove(sid xous.SID) (*Server, error) {
	s, err := r.Server(sid)
	if err != nil {
		return nil, err
	}
	r.servers[sid.Index()].server = nil
	delete(r.names, s.name)
	return s, nil
}

// Connect returns a connection from pid to sid. A process holds at most one
// connection per server; connecting again returns the same CID.
func (r *Registry) Connect(pid xous.PID, sid xous.SID) (xous.CID, error) {
	if _, err := r.Server(sid); err != nil {
		return 0, err
	}
	table := r.conns[pid]
	free := -1
	for i, c := range table {
		if c.refs == 0 {
			if free < 0 {
				free = i
			}
			continue
		}
		if c.sid == sid {
			table[i].refs++
			return xous.CID(i + 1), nil
		}
	}
	switch {
	case free >= 0:
		table[free] = connection{sid: sid, refs: 1}
	case len(table) < r.conf.MaxConnections:
		free = len(table)
		table = append(table, connection{sid: sid, refs: 1})
	default:
		return 0, kernerr.OutOfMemory
	}
	r.conns[pid] = table
	return xous.CID(free + 1), nil
}

func (r *Registry) connection(pid xous.PID, cid xous.CID) (*connection, error) {
	table := r.conns[pid]
	if cid == 0 || int(cid) > len(table) || table[cid-1].refs == 0 {
		return nil, kernerr.ServerNotFound
	}
	return &table[cid-1], nil
}

// Disconnect drops one reference to cid, releasing it at zero.
func (r *Registry) Disconnect(pid xous.PID, cid xous.CID) error {
	c, err := r.connection(pid, cid)
	if err != nil {
		return err
	}
	c.refs--
	if c.refs == 0 {
		*c = connection{}
	}
	return nil
}

// ServerFromCID resolves a connection of pid.
func (r *Registry) ServerFromCID(pid xous.PID, cid xous.CID) (*Server, error) {
	c, err := r.connection(pid, cid)
	if err != nil {
		return nil, err
	}
	return r.Server(c.sid)
}

// Connections returns the live CIDs of pid in ascending order.
func (r *Registry) Connections(pid xous.PID) []xous.CID {
	var cids []xous.CID
	for i, c := range r.conns[pid] {
		if c.refs > 0 {
			cids = append(cids, xous.CID(i+1))
		}
	}
	return cids
}

// DropProcess forgets the connection table of pid.
func (r *Registry) DropProcess(pid xous.PID) {
	delete(r.conns, pid)
}
