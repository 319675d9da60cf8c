// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package hostnet enumerates the host's network interfaces for the
// capture interface picker.
package hostnet

import (
	"fmt"
	"net"
	"strings"
)

// Interface is one live host interface as shown in the picker.
type Interface struct {
	Name  string
	Up    bool
	Addrs []string
}

// Candidates returns the host's network interfaces, loopback
// excluded, for the menu's interface selection. Addresses are
// included so the operator can tell physically similar interfaces
// apart.
func Candidates() ([]Interface, error) {
	system, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list host interfaces: %w", err)
	}
	return filter(system), nil
}

// filter drops loopback interfaces and converts to the picker type.
// Split out from Candidates so it can be tested without live
// interfaces.
func filter(system []net.Interface) []Interface {
	var result []Interface
	for _, ifc := range system {
		if ifc.Flags&net.FlagLoopback != 0 {
			continue
		}
		entry := Interface{
			Name: ifc.Name,
			Up:   ifc.Flags&net.FlagUp != 0,
		}
		if addrs, err := ifc.Addrs(); err == nil {
			for _, addr := range addrs {
				entry.Addrs = append(entry.Addrs, trimMask(addr.String()))
			}
		}
		result = append(result, entry)
	}
	return result
}

// trimMask strips the CIDR suffix for display.
func trimMask(addr string) string {
	if i := strings.IndexByte(addr, '/'); i >= 0 {
		return addr[:i]
	}
	return addr
}

// Exists reports whether name is a live host interface. Used to warn
// when a persisted configuration references an interface that has
// since disappeared.
func Exists(name string) bool {
	ifc, err := net.InterfaceByName(name)
	return err == nil && ifc != nil
}

// Label renders an interface as a single picker line, e.g.
// "eth0 (up, 192.168.1.10)".
func Label(ifc Interface) string {
	state := "down"
	if ifc.Up {
		state = "up"
	}
	if len(ifc.Addrs) == 0 {
		return fmt.Sprintf("%s (%s)", ifc.Name, state)
	}
	return fmt.Sprintf("%s (%s, %s)", ifc.Name, state, strings.Join(ifc.Addrs, ", "))
}
