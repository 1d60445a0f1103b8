package snapshot

import (
	"fmt"
	"strconv"
)

// Location describes where a dataset lives. An empty Host means this machine.
type Location struct {
	Host         string
	Port         int
	User         string
	IdentityFile string
	Dataset      string
}

// Remote reports whether reaching the location needs a remote shell.
func (l Location) Remote() bool {
	return l.Host != ""
}

// Address renders the ssh destination, e.g. "root@backup".
func (l Location) Address() string {
	if l.User == "" {
		return l.Host
	}
	return l.User + "@" + l.Host
}

func (l Location) String() string {
	if !l.Remote() {
		return "local:" + l.Dataset
	}
	addr := l.Address()
	if l.Port != 0 {
		addr += ":" + strconv.Itoa(l.Port)
	}
	return fmt.Sprintf("%s/%s", addr, l.Dataset)
}

// Destination is anything that can be replicated to.
type Destination interface {
	Location() Location
}
