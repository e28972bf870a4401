package session

// Mode selects where lorebooks are persisted.
type Mode int

const (
	// ModeLocal keeps lorebooks in the device key-value namespace.
	ModeLocal Mode = iota
	// ModeRemote keeps lorebooks on the lorebook service.
	ModeRemote
)

func (m Mode) String() string {
	if m == ModeRemote {
		return "remote"
	}
	return "local"
}

// ModeFor derives the persistence mode from the login state.
func ModeFor(loggedIn bool) Mode {
	if loggedIn {
		return ModeRemote
	}
	return ModeLocal
}
