package simulation

import (
	"strings"
)

// Key is a control held by a player.
type Key uint8

const (
	KeyThrust Key = iota
	KeyReverse
	KeyStrafeLeft
	KeyStrafeRight
	KeyTurnLeft
	KeyTurnRight
	KeyFire
	KeyAim
	KeyNewBoid
	keyCount
)

var keyNames = [keyCount]string{
	KeyThrust:      "thrust",
	KeyReverse:     "reverse",
	KeyStrafeLeft:  "strafe_left",
	KeyStrafeRight: "strafe_right",
	KeyTurnLeft:    "turn_left",
	KeyTurnRight:   "turn_right",
	KeyFire:        "fire",
	KeyAim:         "aim",
	KeyNewBoid:     "new_boid",
}

func (k Key) String() string {
	if k >= keyCount {
		return "unknown"
	}
	return keyNames[k]
}

// ParseKey returns the key with the given name.
func ParseKey(name string) (Key, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range keyNames {
		if n == name {
			return Key(k), true
		}
	}
	return 0, false
}

// Keys is the set of keys currently held.
type Keys uint16

// AllKeys is the set of every known key.
const AllKeys Keys = 1<<keyCount - 1

// ParseKeys builds a key set from key names. Unknown names are skipped.
func ParseKeys(names []string) Keys {
	var keys Keys
	for _, n := range names {
		if k, ok := ParseKey(n); ok {
			keys = keys.With(k)
		}
	}
	return keys
}

func (ks Keys) Has(k Key) bool {
	return ks&(1<<k) != 0
}

func (ks Keys) With(k Key) Keys {
	return ks | 1<<k
}

func (ks Keys) Without(k Key) Keys {
	return ks &^ (1 << k)
}

// Names returns the names of the held keys.
func (ks Keys) Names() []string {
	var names []string
	for k := Key(0); k < keyCount; k++ {
		if ks.Has(k) {
			names = append(names, k.String())
		}
	}
	return names
}

func (ks Keys) axis(k Key) float64 {
	if ks.Has(k) {
		return 1
	}
	return 0
}
