package kinematics

import (
	"strings"

	"github.com/pkg/errors"
)

// Shoulder selects the arm branch of a closed-form solution.
type Shoulder int

const (
	// Left places the wrist centre behind the shoulder axis.
	Left Shoulder = iota
	// Right places the wrist centre in front of the shoulder axis.
	Right
)

// Elbow selects the elbow branch of a closed-form solution.
type Elbow int

const (
	// ElbowUp keeps the elbow above the shoulder-to-wrist line.
	ElbowUp Elbow = iota
	// ElbowDown keeps the elbow below it.
	ElbowDown
)

// Configuration picks one of the eight closed-form branches of a six-axis arm.
// The zero value is left, elbow up, no wrist flip.
type Configuration struct {
	Shoulder  Shoulder
	Elbow     Elbow
	WristFlip bool
}

// Configurations returns every branch, in left/right, up/down, no-flip/flip order.
func Configurations() []Configuration {
	var out []Configuration
	for _, s := range []Shoulder{Left, Right} {
		for _, e := range []Elbow{ElbowUp, ElbowDown} {
			for _, f := range []bool{false, true} {
				out = append(out, Configuration{Shoulder: s, Elbow: e, WristFlip: f})
			}
		}
	}
	return out
}

// Validate rejects out-of-range enumeration values.
func (c Configuration) Validate() error {
	if c.Shoulder != Left && c.Shoulder != Right {
		return errors.Wrapf(ErrConfiguration, "shoulder %d", c.Shoulder)
	}
	if c.Elbow != ElbowUp && c.Elbow != ElbowDown {
		return errors.Wrapf(ErrConfiguration, "elbow %d", c.Elbow)
	}
	return nil
}

// String renders the configuration as its letter code, e.g. "ru" or "ldf".
func (c Configuration) String() string {
	var sb strings.Builder
	if c.Shoulder == Right {
		sb.WriteByte('r')
	} else {
		sb.WriteByte('l')
	}
	if c.Elbow == ElbowDown {
		sb.WriteByte('d')
	} else {
		sb.WriteByte('u')
	}
	if c.WristFlip {
		sb.WriteByte('f')
	}
	return sb.String()
}

// ParseConfiguration reads a letter code made of l/r, u/d and optionally f/n in any order.
// Missing letters take the zero value. Only the config file and CLI surfaces use it.
func ParseConfiguration(code string) (Configuration, error) {
	var c Configuration
	var seenArm, seenElbow, seenWrist bool
	for _, r := range strings.ToLower(strings.TrimSpace(code)) {
		switch r {
		case 'l', 'r':
			if seenArm {
				return Configuration{}, errors.Wrapf(ErrConfiguration, "%q repeats the arm letter", code)
			}
			seenArm = true
			if r == 'r' {
				c.Shoulder = Right
			}
		case 'u', 'd':
			if seenElbow {
				return Configuration{}, errors.Wrapf(ErrConfiguration, "%q repeats the elbow letter", code)
			}
			seenElbow = true
			if r == 'd' {
				c.Elbow = ElbowDown
			}
		case 'f', 'n':
			if seenWrist {
				return Configuration{}, errors.Wrapf(ErrConfiguration, "%q repeats the wrist letter", code)
			}
			seenWrist = true
			c.WristFlip = r == 'f'
		default:
			return Configuration{}, errors.Wrapf(ErrConfiguration, "%q", code)
		}
	}
	return c, nil
}
