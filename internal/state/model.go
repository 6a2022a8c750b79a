package state

import (
	"fmt"
	"image"
	"image/color"
)

// Stage is the phase of a single stroke's lifecycle.
type Stage uint8

const (
	Start Stage = iota
	Painting
	End
)

var stageNames = [...]string{
	Start:    "start",
	Painting: "drawing",
	End:      "end",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

func (s Stage) MarshalText() ([]byte, error) {
	if int(s) >= len(stageNames) {
		return nil, fmt.Errorf("state: unknown stage %d", uint8(s))
	}
	return []byte(stageNames[s]), nil
}

func (s *Stage) UnmarshalText(b []byte) error {
	for i, name := range stageNames {
		if name == string(b) {
			*s = Stage(i)
			return nil
		}
	}
	return fmt.Errorf("state: unknown stage %q", string(b))
}

// DrawEvent is one unit of paint protocol traffic. It is passed by value and
// never modified after creation.
type DrawEvent struct {
	Stage  Stage       `json:"stage"`
	Tool   Tool        `json:"tool"`
	Color  color.RGBA  `json:"color"`
	Point  image.Point `json:"point"`
	Text   string      `json:"text,omitempty"` // Text tool only
	Origin string      `json:"origin"`
}

// CoordinateLimit bounds both axes of a Draw Event point. Drags may leave the
// canvas, but never further than this.
const CoordinateLimit = 1 << 15

// ClampPoint limits p to [-CoordinateLimit, CoordinateLimit] on both axes.
func ClampPoint(p image.Point) image.Point {
	return image.Pt(
		min(max(p.X, -CoordinateLimit), CoordinateLimit),
		min(max(p.Y, -CoordinateLimit), CoordinateLimit),
	)
}

// Clamped returns e with its point limited by ClampPoint.
func (e DrawEvent) Clamped() DrawEvent {
	e.Point = ClampPoint(e.Point)
	return e
}

func (e DrawEvent) String() string {
	return fmt.Sprintf("%s/%s %v from %q", e.Stage, e.Tool, e.Point, e.Origin)
}

// Role of a participant within a session.
type Role uint8

const (
	Editor Role = iota
	Owner
)

func (r Role) String() string {
	if r == Owner {
		return "owner"
	}
	return "editor"
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(b []byte) error {
	switch string(b) {
	case "owner":
		*r = Owner
	case "editor", "":
		*r = Editor
	default:
		return fmt.Errorf("state: unknown role %q", string(b))
	}
	return nil
}

// Access is the approval state of a participant.
type Access uint8

const (
	AccessPending Access = iota
	AccessGranted
	AccessDenied
)

func (a Access) String() string {
	switch a {
	case AccessGranted:
		return "granted"
	case AccessDenied:
		return "denied"
	default:
		return "pending"
	}
}

// OwnerPrefix decorates the display name of the session owner.
const OwnerPrefix = "(Host) "

// OwnerName returns the decorated display name given to the session owner.
func OwnerName(name string) string {
	return OwnerPrefix + name
}

// PeerInfo is the public view of one participant.
type PeerInfo struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
}
