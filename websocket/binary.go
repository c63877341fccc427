package websocket

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/swarm/geom"
	"github.com/aukilabs/swarm/simulation"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the binary snapshot encoding. The layout follows the
// protobuf wire format so that viewers can decode it with any protobuf
// runtime:
//
//	message Vec2     { double x = 1; double y = 2; }
//	message Rect     { Vec2 position = 1; Vec2 size = 2; }
//	message Sprite   { Vec2 position = 1; double heading = 2; }
//	message Blast    { Vec2 position = 1; double radius = 2; }
//	message Snapshot {
//	  uint64 tick = 1; Rect view = 2; Sprite ship = 3;
//	  repeated Sprite boids = 4; repeated Vec2 stars = 5;
//	  repeated Sprite shots = 6; repeated Blast explosions = 7;
//	  uint32 remaining = 8; uint32 capacity = 9; bool paused = 10;
//	}
const (
	fieldVec2X = 1
	fieldVec2Y = 2

	fieldRectPosition = 1
	fieldRectSize     = 2

	fieldSpritePosition = 1
	fieldSpriteHeading  = 2

	fieldBlastPosition = 1
	fieldBlastRadius   = 2

	fieldSnapshotTick       = 1
	fieldSnapshotView       = 2
	fieldSnapshotShip       = 3
	fieldSnapshotBoids      = 4
	fieldSnapshotStars      = 5
	fieldSnapshotShots      = 6
	fieldSnapshotExplosions = 7
	fieldSnapshotRemaining  = 8
	fieldSnapshotCapacity   = 9
	fieldSnapshotPaused     = 10
)

// MarshalSnapshot encodes s with the binary snapshot encoding.
func MarshalSnapshot(s simulation.Snapshot) []byte {
	size := 64 + 32*(len(s.Boids)+len(s.Stars)+len(s.Shots)+len(s.Explosions))
	b := make([]byte, 0, size)

	b = protowire.AppendTag(b, fieldSnapshotTick, protowire.VarintType)
	b = protowire.AppendVarint(b, s.Tick)
	b = appendMessage(b, fieldSnapshotView, appendRect(nil, s.View))
	b = appendMessage(b, fieldSnapshotShip, appendSprite(nil, s.Ship))

	var scratch []byte
	for _, boid := range s.Boids {
		scratch = appendSprite(scratch[:0], boid)
		b = appendMessage(b, fieldSnapshotBoids, scratch)
	}
	for _, star := range s.Stars {
		scratch = appendVec2(scratch[:0], star)
		b = appendMessage(b, fieldSnapshotStars, scratch)
	}
	for _, shot := range s.Shots {
		scratch = appendSprite(scratch[:0], shot)
		b = appendMessage(b, fieldSnapshotShots, scratch)
	}
	for _, blast := range s.Explosions {
		scratch = appendBlast(scratch[:0], blast)
		b = appendMessage(b, fieldSnapshotExplosions, scratch)
	}

	b = protowire.AppendTag(b, fieldSnapshotRemaining, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.Remaining))
	b = protowire.AppendTag(b, fieldSnapshotCapacity, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.Capacity))
	b = protowire.AppendTag(b, fieldSnapshotPaused, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(s.Paused))
	return b
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendVec2(b []byte, v geom.Vec2) []byte {
	b = appendDouble(b, fieldVec2X, v.X)
	return appendDouble(b, fieldVec2Y, v.Y)
}

func appendRect(b []byte, r geom.Rect) []byte {
	b = appendMessage(b, fieldRectPosition, appendVec2(nil, r.Position))
	return appendMessage(b, fieldRectSize, appendVec2(nil, r.Size))
}

func appendSprite(b []byte, s simulation.Sprite) []byte {
	b = appendMessage(b, fieldSpritePosition, appendVec2(nil, s.Position))
	return appendDouble(b, fieldSpriteHeading, s.Heading)
}

func appendBlast(b []byte, bl simulation.Blast) []byte {
	b = appendMessage(b, fieldBlastPosition, appendVec2(nil, bl.Position))
	return appendDouble(b, fieldBlastRadius, bl.Radius)
}

// UnmarshalSnapshot decodes a snapshot encoded with MarshalSnapshot. Unknown
// fields are skipped.
func UnmarshalSnapshot(b []byte) (simulation.Snapshot, error) {
	var s simulation.Snapshot

	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch {
		case num == fieldSnapshotTick && typ == protowire.VarintType:
			tick, n := protowire.ConsumeVarint(v)
			s.Tick = tick
			return n, nil

		case num == fieldSnapshotRemaining && typ == protowire.VarintType:
			remaining, n := protowire.ConsumeVarint(v)
			s.Remaining = int(remaining)
			return n, nil

		case num == fieldSnapshotCapacity && typ == protowire.VarintType:
			capacity, n := protowire.ConsumeVarint(v)
			s.Capacity = int(capacity)
			return n, nil

		case num == fieldSnapshotPaused && typ == protowire.VarintType:
			paused, n := protowire.ConsumeVarint(v)
			s.Paused = protowire.DecodeBool(paused)
			return n, nil

		case typ == protowire.BytesType:
			msg, n := protowire.ConsumeBytes(v)
			if n < 0 {
				return n, nil
			}
			return n, decodeSnapshotMessage(&s, num, msg)

		default:
			return protowire.ConsumeFieldValue(num, typ, v), nil
		}
	})
	if err != nil {
		return simulation.Snapshot{}, errors.New("decoding binary snapshot failed").
			WithType(ErrTypeMsgDecode).
			Wrap(err)
	}
	return s, nil
}

func decodeSnapshotMessage(s *simulation.Snapshot, num protowire.Number, msg []byte) error {
	switch num {
	case fieldSnapshotView:
		view, err := decodeRect(msg)
		s.View = view
		return err

	case fieldSnapshotShip:
		ship, err := decodeSprite(msg, fieldSpriteHeading)
		s.Ship = ship
		return err

	case fieldSnapshotBoids:
		boid, err := decodeSprite(msg, fieldSpriteHeading)
		s.Boids = append(s.Boids, boid)
		return err

	case fieldSnapshotStars:
		star, err := decodeVec2(msg)
		s.Stars = append(s.Stars, star)
		return err

	case fieldSnapshotShots:
		shot, err := decodeSprite(msg, fieldSpriteHeading)
		s.Shots = append(s.Shots, shot)
		return err

	case fieldSnapshotExplosions:
		sprite, err := decodeSprite(msg, fieldBlastRadius)
		s.Explosions = append(s.Explosions, simulation.Blast{
			Position: sprite.Position,
			Radius:   sprite.Heading,
		})
		return err

	default:
		return nil
	}
}

func decodeVec2(b []byte) (geom.Vec2, error) {
	var v geom.Vec2

	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.Fixed64Type {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}

		bits, n := protowire.ConsumeFixed64(b)
		switch num {
		case fieldVec2X:
			v.X = math.Float64frombits(bits)
		case fieldVec2Y:
			v.Y = math.Float64frombits(bits)
		}
		return n, nil
	})
	return v, err
}

func decodeRect(b []byte) (geom.Rect, error) {
	var r geom.Rect

	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}

		msg, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}

		v, err := decodeVec2(msg)
		switch num {
		case fieldRectPosition:
			r.Position = v
		case fieldRectSize:
			r.Size = v
		}
		return n, err
	})
	return r, err
}

// decodeSprite decodes a message made of a position and a double stored in
// the given field.
func decodeSprite(b []byte, scalarField protowire.Number) (simulation.Sprite, error) {
	var s simulation.Sprite

	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldSpritePosition && typ == protowire.BytesType:
			msg, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			pos, err := decodeVec2(msg)
			s.Position = pos
			return n, err

		case num == scalarField && typ == protowire.Fixed64Type:
			bits, n := protowire.ConsumeFixed64(b)
			s.Heading = math.Float64frombits(bits)
			return n, nil

		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
	return s, err
}

// consumeFields calls f for every field of the message in b. f returns the
// number of bytes it consumed after the tag, or a negative protowire error
// code.
func consumeFields(b []byte, f func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		n, err := f(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}
