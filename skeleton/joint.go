package skeleton

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"bvhkit/geom"
)

// KeyFrame is one animation sample for one joint. A nil field means the joint
// declared no channel of that kind.
type KeyFrame struct {
	Position *r3.Vec
	Rotation *quat.Number
	Scale    *r3.Vec
}

// PositionOrZero returns the position or the zero vector.
func (k KeyFrame) PositionOrZero() r3.Vec {
	if k.Position == nil {
		return r3.Vec{}
	}
	return *k.Position
}

// RotationOrIdentity returns the rotation or the identity quaternion.
func (k KeyFrame) RotationOrIdentity() quat.Number {
	if k.Rotation == nil {
		return geom.Identity()
	}
	return *k.Rotation
}

// ScaleOrUnit returns the scale or (1, 1, 1).
func (k KeyFrame) ScaleOrUnit() r3.Vec {
	if k.Scale == nil {
		return r3.Vec{X: 1, Y: 1, Z: 1}
	}
	return *k.Scale
}

// Joint is a node in the skeleton tree.
type Joint struct {
	// Name is the identifier read from the file.
	Name string

	// Alias is the display name and the key in Skeleton.Joints.
	Alias string

	// Parent is nil only for the root.
	Parent *Joint

	// Position is the offset from the parent.
	Position r3.Vec

	// WorldPosition is derived; see InitWorldPosition and Skeleton.PoseWorldPositions.
	WorldPosition r3.Vec

	// EndPosition is set by an End Site block or by FixEndPosition.
	EndPosition *r3.Vec

	Frames   []KeyFrame
	Resting  *KeyFrame
	Children []*Joint
}

// NewJoint creates a joint whose alias is its name. The joint is not added to
// parent's children.
func NewJoint(name string, parent *Joint) *Joint {
	return &Joint{
		Name:   name,
		Alias:  name,
		Parent: parent,
	}
}

// AddChild appends child and points it back at j.
func (j *Joint) AddChild(child *Joint) {
	child.Parent = j
	j.Children = append(j.Children, child)
}

// Frame returns frame i, or an empty KeyFrame when the joint has no such frame.
func (j *Joint) Frame(i int) KeyFrame {
	if i < 0 || i >= len(j.Frames) {
		return KeyFrame{}
	}
	return j.Frames[i]
}

// Walk visits j and its descendants in pre-order.
func (j *Joint) Walk(fn func(joint *Joint, depth int)) {
	j.walk(fn, 0)
}

func (j *Joint) walk(fn func(*Joint, int), depth int) {
	fn(j, depth)
	for _, child := range j.Children {
		child.walk(fn, depth+1)
	}
}

// ExtractRestingPose moves frame 0 into Resting for j and every descendant.
// rotation is the inverse of the accumulated resting orientation above j.
func (j *Joint) ExtractRestingPose(rotation quat.Number) error {
	if j.Resting != nil {
		return &StateError{Joint: j.Alias, Reason: ErrRestingPresent}
	}
	if len(j.Frames) == 0 {
		return &StateError{Joint: j.Alias, Reason: ErrNoFrames}
	}

	resting := j.Frames[0]
	j.Resting = &resting
	j.Frames = append([]KeyFrame(nil), j.Frames[1:]...)

	childRot := quat.Mul(quat.Conj(resting.RotationOrIdentity()), rotation)
	if j.Parent != nil {
		j.WorldPosition = r3.Add(j.Parent.WorldPosition, geom.RotateVector(j.Position, quat.Conj(rotation)))
	} else {
		j.WorldPosition = j.Position
	}

	for _, child := range j.Children {
		if err := child.ExtractRestingPose(childRot); err != nil {
			return err
		}
	}
	return nil
}

// FixEndPosition fills in EndPosition where no End Site supplied one: the
// centroid of the children's offsets, or zero for a leaf.
func (j *Joint) FixEndPosition() {
	if j.EndPosition == nil {
		var center r3.Vec
		if len(j.Children) > 0 {
			for _, child := range j.Children {
				center = r3.Add(center, child.Position)
			}
			center = r3.Scale(1/float64(len(j.Children)), center)
		}
		j.EndPosition = &center
	}

	for _, child := range j.Children {
		child.FixEndPosition()
	}
}

// InitWorldPosition sets the bind-pose world positions of j and its
// descendants. Rotations are ignored; the root sits at the origin.
func (j *Joint) InitWorldPosition() {
	if j.Parent == nil {
		j.WorldPosition = r3.Vec{}
	} else {
		j.WorldPosition = r3.Add(j.Parent.WorldPosition, j.Position)
	}

	for _, child := range j.Children {
		child.InitWorldPosition()
	}
}

// ComputeUnitScale returns the longest chain of offset lengths from j down to
// any end effector, starting from magSum.
func (j *Joint) ComputeUnitScale(magSum float64) float64 {
	current := magSum + r3.Norm(j.Position)
	longest := current

	for _, child := range j.Children {
		longest = math.Max(longest, child.ComputeUnitScale(current))
	}
	return longest
}

// poseWorldPosition runs forward kinematics for one frame. rotation is the
// accumulated orientation of j's parent.
func (j *Joint) poseWorldPosition(frame int, rotation quat.Number) {
	kf := j.Frame(frame)
	if j.Parent == nil {
		j.WorldPosition = r3.Add(j.Position, kf.PositionOrZero())
	} else {
		j.WorldPosition = r3.Add(j.Parent.WorldPosition, geom.RotateVector(j.Position, rotation))
	}

	childRot := quat.Mul(rotation, kf.RotationOrIdentity())
	for _, child := range j.Children {
		child.poseWorldPosition(frame, childRot)
	}
}
