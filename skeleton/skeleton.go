// Package skeleton is the joint tree produced by the BVH reader and consumed
// by the writer, the exporters and the CLI.
//
// Joints are owned by their parent through Children. Skeleton.Joints is a
// lookup table over the same tree, keyed by alias.
package skeleton

import (
	"fmt"
	"time"

	"bvhkit/geom"
)

// DefaultFrameRate is the frame interval in milliseconds used until a file
// says otherwise.
const DefaultFrameRate = 33

// Skeleton is a tree of joints plus the clip's timing.
type Skeleton struct {
	// Joints maps alias to joint. It should contain exactly one joint named
	// RootName, the one with no parent.
	Joints   map[string]*Joint
	RootName string

	// NumFrames is the frame count declared by the file, less one once a
	// resting pose has been extracted.
	NumFrames int

	// FrameRate is the interval between frames in milliseconds.
	FrameRate int

	ScaleFactor float64
	HasResting  bool
}

// New returns an empty skeleton.
func New() *Skeleton {
	return &Skeleton{
		Joints:      make(map[string]*Joint),
		FrameRate:   DefaultFrameRate,
		ScaleFactor: 1.0,
	}
}

// AddJoint registers j under its alias.
func (s *Skeleton) AddJoint(j *Joint) {
	s.Joints[j.Alias] = j
}

// Root returns the root joint.
func (s *Skeleton) Root() (*Joint, error) {
	if s.RootName == "" {
		return nil, &LookupError{Key: "root"}
	}
	root, ok := s.Joints[s.RootName]
	if !ok {
		return nil, &LookupError{Key: fmt.Sprintf("root %q", s.RootName)}
	}
	return root, nil
}

// Joint returns the joint registered under alias.
func (s *Skeleton) Joint(alias string) (*Joint, error) {
	j, ok := s.Joints[alias]
	if !ok {
		return nil, &LookupError{Key: fmt.Sprintf("joint %q", alias)}
	}
	return j, nil
}

// Walk visits every joint reachable from the root in pre-order.
func (s *Skeleton) Walk(fn func(joint *Joint, depth int)) error {
	root, err := s.Root()
	if err != nil {
		return err
	}
	root.Walk(fn)
	return nil
}

// JointNames returns the aliases of all joints in pre-order.
func (s *Skeleton) JointNames() []string {
	var names []string
	_ = s.Walk(func(j *Joint, _ int) {
		names = append(names, j.Alias)
	})
	return names
}

// JointIndex returns the pre-order index of a joint, or -1.
func (s *Skeleton) JointIndex(alias string) int {
	for i, name := range s.JointNames() {
		if name == alias {
			return i
		}
	}
	return -1
}

// JointDepth returns how many ancestors a joint has.
func (s *Skeleton) JointDepth(alias string) (int, error) {
	j, err := s.Joint(alias)
	if err != nil {
		return 0, err
	}
	depth := 0
	for p := j.Parent; p != nil; p = p.Parent {
		depth++
	}
	return depth, nil
}

// Duration returns the playing time of the clip.
func (s *Skeleton) Duration() time.Duration {
	return time.Duration(s.NumFrames*s.FrameRate) * time.Millisecond
}

// ExtractRestingPose turns frame 0 of every joint into its resting pose.
// It fails if any joint already has one.
func (s *Skeleton) ExtractRestingPose() error {
	root, err := s.Root()
	if err != nil {
		return err
	}
	if err := root.ExtractRestingPose(geom.Identity()); err != nil {
		return fmt.Errorf("extract resting pose: %w", err)
	}
	s.HasResting = true
	s.NumFrames--
	return nil
}

// FixEndPositions fills in every missing end position.
func (s *Skeleton) FixEndPositions() error {
	root, err := s.Root()
	if err != nil {
		return err
	}
	root.FixEndPosition()
	return nil
}

// InitWorldPositions sets bind-pose world positions for the whole tree.
func (s *Skeleton) InitWorldPositions() error {
	root, err := s.Root()
	if err != nil {
		return err
	}
	root.InitWorldPosition()
	return nil
}

// SetUnitScaleFactor sets ScaleFactor to the longest root to end-effector
// chain length, or 1.0 when there is no root.
func (s *Skeleton) SetUnitScaleFactor() {
	root, err := s.Root()
	if err != nil {
		s.ScaleFactor = 1.0
		return
	}
	s.ScaleFactor = root.ComputeUnitScale(0)
}

// PoseWorldPositions sets WorldPosition for every joint as posed by the given
// frame. Unlike InitWorldPositions it applies each joint's rotation.
func (s *Skeleton) PoseWorldPositions(frame int) error {
	root, err := s.Root()
	if err != nil {
		return err
	}
	if frame < 0 || frame >= len(root.Frames) {
		return &LookupError{Key: fmt.Sprintf("frame %d", frame)}
	}
	root.poseWorldPosition(frame, geom.Identity())
	return nil
}
