package bvh

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"bvhkit/geom"
	"bvhkit/skeleton"
)

func roundTrip(t *testing.T, s *skeleton.Skeleton) (*skeleton.Skeleton, string) {
	t.Helper()
	var buf bytes.Buffer
	if err := Write(&buf, s); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	text := buf.String()
	back, err := Read(strings.NewReader(text))
	if err != nil {
		t.Fatalf("Read() of written output error: %v\n%s", err, text)
	}
	return back, text
}

func TestWriteCanonical(t *testing.T) {
	s := skeleton.New()
	hips := skeleton.NewJoint("Hips", nil)
	leg := skeleton.NewJoint("Leg", hips)
	leg.Position = r3.Vec{Y: -1}
	leg.EndPosition = &r3.Vec{Y: -2}
	hips.AddChild(leg)
	s.AddJoint(hips)
	s.AddJoint(leg)
	s.RootName = "Hips"

	pos := r3.Vec{X: 1, Y: 2, Z: 3}
	rot := geom.AxisQuat('X', geom.DegToRad(90))
	hips.Frames = []skeleton.KeyFrame{{Position: &pos}}
	leg.Frames = []skeleton.KeyFrame{{Rotation: &rot}}
	s.NumFrames = 1

	want := "HIERARCHY\n" +
		"ROOT Hips\n" +
		"{\n" +
		"\tOFFSET 0.0000000 0.0000000 0.0000000\n" +
		"\tCHANNELS 6 Xposition Yposition Zposition Xrotation Yrotation Zrotation\n" +
		"\tJOINT Leg\n" +
		"\t{\n" +
		"\t\tOFFSET 0.0000000 -1.0000000 0.0000000\n" +
		"\t\tCHANNELS 3 Xrotation Yrotation Zrotation\n" +
		"\t\tEnd Site\n" +
		"\t\t{\n" +
		"\t\t\tOFFSET 0.0000000 -2.0000000 0.0000000\n" +
		"\t\t}\n" +
		"\t}\n" +
		"}\n" +
		"MOTION\n" +
		"Frames: 1\n" +
		"Frame Time: 0.033\n" +
		"1.0000000 2.0000000 3.0000000 0.0000000 0.0000000 0.0000000 90.0000000 0.0000000 0.0000000\n"

	var buf bytes.Buffer
	if err := Write(&buf, s); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if got := buf.String(); got != want {
		t.Errorf("Write() =\n%s\nwant\n%s", got, want)
	}
}

func TestWriteUsesAlias(t *testing.T) {
	s := readFixture(t, "simple.bvh")
	mustJoint(t, s, "LeftKnee").Alias = "l_knee"

	var buf bytes.Buffer
	if err := Write(&buf, s); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if !strings.Contains(buf.String(), "JOINT l_knee\n") {
		t.Error("output does not name the joint by its alias")
	}
}

func TestWriteNoRoot(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, skeleton.New())
	if !errors.Is(err, skeleton.ErrNotFound) {
		t.Errorf("Write() error = %v, want ErrNotFound", err)
	}

	path := filepath.Join(t.TempDir(), "out.bvh")
	if err := WriteFile(path, skeleton.New()); !errors.Is(err, skeleton.ErrNotFound) {
		t.Errorf("WriteFile() error = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("WriteFile() created %s for a skeleton with no root", path)
	}
}

func TestRoundTripXYZ(t *testing.T) {
	s := readFixture(t, "simple.bvh")
	back, _ := roundTrip(t, s)

	if back.NumFrames != s.NumFrames {
		t.Fatalf("NumFrames = %d, want %d", back.NumFrames, s.NumFrames)
	}
	if back.FrameRate != s.FrameRate {
		t.Errorf("FrameRate = %d, want %d", back.FrameRate, s.FrameRate)
	}

	for _, name := range s.JointNames() {
		orig := mustJoint(t, s, name)
		got := mustJoint(t, back, name)

		if !geom.CompareVecs(got.Position, orig.Position, 1e-6) {
			t.Errorf("%s offset = %v, want %v", name, got.Position, orig.Position)
		}
		for i := 0; i < s.NumFrames; i++ {
			want := eulerDegrees(orig.Frames[i].RotationOrIdentity())
			have := eulerDegrees(got.Frames[i].RotationOrIdentity())
			if !geom.CompareVecs(have, want, 1e-4) {
				t.Errorf("%s frame %d rotation = %v, want %v", name, i, have, want)
			}
		}
	}

	hips := mustJoint(t, back, "Hips")
	for i, want := range []r3.Vec{{X: 1, Y: 2, Z: 3}, {X: 1.5, Y: 2.5, Z: 3.5}, {X: 2, Y: 3, Z: 4}} {
		if got := hips.Frames[i].PositionOrZero(); !geom.CompareVecs(got, want, 1e-6) {
			t.Errorf("Hips frame %d position = %v, want %v", i, got, want)
		}
	}
}

func TestRoundTripReordersChannels(t *testing.T) {
	s := readFixture(t, "zxy.bvh")
	back, text := roundTrip(t, s)

	if strings.Contains(text, "Zrotation Xrotation Yrotation") {
		t.Error("output kept the ZXY channel order")
	}
	if n := strings.Count(text, jointChannels); n != 3 {
		t.Errorf("output has %d three-channel joints, want 3", n)
	}
	if n := strings.Count(text, rootChannels); n != 1 {
		t.Errorf("output has %d six-channel joints, want 1", n)
	}

	for _, name := range s.JointNames() {
		orig := mustJoint(t, s, name)
		got := mustJoint(t, back, name)

		if !geom.CompareVecs(got.Position, orig.Position, 1e-6) {
			t.Errorf("%s offset = %v, want %v", name, got.Position, orig.Position)
		}
		for i := 0; i < s.NumFrames; i++ {
			want := orig.Frames[i].RotationOrIdentity()
			have := got.Frames[i].RotationOrIdentity()
			if !geom.SameRotation(have, want, 1e-9) {
				t.Errorf("%s frame %d rotation = %v, want %v", name, i, have, want)
			}
		}
	}

	chest := mustJoint(t, back, "chest")
	if chest.EndPosition == nil || !geom.CompareVecs(*chest.EndPosition, r3.Vec{Y: 7.24, Z: 0.12}, 1e-6) {
		t.Errorf("chest end site = %v, want (0, 7.24, 0.12)", chest.EndPosition)
	}
}

func TestWriteRestingPose(t *testing.T) {
	orig := readFixture(t, "simple.bvh")
	s := readFixture(t, "simple.bvh", WithRestingPose())
	back, text := roundTrip(t, s)

	if !strings.Contains(text, "Frames: 2\n") {
		t.Error("output does not declare 2 frames")
	}
	if back.HasResting {
		t.Error("re-read skeleton reports a resting pose")
	}

	for _, name := range orig.JointNames() {
		o := mustJoint(t, orig, name)
		got := mustJoint(t, back, name)
		rest := o.Frames[0].RotationOrIdentity()

		for i := 0; i < back.NumFrames; i++ {
			want := quat.Mul(rest, o.Frames[i+1].RotationOrIdentity())
			have := got.Frames[i].RotationOrIdentity()
			if !geom.SameRotation(have, want, 1e-9) {
				t.Errorf("%s frame %d rotation = %v, want %v", name, i, have, want)
			}
		}
	}

	hipsRest := mustJoint(t, orig, "Hips").Frames[0].RotationOrIdentity()
	chestRest := mustJoint(t, orig, "Chest").Frames[0].RotationOrIdentity()

	tests := []struct {
		joint string
		want  r3.Vec
	}{
		{"Hips", r3.Vec{}},
		{"Chest", geom.RotateVector(r3.Vec{Y: 5}, hipsRest)},
		{"Neck", geom.RotateVector(r3.Vec{Y: 4}, quat.Mul(hipsRest, chestRest))},
	}
	for _, tt := range tests {
		if got := mustJoint(t, back, tt.joint).Position; !geom.CompareVecs(got, tt.want, 1e-6) {
			t.Errorf("%s offset = %v, want %v", tt.joint, got, tt.want)
		}
	}

	hips := mustJoint(t, back, "Hips")
	if got := hips.Frames[0].PositionOrZero(); !geom.CompareVecs(got, r3.Vec{X: 1.5, Y: 2.5, Z: 3.5}, 1e-6) {
		t.Errorf("Hips frame 0 position = %v, want (1.5, 2.5, 3.5)", got)
	}
}

func TestWriteDoesNotMutate(t *testing.T) {
	s := readFixture(t, "simple.bvh", WithRestingPose())

	before := make(map[string]r3.Vec)
	for name, j := range s.Joints {
		before[name] = j.Position
	}
	var buf bytes.Buffer
	if err := Write(&buf, s); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	for name, j := range s.Joints {
		if j.Position != before[name] {
			t.Errorf("%s offset changed from %v to %v", name, before[name], j.Position)
		}
	}
	if s.NumFrames != 2 {
		t.Errorf("NumFrames = %d, want 2", s.NumFrames)
	}
}

func TestWriteFile(t *testing.T) {
	s := readFixture(t, "zxy.bvh")
	path := filepath.Join(t.TempDir(), "copy.bvh")

	if err := WriteFile(path, s); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	back, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if back.NumFrames != 2 || back.FrameRate != 42 {
		t.Errorf("got %d frames at %dms, want 2 at 42ms", back.NumFrames, back.FrameRate)
	}

	if err := WriteFile(filepath.Join(t.TempDir(), "missing", "copy.bvh"), s); err == nil {
		t.Error("WriteFile() into a missing directory succeeded")
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		ms   int
		want string
	}{
		{33, "0.033"},
		{42, "0.042"},
		{8, "0.008"},
		{1000, "1.0"},
		{0, "0.0"},
	}
	for _, tt := range tests {
		if got := formatSeconds(tt.ms); got != tt.want {
			t.Errorf("formatSeconds(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}
