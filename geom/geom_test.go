package geom

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestDegrees(t *testing.T) {
	y := Degrees(r3.Vec{X: math.Pi, Y: 0, Z: math.Pi / 4})

	if !CompareVecs(y, r3.Vec{X: 180, Y: 0, Z: 45}, 1e-12) {
		t.Errorf("Degrees: expected (180, 0, 45), got %v", y)
	}
}

func TestDegToRad(t *testing.T) {
	tests := []struct {
		deg, want float64
	}{
		{0, 0},
		{90, math.Pi / 2},
		{180, math.Pi},
		{-45, -math.Pi / 4},
		{720, 4 * math.Pi},
	}
	for _, tt := range tests {
		if got := DegToRad(tt.deg); !scalar.EqualWithinAbs(got, tt.want, 1e-12) {
			t.Errorf("DegToRad(%v) = %v, want %v", tt.deg, got, tt.want)
		}
	}
	if got := Radians(r3.Vec{X: 30}).X; got != DegToRad(30) {
		t.Errorf("Radians and DegToRad disagree: %v != %v", got, DegToRad(30))
	}
}

func TestDegreesRadiansRoundTrip(t *testing.T) {
	for _, v := range []r3.Vec{
		{},
		{X: 1, Y: -2, Z: 3},
		{X: 179.999, Y: -89.5, Z: 360},
		{X: -1e-6, Y: 1e6, Z: 0.1234567},
	} {
		if got := Degrees(Radians(v)); !CompareVecs(got, v, 1e-9) {
			t.Errorf("Degrees(Radians(%v)) = %v", v, got)
		}
	}
}

func TestEulerRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		euler r3.Vec
	}{
		{"zero", r3.Vec{}},
		{"x90", r3.Vec{X: 90}},
		{"y90", r3.Vec{Y: 90}},
		{"z90", r3.Vec{Z: 90}},
		{"mixed", r3.Vec{X: 30, Y: 45, Z: 60}},
		{"negative", r3.Vec{X: -120, Y: -10, Z: 170}},
		{"small", r3.Vec{X: 0.001, Y: -0.002, Z: 0.003}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := EulerToQuat(Radians(tt.euler))
			got := Degrees(QuatToEuler(q))
			if !CompareVecs(got, tt.euler, 1e-6) {
				t.Errorf("expected %v, got %v", tt.euler, got)
			}
		})
	}
}

func TestEulerToQuatComposesInDeclarationOrder(t *testing.T) {
	e := Radians(r3.Vec{X: 20, Y: 30, Z: 40})
	want := quat.Mul(quat.Mul(AxisQuat('X', e.X), AxisQuat('Y', e.Y)), AxisQuat('Z', e.Z))
	if got := EulerToQuat(e); !SameRotation(got, want, 1e-12) {
		t.Errorf("expected %v, got %v", want, got)
	}

	other := quat.Mul(quat.Mul(AxisQuat('Z', e.Z), AxisQuat('Y', e.Y)), AxisQuat('X', e.X))
	if SameRotation(EulerToQuat(e), other, 1e-6) {
		t.Error("composition order should matter for multi-axis rotations")
	}
}

func TestRotateVector(t *testing.T) {
	q := AxisQuat('Y', math.Pi/2)
	got := RotateVector(r3.Vec{X: 1}, q)
	if !CompareVecs(got, r3.Vec{Z: -1}, 1e-9) {
		t.Errorf("expected (0,0,-1), got %v", got)
	}
}

func TestShortestArc(t *testing.T) {
	tests := []struct {
		name string
		a, b r3.Vec
	}{
		{"x to y", r3.Vec{X: 1}, r3.Vec{Y: 1}},
		{"y to z", r3.Vec{Y: 1}, r3.Vec{Z: 1}},
		{"oblique", r3.Unit(r3.Vec{X: 1, Y: 2, Z: 3}), r3.Unit(r3.Vec{X: -3, Y: 0.5, Z: 1})},
		{"same", r3.Vec{Z: 1}, r3.Vec{Z: 1}},
		{"anti x", r3.Vec{X: 1}, r3.Vec{X: -1}},
		{"anti z", r3.Vec{Z: 1}, r3.Vec{Z: -1}},
		{"anti oblique", r3.Unit(r3.Vec{X: 1, Y: 1, Z: 1}), r3.Unit(r3.Vec{X: -1, Y: -1, Z: -1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := ShortestArc(tt.a, tt.b)
			if n := quat.Abs(q); !scalar.EqualWithinAbs(n, 1, 1e-9) {
				t.Fatalf("expected unit quaternion, got norm %v", n)
			}
			if got := RotateVector(tt.a, q); !CompareVecs(got, tt.b, 1e-9) {
				t.Errorf("rotated %v to %v, expected %v", tt.a, got, tt.b)
			}
		})
	}
}

func TestShortestArcAntiParallelIsDeterministic(t *testing.T) {
	a := r3.Vec{Z: 1}
	q1 := ShortestArc(a, r3.Scale(-1, a))
	q2 := ShortestArc(a, r3.Scale(-1, a))
	if q1 != q2 {
		t.Errorf("expected identical results, got %v and %v", q1, q2)
	}
	if q1 != (quat.Number{Imag: 1}) {
		t.Errorf("expected 180 degrees about X, got %v", q1)
	}
}

func TestShortestArcZero(t *testing.T) {
	if q := ShortestArc(r3.Vec{}, r3.Vec{X: 1}); q != Identity() {
		t.Errorf("expected identity, got %v", q)
	}
}

func TestUpVector(t *testing.T) {
	if v, ok := UpVector("Y"); !ok || v != (r3.Vec{Y: 1}) {
		t.Errorf("UpVector(Y) = %v, %v", v, ok)
	}
	if _, ok := UpVector("w"); ok {
		t.Error("expected unknown axis to fail")
	}
}

func TestDirToQuat(t *testing.T) {
	q, err := DirToQuat(r3.Vec{Z: -5}, "y")
	if err != nil {
		t.Fatalf("DirToQuat failed: %v", err)
	}
	if !SameRotation(q, Identity(), 1e-9) {
		t.Errorf("looking down -Z should be identity, got %v", q)
	}

	if _, err := DirToQuat(r3.Vec{Y: 1}, "y"); !errors.Is(err, ErrDegenerate) {
		t.Errorf("expected ErrDegenerate for direction along up, got %v", err)
	}
	if _, err := DirToQuat(r3.Vec{}, "y"); !errors.Is(err, ErrDegenerate) {
		t.Errorf("expected ErrDegenerate for zero direction, got %v", err)
	}
	if _, err := DirToQuat(r3.Vec{X: 1}, "q"); !errors.Is(err, ErrDegenerate) {
		t.Errorf("expected ErrDegenerate for bad up axis, got %v", err)
	}
}

func TestScalars(t *testing.T) {
	if m := Magnitude(r3.Vec{X: 3, Y: 4}); m != 5 {
		t.Errorf("Magnitude: expected 5, got %v", m)
	}
	if d := Distance3D(r3.Vec{X: 1, Y: 1, Z: 1}, r3.Vec{X: 1, Y: 1, Z: 3}); d != 2 {
		t.Errorf("Distance3D: expected 2, got %v", d)
	}
	if c := Clamp(5, 2); c != 2 {
		t.Errorf("Clamp: expected 2, got %v", c)
	}
	if c := Clamp(-5, 2); c != -2 {
		t.Errorf("Clamp: expected -2, got %v", c)
	}
	if c := Clamp(1.5, 2); c != 1.5 {
		t.Errorf("Clamp: expected 1.5, got %v", c)
	}
}

func TestFormatVec(t *testing.T) {
	if s := FormatVec(r3.Vec{X: 1, Y: -0.126, Z: 3.14159}); s != "( 1.00, -0.13, 3.14 )" {
		t.Errorf("unexpected %q", s)
	}
}
