package bvh

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"bvhkit/geom"
	"bvhkit/skeleton"
)

const (
	rootChannels  = "CHANNELS 6 Xposition Yposition Zposition Xrotation Yrotation Zrotation"
	jointChannels = "CHANNELS 3 Xrotation Yrotation Zrotation"
)

// WriteFile writes s to path in canonical form.
func WriteFile(path string, s *skeleton.Skeleton) (err error) {
	if _, err := s.Root(); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	return Write(file, s)
}

// Write emits s in canonical form. Joints are named by alias. When a joint
// carries a resting pose, it is folded back into the offsets below it and
// into every motion rotation, so the output has no separate resting frame.
func Write(w io.Writer, s *skeleton.Skeleton) error {
	root, err := s.Root()
	if err != nil {
		return err
	}

	// bufio.Writer keeps the first write error and Flush reports it.
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "HIERARCHY")
	writeJoint(bw, root, geom.Identity(), 0)

	fmt.Fprintln(bw, "MOTION")
	fmt.Fprintf(bw, "Frames: %d\n", s.NumFrames)
	fmt.Fprintf(bw, "Frame Time: %s\n", formatSeconds(s.FrameRate))

	for i := 0; i < s.NumFrames; i++ {
		bw.WriteString(vecToStr(root.Frame(i).PositionOrZero()))
		writeRotations(bw, root, i)
		bw.WriteByte('\n')
	}

	return bw.Flush()
}

// writeJoint writes one joint block. rotation is the inverse of the resting
// orientation accumulated above j.
func writeJoint(w *bufio.Writer, j *skeleton.Joint, rotation quat.Number, indent int) {
	outer := strings.Repeat("\t", indent)
	inner := outer + "\t"

	tag, channels := "JOINT", jointChannels
	if indent == 0 {
		tag, channels = "ROOT", rootChannels
	}

	offset := j.Position
	childRot := rotation
	if j.Resting != nil {
		offset = geom.RotateVector(j.Position, quat.Conj(rotation))
		childRot = quat.Mul(quat.Conj(j.Resting.RotationOrIdentity()), rotation)
	}

	fmt.Fprintf(w, "%s%s %s\n", outer, tag, j.Alias)
	fmt.Fprintf(w, "%s{\n", outer)
	fmt.Fprintf(w, "%sOFFSET %s\n", inner, vecToStr(offset))
	fmt.Fprintf(w, "%s%s\n", inner, channels)

	if len(j.Children) > 0 {
		for _, child := range j.Children {
			writeJoint(w, child, childRot, indent+1)
		}
	} else {
		var end r3.Vec
		if j.EndPosition != nil {
			end = *j.EndPosition
		}
		fmt.Fprintf(w, "%sEnd Site\n", inner)
		fmt.Fprintf(w, "%s{\n", inner)
		fmt.Fprintf(w, "%s\tOFFSET %s\n", inner, vecToStr(end))
		fmt.Fprintf(w, "%s}\n", inner)
	}

	fmt.Fprintf(w, "%s}\n", outer)
}

// writeRotations appends the rotation columns of j and its descendants for one
// frame, in the order writeJoint declared them.
func writeRotations(w *bufio.Writer, j *skeleton.Joint, frame int) {
	rot := j.Frame(frame).RotationOrIdentity()
	if j.Resting != nil {
		rot = quat.Mul(j.Resting.RotationOrIdentity(), rot)
	}
	w.WriteByte(' ')
	w.WriteString(quatToStr(rot))

	for _, child := range j.Children {
		writeRotations(w, child, frame)
	}
}

func vecToStr(v r3.Vec) string {
	return fmt.Sprintf("%.7f %.7f %.7f", noNegZero(v.X), noNegZero(v.Y), noNegZero(v.Z))
}

func quatToStr(q quat.Number) string {
	return vecToStr(geom.Degrees(geom.QuatToEuler(q)))
}

// noNegZero keeps values that print as zero from printing as -0.0000000.
func noNegZero(f float64) float64 {
	if math.Abs(f) < 5e-8 {
		return 0
	}
	return f
}

// formatSeconds renders a millisecond interval as seconds, always with a
// decimal point.
func formatSeconds(ms int) string {
	s := strconv.FormatFloat(float64(ms)/1000, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
