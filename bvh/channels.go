package bvh

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"bvhkit/geom"
	"bvhkit/skeleton"
)

// axisColumn ties one axis of one channel kind to a column of a motion line.
type axisColumn struct {
	axis   byte
	column int
}

// channels records which motion-line columns belong to a joint. Each list is
// kept in declaration order. It only lives for the duration of a parse.
type channels struct {
	joint    *skeleton.Joint
	rotation []axisColumn
	position []axisColumn
	scale    []axisColumn
}

// newChannels parses the names of a CHANNELS line. offset is the column of the
// first name.
func newChannels(joint *skeleton.Joint, names []string, offset int) (*channels, error) {
	c := &channels{joint: joint}

	for index, name := range names {
		field := strings.ToUpper(name)
		if len(field) < 2 || !strings.ContainsRune("XYZ", rune(field[0])) {
			return nil, fmt.Errorf("unrecognized channel %q", name)
		}
		ac := axisColumn{axis: field[0], column: offset + index}

		switch field[1:] {
		case "ROTATION":
			c.rotation = append(c.rotation, ac)
		case "POSITION":
			c.position = append(c.position, ac)
		case "SCALE":
			c.scale = append(c.scale, ac)
		default:
			return nil, fmt.Errorf("unrecognized channel %q", name)
		}
	}

	return c, nil
}

// keyFrame decodes this joint's columns out of one motion line.
func (c *channels) keyFrame(data []float64) skeleton.KeyFrame {
	var kf skeleton.KeyFrame

	if len(c.rotation) > 0 {
		q := extractRotation(c.rotation, data)
		kf.Rotation = &q
	}
	if len(c.position) > 0 {
		v := extractVector(c.position, data, 0.0)
		kf.Position = &v
	}
	if len(c.scale) > 0 {
		v := extractVector(c.scale, data, 1.0)
		kf.Scale = &v
	}
	return kf
}

// extractVector reads the listed columns into an XYZ vector. Axes that were
// not declared get base.
func extractVector(cols []axisColumn, data []float64, base float64) r3.Vec {
	v := r3.Vec{X: base, Y: base, Z: base}
	for _, ac := range cols {
		switch ac.axis {
		case 'X':
			v.X = data[ac.column]
		case 'Y':
			v.Y = data[ac.column]
		case 'Z':
			v.Z = data[ac.column]
		}
	}
	return v
}

// extractRotation composes one elementary rotation per listed column, in the
// order the columns were declared. The values are degrees.
func extractRotation(cols []axisColumn, data []float64) quat.Number {
	q := geom.Identity()
	for _, ac := range cols {
		q = quat.Mul(q, geom.AxisQuat(ac.axis, geom.DegToRad(data[ac.column])))
	}
	return q
}
