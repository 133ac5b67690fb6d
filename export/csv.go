// Package export turns a skeleton into CSV tables and static plots.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"bvhkit/geom"
	"bvhkit/internal/log"
	"bvhkit/skeleton"
)

// WriteJointRotations writes one row per frame: the time in seconds followed
// by the XYZ Euler angles in degrees of every joint, in pre-order. A resting
// pose is folded back in, matching what the BVH writer emits.
func WriteJointRotations(s *skeleton.Skeleton, filePath string) error {
	startTime := time.Now()

	var joints []*skeleton.Joint
	if err := s.Walk(func(j *skeleton.Joint, _ int) { joints = append(joints, j) }); err != nil {
		return err
	}

	header := []string{"time"}
	for _, j := range joints {
		header = append(header, axisColumns(j.Alias)...)
	}

	data := make([][]float64, s.NumFrames)
	for i := range data {
		row := []float64{frameTime(s, i)}
		for _, j := range joints {
			e := geom.Degrees(geom.QuatToEuler(rotation(j, i)))
			row = append(row, e.X, e.Y, e.Z)
		}
		data[i] = row
	}

	log.Debug("rotations", "path", filePath, "elapsed", time.Since(startTime))
	return writeTable(filePath, header, data)
}

// WriteJointPositions writes one row per frame: the time in seconds followed
// by the posed world position of every joint, multiplied by scale. The
// skeleton's world positions are restored afterwards.
func WriteJointPositions(s *skeleton.Skeleton, filePath string, scale float64) error {
	startTime := time.Now()

	var joints []*skeleton.Joint
	if err := s.Walk(func(j *skeleton.Joint, _ int) { joints = append(joints, j) }); err != nil {
		return err
	}

	saved := make([]r3.Vec, len(joints))
	for i, j := range joints {
		saved[i] = j.WorldPosition
	}
	defer func() {
		for i, j := range joints {
			j.WorldPosition = saved[i]
		}
	}()

	header := []string{"time"}
	for _, j := range joints {
		header = append(header, axisColumns(j.Alias)...)
	}

	root := joints[0]
	frames := min(s.NumFrames, len(root.Frames))
	data := make([][]float64, frames)
	for i := range data {
		if err := s.PoseWorldPositions(i); err != nil {
			return err
		}
		row := []float64{frameTime(s, i)}
		for _, j := range joints {
			p := r3.Scale(scale, j.WorldPosition)
			row = append(row, p.X, p.Y, p.Z)
		}
		data[i] = row
	}

	log.Debug("positions", "path", filePath, "elapsed", time.Since(startTime))
	return writeTable(filePath, header, data)
}

// WriteJointHierarchy writes joint,parent,offset.x,offset.y,offset.z with
// offsets multiplied by scale. The root's parent column is empty.
func WriteJointHierarchy(s *skeleton.Skeleton, filePath string, scale float64) error {
	startTime := time.Now()

	var data [][]string
	err := s.Walk(func(j *skeleton.Joint, _ int) {
		parentName := ""
		if j.Parent != nil {
			parentName = j.Parent.Alias
		}
		offset := r3.Scale(scale, j.Position)
		data = append(data, []string{
			j.Alias,
			parentName,
			fmt.Sprintf("%f", zeroed(offset.X)),
			fmt.Sprintf("%f", zeroed(offset.Y)),
			fmt.Sprintf("%f", zeroed(offset.Z)),
		})
	})
	if err != nil {
		return err
	}

	log.Debug("hierarchy", "path", filePath, "elapsed", time.Since(startTime))

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("could not write to file %s: %w", filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "joint,parent,offset.x,offset.y,offset.z\n")
	for _, row := range data {
		fmt.Fprintf(writer, "%s\n", strings.Join(row, ","))
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	return file.Close()
}

// Bvh2Csv writes the requested tables into dir as <base>_rot.csv,
// <base>_pos.csv and <base>_hierarchy.csv. Every requested table is
// attempted; the returned error joins all failures.
func Bvh2Csv(s *skeleton.Skeleton, dir, base string, scale float64, exportRotation, exportPosition, exportHierarchy bool) error {
	var errs []error

	if exportPosition {
		errs = append(errs, WriteJointPositions(s, filepath.Join(dir, base+"_pos.csv"), scale))
	}
	if exportRotation {
		errs = append(errs, WriteJointRotations(s, filepath.Join(dir, base+"_rot.csv")))
	}
	if exportHierarchy {
		errs = append(errs, WriteJointHierarchy(s, filepath.Join(dir, base+"_hierarchy.csv"), scale))
	}

	return errors.Join(errs...)
}

func writeTable(filePath string, header []string, data [][]float64) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("could not write to file %s: %w", filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "%s\n", strings.Join(header, ","))
	for _, row := range data {
		for j, v := range row {
			if j > 0 {
				writer.WriteByte(',')
			}
			fmt.Fprintf(writer, "%.5f", zeroed(v))
		}
		writer.WriteByte('\n')
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	return file.Close()
}

func axisColumns(alias string) []string {
	return []string{alias + ".x", alias + ".y", alias + ".z"}
}

func frameTime(s *skeleton.Skeleton, frame int) float64 {
	return float64(frame*s.FrameRate) / 1000
}

// rotation is the joint's rotation at frame with any resting pose applied.
func rotation(j *skeleton.Joint, frame int) quat.Number {
	rot := j.Frame(frame).RotationOrIdentity()
	if j.Resting != nil {
		rot = quat.Mul(j.Resting.RotationOrIdentity(), rot)
	}
	return rot
}

// zeroed drops the sign of values too small to print.
func zeroed(f float64) float64 {
	if f > -5e-7 && f < 5e-7 {
		return 0
	}
	return f
}
