package export

import (
	"bufio"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"bvhkit/skeleton"
)

// Plane is the projection used by PlotSkeleton. The first letter is the
// horizontal axis.
type Plane string

const (
	PlaneXY Plane = "xy"
	PlaneXZ Plane = "xz"
	PlaneZY Plane = "zy"
)

// ParsePlane accepts xy, xz or zy in either case.
func ParsePlane(s string) (Plane, error) {
	switch p := Plane(strings.ToLower(s)); p {
	case PlaneXY, PlaneXZ, PlaneZY:
		return p, nil
	}
	return "", fmt.Errorf("unknown plane %q, want xy, xz or zy", s)
}

func (p Plane) project(v r3.Vec) plotter.XY {
	switch p {
	case PlaneXZ:
		return plotter.XY{X: v.X, Y: v.Z}
	case PlaneZY:
		return plotter.XY{X: v.Z, Y: v.Y}
	default:
		return plotter.XY{X: v.X, Y: v.Y}
	}
}

var (
	boneColor  = color.RGBA{R: 80, G: 80, B: 80, A: 255}
	jointColor = color.RGBA{R: 200, G: 40, B: 40, A: 255}
)

// PlotSkeleton draws the skeleton's current world positions, divided by its
// ScaleFactor, projected onto plane. Call PoseWorldPositions first to plot a
// particular frame. The image format follows the extension of filePath.
func PlotSkeleton(s *skeleton.Skeleton, filePath string, plane Plane, width, height vg.Length) error {
	if _, err := ParsePlane(string(plane)); err != nil {
		return err
	}

	scale := s.ScaleFactor
	if scale == 0 {
		scale = 1
	}

	var (
		joints plotter.XYs
		names  []string
		bones  []plotter.XYs
	)
	err := s.Walk(func(j *skeleton.Joint, _ int) {
		from := plane.project(r3.Scale(1/scale, j.WorldPosition))
		joints = append(joints, from)
		names = append(names, j.Alias)
		for _, child := range j.Children {
			to := plane.project(r3.Scale(1/scale, child.WorldPosition))
			bones = append(bones, plotter.XYs{from, to})
		}
	})
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = s.RootName
	p.X.Label.Text = string(plane[0])
	p.Y.Label.Text = string(plane[1])

	for _, bone := range bones {
		l, err := plotter.NewLine(bone)
		if err != nil {
			return err
		}
		l.LineStyle.Width = vg.Points(2)
		l.LineStyle.Color = boneColor
		p.Add(l)
	}

	sc, err := plotter.NewScatter(joints)
	if err != nil {
		return err
	}
	sc.GlyphStyle.Radius = vg.Points(3)
	sc.GlyphStyle.Color = jointColor
	p.Add(sc)

	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: joints, Labels: names})
	if err != nil {
		return err
	}
	p.Add(labels)

	return p.Save(width, height, filePath)
}

// PlotCSV scatters two columns of a CSV written by this package against each
// other. Columns are zero-based; the header row names the axes.
func PlotCSV(filePath string, xColumn, yColumn int, outPath string, width, height vg.Length) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return err
		}
		return fmt.Errorf("%s: empty file", filePath)
	}
	header := strings.Split(scanner.Text(), ",")
	if xColumn < 0 || xColumn >= len(header) || yColumn < 0 || yColumn >= len(header) {
		return fmt.Errorf("%s: columns %d and %d not in %d-column header", filePath, xColumn, yColumn, len(header))
	}

	var pts plotter.XYs
	for line := 2; scanner.Scan(); line++ {
		row := strings.Split(scanner.Text(), ",")
		if len(row) != len(header) {
			return fmt.Errorf("%s: line %d has %d columns, want %d", filePath, line, len(row), len(header))
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(row[xColumn]), 64)
		if err != nil {
			return fmt.Errorf("%s: line %d: %w", filePath, line, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(row[yColumn]), 64)
		if err != nil {
			return fmt.Errorf("%s: line %d: %w", filePath, line, err)
		}
		pts = append(pts, plotter.XY{X: x, Y: y})
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	p := plot.New()
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	p.Add(s)

	p.X.Label.Text = header[xColumn]
	p.Y.Label.Text = header[yColumn]

	return p.Save(width, height, outPath)
}
