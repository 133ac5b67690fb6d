// Command bvhkit loads BioVision Hierarchy motion-capture files and copies,
// inspects, exports or plots them.
//
// Usage:
//
//	bvhkit copy [-z] in.bvh out.bvh
//	bvhkit extract in.bvh joint
//	bvhkit csv [-scale f] [-rot] [-pos] [-hier] in.bvh [outdir]
//	bvhkit plot [-d depth] [-z] [-frame n] [-plane xy] [-size in] in.bvh out.png
//	bvhkit plotcsv [-x col] [-y col] [-size in] in.csv out.png
//	bvhkit info [-d depth] [-z] in.bvh
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot/vg"

	"bvhkit/bvh"
	"bvhkit/export"
	"bvhkit/geom"
	"bvhkit/internal/config"
	"bvhkit/internal/log"
	"bvhkit/skeleton"
)

// errUsage marks a command line that could not be parsed. The flag package
// has already printed the details.
var errUsage = errors.New("usage")

func main() {
	log.Init(config.LogLevel())

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	err := run(os.Args[1], os.Args[2:], os.Stdout)
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		os.Exit(2)
	default:
		log.Error("command failed", "command", os.Args[1], "err", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: bvhkit <command> [flags] args")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  copy     rewrite a BVH file in canonical XYZ form")
	fmt.Fprintln(w, "  extract  print one joint's offsets and first-frame rotation")
	fmt.Fprintln(w, "  csv      export rotations, positions and hierarchy as CSV")
	fmt.Fprintln(w, "  plot     draw the skeleton to an image")
	fmt.Fprintln(w, "  plotcsv  scatter two columns of an exported CSV")
	fmt.Fprintln(w, "  info     print the joint tree and clip timing")
}

func run(command string, args []string, stdout io.Writer) error {
	switch command {
	case "copy":
		return runCopy(args)
	case "extract":
		return runExtract(args, stdout)
	case "csv":
		return runCSV(args)
	case "plot":
		return runPlot(args)
	case "plotcsv":
		return runPlotCSV(args)
	case "info":
		return runInfo(args, stdout)
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return nil
	}
	usage(os.Stderr)
	return fmt.Errorf("%w: unknown command %q", errUsage, command)
}

// parseArgs parses fs and checks the positional argument count.
func parseArgs(fs *flag.FlagSet, args []string, lo, hi int) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if n := fs.NArg(); n < lo || n > hi {
		fs.Usage()
		return fmt.Errorf("%w: %s takes %d to %d arguments, got %d", errUsage, fs.Name(), lo, hi, n)
	}
	return nil
}

// readOptions turns the shared -d and -z flags into reader options. -d only
// applies when it was given, since every depth is meaningful.
func readOptions(fs *flag.FlagSet, depth int, zero bool) []bvh.Option {
	opts := []bvh.Option{bvh.WithLogger(log.L())}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "d" {
			opts = append(opts, bvh.WithMaxDepth(depth))
		}
	})
	if zero {
		opts = append(opts, bvh.WithRestingPose())
	}
	return opts
}

func runCopy(args []string) error {
	fs := flag.NewFlagSet("copy", flag.ContinueOnError)
	zero := fs.Bool("z", config.ZeroFrame(), "treat frame 0 as the resting pose")
	if err := parseArgs(fs, args, 2, 2); err != nil {
		return err
	}
	in, out := fs.Arg(0), fs.Arg(1)

	s, err := bvh.ReadFile(in, readOptions(fs, 0, *zero)...)
	if err != nil {
		return err
	}
	if err := bvh.WriteFile(out, s); err != nil {
		return err
	}
	log.Info("copied", "in", in, "out", out, "joints", len(s.Joints), "frames", s.NumFrames)
	return nil
}

func runExtract(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	zero := fs.Bool("z", config.ZeroFrame(), "treat frame 0 as the resting pose")
	if err := parseArgs(fs, args, 2, 2); err != nil {
		return err
	}
	in, name := fs.Arg(0), fs.Arg(1)

	opts := append(readOptions(fs, 0, *zero), bvh.WithUnitScale())
	s, err := bvh.ReadFile(in, opts...)
	if err != nil {
		return err
	}

	joint, err := s.Joint(name)
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}

	resting := "Resting:     <NONE>   "
	if joint.Resting != nil {
		resting = "Resting: " + geom.FormatVec(geom.Degrees(geom.QuatToEuler(joint.Resting.RotationOrIdentity())))
	}
	first := geom.Degrees(geom.QuatToEuler(joint.Frame(0).RotationOrIdentity()))

	fmt.Fprintf(stdout, "Pos: %s WPos: %s %s Frame1: %s\n",
		geom.FormatVec(joint.Position), geom.FormatVec(joint.WorldPosition), resting, geom.FormatVec(first))
	return nil
}

func runCSV(args []string) error {
	fs := flag.NewFlagSet("csv", flag.ContinueOnError)
	scale := fs.Float64("scale", 1.0, "multiply positions and offsets by this")
	rot := fs.Bool("rot", true, "write <name>_rot.csv")
	pos := fs.Bool("pos", true, "write <name>_pos.csv")
	hier := fs.Bool("hier", true, "write <name>_hierarchy.csv")
	zero := fs.Bool("z", config.ZeroFrame(), "treat frame 0 as the resting pose")
	if err := parseArgs(fs, args, 1, 2); err != nil {
		return err
	}
	in := fs.Arg(0)
	dir := config.OutDir()
	if fs.NArg() == 2 {
		dir = fs.Arg(1)
	}

	s, err := bvh.ReadFile(in, readOptions(fs, 0, *zero)...)
	if err != nil {
		return err
	}

	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	if err := export.Bvh2Csv(s, dir, base, *scale, *rot, *pos, *hier); err != nil {
		return err
	}
	log.Info("exported", "in", in, "dir", dir)
	return nil
}

func runPlot(args []string) error {
	fs := flag.NewFlagSet("plot", flag.ContinueOnError)
	depth := fs.Int("d", 0, "max depth of child joints to load")
	zero := fs.Bool("z", config.ZeroFrame(), "treat frame 0 as the resting pose")
	frame := fs.Int("frame", -1, "pose the skeleton at this frame; -1 plots the bind pose")
	planeName := fs.String("plane", string(export.PlaneXY), "projection plane: xy, xz or zy")
	size := fs.Float64("size", config.PlotSize(), "image edge length in inches")
	if err := parseArgs(fs, args, 2, 2); err != nil {
		return err
	}
	in, out := fs.Arg(0), fs.Arg(1)

	plane, err := export.ParsePlane(*planeName)
	if err != nil {
		return err
	}

	opts := append(readOptions(fs, *depth, *zero), bvh.WithUnitScale())
	s, err := bvh.ReadFile(in, opts...)
	if err != nil {
		return err
	}
	if *frame >= 0 {
		if err := s.PoseWorldPositions(*frame); err != nil {
			return err
		}
	}

	edge := vg.Length(*size) * vg.Inch
	if err := export.PlotSkeleton(s, out, plane, edge, edge); err != nil {
		return err
	}
	log.Info("plotted", "in", in, "out", out, "plane", plane, "frame", *frame)
	return nil
}

func runPlotCSV(args []string) error {
	fs := flag.NewFlagSet("plotcsv", flag.ContinueOnError)
	x := fs.Int("x", 0, "column for the horizontal axis")
	y := fs.Int("y", 1, "column for the vertical axis")
	size := fs.Float64("size", config.PlotSize(), "image edge length in inches")
	if err := parseArgs(fs, args, 2, 2); err != nil {
		return err
	}
	in, out := fs.Arg(0), fs.Arg(1)

	edge := vg.Length(*size) * vg.Inch
	if err := export.PlotCSV(in, *x, *y, out, edge, edge); err != nil {
		return err
	}
	log.Info("plotted", "in", in, "out", out, "x", *x, "y", *y)
	return nil
}

func runInfo(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	depth := fs.Int("d", 0, "max depth of child joints to load")
	zero := fs.Bool("z", config.ZeroFrame(), "treat frame 0 as the resting pose")
	if err := parseArgs(fs, args, 1, 1); err != nil {
		return err
	}
	in := fs.Arg(0)

	opts := append(readOptions(fs, *depth, *zero), bvh.WithUnitScale())
	s, err := bvh.ReadFile(in, opts...)
	if err != nil {
		return err
	}

	err = s.Walk(func(j *skeleton.Joint, d int) {
		fmt.Fprintf(stdout, "%s%s %s\n", strings.Repeat("  ", d), j.Alias, geom.FormatVec(j.Position))
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "joints: %d\n", len(s.Joints))
	fmt.Fprintf(stdout, "frames: %d\n", s.NumFrames)
	fmt.Fprintf(stdout, "frame time: %dms\n", s.FrameRate)
	fmt.Fprintf(stdout, "duration: %s\n", s.Duration())
	fmt.Fprintf(stdout, "scale factor: %.4f\n", s.ScaleFactor)
	if s.HasResting {
		fmt.Fprintln(stdout, "resting pose: extracted")
	}
	return nil
}
