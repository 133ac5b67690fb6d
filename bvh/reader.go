// Package bvh reads and writes BioVision Hierarchy motion-capture files.
//
// The reader builds a skeleton.Skeleton from the HIERARCHY section and decodes
// every MOTION line into per-joint key frames. The writer emits a canonical
// file: XYZ position and rotation channels on the root and XYZ rotation
// channels on every other joint.
package bvh

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"bvhkit/skeleton"
)

// maxLineSize bounds a single motion line.
const maxLineSize = 16 * 1024 * 1024

// Option configures Parse, Read and ReadFile.
type Option func(*options)

type options struct {
	maxDepth   int
	limitDepth bool
	resting    bool
	unitScale  bool
	logger     *slog.Logger
}

// WithMaxDepth keeps joints deeper than n out of the tree. Their channels are
// still decoded so the remaining columns line up. The root's children are at
// depth 0.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		o.maxDepth = n
		o.limitDepth = true
	}
}

// WithRestingPose makes Read turn frame 0 into the resting pose.
func WithRestingPose() Option {
	return func(o *options) { o.resting = true }
}

// WithUnitScale makes Read compute the skeleton's scale factor.
func WithUnitScale() Option {
	return func(o *options) { o.unitScale = true }
}

// WithLogger sets the logger used for parse diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// ReadFile opens path and calls Read on it.
func ReadFile(path string, opts ...Option) (*skeleton.Skeleton, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := Read(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Read parses a BVH stream and prepares the skeleton for use: end positions
// are filled in and bind-pose world positions computed. WithRestingPose and
// WithUnitScale add the matching post-processing steps.
func Read(r io.Reader, opts ...Option) (*skeleton.Skeleton, error) {
	o := buildOptions(opts)

	s, err := parse(r, o)
	if err != nil {
		return nil, err
	}
	if err := s.FixEndPositions(); err != nil {
		return nil, err
	}
	if err := s.InitWorldPositions(); err != nil {
		return nil, err
	}
	if o.resting {
		if err := s.ExtractRestingPose(); err != nil {
			return nil, err
		}
	}
	if o.unitScale {
		s.SetUnitScaleFactor()
	}
	return s, nil
}

// Parse decodes a BVH stream without any post-processing. A stream with no
// HIERARCHY or MOTION section yields an empty skeleton.
func Parse(r io.Reader, opts ...Option) (*skeleton.Skeleton, error) {
	return parse(r, buildOptions(opts))
}

func parse(r io.Reader, o options) (*skeleton.Skeleton, error) {
	p := &parser{
		in:   newLineReader(r),
		opts: o,
		skel: skeleton.New(),
		log:  o.logger,
	}
	if err := p.run(); err != nil {
		return nil, err
	}
	return p.skel, nil
}

// lineReader hands out whitespace-separated lines and counts them.
type lineReader struct {
	scanner *bufio.Scanner
	line    int
}

func newLineReader(r io.Reader) *lineReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &lineReader{scanner: scanner}
}

// fields returns the next line split on whitespace.
func (lr *lineReader) fields() ([]string, bool) {
	if !lr.scanner.Scan() {
		return nil, false
	}
	lr.line++
	text := lr.scanner.Text()
	if lr.line == 1 {
		text = strings.TrimPrefix(text, "\ufeff")
	}
	return strings.Fields(text), true
}

// hierarchyLine returns the next non-blank line and its upper-cased tag.
func (lr *lineReader) hierarchyLine() (string, []string, bool) {
	for {
		fields, ok := lr.fields()
		if !ok {
			return "", nil, false
		}
		if len(fields) == 0 {
			continue
		}
		return strings.ToUpper(fields[0]), fields, true
	}
}

// parseContext is the state threaded through the joint recursion.
type parseContext struct {
	// offset is the column of the next declared channel.
	offset int
	// depth is -1 inside ROOT, 0 inside its children, and so on.
	depth int
}

type parser struct {
	in       *lineReader
	opts     options
	skel     *skeleton.Skeleton
	channels []*channels
	log      *slog.Logger
}

func (p *parser) run() error {
	for {
		tag, _, ok := p.in.hierarchyLine()
		if !ok {
			return p.in.scanner.Err()
		}

		if tag == "HIERARCHY" {
			next, err := p.parseHierarchy()
			if err != nil {
				return err
			}
			if next != "MOTION" && next != "" {
				return p.formatError("", fmt.Sprintf("%s before MOTION", next))
			}
			tag = next
		}

		if tag == "MOTION" {
			if err := p.parseMotion(); err != nil {
				return err
			}
		}
	}
}

// parseHierarchy reads joints until the motion section starts. It returns the
// tag that stopped it, or "" at end of file.
func (p *parser) parseHierarchy() (string, error) {
	for {
		tag, fields, ok := p.in.hierarchyLine()
		if !ok {
			return "", p.in.scanner.Err()
		}

		switch tag {
		case "ROOT":
			if len(fields) < 2 {
				return "", p.formatError("", "ROOT without a name")
			}
			p.skel.RootName = fields[1]
			ctx := &parseContext{offset: 0, depth: -1}
			if err := p.parseJoint(ctx, fields[1], nil); err != nil {
				return "", err
			}
		case "}":
			return "", p.formatError("", "unmatched }")
		case "FRAMES:", "FRAME", "MOTION":
			return tag, nil
		}
	}
}

func (p *parser) parseJoint(ctx *parseContext, name string, parent *skeleton.Joint) error {
	joint := skeleton.NewJoint(name, parent)

	registered := !p.opts.limitDepth || ctx.depth <= p.opts.maxDepth
	if registered {
		if _, taken := p.skel.Joints[joint.Alias]; taken {
			return p.formatError(name, "duplicate joint name")
		}
		p.skel.AddJoint(joint)
		if parent != nil {
			parent.AddChild(joint)
		}
	}
	p.log.Debug("parsing joint", "joint", name, "depth", ctx.depth, "registered", registered)

	tag, _, ok := p.in.hierarchyLine()
	if !ok {
		return p.eofError(name, "expected {")
	}
	if tag != "{" {
		return p.formatError(name, fmt.Sprintf("expected { got %q", tag))
	}

	declared := false
	for {
		tag, fields, ok := p.in.hierarchyLine()
		if !ok {
			ctx.depth--
			return p.eofError(name, "missing }")
		}

		switch tag {
		case "OFFSET":
			v, err := p.parseVec(name, fields)
			if err != nil {
				return err
			}
			joint.Position = v

		case "CHANNELS":
			if err := p.parseChannels(ctx, joint, fields); err != nil {
				return err
			}
			declared = true

		case "JOINT":
			if len(fields) < 2 {
				return p.formatError(name, "JOINT without a name")
			}
			ctx.depth++
			if err := p.parseJoint(ctx, fields[1], joint); err != nil {
				return err
			}

		case "END":
			if len(fields) < 2 || strings.ToUpper(fields[1]) != "SITE" {
				return p.formatError(name, fmt.Sprintf("unrecognized %q", strings.Join(fields, " ")))
			}
			if err := p.parseEndSite(joint); err != nil {
				ctx.depth--
				return err
			}

		case "}":
			// A joint without channels still gets an empty key frame per
			// motion line, so it animates as the identity.
			if !declared {
				p.channels = append(p.channels, &channels{joint: joint})
			}
			ctx.depth--
			return nil

		default:
			return p.formatError(name, fmt.Sprintf("unrecognized tag %q", fields[0]))
		}
	}
}

func (p *parser) parseChannels(ctx *parseContext, joint *skeleton.Joint, fields []string) error {
	if len(fields) < 2 {
		return p.formatError(joint.Name, "CHANNELS without a count")
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return fmt.Errorf("line %d: joint %q: channel count: %w", p.in.line, joint.Name, err)
	}
	names := fields[2:]
	if n != len(names) {
		return p.formatError(joint.Name, fmt.Sprintf("CHANNELS declares %d names but lists %d", n, len(names)))
	}

	c, err := newChannels(joint, names, ctx.offset)
	if err != nil {
		return p.formatError(joint.Name, err.Error())
	}
	ctx.offset += n
	p.channels = append(p.channels, c)
	return nil
}

func (p *parser) parseEndSite(joint *skeleton.Joint) error {
	tag, _, ok := p.in.hierarchyLine()
	if !ok {
		return p.eofError(joint.Name, "expected { after End Site")
	}
	if tag != "{" {
		return p.formatError(joint.Name, fmt.Sprintf("expected { after End Site got %q", tag))
	}

	for {
		tag, fields, ok := p.in.hierarchyLine()
		if !ok {
			return p.eofError(joint.Name, "missing } in End Site")
		}

		switch tag {
		case "OFFSET":
			v, err := p.parseVec(joint.Name, fields)
			if err != nil {
				return err
			}
			joint.EndPosition = &v
		case "}":
			return nil
		default:
			return p.formatError(joint.Name, fmt.Sprintf("unrecognized %q in End Site", fields[0]))
		}
	}
}

func (p *parser) parseVec(joint string, fields []string) (r3.Vec, error) {
	if len(fields) < 4 {
		return r3.Vec{}, p.formatError(joint, fmt.Sprintf("%s needs 3 values", fields[0]))
	}
	var xyz [3]float64
	for i := range xyz {
		f, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return r3.Vec{}, fmt.Errorf("line %d: joint %q: %w", p.in.line, joint, err)
		}
		xyz[i] = f
	}
	return r3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

func (p *parser) parseMotion() error {
	tag, fields, ok := p.in.hierarchyLine()
	if !ok {
		return p.eofError("", "expected Frames:")
	}
	if tag != "FRAMES:" || len(fields) < 2 {
		return p.formatError("", fmt.Sprintf("expected Frames: got %q", strings.Join(fields, " ")))
	}
	numFrames, err := strconv.Atoi(fields[1])
	if err != nil {
		return fmt.Errorf("line %d: frame count: %w", p.in.line, err)
	}

	tag, fields, ok = p.in.hierarchyLine()
	if !ok {
		return p.eofError("", "expected Frame Time:")
	}
	if tag != "FRAME" || len(fields) < 3 || strings.ToUpper(fields[1]) != "TIME:" {
		return p.formatError("", fmt.Sprintf("expected Frame Time: got %q", strings.Join(fields, " ")))
	}
	seconds, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return fmt.Errorf("line %d: frame time: %w", p.in.line, err)
	}
	p.skel.FrameRate = int(math.Round(seconds * 1000))

	columns := 0
	for _, c := range p.channels {
		columns += len(c.rotation) + len(c.position) + len(c.scale)
	}

	read := 0
	for {
		fields, ok := p.in.fields()
		if !ok || len(fields) == 0 {
			break
		}
		if len(fields) != columns {
			return &ConsistencyError{
				What:     fmt.Sprintf("channels on line %d", p.in.line),
				Expected: columns,
				Actual:   len(fields),
			}
		}

		data := make([]float64, len(fields))
		for i, field := range fields {
			f, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return fmt.Errorf("line %d: column %d: %w", p.in.line, i, err)
			}
			data[i] = f
		}

		for _, c := range p.channels {
			c.joint.Frames = append(c.joint.Frames, c.keyFrame(data))
		}
		read++
	}
	if err := p.in.scanner.Err(); err != nil {
		return err
	}

	if read != numFrames {
		return &ConsistencyError{What: "frame count", Expected: numFrames, Actual: read}
	}
	p.skel.NumFrames = numFrames

	p.log.Debug("decoded motion", "frames", read, "channels", columns, "frame_rate_ms", p.skel.FrameRate)
	return nil
}

func (p *parser) formatError(joint, msg string) error {
	return &FormatError{Joint: joint, Line: p.in.line, Msg: msg}
}

// eofError reports a premature end of input, or the read error that caused it.
func (p *parser) eofError(joint, msg string) error {
	if err := p.in.scanner.Err(); err != nil {
		return err
	}
	return &FormatError{Joint: joint, Msg: "unexpected end of file, " + msg}
}
