// Package config provides environment-backed defaults for bvhkit commands.
// Command-line flags take precedence over everything here.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Default configuration.
const (
	DefaultLogLevel  = "info"
	DefaultOutDir    = "."
	DefaultPlotSize  = 6.0 // inches
	DefaultZeroFrame = false
)

// LogLevel returns the log level from BVHKIT_LOG_LEVEL or the default.
func LogLevel() string {
	if level := os.Getenv("BVHKIT_LOG_LEVEL"); level != "" {
		return strings.ToLower(level)
	}
	return DefaultLogLevel
}

// OutDir returns the export directory from BVHKIT_OUT_DIR or the default.
func OutDir() string {
	if dir := os.Getenv("BVHKIT_OUT_DIR"); dir != "" {
		return dir
	}
	return DefaultOutDir
}

// PlotSize returns the plot edge length in inches from BVHKIT_PLOT_SIZE.
// Values that are not positive numbers fall back to the default.
func PlotSize() float64 {
	if s := os.Getenv("BVHKIT_PLOT_SIZE"); s != "" {
		if size, err := strconv.ParseFloat(s, 64); err == nil && size > 0 {
			return size
		}
	}
	return DefaultPlotSize
}

// ZeroFrame reports whether BVHKIT_ZERO_FRAME asks for resting-pose
// extraction on load.
func ZeroFrame() bool {
	if s := os.Getenv("BVHKIT_ZERO_FRAME"); s != "" {
		if zero, err := strconv.ParseBool(s); err == nil {
			return zero
		}
	}
	return DefaultZeroFrame
}
