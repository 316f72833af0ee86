// Package frame wraps the external decoding collaborators:
// rendering a single frame out of a binary media source and
// probing stream metadata. Both shell out to ffmpeg tooling
// and are treated as opaque, possibly slow, possibly failing.
package frame

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ndanilov/cutroom/internal/models"
)

// Decoder renders an encoded image from a binary media
// source at a given time position and target size.
type Decoder interface {
	DecodeFrame(ctx context.Context, src models.Blob, position float64, width, height int) ([]byte, error)
}

// FFmpeg implements Decoder by invoking the ffmpeg binary.
type FFmpeg struct {
	tmpDir string
}

func NewFFmpeg(tmpDir string) *FFmpeg {
	return &FFmpeg{tmpDir: tmpDir}
}

func (f *FFmpeg) DecodeFrame(ctx context.Context, src models.Blob, position float64, width, height int) ([]byte, error) {
	const op = "frame.FFmpeg.DecodeFrame"

	tmpFile, err := os.CreateTemp(f.tmpDir, "frame-*")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	tmpName := tmpFile.Name()
	defer os.Remove(tmpName)

	if _, err := tmpFile.Write(src.Data); err != nil {
		tmpFile.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cmd := exec.CommandContext(
		ctx,
		"ffmpeg", //								call ffmpeg
		"-loglevel", "error", //					set loglevel
		"-ss", strconv.FormatFloat(position, 'f', 3, 64), //	seek to position
		"-i", tmpName, //							target file
		"-frames:v", "1", //						single frame
		"-vf", fmt.Sprintf("scale=%d:%d", width, height), //	target size
		"-f", "image2", //							encoded image
		"-c:v", "mjpeg",
		"pipe:1", //								write to stdout
	)

	stdout, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return stdout, nil
}

// Meta holds stream parameters derived on ingest.
type Meta struct {
	Duration float64
	Width    int
	Height   int
}

// Probe extracts stream metadata from a media file.
func Probe(file string) (Meta, error) {
	const op = "frame.Probe"

	var meta Meta

	durationStr, err := probeEntry(file, "duration")
	if err != nil {
		return Meta{}, fmt.Errorf("%s: %w", op, err)
	}
	if durationStr != "" && durationStr != "N/A" {
		if meta.Duration, err = strconv.ParseFloat(firstLine(durationStr), 64); err != nil {
			return Meta{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	for _, par := range []struct {
		name string
		dst  *int
	}{
		{"width", &meta.Width},
		{"height", &meta.Height},
	} {
		s, err := probeEntry(file, par.name)
		if err != nil {
			return Meta{}, fmt.Errorf("%s: %w", op, err)
		}
		if s == "" || s == "N/A" {
			continue
		}
		if *par.dst, err = strconv.Atoi(firstLine(s)); err != nil {
			return Meta{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	return meta, nil
}

// probeEntry extracts a single stream parameter.
func probeEntry(file, par string) (string, error) {
	cmd := exec.Command(
		"ffprobe",            //						call ffprobe
		"-loglevel", "error", //						set loglevel
		"-show_entries", "stream="+par, // 				set parameter to write
		"-of", "default=noprint_wrappers=1:nokey=1", //	write only the result (without key)
		file, //										target file
	)

	stdout, err := cmd.Output()
	if err != nil {
		return "", err
	}

	return strings.Trim(string(stdout), "\n"), nil
}

// audio-only probes report one line per stream, keep the first.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
