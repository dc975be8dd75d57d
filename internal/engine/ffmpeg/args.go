// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ffmpeg

import (
	"fmt"
	"strconv"

	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
	"github.com/ManuGH/mediatranscoding/internal/media/codec"
)

// DefaultVideoMIME is used when a request leaves the output codec open.
const DefaultVideoMIME = "video/avc"

var videoEncoders = map[string]string{
	"video/avc":           "libx264",
	"video/hevc":          "libx265",
	"video/x-vnd.on2.vp9": "libvpx-vp9",
	"video/av01":          "libaom-av1",
}

// EncoderFor returns the ffmpeg encoder for a destination MIME type.
func EncoderFor(mime string) (string, error) {
	if mime == "" {
		mime = DefaultVideoMIME
	}
	enc, ok := videoEncoders[mime]
	if !ok {
		return "", fmt.Errorf("video mime %q: %w", mime, codec.ErrUnsupported)
	}
	return enc, nil
}

// BuildArgs constructs the ffmpeg arguments for a request. The first video
// track is transcoded, audio is copied, and machine-readable progress goes to
// stdout.
func BuildArgs(req model.Request) ([]string, error) {
	if req.SourcePath == "" {
		return nil, fmt.Errorf("missing source path: %w", codec.ErrInvalidParameter)
	}
	if req.DestinationPath == "" {
		return nil, fmt.Errorf("missing destination path: %w", codec.ErrInvalidParameter)
	}
	if req.BitrateBps < 0 || req.Width < 0 || req.Height < 0 {
		return nil, fmt.Errorf("negative format hint: %w", codec.ErrInvalidParameter)
	}
	enc, err := EncoderFor(req.VideoMIME)
	if err != nil {
		return nil, err
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-nostats",
		"-y",
		"-i", req.SourcePath,
		"-map", "0:v:0",
		"-map", "0:a?",
		"-c:v", enc,
	}
	if req.BitrateBps > 0 {
		args = append(args, "-b:v", strconv.Itoa(int(req.BitrateBps)))
	}
	switch {
	case req.Width > 0 && req.Height > 0:
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", req.Width, req.Height))
	case req.Width > 0:
		args = append(args, "-vf", fmt.Sprintf("scale=%d:-2", req.Width))
	case req.Height > 0:
		args = append(args, "-vf", fmt.Sprintf("scale=-2:%d", req.Height))
	}
	args = append(args,
		"-c:a", "copy",
		"-progress", "pipe:1",
		req.DestinationPath,
	)
	return args, nil
}
