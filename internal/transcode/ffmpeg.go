// Package transcode remuxes the merged transport stream with an external ffmpeg.
package transcode

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/surge-downloader/m3u8dl/internal/engine/types"
	"github.com/surge-downloader/m3u8dl/internal/utils"
)

// EnvFFmpegPath overrides the ffmpeg lookup
const EnvFFmpegPath = "FFMPEG_PATH"

// FindFFmpeg locates the ffmpeg executable: $FFMPEG_PATH first, then the search path.
func FindFFmpeg() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvFFmpegPath)); p != "" {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			return "", types.ErrTranscoderNotFound
		}
		return p, nil
	}
	p, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", types.ErrTranscoderNotFound
	}
	return p, nil
}

// OutputPath is the remuxed sibling of input: the extension is replaced with .mp4
func OutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "." + types.TranscodeExtension
}

// Remux copies the streams of input into an mp4 container next to it.
// The input file is never modified.
func Remux(ctx context.Context, ffmpeg, input string) (string, error) {
	output := OutputPath(input)
	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", input, "-c", "copy", output}
	utils.Debug("Transcode: %s %s", ffmpeg, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, ffmpeg, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &types.TranscodeError{
			Path:   ffmpeg,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return output, nil
}
