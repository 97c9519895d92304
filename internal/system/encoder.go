package system

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ivlev/scene2video/internal/encode"
)

// RenderNode is the DRM node vp9_vaapi needs.
const RenderNode = "/dev/dri/renderD128"

// ProbeVP9Encoder asks ffmpeg for its encoder list and returns the best VP9
// encoder it can use. When ffmpeg cannot be queried libvpx-vp9 is returned.
func ProbeVP9Encoder(ctx context.Context, ffmpeg string, logger *slog.Logger) string {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, ffmpeg, "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		logger.Warn("encoder probe failed, using software VP9", "ffmpeg", ffmpeg, "error", err)
		return encode.EncoderLibVPX
	}
	enc := PickVP9Encoder(string(out), HasRenderNode())
	logger.Info("VP9 encoder selected", "encoder", enc)
	return enc
}

// PickVP9Encoder chooses from an `ffmpeg -encoders` listing.
// Приоритеты: VAAPI (если есть render node), затем QSV, затем libvpx-vp9.
func PickVP9Encoder(listing string, renderNode bool) string {
	available := map[string]bool{}
	for _, line := range strings.Split(listing, "\n") {
		fields := strings.Fields(line)
		// " V....D libvpx-vp9           libvpx VP9 (codec vp9)"
		if len(fields) >= 2 && strings.HasPrefix(fields[0], "V") {
			available[fields[1]] = true
		}
	}
	if renderNode && available[encode.EncoderVAAPI] {
		return encode.EncoderVAAPI
	}
	if available[encode.EncoderQSV] {
		return encode.EncoderQSV
	}
	return encode.EncoderLibVPX
}

// HasRenderNode reports whether the VAAPI render node is usable.
func HasRenderNode() bool {
	return unix.Access(RenderNode, unix.R_OK|unix.W_OK) == nil
}
