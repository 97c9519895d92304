package encode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"slices"
	"strconv"
	"sync"

	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
)

// VP9 encoders ffmpeg may provide.
const (
	EncoderLibVPX = "libvpx-vp9"
	EncoderVAAPI  = "vp9_vaapi"
	EncoderQSV    = "vp9_qsv"
)

// KnownEncoders lists the encoders the ffmpeg backend knows how to drive.
var KnownEncoders = []string{EncoderLibVPX, EncoderVAAPI, EncoderQSV}

// Limits enforced by the capability check.
const (
	MaxEncodeDimension = 8192
	MaxBitrate         = 200_000_000
	MaxFPS             = 240
)

// VAAPIDevice is the render node used by vp9_vaapi.
var VAAPIDevice = "/dev/dri/renderD128"

// FFmpegFactory creates encoders backed by an ffmpeg child process.
type FFmpegFactory struct {
	Binary  string
	Encoder string
	logger  *slog.Logger

	lookPath func(string) (string, error)
}

// NewFFmpegFactory creates a factory. Empty binary and encoder fall back to
// "ffmpeg" and libvpx-vp9.
func NewFFmpegFactory(binary, encoder string, logger *slog.Logger) *FFmpegFactory {
	if binary == "" {
		binary = "ffmpeg"
	}
	if encoder == "" {
		encoder = EncoderLibVPX
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegFactory{Binary: binary, Encoder: encoder, logger: logger, lookPath: exec.LookPath}
}

func (f *FFmpegFactory) encoderFor(cfg Config) string {
	if cfg.Encoder != "" {
		return cfg.Encoder
	}
	return f.Encoder
}

// IsConfigSupported validates codec, size, bitrate and framerate and checks
// that the ffmpeg binary can be found.
func (f *FFmpegFactory) IsConfigSupported(cfg Config) error {
	reject := func(format string, args ...any) error {
		return &UnsupportedConfigError{Config: cfg, Reason: fmt.Sprintf(format, args...)}
	}
	if cfg.Codec != CodecVP9 {
		return reject("codec %q", cfg.Codec)
	}
	enc := f.encoderFor(cfg)
	if !slices.Contains(KnownEncoders, enc) {
		return reject("unknown encoder %q", enc)
	}
	if cfg.Width < 2 || cfg.Height < 2 || cfg.Width > MaxEncodeDimension || cfg.Height > MaxEncodeDimension {
		return reject("size out of range (2..%d)", MaxEncodeDimension)
	}
	if cfg.Width%2 != 0 || cfg.Height%2 != 0 {
		return reject("4:2:0 output needs even dimensions")
	}
	if cfg.Bitrate < MinBitrate || cfg.Bitrate > MaxBitrate {
		return reject("bitrate out of range (%d..%d)", MinBitrate, MaxBitrate)
	}
	if cfg.FPS < 1 || cfg.FPS > MaxFPS {
		return reject("framerate out of range (1..%d)", MaxFPS)
	}
	if _, err := f.lookPath(f.Binary); err != nil {
		return reject("ffmpeg not available: %v", err)
	}
	return nil
}

// New starts ffmpeg. Chunks are delivered to out from a reader goroutine.
func (f *FFmpegFactory) New(ctx context.Context, cfg Config, out ChunkHandler) (Encoder, error) {
	enc := f.encoderFor(cfg)
	args := buildFFmpegArgs(cfg, enc)
	f.logger.Debug("starting ffmpeg", "encoder", enc, "args", args)

	cmd := exec.CommandContext(ctx, f.Binary, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe error: %w", err)
	}
	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}

	e := &FFmpegEncoder{
		cfg:    cfg,
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		out:    out,
		done:   make(chan struct{}),
	}
	go e.readLoop(stdout)
	return e, nil
}

// buildFFmpegArgs reads rawvideo RGBA from stdin and writes IVF to stdout.
func buildFFmpegArgs(cfg Config, encoder string) []string {
	gop := strconv.Itoa(max(1, cfg.KeyframeInterval))

	args := []string{"-hide_banner", "-loglevel", "error"}
	if encoder == EncoderVAAPI {
		args = append(args, "-vaapi_device", VAAPIDevice)
	}
	args = append(args,
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"-framerate", strconv.FormatFloat(cfg.FPS, 'f', -1, 64),
		"-i", "-",
	)

	// Параметры зависят от энкодера
	switch encoder {
	case EncoderVAAPI:
		args = append(args, "-vf", "format=nv12,hwupload", "-c:v", encoder)
	case EncoderQSV:
		args = append(args, "-pix_fmt", "nv12", "-c:v", encoder)
	default: // libvpx-vp9
		args = append(args,
			"-pix_fmt", "yuv420p",
			"-c:v", encoder,
			"-deadline", "good",
			"-cpu-used", "4",
			"-row-mt", "1",
			// Без отложенных кадров: один пакет на каждый входной кадр.
			"-lag-in-frames", "0",
			"-auto-alt-ref", "0",
		)
	}

	args = append(args,
		"-b:v", strconv.Itoa(cfg.Bitrate),
		"-g", gop,
		"-keyint_min", gop,
		"-force_key_frames", "expr:eq(mod(n,"+gop+"),0)",
		"-f", "ivf",
		"-",
	)
	return args
}

// FFmpegEncoder pipes raw frames into ffmpeg and parses IVF packets from its
// output.
type FFmpegEncoder struct {
	cfg    Config
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer
	out    ChunkHandler

	mu        sync.Mutex
	pending   []int64
	submitted int

	done    chan struct{}
	readErr error

	stdinOnce sync.Once
	waitOnce  sync.Once
	waitErr   error
}

func (e *FFmpegEncoder) readLoop(stdout io.Reader) {
	defer close(e.done)

	r, hdr, err := ivfreader.NewWith(stdout)
	if err != nil {
		e.mu.Lock()
		empty := e.submitted == 0
		e.mu.Unlock()
		if !empty {
			e.readErr = fmt.Errorf("ivf header: %w", err)
		}
		_, _ = io.Copy(io.Discard, stdout)
		return
	}
	for {
		data, fh, err := r.ParseNextFrame()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			e.readErr = fmt.Errorf("ivf frame: %w", err)
			_, _ = io.Copy(io.Discard, stdout)
			return
		}
		c := Chunk{Data: data, TimestampUS: e.nextTimestamp(fh, hdr), Keyframe: vp9Keyframe(data)}
		if err := e.out(c); err != nil {
			e.readErr = err
			_, _ = io.Copy(io.Discard, stdout)
			return
		}
	}
}

// nextTimestamp pairs output packets with submitted frames in order; the
// IVF timestamp is only used if ffmpeg produced more packets than frames.
func (e *FFmpegEncoder) nextTimestamp(fh *ivfreader.IVFFrameHeader, hdr *ivfreader.IVFFileHeader) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pending) > 0 {
		ts := e.pending[0]
		e.pending = e.pending[1:]
		return ts
	}
	if hdr.TimebaseDenominator == 0 {
		return int64(fh.Timestamp)
	}
	return int64(fh.Timestamp) * 1_000_000 * int64(hdr.TimebaseNumerator) / int64(hdr.TimebaseDenominator)
}

// Encode writes one frame to ffmpeg. The image is not retained.
func (e *FFmpegEncoder) Encode(ctx context.Context, f Frame, keyframe bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-e.done:
		if e.readErr != nil {
			return e.readErr
		}
		return fmt.Errorf("ffmpeg exited early: %s", e.stderr.String())
	default:
	}
	b := f.Image.Bounds()
	if b.Dx() != e.cfg.Width || b.Dy() != e.cfg.Height {
		return fmt.Errorf("frame %d is %dx%d, encoder configured for %dx%d", f.Index, b.Dx(), b.Dy(), e.cfg.Width, e.cfg.Height)
	}

	e.mu.Lock()
	e.pending = append(e.pending, f.TimestampUS)
	e.submitted++
	e.mu.Unlock()

	if err := writeRawRGBA(e.stdin, f.Image); err != nil {
		return fmt.Errorf("write raw error: %w (%s)", err, e.stderr.String())
	}
	return nil
}

// Flush closes ffmpeg's input and waits until every packet was delivered.
func (e *FFmpegEncoder) Flush(ctx context.Context) error {
	e.closeStdin()
	select {
	case <-e.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := e.wait(); err != nil {
		return fmt.Errorf("ffmpeg wait error: %w: %s", err, e.stderr.String())
	}
	return e.readErr
}

// Close stops ffmpeg. After a successful Flush it is a no-op.
func (e *FFmpegEncoder) Close() error {
	e.closeStdin()
	select {
	case <-e.done:
	default:
		if e.cmd.Process != nil {
			_ = e.cmd.Process.Kill()
		}
		<-e.done
	}
	_ = e.wait()
	return nil
}

func (e *FFmpegEncoder) closeStdin() {
	e.stdinOnce.Do(func() { _ = e.stdin.Close() })
}

func (e *FFmpegEncoder) wait() error {
	e.waitOnce.Do(func() { e.waitErr = e.cmd.Wait() })
	return e.waitErr
}

// writeRawRGBA writes tightly packed RGBA rows.
func writeRawRGBA(w io.Writer, img *image.RGBA) error {
	b := img.Bounds()
	rowLen := b.Dx() * 4
	if img.Stride == rowLen && b.Min == (image.Point{}) {
		_, err := w.Write(img.Pix[:rowLen*b.Dy()])
		return err
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		if _, err := w.Write(img.Pix[off : off+rowLen]); err != nil {
			return err
		}
	}
	return nil
}

// vp9Keyframe reads frame_type from the VP9 uncompressed header.
func vp9Keyframe(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	b := data[0]
	if b>>6 != 2 { // frame_marker
		return false
	}
	profile := (b>>5)&1 | ((b>>4)&1)<<1
	shift := 3
	if profile == 3 {
		shift = 2
	}
	if (b>>shift)&1 == 1 { // show_existing_frame
		return false
	}
	return (b>>(shift-1))&1 == 0
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
