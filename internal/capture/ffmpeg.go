package capture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/kozaktomas/marker-scanner/internal/constants"
)

// FFmpegOptions configures an ffmpeg-backed frame source.
type FFmpegOptions struct {
	Binary string // defaults to "ffmpeg"
	Format string // input format for devices, e.g. v4l2; ignored for regular files
	Input  string // device path or video file
	FPS    int    // output frame rate, defaults to 2
	Loop   bool   // loop video files forever
}

// BuildArgs returns the ffmpeg command line for the options.
func (o FFmpegOptions) BuildArgs() []string {
	fps := o.FPS
	if fps <= 0 {
		fps = 2
	}

	args := []string{"-hide_banner", "-loglevel", "error"}
	if isRegularFile(o.Input) {
		if o.Loop {
			args = append(args, "-stream_loop", "-1")
		}
		args = append(args, "-re")
	} else if o.Format != "" {
		args = append(args, "-f", o.Format)
	}
	args = append(args,
		"-i", o.Input,
		"-vf", "fps="+strconv.Itoa(fps),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5",
		"-",
	)
	return args
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// FFmpegSource reads frames from an ffmpeg child process.
type FFmpegSource struct {
	*StreamSource

	cmd    *exec.Cmd
	cancel context.CancelFunc
	stderr *tailBuffer

	closeOnce sync.Once
	closeErr  error
}

// OpenFFmpeg starts ffmpeg and waits until the first frame arrives, so a
// missing or busy device fails here instead of on the first scan.
func OpenFFmpeg(ctx context.Context, opts FFmpegOptions) (*FFmpegSource, error) {
	binary := opts.Binary
	if binary == "" {
		binary = "ffmpeg"
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, binary, opts.BuildArgs()...)
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("starting ffmpeg: %w", err)
	}

	src := &FFmpegSource{
		StreamSource: NewStreamSource(stdout),
		cmd:          cmd,
		cancel:       cancel,
		stderr:       stderr,
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, constants.FrameReadTimeout)
	defer waitCancel()
	if err := src.waitReady(waitCtx); err != nil {
		_ = src.Close()
		if msg := stderr.String(); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", opts.Input, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", opts.Input, err)
	}

	slog.Debug("ffmpeg source ready", "input", opts.Input, "pid", cmd.Process.Pid)
	return src, nil
}

// FFmpegOpener returns an Opener that starts ffmpeg for each device.
func FFmpegOpener(format string, fps int) Opener {
	return func(ctx context.Context, device string) (Source, error) {
		return OpenFFmpeg(ctx, FFmpegOptions{Format: format, Input: device, FPS: fps, Loop: true})
	}
}

// Close stops ffmpeg and releases the device.
func (s *FFmpegSource) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.StreamSource.Close()
		err := s.cmd.Wait()
		// a process killed by cancel has not Exited
		if err != nil && s.cmd.ProcessState != nil && s.cmd.ProcessState.Exited() {
			s.closeErr = fmt.Errorf("ffmpeg exited: %w", err)
		}
	})
	return s.closeErr
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
