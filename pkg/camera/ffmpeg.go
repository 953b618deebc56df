package camera

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-eyestate/pkg/eyestate"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	"gocv.io/x/gocv"
)

// FFmpegSource decodes a file or network stream with an ffmpeg child process
// and reads raw bgr24 frames of the configured size from its stdout.
type FFmpegSource struct {
	config Config
	reader *io.PipeReader
	cancel context.CancelFunc
	done   chan error

	buf   []byte
	frame gocv.Mat

	closeOnce sync.Once
}

// probeTimeout bounds how long ffprobe may take to open a stream.
const probeTimeout = 15 * time.Second

// OpenFFmpeg probes cfg.URI and starts ffmpeg for it. A source that ffprobe
// cannot open, or that has no video stream, is eyestate.ErrDeviceUnavailable.
// The process is stopped by Close or when ctx is cancelled.
func OpenFFmpeg(ctx context.Context, cfg Config) (*FFmpegSource, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("%w: ffmpeg backend requires a uri", eyestate.ErrDeviceUnavailable)
	}
	if !isNetworkURI(cfg.URI) {
		if _, err := os.Stat(cfg.URI); err != nil {
			return nil, fmt.Errorf("%w: %v", eyestate.ErrDeviceUnavailable, err)
		}
	}
	if err := probe(cfg.URI); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", eyestate.ErrDeviceUnavailable, cfg.URI, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	r, w := io.Pipe()

	cmd := ffmpeg.Input(cfg.URI, inputArgs(cfg.URI)).
		Output("pipe:1", outputArgs(cfg)).
		WithOutput(w).
		WithErrorOutput(io.Discard)
	cmd.Context = ctx

	s := &FFmpegSource{
		config: cfg,
		reader: r,
		cancel: cancel,
		done:   make(chan error, 1),
		buf:    make([]byte, cfg.Width*cfg.Height*3),
		frame:  gocv.NewMat(),
	}

	go func() {
		err := cmd.Run()
		w.CloseWithError(err)
		s.done <- err
	}()

	return s, nil
}

// probeResult is the part of ffprobe's JSON output we inspect.
type probeResult struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

func probe(uri string) error {
	out, err := ffmpeg.ProbeWithTimeout(uri, probeTimeout, inputArgs(uri))
	if err != nil {
		return fmt.Errorf("ffprobe: %w", err)
	}
	return checkProbe([]byte(out))
}

// checkProbe requires at least one decodable video stream.
func checkProbe(data []byte) error {
	var res probeResult
	if err := json.Unmarshal(data, &res); err != nil {
		return fmt.Errorf("parse ffprobe output: %w", err)
	}
	for _, st := range res.Streams {
		if st.CodecType == "video" && st.Width > 0 && st.Height > 0 {
			return nil
		}
	}
	return errors.New("no video stream")
}

func isNetworkURI(uri string) bool {
	return strings.Contains(uri, "://")
}

func inputArgs(uri string) ffmpeg.KwArgs {
	args := ffmpeg.KwArgs{}
	if strings.HasPrefix(uri, "rtsp://") {
		args["rtsp_transport"] = "tcp"
	}
	return args
}

func outputArgs(cfg Config) ffmpeg.KwArgs {
	args := ffmpeg.KwArgs{
		"format":  "rawvideo",
		"pix_fmt": "bgr24",
		"s":       fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"r":       strconv.Itoa(cfg.Framerate),
	}
	if cfg.Mirror {
		args["vf"] = "hflip"
	}
	return args
}

// Read returns the next decoded frame. End of stream, a truncated frame or a
// failed ffmpeg process all map to eyestate.ErrReadFailure.
func (s *FFmpegSource) Read() (gocv.Mat, error) {
	if _, err := io.ReadFull(s.reader, s.buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return s.frame, fmt.Errorf("%w: %s: end of stream", eyestate.ErrReadFailure, s.config.Describe())
		}
		return s.frame, fmt.Errorf("%w: %s: %v", eyestate.ErrReadFailure, s.config.Describe(), err)
	}

	mat, err := gocv.NewMatFromBytes(s.config.Height, s.config.Width, gocv.MatTypeCV8UC3, s.buf)
	if err != nil {
		return s.frame, fmt.Errorf("%w: %v", eyestate.ErrReadFailure, err)
	}
	s.frame.Close()
	s.frame = mat
	return s.frame, nil
}

// Close stops ffmpeg and releases the frame buffer. Safe to call twice.
func (s *FFmpegSource) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.reader.Close()
		<-s.done
		s.frame.Close()
	})
	return nil
}
