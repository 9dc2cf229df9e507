// Package recorder owns the local capture device: it buffers captured audio
// into playable media files and feeds the same stream to live transcription.
package recorder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sjawhar/interview-coach/internal/apperr"
	"github.com/sjawhar/interview-coach/internal/transcribe"
)

// Stream is an open capture device.
type Stream interface {
	Start() error
	// Stream writes PCM16-LE mono audio to w until the device stops or fails.
	Stream(w io.Writer) error
	Stop() error
	Close() error
	SampleRate() int
}

// Device opens the capture hardware.
type Device interface {
	Open() (Stream, error)
}

// Probe reports whether live transcription is available on this host.
type Probe func() (transcribe.Recognizer, bool)

type Options struct {
	MediaDir string
	Probe    Probe
	Sink     Sink
}

type capture struct {
	name      string
	rawPath   string
	file      *os.File
	bytes     int64
	startedAt time.Time
}

// Recorder shares one device stream between at most one capture and one
// transcription. The device is opened by whichever starts first and released
// when both have stopped.
type Recorder struct {
	device     Device
	recognizer transcribe.Recognizer
	supported  bool
	mediaDir   string
	sink       Sink

	ctx    context.Context
	cancel context.CancelFunc

	encode EncodeFunc
	sleep  func(time.Duration)
	now    func() time.Time

	mu                  sync.Mutex
	stream              Stream
	pumpDone            chan struct{}
	sampleRate          int
	capture             *capture
	seq                 int
	recStream           transcribe.Stream
	recGen              int
	segments            []transcribe.Segment
	unsupportedReported bool
}

func New(device Device, opts Options) *Recorder {
	mediaDir := opts.MediaDir
	if mediaDir == "" {
		mediaDir = filepath.Join("data", "media")
	}

	r := &Recorder{
		device:   device,
		mediaDir: mediaDir,
		sink:     opts.Sink,
		encode:   Encode,
		sleep:    time.Sleep,
		now:      time.Now,
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	if opts.Probe != nil {
		r.recognizer, r.supported = opts.Probe()
	}
	return r
}

// MediaDir is where finalized recordings are written.
func (r *Recorder) MediaDir() string {
	return r.mediaDir
}

// StartCapture begins buffering device audio. Only one capture may be active.
func (r *Recorder) StartCapture() error {
	r.mu.Lock()
	if r.capture != nil {
		r.mu.Unlock()
		return fmt.Errorf("start capture: %w", apperr.ErrBusy)
	}
	if err := r.ensureDeviceLocked(); err != nil {
		r.mu.Unlock()
		r.emit(Event{Kind: EventError, Err: err})
		return err
	}
	c, err := r.newCaptureLocked()
	if err != nil {
		r.mu.Unlock()
		r.releaseIfIdle()
		return err
	}
	r.capture = c
	r.mu.Unlock()
	return nil
}

// StopCapture finalizes the active capture into a media file. The device is
// released afterwards unless transcription still needs it.
func (r *Recorder) StopCapture() (Media, error) {
	r.mu.Lock()
	c := r.capture
	r.capture = nil
	rate := r.sampleRate
	r.mu.Unlock()

	if c == nil {
		return Media{}, apperr.Validation("no capture in progress")
	}
	defer r.releaseIfIdle()

	return r.complete(c, rate)
}

// StartTranscription begins live speech-to-text. When the host has no
// recognizer, the first call reports ErrUnsupported and later calls are no-ops.
func (r *Recorder) StartTranscription() error {
	r.mu.Lock()
	if !r.supported {
		reported := r.unsupportedReported
		r.unsupportedReported = true
		r.mu.Unlock()
		if reported {
			return nil
		}
		err := fmt.Errorf("%w: live transcription", apperr.ErrUnsupported)
		r.emit(Event{Kind: EventError, Err: err})
		return err
	}
	if r.recStream != nil {
		r.mu.Unlock()
		return nil
	}
	if err := r.ensureDeviceLocked(); err != nil {
		r.mu.Unlock()
		r.emit(Event{Kind: EventError, Err: err})
		return err
	}
	r.recGen++
	gen := r.recGen
	rate := r.sampleRate
	r.mu.Unlock()

	rs, err := r.recognizer.Start(r.ctx, rate, transcribe.Handler{
		OnSegment: func(seg transcribe.Segment) { r.appendSegment(gen, seg) },
		OnError:   func(err error) { r.failTranscription(gen, err) },
	})
	if err != nil {
		slog.Warn("recorder: transcription start failed", "error", err)
		r.releaseIfIdle()
		err = fmt.Errorf("start transcription: %w", err)
		r.emit(Event{Kind: EventError, Err: err})
		return err
	}

	r.mu.Lock()
	if r.recGen != gen || r.stream == nil {
		r.mu.Unlock()
		rs.Stop()
		return nil
	}
	r.recStream = rs
	r.mu.Unlock()
	return nil
}

// StopTranscription ends live speech-to-text, keeping the accumulated transcript.
func (r *Recorder) StopTranscription() {
	r.mu.Lock()
	rs := r.recStream
	r.recStream = nil
	r.mu.Unlock()

	if rs == nil {
		return
	}
	defer r.releaseIfIdle()

	// Stop may deliver one last finalized segment for the current generation.
	rs.Stop()

	r.mu.Lock()
	r.recGen++
	r.mu.Unlock()
}

// Transcript returns the finalized text accumulated so far.
func (r *Recorder) Transcript() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return transcribe.JoinSegments(r.segments)
}

func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		Capturing:              r.capture != nil,
		Transcribing:           r.recStream != nil,
		TranscriptionSupported: r.supported,
		DeviceOpen:             r.stream != nil,
		SampleRate:             r.sampleRate,
		Transcript:             transcribe.JoinSegments(r.segments),
	}
}

// Reset stops capture and transcription, clears the transcript, and releases
// the device. An active capture is still finalized.
func (r *Recorder) Reset() error {
	r.mu.Lock()
	c := r.capture
	r.capture = nil
	rs := r.recStream
	r.recStream = nil
	r.recGen++
	r.segments = nil
	rate := r.sampleRate
	r.mu.Unlock()

	defer r.releaseIfIdle()

	if rs != nil {
		rs.Stop()
	}
	if c != nil {
		if _, err := r.complete(c, rate); err != nil {
			return err
		}
	}
	return nil
}

// Close resets the recorder and cancels background recognizer work.
func (r *Recorder) Close() error {
	err := r.Reset()
	r.cancel()
	return err
}

func (r *Recorder) ensureDeviceLocked() error {
	if r.stream != nil {
		return nil
	}
	if r.device == nil {
		return fmt.Errorf("%w: no capture device configured", apperr.ErrDevice)
	}

	s, err := r.device.Open()
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		_ = s.Close()
		return err
	}

	done := make(chan struct{})
	r.stream = s
	r.pumpDone = done
	r.sampleRate = s.SampleRate()
	go r.pump(s, done)
	return nil
}

func (r *Recorder) newCaptureLocked() (*capture, error) {
	if err := os.MkdirAll(r.mediaDir, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}

	r.seq++
	startedAt := r.now()
	name := fmt.Sprintf("%s-%d", startedAt.UTC().Format("20060102-150405"), r.seq)
	rawPath := filepath.Join(r.mediaDir, name+".pcm")
	f, err := os.OpenFile(rawPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open raw pcm file: %w", err)
	}
	return &capture{name: name, rawPath: rawPath, file: f, startedAt: startedAt}, nil
}

func (r *Recorder) complete(c *capture, sampleRate int) (Media, error) {
	media, err := r.finalize(c, sampleRate)
	if err != nil {
		r.emit(Event{Kind: EventError, Err: err})
		return Media{}, err
	}
	r.emit(Event{Kind: EventComplete, Media: &media})
	return media, nil
}

func (r *Recorder) finalize(c *capture, sampleRate int) (Media, error) {
	defer func() { _ = os.Remove(c.rawPath) }()
	if err := c.file.Close(); err != nil {
		return Media{}, fmt.Errorf("close raw pcm file: %w", err)
	}
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}

	path, err := r.encode(c.rawPath, filepath.Join(r.mediaDir, c.name), sampleRate)
	if err != nil {
		return Media{}, fmt.Errorf("encode capture %s: %w", c.name, err)
	}

	name := filepath.Base(path)
	return Media{
		Name:      name,
		Path:      path,
		URL:       "/api/media/" + name,
		Bytes:     c.bytes,
		Duration:  float64(c.bytes) / float64(sampleRate*pcmChannels*pcmBitDepth/8),
		CreatedAt: c.startedAt,
	}, nil
}

// releaseIfIdle stops the device once neither capture nor transcription uses it.
func (r *Recorder) releaseIfIdle() {
	r.mu.Lock()
	if r.capture != nil || r.recStream != nil || r.stream == nil {
		r.mu.Unlock()
		return
	}
	s, done := r.stream, r.pumpDone
	r.stream, r.pumpDone = nil, nil
	r.mu.Unlock()

	if err := s.Stop(); err != nil {
		slog.Warn("recorder: device stop failed", "error", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		slog.Warn("recorder: device stream did not exit after stop")
	}
	if err := s.Close(); err != nil {
		slog.Warn("recorder: device close failed", "error", err)
	}
}

func (r *Recorder) pump(s Stream, done chan struct{}) {
	defer close(done)
	w := writerFunc(func(p []byte) (int, error) {
		r.dispatch(p)
		return len(p), nil
	})

	for {
		err := s.Stream(w)
		if !r.isCurrent(s) {
			return
		}
		if err != nil && strings.Contains(strings.ToLower(err.Error()), "overflow") {
			slog.Warn("recorder: input overflow, restarting stream")
			r.sleep(250 * time.Millisecond)
			continue
		}
		slog.Warn("recorder: device stream ended", "error", err)
		r.emit(Event{Kind: EventError, Err: fmt.Errorf("%w: stream ended: %v", apperr.ErrDevice, err)})
		return
	}
}

func (r *Recorder) isCurrent(s Stream) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stream == s
}

func (r *Recorder) dispatch(p []byte) {
	r.mu.Lock()
	if c := r.capture; c != nil {
		n, err := c.file.Write(p)
		c.bytes += int64(n)
		if err != nil {
			slog.Warn("recorder: write capture failed", "capture", c.name, "error", err)
		}
	}
	rs, gen := r.recStream, r.recGen
	r.mu.Unlock()

	if rs != nil {
		if _, err := rs.Write(p); err != nil {
			r.failTranscription(gen, err)
		}
	}
	r.emit(Event{Kind: EventChunk, Bytes: len(p)})
}

func (r *Recorder) appendSegment(gen int, seg transcribe.Segment) {
	r.mu.Lock()
	if gen != r.recGen {
		r.mu.Unlock()
		return
	}
	r.segments = append(r.segments, seg)
	text := transcribe.JoinSegments(r.segments)
	r.mu.Unlock()

	r.emit(Event{Kind: EventTranscriptUpdate, Transcript: text})
}

// failTranscription stops transcription after a recognizer error. Capture is
// left running.
func (r *Recorder) failTranscription(gen int, err error) {
	r.mu.Lock()
	if gen != r.recGen || r.recStream == nil {
		r.mu.Unlock()
		return
	}
	rs := r.recStream
	r.recStream = nil
	r.recGen++
	r.mu.Unlock()

	slog.Warn("recorder: transcription stopped", "error", err)
	// The error may arrive on the recognizer's own goroutine.
	go func() {
		rs.Stop()
		r.releaseIfIdle()
	}()
	r.emit(Event{Kind: EventError, Err: fmt.Errorf("transcription stopped: %w", err)})
}

func (r *Recorder) emit(e Event) {
	if r.sink != nil {
		r.sink(e)
	}
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
