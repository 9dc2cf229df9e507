package recorder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gordonklaus/portaudio"

	"github.com/sjawhar/interview-coach/internal/apperr"
)

const framesPerBuffer = 1024

// InitAudio initializes PortAudio and returns its teardown.
func InitAudio() (func(), error) {
	if err := portaudio.Initialize(); err != nil {
		return func() {}, fmt.Errorf("%w: initialize portaudio: %v", apperr.ErrDevice, err)
	}
	return func() { _ = portaudio.Terminate() }, nil
}

// Mic opens the default input device, trying each candidate sample rate in order.
type Mic struct {
	rates []int
}

func NewMic(rates []int) *Mic {
	if len(rates) == 0 {
		rates = []int{defaultSampleRate}
	}
	return &Mic{rates: rates}
}

func (m *Mic) Open() (Stream, error) {
	var lastErr error
	for _, rate := range m.rates {
		s, err := openMicStream(rate)
		if err == nil {
			return s, nil
		}
		slog.Warn("recorder: microphone open failed", "sample_rate", rate, "error", err)
		lastErr = err
	}
	return nil, classifyDeviceError(lastErr)
}

type micStream struct {
	stream     *portaudio.Stream
	buf        []int16
	sampleRate int
}

func openMicStream(sampleRate int) (*micStream, error) {
	buf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		return nil, err
	}
	return &micStream{stream: stream, buf: buf, sampleRate: sampleRate}, nil
}

func (m *micStream) Start() error    { return classifyDeviceError(m.stream.Start()) }
func (m *micStream) Stop() error     { return m.stream.Stop() }
func (m *micStream) Close() error    { return m.stream.Close() }
func (m *micStream) SampleRate() int { return m.sampleRate }

// Stream reads from the mic and writes PCM16-LE to w until an error or stop.
func (m *micStream) Stream(w io.Writer) error {
	var out bytes.Buffer
	out.Grow(len(m.buf) * 2)
	for {
		if err := m.stream.Read(); err != nil {
			return err
		}
		out.Reset()
		if err := binary.Write(&out, binary.LittleEndian, m.buf); err != nil {
			return err
		}
		if _, err := w.Write(out.Bytes()); err != nil {
			return err
		}
	}
}

// classifyDeviceError maps PortAudio failures onto the permission/device
// categories. PortAudio has no permission code, so OS denials are matched by text.
func classifyDeviceError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "denied") || strings.Contains(msg, "not permitted") {
		return fmt.Errorf("%w: microphone: %v", apperr.ErrPermission, err)
	}
	return fmt.Errorf("%w: microphone: %v", apperr.ErrDevice, err)
}
