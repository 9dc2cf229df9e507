package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

var initOnce sync.Once

// Deepgram is a live Recognizer backed by the Deepgram streaming API.
type Deepgram struct {
	apiKey   string
	language string
	model    string
}

func NewDeepgram(apiKey, language string) *Deepgram {
	if language == "" {
		language = "en-US"
	}
	return &Deepgram{apiKey: apiKey, language: language, model: "nova-2"}
}

func (d *Deepgram) Start(ctx context.Context, sampleRate int, h Handler) (Stream, error) {
	initOnce.Do(func() {
		client.Init(client.InitLib{LogLevel: client.LogLevelDefault})
	})

	cOptions := &interfaces.ClientOptions{EnableKeepAlive: true}
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:       d.model,
		Language:    d.language,
		Punctuate:   true,
		SmartFormat: true,
		Encoding:    "linear16",
		SampleRate:  sampleRate,
		Channels:    1,
	}

	cb := newCallback(h)
	dg, err := client.NewWSUsingCallback(ctx, d.apiKey, cOptions, tOptions, cb)
	if err != nil {
		return nil, fmt.Errorf("create deepgram client: %w", err)
	}
	if ok := dg.Connect(); !ok {
		return nil, fmt.Errorf("deepgram connect failed")
	}

	return &deepgramStream{ws: dg, cb: cb}, nil
}

type wsConn interface {
	Write(p []byte) (int, error)
	Stop()
}

type deepgramStream struct {
	ws   wsConn
	cb   *callback
	once sync.Once
}

func (s *deepgramStream) Write(p []byte) (int, error) {
	return s.ws.Write(p)
}

func (s *deepgramStream) Stop() {
	s.once.Do(func() {
		s.ws.Stop()
		s.cb.flush()
	})
}

// callback adapts Deepgram websocket events to a Handler.
type callback struct {
	handler Handler
	now     func() time.Time

	mu     sync.Mutex
	buffer *UtteranceBuffer
}

func newCallback(h Handler) *callback {
	return &callback{handler: h, now: time.Now, buffer: NewUtteranceBuffer()}
}

func (c *callback) Message(mr *api.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	alt := mr.Channel.Alternatives[0]
	if strings.TrimSpace(alt.Transcript) == "" || !mr.IsFinal {
		return nil
	}

	words := make([]Word, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, Word{
			Speaker:        w.Speaker,
			PunctuatedWord: w.PunctuatedWord,
			Start:          w.Start,
			End:            w.End,
		})
	}

	c.mu.Lock()
	c.buffer.AddWords(words)
	c.mu.Unlock()

	if mr.SpeechFinal {
		c.flush()
	}
	return nil
}

func (c *callback) UtteranceEnd(*api.UtteranceEndResponse) error {
	c.flush()
	return nil
}

func (c *callback) flush() {
	c.mu.Lock()
	words := c.buffer.Flush()
	c.mu.Unlock()

	seg, ok := NewSegment(words, c.now().UTC())
	if !ok || c.handler.OnSegment == nil {
		return
	}
	c.handler.OnSegment(seg)
}

func (c *callback) Open(*api.OpenResponse) error {
	slog.Debug("transcribe: connected to deepgram")
	return nil
}

func (c *callback) Metadata(*api.MetadataResponse) error { return nil }

func (c *callback) SpeechStarted(*api.SpeechStartedResponse) error { return nil }

func (c *callback) Close(*api.CloseResponse) error {
	slog.Debug("transcribe: disconnected from deepgram")
	return nil
}

func (c *callback) Error(er *api.ErrorResponse) error {
	if c.handler.OnError != nil {
		c.handler.OnError(fmt.Errorf("deepgram error %s: %s", er.ErrCode, er.Description))
	}
	return nil
}

func (c *callback) UnhandledEvent([]byte) error { return nil }
