package transcribe

// UtteranceBuffer accumulates words from is_final recognizer messages until
// the recognizer signals the utterance is complete.
type UtteranceBuffer struct {
	words []Word
}

func NewUtteranceBuffer() *UtteranceBuffer {
	return &UtteranceBuffer{}
}

func (b *UtteranceBuffer) AddWords(words []Word) {
	b.words = append(b.words, words...)
}

// Flush returns all accumulated words and resets the buffer, or nil if empty.
func (b *UtteranceBuffer) Flush() []Word {
	if len(b.words) == 0 {
		return nil
	}
	out := b.words
	b.words = nil
	return out
}

func (b *UtteranceBuffer) Len() int {
	return len(b.words)
}
