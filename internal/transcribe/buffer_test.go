package transcribe

import "testing"

func TestUtteranceBufferAccumulatesAndFlushes(t *testing.T) {
	b := NewUtteranceBuffer()
	if b.Flush() != nil {
		t.Fatal("expected nil flush on empty buffer")
	}

	b.AddWords([]Word{{PunctuatedWord: "one"}})
	b.AddWords([]Word{{PunctuatedWord: "two"}, {PunctuatedWord: "three"}})
	if b.Len() != 3 {
		t.Fatalf("expected 3 buffered words, got %d", b.Len())
	}

	words := b.Flush()
	if len(words) != 3 || words[2].PunctuatedWord != "three" {
		t.Fatalf("unexpected flushed words %#v", words)
	}
	if b.Len() != 0 || b.Flush() != nil {
		t.Fatal("expected buffer reset after flush")
	}
}
