package repl

import (
	"io"
	"time"
	"unicode/utf8"
)

// typewriter writes one rune at a time with a delay between runes.
type typewriter struct {
	w     io.Writer
	delay time.Duration
	sleep func(time.Duration)
}

// newTypewriter returns w itself if delay is not positive.
func newTypewriter(w io.Writer, delay time.Duration) io.Writer {
	if delay <= 0 {
		return w
	}
	return &typewriter{w: w, delay: delay, sleep: time.Sleep}
}

func (t *typewriter) Write(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		_, size := utf8.DecodeRune(p[n:])
		k, err := t.w.Write(p[n : n+size])
		n += k
		if err != nil {
			return n, err
		}
		if p[n-1] != '\n' {
			t.sleep(t.delay)
		}
	}
	return n, nil
}
