// Package clipboard copies finished transcripts and optionally pastes
// them into the focused window with a synthesized key chord.
package clipboard

import cb "github.com/atotto/clipboard"

func Read() (string, error) {
	return cb.ReadAll()
}

func Copy(text string) error {
	return cb.WriteAll(text)
}
