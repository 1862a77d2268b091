package paths

import (
	_ "embed"
	"strings"
)

//go:embed words.txt
var wordList string

var dictionary = func() map[string]struct{} {
	words := strings.Fields(wordList)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// IsWord reports whether word is in the route dictionary. The lookup is
// case sensitive.
func IsWord(word string) bool {
	_, ok := dictionary[word]
	return ok
}
