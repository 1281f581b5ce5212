package domain

import "strings"

// NoteSeparator joins stage contents inside a single backend day note.
const NoteSeparator = " | "

// JoinNote joins stage contents in stage order into one backend note.
func JoinNote(parts []string) string {
	return strings.Join(parts, NoteSeparator)
}

// SplitNote splits a backend note into its stage parts. An empty note
// yields no parts.
func SplitNote(note string) []string {
	if strings.TrimSpace(note) == "" {
		return nil
	}
	return strings.Split(note, NoteSeparator)
}

// ValidateContent rejects content that SplitNote would not return intact.
func ValidateContent(content string) error {
	if strings.Contains(content, NoteSeparator) {
		return ErrNoteSeparator
	}
	return nil
}
