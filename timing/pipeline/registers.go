// Package pipeline provides the three-stage ARM7TDMI pipeline sequencer.
package pipeline

// Latch holds one raw instruction word between pipeline stages. Words are
// decoded only when they reach execute.
type Latch struct {
	// Valid indicates if this latch contains a fetched word.
	Valid bool

	// PC is the address the word was fetched from.
	PC uint32

	// Word is the raw 32-bit instruction word.
	Word uint32
}

// Clear resets the latch to empty state.
func (l *Latch) Clear() {
	l.Valid = false
	l.PC = 0
	l.Word = 0
}
