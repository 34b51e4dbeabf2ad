package extract

// HeaderWindow is the half-open line range [Start, End) holding patient and lab metadata
type HeaderWindow struct {
	Start int
	End   int
}

// Len returns the number of lines in the window
func (w HeaderWindow) Len() int {
	return w.End - w.Start
}

// LocateHeader finds the header window. It starts at the first line mentioning
// a known label (0 when none does) and ends at the first section marker found
// from there on (len(lines) when none is).
func LocateHeader(lines []Line, vocab *Vocabulary) HeaderWindow {
	w := HeaderWindow{Start: -1, End: len(lines)}

	for i, l := range lines {
		if vocab.ContainsLabel(l.Text) {
			w.Start = i
			break
		}
	}
	if w.Start < 0 {
		w.Start = 0
	}

	for i := w.Start; i < len(lines); i++ {
		if vocab.IsMarker(lines[i].Text) {
			w.End = i
			break
		}
	}

	return w
}
