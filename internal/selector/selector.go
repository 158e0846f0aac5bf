// Package selector renders a numbered file listing and parses the user's
// choice from it.
package selector

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tonimelisma/gdfetch/internal/gdrive"
)

// Selection sentinels.
const (
	allKeyword  = "all"
	quitKeyword = "q"
)

var (
	// ErrInvalidSelection rejects the whole input; no files are selected.
	ErrInvalidSelection = errors.New("selector: invalid selection")

	// ErrQuit is returned when the user enters the quit sentinel.
	ErrQuit = errors.New("selector: quit")
)

// typeSuffix returns the MIME type after its last dot, e.g. "document" for
// a Google Docs file.
func typeSuffix(mime string) string {
	if i := strings.LastIndexByte(mime, '.'); i >= 0 {
		return mime[i+1:]
	}

	return mime
}

// Render writes a 1-based numbered listing of files.
func Render(w io.Writer, files []gdrive.File) error {
	for i, f := range files {
		if _, err := fmt.Fprintf(w, "%3d. %-40s (%s)\n", i+1, f.Name, typeSuffix(f.MimeType)); err != nil {
			return fmt.Errorf("selector: writing listing: %w", err)
		}
	}

	return nil
}

// Parse interprets a selection against n listed items and returns 0-based
// indices in input order. Duplicates collapse to their first occurrence.
// Any non-numeric or out-of-range token rejects the entire input.
func Parse(input string, n int) ([]int, error) {
	s := strings.ToLower(strings.TrimSpace(input))

	switch s {
	case quitKeyword:
		return nil, ErrQuit
	case allKeyword:
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}

		return all, nil
	case "":
		return nil, fmt.Errorf("%w: empty input", ErrInvalidSelection)
	}

	tokens := strings.Split(s, ",")
	seen := make(map[int]bool, len(tokens))
	out := make([]int, 0, len(tokens))

	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)

		num, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidSelection, tok)
		}

		if num < 1 || num > n {
			return nil, fmt.Errorf("%w: %d is out of range 1-%d", ErrInvalidSelection, num, n)
		}

		if seen[num] {
			continue
		}

		seen[num] = true
		out = append(out, num-1)
	}

	return out, nil
}

// Pick returns the files at the given 0-based indices.
func Pick(files []gdrive.File, indices []int) []gdrive.File {
	out := make([]gdrive.File, 0, len(indices))
	for _, i := range indices {
		out = append(out, files[i])
	}

	return out
}

// Prompt renders files, prints the instructions, reads one line from r and
// returns the chosen files.
func Prompt(r io.Reader, w io.Writer, files []gdrive.File) ([]gdrive.File, error) {
	if err := Render(w, files); err != nil {
		return nil, err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Select files to download:")
	fmt.Fprintln(w, "  - Enter numbers separated by commas (e.g., 1,2,5)")
	fmt.Fprintf(w, "  - Enter '%s' to download all files\n", allKeyword)
	fmt.Fprintf(w, "  - Enter '%s' to quit\n", quitKeyword)
	fmt.Fprint(w, "\nYour selection: ")

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return nil, fmt.Errorf("selector: reading selection: %w", err)
	}

	indices, err := Parse(line, len(files))
	if err != nil {
		return nil, err
	}

	return Pick(files, indices), nil
}
