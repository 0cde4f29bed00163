package plan

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Block keywords.
const (
	KeywordBegin = "BEGINLOCAL"
	KeywordEnd   = "ENDLOCAL"
	KeywordName  = "NAME"
)

const maxLineLength = 64 * 1024

// Parse reads plan text into a Plan sorted by begin time.
//
// Each block is BEGINLOCAL, ENDLOCAL, NAME, an optional "0 " title line and
// two element lines. Blank lines are ignored. Input ending on a block
// boundary is valid, including input with no blocks at all. Any other
// deviation yields a *ParseError and no plan.
//
// Parameters:
//   - r: Plan text
//   - loc: Zone for the naive timestamps; nil means time.Local
//
// Returns:
//   - *Plan: Parsed plan, possibly empty
//   - error: *ParseError (errors.Is ErrParse) or a read error
func Parse(r io.Reader, loc *time.Location) (*Plan, error) {
	if loc == nil {
		loc = time.Local
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineLength)
	lines := &lineReader{sc: sc}

	p := &Plan{}
	for {
		first, ok := lines.next()
		if !ok {
			break
		}
		entry, err := parseBlock(first, lines, loc)
		if err != nil {
			return nil, err
		}
		p.Entries = append(p.Entries, entry)
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}

	p.sort()
	return p, nil
}

// Load parses the plan file at path.
func Load(path string, loc *time.Location) (*Plan, error) {
	f, err := os.Open(path) //nolint:gosec // operator-configured path
	if err != nil {
		return nil, fmt.Errorf("opening plan file: %w", err)
	}
	defer f.Close()

	p, err := Parse(f, loc)
	if err != nil {
		return nil, fmt.Errorf("plan file %s: %w", path, err)
	}
	return p, nil
}

type numberedLine struct {
	n    int
	text string
}

// lineReader yields non-blank lines with their 1-based line numbers.
type lineReader struct {
	sc *bufio.Scanner
	n  int
}

func (lr *lineReader) next() (numberedLine, bool) {
	for lr.sc.Scan() {
		lr.n++
		text := strings.TrimRight(lr.sc.Text(), " \t\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		return numberedLine{n: lr.n, text: text}, true
	}
	return numberedLine{}, false
}

// require returns the next line or a ParseError naming what was expected.
func (lr *lineReader) require(expected string) (numberedLine, error) {
	line, ok := lr.next()
	if !ok {
		return line, &ParseError{Expected: expected, Actual: "end of input"}
	}
	return line, nil
}

func parseBlock(first numberedLine, lines *lineReader, loc *time.Location) (Entry, error) {
	var e Entry

	begin, err := keywordTime(first, KeywordBegin, loc)
	if err != nil {
		return e, err
	}

	line, err := lines.require(KeywordEnd)
	if err != nil {
		return e, err
	}
	end, err := keywordTime(line, KeywordEnd, loc)
	if err != nil {
		return e, err
	}
	if !begin.Before(end) {
		return e, &ParseError{Line: line.n, Expected: "ENDLOCAL later than BEGINLOCAL", Actual: line.text}
	}

	line, err = lines.require(KeywordName)
	if err != nil {
		return e, err
	}
	name, err := keywordValue(line, KeywordName)
	if err != nil {
		return e, err
	}

	line, err = lines.require("element line")
	if err != nil {
		return e, err
	}
	title := titlePrefix + name
	if strings.HasPrefix(line.text, titlePrefix) {
		title = line.text
		if line, err = lines.require("element line"); err != nil {
			return e, err
		}
	}
	tle2 := line.text

	line, err = lines.require("element line")
	if err != nil {
		return e, err
	}

	return Entry{
		BeginLocal: begin,
		EndLocal:   end,
		Name:       name,
		TLELine1:   title,
		TLELine2:   tle2,
		TLELine3:   line.text,
	}, nil
}

func keywordValue(line numberedLine, keyword string) (string, error) {
	kw, value, _ := strings.Cut(strings.TrimSpace(line.text), " ")
	if kw != keyword {
		return "", &ParseError{Line: line.n, Expected: keyword, Actual: line.text}
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", &ParseError{Line: line.n, Expected: keyword + " value", Actual: line.text}
	}
	return value, nil
}

func keywordTime(line numberedLine, keyword string, loc *time.Location) (time.Time, error) {
	value, err := keywordValue(line, keyword)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(TimeLayout, value, loc)
	if err != nil {
		return time.Time{}, &ParseError{Line: line.n, Expected: keyword + " YYYY-MM-DD HH:MM:SS", Actual: line.text}
	}
	return t, nil
}
