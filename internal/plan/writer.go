package plan

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Write serialises p in the plan file grammar. Timestamps are written in
// their own zone, which should be the site zone Parse will be given.
func Write(w io.Writer, p *Plan) error {
	bw := bufio.NewWriter(w)
	for i, e := range p.Entries {
		if i > 0 {
			bw.WriteString("\n") //nolint:errcheck // checked on Flush
		}
		l1, l2, l3 := e.Elements()
		fmt.Fprintf(bw, "%s %s\n%s %s\n%s %s\n%s\n%s\n%s\n", //nolint:errcheck // checked on Flush
			KeywordBegin, e.BeginLocal.Format(TimeLayout),
			KeywordEnd, e.EndLocal.Format(TimeLayout),
			KeywordName, e.Name,
			l1, l2, l3,
		)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing plan: %w", err)
	}
	return nil
}

// Save writes p to path atomically (temp file then rename) so the executor
// never reads a half-written plan.
func Save(path string, p *Plan) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".plan-*")
	if err != nil {
		return fmt.Errorf("creating temp plan file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if err := Write(tmp, p); err != nil {
		tmp.Close() //nolint:errcheck,gosec // write error takes precedence
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp plan file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing plan file: %w", err)
	}
	return nil
}
