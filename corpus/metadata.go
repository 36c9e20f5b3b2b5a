package corpus

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Document is one record of the corpus metadata file: the first three
// tab-separated columns of the source corpus (id, title, category). Extra
// columns, such as the abstract text, are ignored.
type Document struct {
	ID       string
	Title    string
	Category string
}

// LoadMetadata reads document metadata for graph export. Rows shorter than
// three columns keep empty strings for the missing fields; only a missing id
// is an error.
func LoadMetadata(ctx context.Context, path string, optFns ...func(o *Options)) ([]Document, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	f, err := opts.FS.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open metadata: %w", err)
	}
	defer f.Close()

	var docs []Document

	sc := newLineScanner(f, opts.MaxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if text == "" {
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("load metadata: %w", err)
		}

		var doc Document
		rest := text
		doc.ID, rest, _ = strings.Cut(rest, string(opts.Delimiter))
		doc.Title, rest, _ = strings.Cut(rest, string(opts.Delimiter))
		doc.Category, _, _ = strings.Cut(rest, string(opts.Delimiter))
		if doc.ID == "" {
			return nil, &ErrMalformedRow{Line: line, Reason: "empty document id"}
		}

		docs = append(docs, doc)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	return docs, nil
}
