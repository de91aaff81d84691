package collection

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// ErrInvalidQuery is returned by Query for malformed expressions.
var ErrInvalidQuery = errors.New("invalid jsonpath")

// Documents returns the records in their JSON shape, decoded into generic
// maps and slices. The result is computed once.
func (c *Collection) Documents() ([]any, error) {
	c.docsOnce.Do(func() {
		docs := make([]any, 0, len(c.records))
		for _, r := range c.records {
			b, err := json.Marshal(r)
			if err != nil {
				c.docsErr = fmt.Errorf("collection %s: encode %s: %w", c.name, r.Path, err)
				return
			}
			doc, err := oj.Parse(b)
			if err != nil {
				c.docsErr = fmt.Errorf("collection %s: decode %s: %w", c.name, r.Path, err)
				return
			}
			docs = append(docs, doc)
		}
		c.docs = docs
	})
	return c.docs, c.docsErr
}

// Query evaluates a JSONPath expression against the collection's
// documents, rooted at the array of records. With production set, drafts
// are left out of the array.
func (c *Collection) Query(expr string, production bool) ([]any, error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidQuery, expr, err)
	}
	docs, err := c.Documents()
	if err != nil {
		return nil, err
	}
	if production {
		visible := make([]any, 0, len(docs))
		for i, doc := range docs {
			if !c.records[i].Draft {
				visible = append(visible, doc)
			}
		}
		docs = visible
	}
	return x.Get(docs), nil
}
