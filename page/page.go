// Package page parses offset pagination parameters and builds paged
// responses.
package page

import (
	"net/http"
	"strconv"

	"github.com/irsalhamdi/e-learning/errs"
)

const (
	DefaultSize = 20
	MaxSize     = 100
)

type Page struct {
	Number int
	Size   int
}

func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// Parse reads the page and size query parameters. Missing values take the
// defaults and oversized pages are capped.
func Parse(r *http.Request) (Page, error) {
	q := r.URL.Query()
	p := Page{Number: 1, Size: DefaultSize}

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Page{}, errs.New(errs.Validation, "page must be a positive integer")
		}
		p.Number = n
	}

	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Page{}, errs.New(errs.Validation, "size must be a positive integer")
		}
		p.Size = n
	}

	if p.Size > MaxSize {
		p.Size = MaxSize
	}
	return p, nil
}

type Metadata struct {
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type Response[T any] struct {
	Items    []T      `json:"items"`
	Metadata Metadata `json:"metadata"`
}

func NewResponse[T any](items []T, total int, p Page) Response[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if p.Size > 0 {
		pages = (total + p.Size - 1) / p.Size
	}
	return Response[T]{
		Items: items,
		Metadata: Metadata{
			Page:  p.Number,
			Size:  p.Size,
			Total: total,
			Pages: pages,
		},
	}
}
