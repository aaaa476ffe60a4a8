package service

import (
	"context"
	"encoding/base64"

	"github.com/weiawesome/wes-io-live/messenger-service/internal/domain"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/repository"
)

// Pagination bounds page requests. Store partitions can only be read
// forward, so page N costs N-1 extra reads; MaxPage caps that walk.
type Pagination struct {
	DefaultLimit int
	MaxLimit     int
	MaxPage      int
}

var DefaultPagination = Pagination{DefaultLimit: 20, MaxLimit: 100, MaxPage: 50}

type pageWindow struct {
	page  int
	limit int
	state []byte
}

func (p Pagination) normalize(req domain.PageRequest) (pageWindow, error) {
	win := pageWindow{page: req.Page, limit: req.Limit}
	if win.page < 1 {
		win.page = 1
	}
	if win.limit < 1 {
		win.limit = p.DefaultLimit
	}
	if p.MaxLimit > 0 && win.limit > p.MaxLimit {
		win.limit = p.MaxLimit
	}

	if req.Cursor != "" {
		state, err := base64.RawURLEncoding.DecodeString(req.Cursor)
		if err != nil || len(state) == 0 {
			return pageWindow{}, ErrInvalidCursor
		}
		win.state = state
		return win, nil
	}

	if p.MaxPage > 0 && win.page > p.MaxPage {
		return pageWindow{}, ErrPageOutOfRange
	}
	return win, nil
}

func encodeCursor(state []byte) string {
	if len(state) == 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(state)
}

// seek returns the requested page. Without a cursor it walks forward from
// the first page; a page past the end is empty.
func seek[T any](
	ctx context.Context,
	win pageWindow,
	fetch func(context.Context, repository.ListQuery) (repository.Page[T], error),
) (repository.Page[T], error) {
	q := repository.ListQuery{Limit: win.limit, PageState: win.state}

	if win.state == nil {
		for i := 1; i < win.page; i++ {
			p, err := fetch(ctx, q)
			if err != nil {
				return repository.Page[T]{}, err
			}
			if len(p.NextPageState) == 0 {
				return repository.Page[T]{}, nil
			}
			q.PageState = p.NextPageState
		}
	}

	return fetch(ctx, q)
}
