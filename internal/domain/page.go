package domain

// PageRequest selects a page either by number or by a cursor returned from
// a previous page. A cursor takes precedence over Page.
type PageRequest struct {
	Page   int
	Limit  int
	Cursor string
}

// PageResponse is the paginated envelope of every list operation.
type PageResponse[T any] struct {
	Total      int64  `json:"total"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	Data       []T    `json:"data"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

type MessagePage = PageResponse[MessageResponse]

type ConversationPage = PageResponse[ConversationResponse]
