package payload

type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Pagination request parameters, bound from the query string. Optional:
// endpoints return everything when page_index is absent.
type (
	ListReqQuery struct {
		PageIndex *int `form:"page_index"`
		PageSize  *int `form:"page_size"`
	}
	ListResp[T any] struct {
		Rows  []T   `json:"rows"`
		Count int64 `json:"count"`
	}
)

// Window clamps the pagination request onto an offset/limit pair.
// A missing or non-positive page size falls back to the default.
func (q *ListReqQuery) Window(defaultSize int) (offset, limit int) {
	size := defaultSize
	if q.PageSize != nil && *q.PageSize > 0 {
		size = *q.PageSize
	}
	index := 0
	if q.PageIndex != nil && *q.PageIndex > 0 {
		index = *q.PageIndex
	}
	return index * size, size
}
