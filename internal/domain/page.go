package domain

const DefaultPageSize = 10

// Page is one 1-based page of a report, along with the size of the full set.
type Page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// Paginate slices items into the requested page. Out of range pages come
// back empty but still report the total.
func Paginate[T any](items []T, page int, pageSize int) Page[T] {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	out := Page[T]{Items: []T{}, Total: len(items), Page: page, PageSize: pageSize}
	pages := len(items) / pageSize
	if len(items)%pageSize != 0 {
		pages++
	}
	// Compared before multiplying so huge page numbers cannot overflow.
	if page-1 >= pages {
		return out
	}
	start := (page - 1) * pageSize
	end := len(items)
	if pageSize < end-start {
		end = start + pageSize
	}
	out.Items = append(out.Items, items[start:end]...)
	return out
}
