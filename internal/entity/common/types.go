package common

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Meta 包含分页元数据。
type Meta struct {
	Page     int64 `json:"page"`
	PageSize int64 `json:"page_size"`
	Total    int64 `json:"total"`
}

// BaseParams 包含通用的分页参数。
type BaseParams struct {
	PageSize int64 `json:"page_size" form:"page_size" query:"page_size"`
	Page     int64 `json:"page" form:"page" query:"page"`
}

// Normalize 填充默认值并限制每页数量。
func (p BaseParams) Normalize(defaultSize int64) BaseParams {
	if defaultSize <= 0 {
		defaultSize = DefaultPageSize
	}
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = defaultSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset 返回当前页的偏移量。
func (p BaseParams) Offset() int {
	offset := (p.Page - 1) * p.PageSize
	if offset < 0 {
		return 0
	}
	return int(offset)
}
