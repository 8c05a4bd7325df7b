package dto

// Response is the envelope of every API answer. Exactly one of Data and Error
// is set; Meta accompanies paged lists.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *PageMeta  `json:"meta,omitempty"`
}

// ErrorInfo carries the machine code, a message safe to show, and the request
// ID to quote when reporting the failure
type ErrorInfo struct {
	Code      string             `json:"code"`
	Message   string             `json:"message"`
	RequestID string             `json:"request_id,omitempty"`
	Details   []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail describes one rejected request field
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// PageMeta locates a page of an invoice listing
type PageMeta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

func OK(data any) Response {
	return Response{Success: true, Data: data}
}

// Paged wraps one page of a listing. A non-positive page size counts as one.
func Paged(data any, total int64, page, pageSize int) Response {
	size := int64(max(pageSize, 1))
	return Response{
		Success: true,
		Data:    data,
		Meta: &PageMeta{
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: int((total + size - 1) / size),
		},
	}
}

func Failure(code, message, requestID string) Response {
	return Response{Error: &ErrorInfo{Code: code, Message: message, RequestID: requestID}}
}

// Invalid reports rejected request fields under ErrCodeValidation
func Invalid(message, requestID string, details []ValidationDetail) Response {
	resp := Failure(ErrCodeValidation, message, requestID)
	resp.Error.Details = details
	return resp
}
