package dto

// AdminLoginRequest carries the shared admin secret
type AdminLoginRequest struct {
	Secret string `json:"secret" binding:"required"`
}

// AdminLoginResponse reports a successful secret check
type AdminLoginResponse struct {
	Authenticated bool `json:"authenticated"`
}

// BookingListQuery filters an admin or customer booking list
type BookingListQuery struct {
	Date   string `form:"date"`
	Phone  string `form:"phone"`
	Status string `form:"status"`
	Limit  int    `form:"limit"`
}
