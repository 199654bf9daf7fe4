package dto

type CreateUserRequest struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Username  string `json:"username" validate:"required,min=3,max=50"`
	Email     string `json:"email" validate:"required,email,max=191"`
	Phone     string `json:"phone" validate:"omitempty,phone"`
	Password  string `json:"password" validate:"required"`
	Role      string `json:"role" validate:"required,oneof=admin manager user viewer"`
	Status    string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// UpdateUserRequest changes only the fields that are present.
type UpdateUserRequest struct {
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,max=100"`
	Username  *string `json:"username,omitempty" validate:"omitempty,min=3,max=50"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email,max=191"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,phone"`
	Password  *string `json:"password,omitempty"`
	Role      *string `json:"role,omitempty" validate:"omitempty,oneof=admin manager user viewer"`
	Status    *string `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
}
