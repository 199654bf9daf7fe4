package dto

import "github.com/hugh/go-crm/internal/database/models"

type CompanyRequest struct {
	Name       string `json:"name" validate:"required,max=200"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone" validate:"omitempty,phone"`
	Website    string `json:"website" validate:"max=255"`
	Industry   string `json:"industry" validate:"max=100"`
	Address    string `json:"address" validate:"max=500"`
	City       string `json:"city" validate:"max=100"`
	State      string `json:"state" validate:"max=100"`
	PostalCode string `json:"postal_code" validate:"max=20"`
	Country    string `json:"country" validate:"max=100"`
}

// ApplyTo copies the request onto c.
func (r CompanyRequest) ApplyTo(c *models.Company) {
	c.Name = r.Name
	c.Email = r.Email
	c.Phone = r.Phone
	c.Website = r.Website
	c.Industry = r.Industry
	c.Address = r.Address
	c.City = r.City
	c.State = r.State
	c.PostalCode = r.PostalCode
	c.Country = r.Country
}
