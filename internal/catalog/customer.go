package catalog

import (
	"strings"

	"shopdesk/internal/domain"
	"shopdesk/internal/paging"
)

type CustomerForm struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

func CustomerFormFrom(c domain.Customer) CustomerForm {
	return CustomerForm{Name: c.Name, Phone: c.Phone, Email: c.Email, Address: c.Address}
}

func (f CustomerForm) Validate() error {
	verr := &ValidationError{}
	if strings.TrimSpace(f.Name) == "" {
		verr.add("name", "required")
	}
	if email := strings.TrimSpace(f.Email); email != "" && !strings.Contains(email, "@") {
		verr.add("email", "invalid")
	}
	return verr.orNil()
}

func (f CustomerForm) Input() domain.CustomerInput {
	return domain.CustomerInput{
		Name:    strings.TrimSpace(f.Name),
		Phone:   strings.TrimSpace(f.Phone),
		Email:   strings.TrimSpace(f.Email),
		Address: strings.TrimSpace(f.Address),
	}
}

// SearchCustomers matches name or phone.
func SearchCustomers(customers []domain.Customer, query string) []domain.Customer {
	out := make([]domain.Customer, 0, len(customers))
	for _, c := range customers {
		if paging.Match(query, c.Name, c.Phone) {
			out = append(out, c)
		}
	}
	return out
}
