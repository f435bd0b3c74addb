package pages

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Account is everything the signup flow asks for.
type Account struct {
	Name     string
	Email    string
	Password string

	Title      string // "Mr" or "Mrs"
	BirthDay   int
	BirthMonth string // month name, selected by label
	BirthYear  int
	Newsletter bool
	Optin      bool

	FirstName    string
	LastName     string
	Company      string
	Address1     string
	Address2     string
	Country      string
	State        string
	City         string
	Zipcode      string
	MobileNumber string
}

// NewTestAccount returns a filled-in account with an email no other call
// returns.
func NewTestAccount() Account {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return Account{
		Name:         "John Doe",
		Email:        fmt.Sprintf("testuser-%s@example.com", id),
		Password:     "Password123!",
		Title:        "Mr",
		BirthDay:     15,
		BirthMonth:   "January",
		BirthYear:    1990,
		Newsletter:   true,
		Optin:        true,
		FirstName:    "John",
		LastName:     "Doe",
		Company:      "Test Company",
		Address1:     "123 Test Street",
		Address2:     "Apt 456",
		Country:      "United States",
		State:        "California",
		City:         "Los Angeles",
		Zipcode:      "90210",
		MobileNumber: "+1234567890",
	}
}
