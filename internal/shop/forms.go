package shop

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kuitang/shop-e2e/internal/db"
	"github.com/kuitang/shop-e2e/internal/errs"
)

// Months are the birth-month labels, January first.
var Months = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// Countries offered by the address form.
var Countries = []string{
	"India", "United States", "Canada", "Australia", "Israel", "New Zealand", "Singapore",
}

// accountFields names the form keys an account is read from. The signup page
// and the API use different names for the same data.
type accountFields struct {
	name, email, password, title             string
	day, month, year, newsletter, optin      string
	firstName, lastName, company             string
	address1, address2, country, state, city string
	zipcode, mobileNumber                    string
}

var pageAccountFields = accountFields{
	name: "name", email: "email", password: "password", title: "title",
	day: "days", month: "months", year: "years", newsletter: "newsletter", optin: "optin",
	firstName: "first_name", lastName: "last_name", company: "company",
	address1: "address1", address2: "address2", country: "country", state: "state", city: "city",
	zipcode: "zipcode", mobileNumber: "mobile_number",
}

var apiAccountFields = accountFields{
	name: "name", email: "email", password: "password", title: "title",
	day: "birth_date", month: "birth_month", year: "birth_year", newsletter: "newsletter", optin: "optin",
	firstName: "firstname", lastName: "lastname", company: "company",
	address1: "address1", address2: "address2", country: "country", state: "state", city: "city",
	zipcode: "zipcode", mobileNumber: "mobile_number",
}

// accountFromForm builds an unsaved account. Missing required fields are an
// InvalidArgument error naming the first one.
func accountFromForm(form url.Values, f accountFields) (*db.Account, string, error) {
	get := func(key string) string { return strings.TrimSpace(form.Get(key)) }

	required := []struct{ key, label string }{
		{f.name, "name"},
		{f.email, "email"},
		{f.password, "password"},
		{f.firstName, "first name"},
		{f.lastName, "last name"},
		{f.address1, "address"},
		{f.country, "country"},
		{f.state, "state"},
		{f.city, "city"},
		{f.zipcode, "zipcode"},
		{f.mobileNumber, "mobile number"},
	}
	for _, r := range required {
		if get(r.key) == "" {
			return nil, "", errs.New(errs.InvalidArgument, "Please fill in the "+r.label+".")
		}
	}

	a := &db.Account{
		ID:           uuid.NewString(),
		Email:        get(f.email),
		Name:         get(f.name),
		Title:        get(f.title),
		BirthDay:     atoiInRange(get(f.day), 1, 31),
		BirthMonth:   parseMonth(get(f.month)),
		BirthYear:    atoiInRange(get(f.year), 1900, time.Now().Year()),
		Newsletter:   checked(form.Get(f.newsletter)),
		Optin:        checked(form.Get(f.optin)),
		FirstName:    get(f.firstName),
		LastName:     get(f.lastName),
		Company:      get(f.company),
		Address1:     get(f.address1),
		Address2:     get(f.address2),
		Country:      get(f.country),
		State:        get(f.state),
		City:         get(f.city),
		Zipcode:      get(f.zipcode),
		MobileNumber: get(f.mobileNumber),
	}
	return a, form.Get(f.password), nil
}

func atoiInRange(s string, lo, hi int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0
	}
	return n
}

// parseMonth accepts a month number or an English month name.
func parseMonth(s string) int {
	if n := atoiInRange(s, 1, 12); n != 0 {
		return n
	}
	for i, m := range Months {
		if strings.EqualFold(m, s) {
			return i + 1
		}
	}
	return 0
}

func monthName(n int) string {
	if n < 1 || n > len(Months) {
		return ""
	}
	return Months[n-1]
}

func checked(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "off":
		return false
	}
	return true
}
