package shop

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kuitang/shop-e2e/internal/db"
	"github.com/kuitang/shop-e2e/internal/errs"
	"github.com/kuitang/shop-e2e/internal/logutil"
	"github.com/kuitang/shop-e2e/internal/obs"
)

// The API always answers with a JSON body carrying responseCode. The HTTP
// status matches it.

type apiMessage struct {
	ResponseCode int    `json:"responseCode"`
	Message      string `json:"message"`
}

type apiUserType struct {
	UserType string `json:"usertype"`
}

type apiCategory struct {
	UserType apiUserType `json:"usertype"`
	Category string      `json:"category"`
}

type apiProduct struct {
	ID       int64       `json:"id"`
	Name     string      `json:"name"`
	Price    string      `json:"price"`
	Brand    string      `json:"brand"`
	Category apiCategory `json:"category"`
}

type apiProductsResponse struct {
	ResponseCode int          `json:"responseCode"`
	Products     []apiProduct `json:"products"`
}

type apiProductResponse struct {
	ResponseCode int        `json:"responseCode"`
	Product      apiProduct `json:"product"`
}

type apiBrand struct {
	ID    int    `json:"id"`
	Brand string `json:"brand"`
}

type apiBrandsResponse struct {
	ResponseCode int        `json:"responseCode"`
	Brands       []apiBrand `json:"brands"`
}

type apiUser struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Title      string `json:"title"`
	BirthDay   string `json:"birth_day"`
	BirthMonth string `json:"birth_month"`
	BirthYear  string `json:"birth_year"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Company    string `json:"company"`
	Address1   string `json:"address1"`
	Address2   string `json:"address2"`
	Country    string `json:"country"`
	State      string `json:"state"`
	City       string `json:"city"`
	Zipcode    string `json:"zipcode"`
}

type apiUserResponse struct {
	ResponseCode int     `json:"responseCode"`
	User         apiUser `json:"user"`
}

func toAPIProduct(p db.Product) apiProduct {
	return apiProduct{
		ID:    p.ID,
		Name:  p.Name,
		Price: p.Price,
		Brand: p.Brand,
		Category: apiCategory{
			UserType: apiUserType{UserType: p.UserType},
			Category: p.Category,
		},
	}
}

func toAPIUser(a *db.Account) apiUser {
	itoa := func(n int) string {
		if n == 0 {
			return ""
		}
		return strconv.Itoa(n)
	}
	return apiUser{
		ID:         a.ID,
		Name:       a.Name,
		Email:      a.Email,
		Title:      a.Title,
		BirthDay:   itoa(a.BirthDay),
		BirthMonth: monthName(a.BirthMonth),
		BirthYear:  itoa(a.BirthYear),
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		Company:    a.Company,
		Address1:   a.Address1,
		Address2:   a.Address2,
		Country:    a.Country,
		State:      a.State,
		City:       a.City,
		Zipcode:    a.Zipcode,
	}
}

// APIProductsList handles GET /api/productsList.
func (s *Server) APIProductsList(w http.ResponseWriter, r *http.Request) {
	products, err := s.db.ListProducts(r.Context())
	if err != nil {
		s.apiFail(w, r, err)
		return
	}
	resp := apiProductsResponse{ResponseCode: http.StatusOK, Products: make([]apiProduct, 0, len(products))}
	for _, p := range products {
		resp.Products = append(resp.Products, toAPIProduct(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// APIBrandsList handles GET /api/brandsList.
func (s *Server) APIBrandsList(w http.ResponseWriter, r *http.Request) {
	brands, err := s.db.ListBrands(r.Context())
	if err != nil {
		s.apiFail(w, r, err)
		return
	}
	resp := apiBrandsResponse{ResponseCode: http.StatusOK, Brands: make([]apiBrand, 0, len(brands))}
	for i, b := range brands {
		resp.Brands = append(resp.Brands, apiBrand{ID: i + 1, Brand: b})
	}
	writeJSON(w, http.StatusOK, resp)
}

// APIProductDetails handles GET /api/productDetails/{id}.
func (s *Server) APIProductDetails(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusNotFound, "This product does not exist")
		return
	}
	p, err := s.db.ProductByID(r.Context(), id)
	if err != nil {
		s.apiFail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apiProductResponse{ResponseCode: http.StatusOK, Product: toAPIProduct(*p)})
}

// APISearchProduct handles POST /api/searchProduct with search_product.
func (s *Server) APISearchProduct(w http.ResponseWriter, r *http.Request) {
	form, err := formValues(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Bad request, search_product parameter is missing in POST request.")
		return
	}
	term := strings.ToLower(strings.TrimSpace(form.Get("search_product")))
	if term == "" {
		writeMessage(w, http.StatusBadRequest, "Bad request, search_product parameter is missing in POST request.")
		return
	}
	products, err := s.db.ListProducts(r.Context())
	if err != nil {
		s.apiFail(w, r, err)
		return
	}
	resp := apiProductsResponse{ResponseCode: http.StatusOK, Products: []apiProduct{}}
	for _, p := range products {
		haystack := strings.ToLower(p.Name + " " + p.Category + " " + p.UserType)
		if strings.Contains(haystack, term) {
			resp.Products = append(resp.Products, toAPIProduct(p))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// APIVerifyLogin handles POST /api/verifyLogin with email and password.
func (s *Server) APIVerifyLogin(w http.ResponseWriter, r *http.Request) {
	form, err := formValues(r)
	emailAddr, password := strings.TrimSpace(form.Get("email")), form.Get("password")
	if err != nil || emailAddr == "" || password == "" {
		writeMessage(w, http.StatusBadRequest, "Bad request, email or password parameter is missing in POST request.")
		return
	}
	acct, err := s.db.AccountByEmail(r.Context(), emailAddr)
	if err != nil && !errs.Is(err, errs.NotFound) {
		s.apiFail(w, r, err)
		return
	}
	if acct == nil || !s.hasher.VerifyPassword(password, acct.PasswordHash) {
		writeMessage(w, http.StatusNotFound, "User not found!")
		return
	}
	writeMessage(w, http.StatusOK, "User exists!")
}

// APICreateAccount handles POST /api/createAccount.
func (s *Server) APICreateAccount(w http.ResponseWriter, r *http.Request) {
	form, err := formValues(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	obs.From(r.Context()).Debug("api_create_account", "form", logutil.FormatFormForLog(form))

	acct, password, err := accountFromForm(form, apiAccountFields)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Bad request, "+errs.MessageOf(err))
		return
	}
	if err := s.createAccount(r, acct, password); err != nil {
		if errs.Is(err, errs.Conflict) {
			writeMessage(w, http.StatusBadRequest, "Email already exists!")
			return
		}
		s.apiFail(w, r, err)
		return
	}
	writeMessage(w, http.StatusCreated, "User created!")
}

// APIDeleteAccount handles DELETE /api/deleteAccount with email and password.
func (s *Server) APIDeleteAccount(w http.ResponseWriter, r *http.Request) {
	form, err := formValues(r)
	emailAddr, password := strings.TrimSpace(form.Get("email")), form.Get("password")
	if err != nil || emailAddr == "" || password == "" {
		writeMessage(w, http.StatusBadRequest, "Bad request, email or password parameter is missing in DELETE request.")
		return
	}
	acct, err := s.db.AccountByEmail(r.Context(), emailAddr)
	if err != nil || !s.hasher.VerifyPassword(password, acct.PasswordHash) {
		if err != nil && !errs.Is(err, errs.NotFound) {
			s.apiFail(w, r, err)
			return
		}
		writeMessage(w, http.StatusNotFound, "Account not found!")
		return
	}
	if err := s.deleteAccount(r, acct); err != nil {
		s.apiFail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Account deleted!")
}

// APIGetUserDetailByEmail handles GET /api/getUserDetailByEmail?email=.
func (s *Server) APIGetUserDetailByEmail(w http.ResponseWriter, r *http.Request) {
	emailAddr := strings.TrimSpace(r.URL.Query().Get("email"))
	if emailAddr == "" {
		writeMessage(w, http.StatusBadRequest, "Bad request, email parameter is missing in GET request.")
		return
	}
	acct, err := s.db.AccountByEmail(r.Context(), emailAddr)
	if err != nil {
		s.apiFail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apiUserResponse{ResponseCode: http.StatusOK, User: toAPIUser(acct)})
}

// APIMethodNotSupported answers methods an endpoint refuses.
func (s *Server) APIMethodNotSupported(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusMethodNotAllowed, "This request method is not supported.")
}

func (s *Server) apiFail(w http.ResponseWriter, r *http.Request, err error) {
	status := errs.HTTPStatus(errs.CodeOf(err))
	if status >= http.StatusInternalServerError {
		obs.From(r.Context()).Error("api_request_failed", "path", r.URL.Path, "error", err)
		writeMessage(w, status, "Internal server error")
		return
	}
	writeMessage(w, status, errs.MessageOf(err))
}

// formValues parses a urlencoded body for any method. net/http only reads
// the body of POST, PUT and PATCH requests.
func formValues(r *http.Request) (url.Values, error) {
	if r.Method != http.MethodDelete {
		if err := r.ParseForm(); err != nil {
			return url.Values{}, err
		}
		return r.PostForm, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return url.Values{}, err
	}
	return url.ParseQuery(string(body))
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiMessage{ResponseCode: status, Message: message})
}
