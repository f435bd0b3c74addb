package email

// Template names as constants for type safety.
const (
	TemplateWelcome    = "welcome"
	TemplateGoodbye    = "goodbye"
	TemplateSubscribed = "subscribed"
)

// WelcomeData contains data for the account-created email.
type WelcomeData struct {
	Name     string
	LoginURL string
}

// GoodbyeData contains data for the account-deleted email.
type GoodbyeData struct {
	Name string
}

// SubscribedData contains data for the newsletter confirmation email.
type SubscribedData struct {
	ShopURL string
}
