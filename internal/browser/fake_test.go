package browser

import (
	"fmt"
	"net/url"
	"reflect"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// fakeElement is one node in the fake DOM.
type fakeElement struct {
	visible   bool
	value     string
	text      string
	transform func(string) string // applied on Fill, like an input that rewrites text
	clickErr  error
	onClick   func(*fakeSession)
}

// fakeSession is an in-memory Session. Selectors map straight to elements.
type fakeSession struct {
	mu sync.Mutex

	url      string
	title    string
	elements map[string]*fakeElement

	gotoCalls []string
	gotoErr   error

	loadCalls int
	loadErr   error
	loadBlock chan struct{} // when set, WaitForLoadState blocks until closed

	screenshot    []byte
	screenshotErr error

	responses  []playwright.Response // emitted once an ExpectEvent trigger has run
	events     []string
	predicates []interface{}

	waitTimeouts []float64
	waitStates   []string
}

var _ Session = (*fakeSession)(nil)

func newFakeSession() *fakeSession {
	return &fakeSession{
		url:        "about:blank",
		elements:   map[string]*fakeElement{},
		screenshot: []byte("\x89PNG fake"),
	}
}

func driverTimeout(timeout *float64) error {
	t := 0.0
	if timeout != nil {
		t = *timeout
	}
	return fmt.Errorf("%w: Timeout %.0fms exceeded", playwright.ErrTimeout, t)
}

func (s *fakeSession) Goto(rawURL string, options ...playwright.PageGotoOptions) (playwright.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gotoCalls = append(s.gotoCalls, rawURL)
	if s.gotoErr != nil {
		return nil, s.gotoErr
	}
	// Browsers report the root of an origin with a trailing slash.
	if u, err := url.Parse(rawURL); err == nil && u.Path == "" {
		u.Path = "/"
		rawURL = u.String()
	}
	s.url = rawURL
	return nil, nil
}

func (s *fakeSession) Title() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title, nil
}

func (s *fakeSession) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

func (s *fakeSession) WaitForLoadState(options ...playwright.PageWaitForLoadStateOptions) error {
	s.mu.Lock()
	s.loadCalls++
	block := s.loadBlock
	err := s.loadErr
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	return err
}

func (s *fakeSession) Screenshot(options ...playwright.PageScreenshotOptions) ([]byte, error) {
	if s.screenshotErr != nil {
		return nil, s.screenshotErr
	}
	return s.screenshot, nil
}

func (s *fakeSession) Locator(selector string, options ...playwright.PageLocatorOptions) playwright.Locator {
	return &fakeLocator{session: s, selector: selector}
}

// ExpectEvent mirrors the driver's event waiter: the predicate is called with
// the event value through reflection, so its parameter must accept a
// playwright.Response. Anything else panics the same way the driver would.
func (s *fakeSession) ExpectEvent(event string, cb func() error, options ...playwright.PageExpectEventOptions) (interface{}, error) {
	var opts playwright.PageExpectEventOptions
	if len(options) > 0 {
		opts = options[0]
	}
	s.mu.Lock()
	s.events = append(s.events, event)
	s.predicates = append(s.predicates, opts.Predicate)
	s.mu.Unlock()
	if event != "response" {
		return nil, driverTimeout(opts.Timeout)
	}
	if err := cb(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.responses {
		if opts.Predicate == nil {
			return r, nil
		}
		out := reflect.ValueOf(opts.Predicate).Call([]reflect.Value{reflect.ValueOf(r)})
		if out[0].Bool() {
			return r, nil
		}
	}
	return nil, driverTimeout(opts.Timeout)
}

func (s *fakeSession) element(selector string) *fakeElement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elements[selector]
}

func (s *fakeSession) loadCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadCalls
}

// pwLocator lets fakeLocator embed the interface without a field named
// Locator shadowing the Locator method.
type pwLocator = playwright.Locator

// fakeLocator implements the Locator methods the helpers call. Anything else
// panics through the nil embedded interface.
type fakeLocator struct {
	pwLocator
	session  *fakeSession
	selector string
}

func (l *fakeLocator) First() playwright.Locator { return l }

func (l *fakeLocator) WaitFor(options ...playwright.LocatorWaitForOptions) error {
	var opts playwright.LocatorWaitForOptions
	if len(options) > 0 {
		opts = options[0]
	}
	state := "visible"
	if opts.State != nil {
		state = string(*opts.State)
	}
	l.session.mu.Lock()
	if opts.Timeout != nil {
		l.session.waitTimeouts = append(l.session.waitTimeouts, *opts.Timeout)
	}
	l.session.waitStates = append(l.session.waitStates, state)
	el := l.session.elements[l.selector]
	l.session.mu.Unlock()

	if el == nil || (state == "visible" && !el.visible) {
		return driverTimeout(opts.Timeout)
	}
	return nil
}

func (l *fakeLocator) Fill(value string, options ...playwright.LocatorFillOptions) error {
	el := l.session.element(l.selector)
	if el == nil {
		return driverTimeout(fillTimeout(options))
	}
	if el.transform != nil {
		value = el.transform(value)
	}
	el.value = value
	return nil
}

func fillTimeout(options []playwright.LocatorFillOptions) *float64 {
	if len(options) > 0 {
		return options[0].Timeout
	}
	return nil
}

func (l *fakeLocator) InputValue(options ...playwright.LocatorInputValueOptions) (string, error) {
	el := l.session.element(l.selector)
	if el == nil {
		return "", driverTimeout(nil)
	}
	return el.value, nil
}

func (l *fakeLocator) TextContent(options ...playwright.LocatorTextContentOptions) (string, error) {
	el := l.session.element(l.selector)
	if el == nil {
		return "", driverTimeout(nil)
	}
	return el.text, nil
}

func (l *fakeLocator) Click(options ...playwright.LocatorClickOptions) error {
	el := l.session.element(l.selector)
	if el == nil {
		var timeout *float64
		if len(options) > 0 {
			timeout = options[0].Timeout
		}
		return driverTimeout(timeout)
	}
	if el.clickErr != nil {
		return el.clickErr
	}
	if el.onClick != nil {
		el.onClick(l.session)
	}
	return nil
}

type pwResponse = playwright.Response

// fakeResponse carries just a URL and status.
type fakeResponse struct {
	pwResponse
	url    string
	status int
}

func (r *fakeResponse) URL() string { return r.url }
func (r *fakeResponse) Status() int { return r.status }
