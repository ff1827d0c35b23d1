package domain

import "fmt"

// ApiMethod is the value of the "apimethod" property of a published
// data-exchange asset. It tells partners whether the asset is used to send
// a request or to deliver a response.
type ApiMethod int

const (
	// ApiMethodRequest is used to perform a request (Request API).
	ApiMethodRequest ApiMethod = iota + 1
	// ApiMethodResponse is used to respond to a request (Response API).
	ApiMethodResponse
)

type apiMethodInfo struct {
	name    string
	purpose string
}

var apiMethods = map[ApiMethod]apiMethodInfo{
	ApiMethodRequest:  {name: "Asset to request product-stock information", purpose: "request"},
	ApiMethodResponse: {name: "Asset to receive product-stock information", purpose: "response"},
}

// ApiMethods returns every API method in declaration order.
func ApiMethods() []ApiMethod {
	return []ApiMethod{ApiMethodRequest, ApiMethodResponse}
}

// Name returns the human-readable asset name.
func (m ApiMethod) Name() string {
	return apiMethods[m].name
}

// Purpose returns the machine-readable purpose token.
func (m ApiMethod) Purpose() string {
	return apiMethods[m].purpose
}

// String implements fmt.Stringer.
func (m ApiMethod) String() string {
	switch m {
	case ApiMethodRequest:
		return "REQUEST"
	case ApiMethodResponse:
		return "RESPONSE"
	default:
		return fmt.Sprintf("ApiMethod(%d)", int(m))
	}
}

// IsValid reports whether m is one of the declared variants.
func (m ApiMethod) IsValid() bool {
	_, ok := apiMethods[m]
	return ok
}

// ParseApiMethod looks up an API method by its purpose token.
func ParseApiMethod(purpose string) (ApiMethod, error) {
	for _, m := range ApiMethods() {
		if m.Purpose() == purpose {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownApiMethod, purpose)
}
