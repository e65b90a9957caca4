package core

import "strings"

// markers that only ever appear on the identity provider's sign-in form
var signInMarkers = []string{
	`name="user[email]"`,
	`name="user[password]"`,
	`action="/sign_in"`,
}

// markers that only ever appear once a session is live
var authedMarkers = []string{
	`/employee/logout`,
	`id="employee_menu"`,
}

func containsAny(body string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(body, m) {
			return true
		}
	}
	return false
}

// isLoginPage classifies a response body as the sign-in page. The check
// is asymmetric: an authenticated page that happens to mention "sign in"
// in a footer must not be misclassified, so the body has to carry a
// sign-in marker AND lack every authenticated-page marker.
func isLoginPage(body string) bool {
	return containsAny(body, signInMarkers) && !containsAny(body, authedMarkers)
}
