package shared

import "errors"

var (
	// ErrNotFound indicates a tenant or product absent under the given scope.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied indicates the user has no membership for the tenant.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrConflict indicates a slug already taken by another account.
	ErrConflict = errors.New("already exists")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCheckoutDisabled indicates the tenant has no WhatsApp number configured.
	ErrCheckoutDisabled = errors.New("checkout disabled")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserSafeMessage maps an error to text that can be rendered to the user.
// Unknown errors collapse to a generic message so backend details never leak
// into a page.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "Not found."
	case errors.Is(err, ErrPermissionDenied):
		return "You don't have permission to do that for this store."
	case errors.Is(err, ErrConflict):
		return "That name is already taken."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, ErrCheckoutDisabled):
		return "Checkout is not available for this store yet."
	default:
		return "Something went wrong. Please try again."
	}
}
