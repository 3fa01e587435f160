package portal

import (
	"errors"
	"strings"
)

var (
	ErrAuthenticationFailed = errors.New("portal: authentication failed")
	ErrNavigationTimeout    = errors.New("portal: navigation timed out")
	ErrMenuNotFound         = errors.New("portal: schedule menu not found")
)

// DefaultAuthMessage is reported when the portal rejects credentials without
// displaying a message of its own.
const DefaultAuthMessage = "Identifiants incorrects. Vérifiez votre login et mot de passe."

// AuthError carries the message the portal displayed on rejection.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error { return ErrAuthenticationFailed }

// MenuNotFoundError lists the menu labels that were on the page when no
// schedule entry could be found.
type MenuNotFoundError struct {
	Labels []string
}

func (e *MenuNotFoundError) Error() string {
	return `Impossible de trouver le menu "Mon Planning". Menus disponibles: ` + strings.Join(e.Labels, ", ")
}

func (e *MenuNotFoundError) Unwrap() error { return ErrMenuNotFound }
