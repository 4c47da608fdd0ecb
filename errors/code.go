package errors

import (
	"net/http"
)

// Kinds exposed in error payloads. Clients dispatch on these, so they are
// part of the API surface.
const (
	KindBadRequest            = "BAD_REQUEST"
	KindUnauthorized          = "UNAUTHORIZED"
	KindForbidden             = "FORBIDDEN"
	KindNotFound              = "NOT_FOUND"
	KindConflict              = "CONFLICT"
	KindProjectNotInAllowlist = "PROJECT_NOT_IN_ALLOWLIST"
	KindTooManyProjects       = "TOO_MANY_PROJECTS"
	KindTooManyMagicLinks     = "TOO_MANY_MAGIC_LINKS"
	KindProjectNotFound       = "PROJECT_NOT_FOUND"
)

func with(code int, kind string) ErrorEnricher {
	return func(err error) error {
		return WithKind(kind)(WithCode(code)(err))
	}
}

func BadRequest() ErrorEnricher   { return with(http.StatusBadRequest, KindBadRequest) }
func Unauthorized() ErrorEnricher { return with(http.StatusUnauthorized, KindUnauthorized) }
func Forbidden() ErrorEnricher    { return with(http.StatusForbidden, KindForbidden) }
func NotFound() ErrorEnricher     { return with(http.StatusNotFound, KindNotFound) }
func Conflict() ErrorEnricher     { return with(http.StatusConflict, KindConflict) }

func ProjectNotInAllowlist() ErrorEnricher {
	return with(http.StatusForbidden, KindProjectNotInAllowlist)
}

func TooManyProjects() ErrorEnricher {
	return with(http.StatusForbidden, KindTooManyProjects)
}

func TooManyMagicLinks() ErrorEnricher {
	return with(http.StatusForbidden, KindTooManyMagicLinks)
}

func ProjectNotFound() ErrorEnricher {
	return with(http.StatusNotFound, KindProjectNotFound)
}
