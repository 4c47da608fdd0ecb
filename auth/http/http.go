// Package http exposes the credential services over HTTP, as go-kit
// transports plugged into a Server.
package http

import (
	"context"
	"encoding/json"
	"net/http"

	kithttp "github.com/go-kit/kit/transport/http"

	"github.com/digidem/comapeo-cloud/auth"
	"github.com/digidem/comapeo-cloud/errors"
)

type Server interface {
	RegisterHandler(path, method string, f http.Handler)
}

// RegisterHTTPRoutes mounts the credential routes:
// coordinator registration and login (server token),
// member enrollment (coordinator token),
// magic-link creation (project token) and redemption (the link is the credential).
func RegisterHTTPRoutes(srv Server, service *auth.Service, links *auth.MagicLinkService, authorizer *auth.Authorizer) {
	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(EncodeError),
		kithttp.ServerBefore(AuthorizationToContext),
	}

	serverAuth := ServerAuth(authorizer)
	projectAuth := ProjectAuth(authorizer)

	ep := NewEndpoint(service, links)

	registerHandler := kithttp.NewServer(
		serverAuth(ep.Register),
		decodeRegisterRequest,
		EncodeJSONResponse,
		opts...,
	)

	loginHandler := kithttp.NewServer(
		serverAuth(ep.Login),
		decodeRegisterRequest,
		EncodeJSONResponse,
		opts...,
	)

	enrollMemberHandler := kithttp.NewServer(
		ep.EnrollMember,
		decodeEnrollMemberRequest,
		EncodeJSONResponse,
		opts...,
	)

	createMagicLinkHandler := kithttp.NewServer(
		projectAuth(ep.CreateMagicLink),
		decodeCreateMagicLinkRequest,
		EncodeJSONResponse,
		opts...,
	)

	redeemMagicLinkHandler := kithttp.NewServer(
		ep.RedeemMagicLink,
		decodeRedeemMagicLinkRequest,
		EncodeJSONResponse,
		opts...,
	)

	srv.RegisterHandler("/auth/register", "POST", registerHandler)
	srv.RegisterHandler("/auth/coordinator", "POST", loginHandler)
	srv.RegisterHandler("/auth/member", "POST", enrollMemberHandler)
	srv.RegisterHandler("/magic-link/:projectPublicId/create", "POST", createMagicLinkHandler)
	srv.RegisterHandler("/magic-link/auth/:magicToken", "POST", redeemMagicLinkHandler)
}

// AuthorizationToContext copies the Authorization header into the context so
// endpoint middlewares can see it.
func AuthorizationToContext(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, authorizationKey, r.Header.Get("Authorization"))
}

func decodeRegisterRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	defer r.Body.Close()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.New("invalid request body", errors.BadRequest())
	}
	return req, nil
}

func decodeEnrollMemberRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	defer r.Body.Close()

	var req enrollMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.New("invalid request body", errors.BadRequest())
	}
	return req, nil
}

func decodeCreateMagicLinkRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	defer r.Body.Close()
	return nil, nil
}

func decodeRedeemMagicLinkRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	defer r.Body.Close()

	params := ctx.Value("params").(map[string]string)
	return params["magicToken"], nil
}

// EncodeJSONResponse writes the response under a data envelope.
func EncodeJSONResponse(_ context.Context, w http.ResponseWriter, response interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	return json.NewEncoder(w).Encode(map[string]interface{}{
		"data": response,
	})
}

// EncodeError writes an error envelope carrying the error's kind and message.
// Internal errors keep their message out of the response.
func EncodeError(_ context.Context, err error, w http.ResponseWriter) {
	statusCode := errors.DefaultCode
	kind := errors.DefaultKind
	message := err.Error()
	if cerr, ok := err.(errors.Error); ok {
		statusCode = cerr.Code()
		kind = cerr.Kind()
	}
	if kind == errors.DefaultKind {
		message = "internal server error"
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":    kind,
			"message": message,
		},
	})
}
