// Package http exposes project attachment and listing over HTTP.
package http

import (
	"context"
	"encoding/json"
	"net/http"

	kithttp "github.com/go-kit/kit/transport/http"

	comapeo "github.com/digidem/comapeo-cloud"
	"github.com/digidem/comapeo-cloud/auth"
	authhttp "github.com/digidem/comapeo-cloud/auth/http"
	"github.com/digidem/comapeo-cloud/errors"
	"github.com/digidem/comapeo-cloud/project"
)

type Server interface {
	RegisterHandler(path, method string, f http.Handler)
}

// RegisterHTTPRoutes mounts the project routes. Both require the server
// bearer token.
func RegisterHTTPRoutes(srv Server, service *project.Service, authorizer *auth.Authorizer) {
	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(authhttp.EncodeError),
		kithttp.ServerBefore(authhttp.AuthorizationToContext),
	}

	serverAuth := authhttp.ServerAuth(authorizer)

	ep := NewEndpoint(service)

	attachHandler := kithttp.NewServer(
		serverAuth(ep.Attach),
		decodeAttachRequest,
		authhttp.EncodeJSONResponse,
		opts...,
	)

	listHandler := kithttp.NewServer(
		serverAuth(ep.List),
		decodeListRequest,
		authhttp.EncodeJSONResponse,
		opts...,
	)

	srv.RegisterHandler("/projects", "PUT", attachHandler)
	srv.RegisterHandler("/projects", "GET", listHandler)
}

type attachRequest struct {
	ProjectKey     string                  `json:"projectKey"`
	ProjectName    string                  `json:"projectName"`
	EncryptionKeys *comapeo.EncryptionKeys `json:"encryptionKeys"`
}

type listRequest struct {
	ProjectID   string
	ProjectName string
}

func decodeAttachRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	defer r.Body.Close()

	var req attachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.New("invalid request body", errors.BadRequest())
	}
	return req, nil
}

func decodeListRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	defer r.Body.Close()

	query := r.URL.Query()
	return listRequest{
		ProjectID:   query.Get("projectId"),
		ProjectName: query.Get("name"),
	}, nil
}

type Endpoint struct {
	service *project.Service
}

func NewEndpoint(service *project.Service) Endpoint {
	return Endpoint{service: service}
}

var errInvalidRequest = errors.New("invalid request", errors.BadRequest())

func (ep Endpoint) Attach(ctx context.Context, r interface{}) (interface{}, error) {
	req, ok := r.(attachRequest)
	if !ok {
		return nil, errInvalidRequest
	}

	return ep.service.Attach(ctx, req.ProjectKey, req.ProjectName, req.EncryptionKeys)
}

func (ep Endpoint) List(ctx context.Context, r interface{}) (interface{}, error) {
	req, ok := r.(listRequest)
	if !ok {
		return nil, errInvalidRequest
	}

	return ep.service.List(ctx, req.ProjectID, req.ProjectName)
}
