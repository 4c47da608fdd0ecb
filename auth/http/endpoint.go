package http

import (
	"context"

	"github.com/go-kit/kit/endpoint"

	"github.com/digidem/comapeo-cloud/auth"
	"github.com/digidem/comapeo-cloud/errors"
)

var errInvalidRequest = errors.New("invalid request", errors.BadRequest())

// authorizationKey is the context key under which the raw Authorization
// header is stored by the transport.
const authorizationKey = "authorization"

func authorizationHeader(ctx context.Context) string {
	header, _ := ctx.Value(authorizationKey).(string)
	return header
}

func routeParams(ctx context.Context) map[string]string {
	params, _ := ctx.Value("params").(map[string]string)
	return params
}

// ServerAuth gates an endpoint behind the server bearer token.
func ServerAuth(authorizer *auth.Authorizer) endpoint.Middleware {
	return func(next endpoint.Endpoint) endpoint.Endpoint {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			if err := authorizer.RequireServerAuth(authorizationHeader(ctx)); err != nil {
				return nil, err
			}
			return next(ctx, req)
		}
	}
}

// ProjectAuth gates an endpoint behind a token scoped to the project named
// by the projectPublicId route parameter. The server token passes for any
// project.
func ProjectAuth(authorizer *auth.Authorizer) endpoint.Middleware {
	return func(next endpoint.Endpoint) endpoint.Endpoint {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			publicID := routeParams(ctx)["projectPublicId"]
			if err := authorizer.RequireProjectAuth(ctx, authorizationHeader(ctx), publicID); err != nil {
				return nil, err
			}
			return next(ctx, req)
		}
	}
}

type Endpoint struct {
	service *auth.Service
	links   *auth.MagicLinkService
}

func NewEndpoint(service *auth.Service, links *auth.MagicLinkService) Endpoint {
	return Endpoint{
		service: service,
		links:   links,
	}
}

type registerRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	ProjectName string `json:"projectName"`
}

func (ep Endpoint) Register(ctx context.Context, r interface{}) (interface{}, error) {
	req, ok := r.(registerRequest)
	if !ok {
		return nil, errInvalidRequest
	}

	return ep.service.Register(ctx, req.PhoneNumber, req.ProjectName)
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (ep Endpoint) Login(ctx context.Context, r interface{}) (interface{}, error) {
	req, ok := r.(registerRequest)
	if !ok {
		return nil, errInvalidRequest
	}

	token, err := ep.service.Login(ctx, req.PhoneNumber, req.ProjectName)
	if err != nil {
		return nil, err
	}
	return tokenResponse{Token: token}, nil
}

type enrollMemberRequest struct {
	CoordinatorPhoneNumber string `json:"coordinatorPhoneNumber"`
	PhoneNumber            string `json:"phoneNumber"`
}

func (ep Endpoint) EnrollMember(ctx context.Context, r interface{}) (interface{}, error) {
	req, ok := r.(enrollMemberRequest)
	if !ok {
		return nil, errInvalidRequest
	}

	token, err := ep.service.EnrollMember(
		authorizationHeader(ctx),
		req.CoordinatorPhoneNumber,
		req.PhoneNumber,
	)
	if err != nil {
		return nil, err
	}
	return tokenResponse{Token: token}, nil
}

type magicLinkResponse struct {
	MagicLinkToken string `json:"magicLinkToken"`
}

func (ep Endpoint) CreateMagicLink(ctx context.Context, _ interface{}) (interface{}, error) {
	ownerToken := auth.TrimBearer(authorizationHeader(ctx))
	token, err := ep.links.Issue(ownerToken)
	if err != nil {
		return nil, err
	}
	return magicLinkResponse{MagicLinkToken: token}, nil
}

type redeemResponse struct {
	Token           string `json:"token"`
	PhoneNumber     string `json:"phoneNumber"`
	ProjectName     string `json:"projectName"`
	ProjectPublicID string `json:"projectPublicId"`
}

func (ep Endpoint) RedeemMagicLink(ctx context.Context, r interface{}) (interface{}, error) {
	token, ok := r.(string)
	if !ok {
		return nil, errInvalidRequest
	}

	redemption, err := ep.links.Redeem(ctx, token)
	if err != nil {
		return nil, err
	}

	owner := redemption.Owner
	res := redeemResponse{
		PhoneNumber:     owner.Phone(),
		ProjectName:     owner.Project(),
		ProjectPublicID: redemption.ProjectID,
	}
	switch o := owner.(type) {
	case auth.Coordinator:
		res.Token = o.Token
	case auth.Member:
		res.Token = o.Token
	}
	return res, nil
}
