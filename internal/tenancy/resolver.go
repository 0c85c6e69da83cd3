package tenancy

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"call-analytics/internal/apperr"
	"call-analytics/internal/auth"
	"call-analytics/internal/rbac"
	"call-analytics/pkg/utils"

	"github.com/go-playground/validator/v10"
)

// ClientDirectory answers whether a tenant exists.
type ClientDirectory interface {
	ClientExists(ctx context.Context, clientID string) (bool, error)
}

// AssistantDirectory answers which client owns an assistant.
// found is false for unknown assistants; an unassigned assistant is found with an empty owner.
type AssistantDirectory interface {
	AssistantOwner(ctx context.Context, assistantID string) (clientID string, found bool, err error)
}

var idTokenRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// NewValidator returns the validator used for scope and filter parameters.
// It registers "idtoken" for provider-issued identifiers and panics if the
// registration is rejected, since every filter depends on it.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("idtoken", func(fl validator.FieldLevel) bool {
		return idTokenRe.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("tenancy: register idtoken validator: %v", err))
	}
	return v
}

type Resolver struct {
	clients    ClientDirectory
	assistants AssistantDirectory
	validate   *validator.Validate
	loc        *time.Location
}

func NewResolver(clients ClientDirectory, assistants AssistantDirectory, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{
		clients:    clients,
		assistants: assistants,
		validate:   NewValidator(),
		loc:        loc,
	}
}

type scopeRequest struct {
	ClientID    string `validate:"omitempty,uuid"`
	AssistantID string `validate:"omitempty,idtoken"`
}

// Resolve derives the scope for p. Tenant-bound principals always get their own client;
// a contradicting requested client is rejected rather than silently replaced.
func (r *Resolver) Resolve(ctx context.Context, p *auth.Principal, requestedClientID, requestedAssistantID string) (Scope, error) {
	if p == nil {
		return Scope{}, apperr.Unauthenticated("authentication required")
	}

	req := scopeRequest{
		ClientID:    strings.TrimSpace(requestedClientID),
		AssistantID: strings.TrimSpace(requestedAssistantID),
	}
	if err := r.validate.Struct(req); err != nil {
		return Scope{}, validationError(err)
	}

	switch {
	case p.TenantBound():
		if req.ClientID != "" && req.ClientID != p.ClientID {
			return Scope{}, apperr.Forbidden("clientId outside caller's tenant")
		}
		scope := Scope{ClientID: p.ClientID}
		if req.AssistantID != "" {
			owner, err := r.assistantOwner(ctx, req.AssistantID)
			if err != nil {
				return Scope{}, err
			}
			if owner != p.ClientID {
				return Scope{}, apperr.Forbidden("assistant outside caller's tenant")
			}
			scope.AssistantID = req.AssistantID
		}
		return scope, nil

	case rbac.IsAdmin(p.Role):
		if req.ClientID != "" {
			ok, err := r.clients.ClientExists(ctx, req.ClientID)
			if err != nil {
				return Scope{}, apperr.Store("lookup client", err)
			}
			if !ok {
				return Scope{}, apperr.NotFound("client not found")
			}
		}
		if req.AssistantID != "" {
			if _, err := r.assistantOwner(ctx, req.AssistantID); err != nil {
				return Scope{}, err
			}
		}
		return Scope{ClientID: req.ClientID, AssistantID: req.AssistantID}, nil

	default:
		return Scope{}, apperr.Forbidden("role has no analytics access")
	}
}

func (r *Resolver) assistantOwner(ctx context.Context, assistantID string) (string, error) {
	owner, found, err := r.assistants.AssistantOwner(ctx, assistantID)
	if err != nil {
		return "", apperr.Store("lookup assistant", err)
	}
	if !found {
		return "", apperr.NotFound("assistant not found")
	}
	return owner, nil
}

// FilterRequest carries the raw list-filter parameters of a request.
type FilterRequest struct {
	ClientID    string `form:"clientId"`
	AssistantID string `form:"assistantId"`
	Status      string `form:"status" validate:"omitempty,oneof=queued ringing in_progress forwarding completed busy no_answer failed canceled"`
	Qualified   string `form:"qualified" validate:"omitempty,oneof=true false"`
	DateFrom    string `form:"dateFrom" validate:"omitempty,datetime=2006-01-02"`
	DateTo      string `form:"dateTo" validate:"omitempty,datetime=2006-01-02"`
}

// Filter resolves scope and validates the remaining filter fields in one step.
// dateTo is inclusive on input and becomes the exclusive end of the next day.
func (r *Resolver) Filter(ctx context.Context, p *auth.Principal, req FilterRequest) (QueryFilter, error) {
	scope, err := r.Resolve(ctx, p, req.ClientID, req.AssistantID)
	if err != nil {
		return QueryFilter{}, err
	}
	if err := r.validate.Struct(req); err != nil {
		return QueryFilter{}, validationError(err)
	}

	f := QueryFilter{Scope: scope, Status: req.Status}
	if req.Qualified != "" {
		q := req.Qualified == "true"
		f.Qualified = &q
	}

	if req.DateFrom != "" || req.DateTo != "" {
		rng := DateRange{
			From: time.Unix(0, 0).In(r.loc),
			To:   time.Date(9999, 1, 1, 0, 0, 0, 0, r.loc),
		}
		if req.DateFrom != "" {
			from, err := utils.ParseDate(req.DateFrom, r.loc)
			if err != nil {
				return QueryFilter{}, apperr.Validation("invalid dateFrom")
			}
			rng.From = from
		}
		if req.DateTo != "" {
			to, err := utils.ParseDate(req.DateTo, r.loc)
			if err != nil {
				return QueryFilter{}, apperr.Validation("invalid dateTo")
			}
			rng.To = to.AddDate(0, 0, 1)
		}
		if !rng.From.Before(rng.To) {
			return QueryFilter{}, apperr.Validation("dateFrom must not be after dateTo")
		}
		f.Range = &rng
	}
	return f, nil
}

func validationError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return apperr.Validation("invalid " + lowerFirst(ve[0].Field()))
	}
	return apperr.Validation("invalid request")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	if strings.HasSuffix(s, "ID") {
		s = strings.TrimSuffix(s, "ID") + "Id"
	}
	return strings.ToLower(s[:1]) + s[1:]
}
