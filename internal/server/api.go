package server

import (
	"context"
	"net/http"
	"sort"

	"github.com/danielgtaylor/huma/v2"

	"github.com/faciam-dev/formportal/internal/logger"
	"github.com/faciam-dev/formportal/internal/server/middleware"
	"github.com/faciam-dev/formportal/pkg/formengine"
	"github.com/faciam-dev/formportal/pkg/formschema"
)

type formPath struct {
	Type string `path:"type" doc:"Insurance type, e.g. health"`
}

type fieldPath struct {
	Type string `path:"type" doc:"Insurance type, e.g. health"`
	ID   string `path:"id" doc:"Field id"`
}

type setFieldInput struct {
	Type string `path:"type" doc:"Insurance type, e.g. health"`
	ID   string `path:"id" doc:"Field id"`
	Body struct {
		Value any `json:"value" doc:"New field value"`
	}
}

type setFieldOutput struct {
	Body struct {
		Visible []string          `json:"visible" doc:"Ids of the fields now visible"`
		Errors  map[string]string `json:"errors" doc:"Remaining field errors"`
	}
}

type validateOutput struct {
	Body struct {
		Valid   bool              `json:"valid"`
		Errors  map[string]string `json:"errors"`
		Summary string            `json:"summary,omitempty"`
	}
}

type optionsOutput struct {
	Body struct {
		Options []string `json:"options"`
		Stale   bool     `json:"stale,omitempty" doc:"A newer request for the same field superseded this one"`
	}
}

func (s *Server) registerAPI(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "setField",
		Method:      http.MethodPut,
		Path:        "/v1/forms/{type}/fields/{id}",
		Summary:     "Set one field value",
		Tags:        []string{"Forms"},
	}, s.setField)
	huma.Register(api, huma.Operation{
		OperationID: "validateForm",
		Method:      http.MethodPost,
		Path:        "/v1/forms/{type}/validate",
		Summary:     "Validate the current form values",
		Tags:        []string{"Forms"},
	}, s.validateForm)
	huma.Register(api, huma.Operation{
		OperationID: "fieldOptions",
		Method:      http.MethodGet,
		Path:        "/v1/forms/{type}/fields/{id}/options",
		Summary:     "Resolve the options of a field",
		Tags:        []string{"Forms"},
	}, s.fieldOptions)
	huma.Register(api, huma.Operation{
		OperationID:   "discardDraft",
		Method:        http.MethodDelete,
		Path:          "/v1/forms/{type}/draft",
		Summary:       "Discard the saved draft",
		Tags:          []string{"Forms"},
		DefaultStatus: http.StatusNoContent,
	}, s.discardDraft)
}

func (s *Server) apiStructures(ctx context.Context, insuranceType string) ([]formschema.Structure, error) {
	st, err := s.structures(ctx, insuranceType)
	if err != nil {
		logger.L.Error("load form structure", "type", insuranceType, "err", err)
		return nil, huma.Error502BadGateway(FormLoadFailed)
	}
	return st, nil
}

func visibleIDs(structures []formschema.Structure, values formschema.Values) []string {
	ids := []string{}
	for id, ok := range formengine.VisibleSet(structures, values) {
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *Server) setField(ctx context.Context, in *setFieldInput) (*setFieldOutput, error) {
	structures, err := s.apiStructures(ctx, in.Type)
	if err != nil {
		return nil, err
	}
	f, ok := formschema.Lookup(structures, in.ID)
	if !ok || f.IsGroup() {
		return nil, huma.Error404NotFound("unknown field " + in.ID)
	}
	form := s.sessions.Open(ctx, middleware.ClientFromContext(ctx), in.Type)
	form.Set(in.ID, in.Body.Value)

	out := &setFieldOutput{}
	out.Body.Visible = visibleIDs(structures, form.Values())
	out.Body.Errors = form.Errors()
	return out, nil
}

func (s *Server) validateForm(ctx context.Context, in *formPath) (*validateOutput, error) {
	structures, err := s.apiStructures(ctx, in.Type)
	if err != nil {
		return nil, err
	}
	form := s.sessions.Open(ctx, middleware.ClientFromContext(ctx), in.Type)
	errs := formengine.Validate(structures, form.Values())
	out := &validateOutput{}
	out.Body.Valid = errs.OK()
	out.Body.Errors = errs
	if !errs.OK() {
		out.Body.Summary = formengine.SummaryMessage
	}
	return out, nil
}

func (s *Server) fieldOptions(ctx context.Context, in *fieldPath) (*optionsOutput, error) {
	structures, err := s.apiStructures(ctx, in.Type)
	if err != nil {
		return nil, err
	}
	f, ok := formschema.Lookup(structures, in.ID)
	if !ok || f.IsGroup() {
		return nil, huma.Error404NotFound("unknown field " + in.ID)
	}
	ns := middleware.ClientFromContext(ctx)
	form := s.sessions.Open(ctx, ns, in.Type)
	res := s.options.Resolve(ctx, scope(ns, in.Type), f, form.Values())
	out := &optionsOutput{}
	out.Body.Options = res.Options
	if out.Body.Options == nil {
		out.Body.Options = []string{}
	}
	out.Body.Stale = res.Stale
	return out, nil
}

func (s *Server) discardDraft(ctx context.Context, in *formPath) (*struct{}, error) {
	ns := middleware.ClientFromContext(ctx)
	form := s.sessions.Open(ctx, ns, in.Type)
	if err := form.ClearDraft(ctx); err != nil {
		logger.L.Error("discard draft", "type", in.Type, "err", err)
		return nil, huma.Error500InternalServerError("failed to discard draft")
	}
	s.sessions.Drop(ns, in.Type)
	s.options.Forget(scope(ns, in.Type))
	return nil, nil
}
