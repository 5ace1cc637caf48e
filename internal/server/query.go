package server

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/KaramelBytes/medflow-cli/internal/analysis"
)

// reportQuery is the filter surface shared by the analysis endpoints.
type reportQuery struct {
	Suppliers  []string `query:"supplier" validate:"dive,required"`
	Customers  []string `query:"customer" validate:"dive,required"`
	Categories []string `query:"category" validate:"dive,required"`
	From       string   `query:"from" validate:"omitempty,day"`
	To         string   `query:"to" validate:"omitempty,day"`
	FlowLimit  string   `query:"flow_limit" validate:"omitempty,number"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("day", isDay); err != nil {
		panic(fmt.Sprintf("register day validation: %v", err))
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("query")
	})
	return v
}

// isDay accepts the date forms understood by analysis.ParseDay.
func isDay(fl validator.FieldLevel) bool {
	_, err := analysis.ParseDay(fl.Field().String())
	return err == nil
}

func (s *Server) parseQuery(r *http.Request) (analysis.Options, error) {
	q := r.URL.Query()
	in := reportQuery{
		Suppliers:  q["supplier"],
		Customers:  q["customer"],
		Categories: q["category"],
		From:       strings.TrimSpace(q.Get("from")),
		To:         strings.TrimSpace(q.Get("to")),
		FlowLimit:  strings.TrimSpace(q.Get("flow_limit")),
	}
	if err := s.validate.Struct(in); err != nil {
		return analysis.Options{}, queryError(err)
	}

	opt := analysis.Options{
		FlowLimit: s.opts.FlowLimit,
		Filter: analysis.Filter{
			Suppliers:  in.Suppliers,
			Customers:  in.Customers,
			Categories: in.Categories,
		},
	}
	// Both dates already passed validation
	opt.Filter.From, _ = analysis.ParseDay(in.From)
	opt.Filter.To, _ = analysis.ParseDay(in.To)
	if !opt.Filter.From.IsZero() && !opt.Filter.To.IsZero() && opt.Filter.To.Before(opt.Filter.From) {
		return analysis.Options{}, errors.New("to must not be before from")
	}
	if in.FlowLimit != "" {
		n, err := strconv.Atoi(in.FlowLimit)
		if err != nil {
			return analysis.Options{}, fmt.Errorf("flow_limit must be an integer")
		}
		opt.FlowLimit = n
	}
	return opt, nil
}

func queryError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		// dive errors are reported per element, e.g. supplier[0]
		if i := strings.IndexByte(field, '['); i > 0 {
			field = field[:i]
		}
		switch fe.Tag() {
		case "day":
			msgs = append(msgs, fmt.Sprintf("%s must be a date (YYYY-MM-DD or YYYYMMDD)", field))
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s must not be empty", field))
		case "number":
			msgs = append(msgs, fmt.Sprintf("%s must be an integer", field))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
