// Package filter evaluates user-supplied boolean expressions over wines.
//
//	f, err := filter.Compile(`color == "red" && year < 2015 && end <= 2026`)
//	wines, err = f.Apply(wines)
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/mycellarapp/cellar-server/internal/domain"
	domainerrors "github.com/mycellarapp/cellar-server/internal/errors"
)

// MaxLength bounds the expression source.
const MaxLength = 512

// Env is the set of variables an expression can reference. Missing years
// are zero.
type Env struct {
	Name     string    `expr:"name"`
	Producer string    `expr:"producer"`
	Region   string    `expr:"region"`
	Color    string    `expr:"color"`
	Location string    `expr:"location"`
	CellarID string    `expr:"cellarId"`
	Notes    string    `expr:"notes"`
	Year     int       `expr:"year"`
	Start    int       `expr:"start"`
	End      int       `expr:"end"`
	AddedAt  time.Time `expr:"addedAt"`
	Now      time.Time `expr:"now"`
}

// Filter is a compiled expression.
type Filter struct {
	source  string
	program *vm.Program
	now     func() time.Time
}

// Compile parses and type-checks source. The expression must yield a bool.
func Compile(source string) (*Filter, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, domainerrors.Validation("filter expression must not be empty")
	}
	if len(source) > MaxLength {
		return nil, domainerrors.Validationf("filter expression exceeds %d characters", MaxLength)
	}

	program, err := expr.Compile(source, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, domainerrors.Wrapf(err, domainerrors.CodeValidation, "invalid filter expression: %v", err)
	}
	return &Filter{source: source, program: program, now: time.Now}, nil
}

// String returns the expression source.
func (f *Filter) String() string { return f.source }

func envFor(w *domain.Wine, now time.Time) Env {
	return Env{
		Name:     w.Name,
		Producer: w.Producer,
		Region:   w.Region,
		Color:    string(w.Color),
		Location: w.Location,
		CellarID: w.Cellar(),
		Notes:    w.Notes,
		Year:     deref(w.Year),
		Start:    deref(w.DrinkingWindowStartYear),
		End:      deref(w.DrinkingWindowEndYear),
		AddedAt:  w.AddedAt,
		Now:      now,
	}
}

// Match reports whether w satisfies the expression.
func (f *Filter) Match(w *domain.Wine) (bool, error) {
	out, err := expr.Run(f.program, envFor(w, f.now()))
	if err != nil {
		return false, domainerrors.Wrapf(err, domainerrors.CodeValidation, "evaluate filter: %v", err)
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, fmt.Errorf("filter returned %T", out)
	}
	return ok, nil
}

// Apply keeps the wines that match. It stops at the first evaluation error.
func (f *Filter) Apply(wines []domain.Wine) ([]domain.Wine, error) {
	out := make([]domain.Wine, 0, len(wines))
	for i := range wines {
		ok, err := f.Match(&wines[i])
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, wines[i])
		}
	}
	return out, nil
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
