// Package student resolves scan keys to registry records.
package student

import (
	"context"
	"fmt"
	"strings"

	"gateattend/internal/model"
	"gateattend/internal/token"
)

// Finder looks a student up by a single field. It returns (nil, nil) when
// nothing matches.
type Finder interface {
	FindStudent(ctx context.Context, field model.StudentField, value string) (*model.Student, error)
}

type lookup struct {
	field model.StudentField
	value string
}

// Resolver tries each strategy in order of decreasing reliability and stops at
// the first match. Name matching is a last resort.
type Resolver struct {
	finder Finder
}

func NewResolver(finder Finder) *Resolver {
	return &Resolver{finder: finder}
}

// Resolve returns model.ErrStudentNotFound when every strategy misses. Store
// errors abort the chain so a transient failure is not reported as unknown.
func (r *Resolver) Resolve(ctx context.Context, key string) (*model.Student, error) {
	for _, l := range plan(key) {
		st, err := r.finder.FindStudent(ctx, l.field, l.value)
		if err != nil {
			return nil, fmt.Errorf("find student by %s: %w", l.field, err)
		}
		if st != nil {
			return st, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", model.ErrStudentNotFound, key)
}

func plan(key string) []lookup {
	steps := []lookup{
		{model.FieldID, key},
		{model.FieldStudentNumber, key},
	}
	if up := strings.ToUpper(key); up != key {
		steps = append(steps, lookup{model.FieldStudentNumber, up})
	}
	steps = append(steps,
		lookup{model.FieldQRCode, key},
		lookup{model.FieldQRCode, token.LegacyPrefix + key},
	)
	if token.IsLRN(key) {
		steps = append(steps, lookup{model.FieldLRN, key})
	}
	return append(steps, lookup{model.FieldName, key})
}
