package model

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	maxTitleLen     = 255
	maxSubstrateLen = 100
	maxMovementLen  = 32
	maxDuration     = 1000
	maxTumorCount   = 10000
	maxCellCount    = 10000
	maxDimension    = 1000
	maxDecayRate    = 1
	maxDivisionRate = 10
)

// Message defaults applied when a batch template leaves a field unset.
const (
	DefaultMode         = Mode2D
	DefaultSubstrate    = "Oxygen"
	DefaultDuration     = 5.0
	DefaultDecayRate    = 0.1
	DefaultDivisionRate = 0.1
	DefaultX            = 1
	DefaultY            = 1
)

// FieldError is a validation failure tied to one input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}

// SimulationInput is a parameter template as submitted by a caller. Unset fields are nil;
// the store keeps them as NULL.
type SimulationInput struct {
	Title               *string  `json:"title,omitempty"`
	Mode                *Mode    `json:"mode,omitempty"`
	Substrate           *string  `json:"substrate,omitempty"`
	Duration            *float64 `json:"duration,omitempty"`
	DecayRate           *float64 `json:"decayRate,omitempty"`
	DivisionRate        *float64 `json:"divisionRate,omitempty"`
	X                   *int     `json:"x,omitempty"`
	Y                   *int     `json:"y,omitempty"`
	Z                   *int     `json:"z,omitempty"`
	TumorCount          *int     `json:"tumorCount,omitempty"`
	TumorMovement       *string  `json:"tumorMovement,omitempty"`
	ImmuneCount         *int     `json:"immuneCount,omitempty"`
	ImmuneMovement      *string  `json:"immuneMovement,omitempty"`
	StemCount           *int     `json:"stemCount,omitempty"`
	StemMovement        *string  `json:"stemMovement,omitempty"`
	FibroblastCount     *int     `json:"fibroblastCount,omitempty"`
	FibroblastMovement  *string  `json:"fibroblastMovement,omitempty"`
	DrugCarrierCount    *int     `json:"drugCarrierCount,omitempty"`
	DrugCarrierMovement *string  `json:"drugCarrierMovement,omitempty"`
}

// SimulationParams is a fully resolved parameter set, as carried on the queue
// and consumed by the scoring model.
type SimulationParams struct {
	Mode                Mode      `json:"mode"`
	Substrate           string    `json:"substrate"`
	Duration            float64   `json:"duration"`
	DecayRate           float64   `json:"decayRate"`
	DivisionRate        float64   `json:"divisionRate"`
	X                   int       `json:"x"`
	Y                   int       `json:"y"`
	Z                   *int      `json:"z"`
	TumorCount          int       `json:"tumorCount"`
	TumorMovement       *Movement `json:"tumorMovement"`
	ImmuneCount         int       `json:"immuneCount"`
	ImmuneMovement      *Movement `json:"immuneMovement"`
	StemCount           int       `json:"stemCount"`
	StemMovement        *Movement `json:"stemMovement"`
	FibroblastCount     int       `json:"fibroblastCount"`
	FibroblastMovement  *Movement `json:"fibroblastMovement"`
	DrugCarrierCount    int       `json:"drugCarrierCount"`
	DrugCarrierMovement *Movement `json:"drugCarrierMovement"`
}

type intRange struct {
	field    string
	value    *int
	min, max int
}

type floatRange struct {
	field    string
	value    *float64
	min, max float64
	openMin  bool
}

// Validate checks every present field against its range and enforces the
// mode/z rule. tumorCount is required.
func (in *SimulationInput) Validate() error {
	if in.Title != nil && utf8.RuneCountInString(strings.TrimSpace(*in.Title)) > maxTitleLen {
		return &FieldError{Field: "title", Message: fmt.Sprintf("title cannot exceed %d characters", maxTitleLen)}
	}
	if in.Mode != nil && !in.Mode.Valid() {
		return &FieldError{Field: "mode", Message: "mode must be one of: 2D, 3D"}
	}
	if in.Substrate != nil {
		n := utf8.RuneCountInString(strings.TrimSpace(*in.Substrate))
		if n == 0 || n > maxSubstrateLen {
			return &FieldError{
				Field:   "substrate",
				Message: fmt.Sprintf("substrate must be between 1 and %d characters", maxSubstrateLen),
			}
		}
	}
	if in.TumorCount == nil {
		return &FieldError{Field: "tumorCount", Message: "tumorCount is required"}
	}
	if err := in.validateRanges(); err != nil {
		return err
	}
	if err := in.validateMovements(nil); err != nil {
		return err
	}
	return in.validateDimensions()
}

func (in *SimulationInput) validateRanges() error {
	floats := []floatRange{
		{field: "duration", value: in.Duration, min: 0, max: maxDuration, openMin: true},
		{field: "decayRate", value: in.DecayRate, min: 0, max: maxDecayRate},
		{field: "divisionRate", value: in.DivisionRate, min: 0, max: maxDivisionRate},
	}
	for _, f := range floats {
		if f.value == nil {
			continue
		}
		v := *f.value
		if v < f.min || (f.openMin && v == f.min) || v > f.max {
			if f.openMin {
				return &FieldError{Field: f.field, Message: fmt.Sprintf("%s must be > %g and <= %g", f.field, f.min, f.max)}
			}
			return &FieldError{Field: f.field, Message: fmt.Sprintf("%s must be between %g and %g", f.field, f.min, f.max)}
		}
	}

	ints := []intRange{
		{field: "tumorCount", value: in.TumorCount, min: 1, max: maxTumorCount},
		{field: "x", value: in.X, min: 0, max: maxDimension},
		{field: "y", value: in.Y, min: 0, max: maxDimension},
		{field: "z", value: in.Z, min: 0, max: maxDimension},
		{field: "immuneCount", value: in.ImmuneCount, min: 0, max: maxCellCount},
		{field: "stemCount", value: in.StemCount, min: 0, max: maxCellCount},
		{field: "fibroblastCount", value: in.FibroblastCount, min: 0, max: maxCellCount},
		{field: "drugCarrierCount", value: in.DrugCarrierCount, min: 0, max: maxCellCount},
	}
	for _, r := range ints {
		if r.value == nil {
			continue
		}
		if *r.value < r.min || *r.value > r.max {
			return &FieldError{Field: r.field, Message: fmt.Sprintf("%s must be between %d and %d", r.field, r.min, r.max)}
		}
	}
	return nil
}

// validateMovements bounds movement strings. When vocabulary is non-nil the raw
// value must also be one of its (lower-case) entries.
func (in *SimulationInput) validateMovements(vocabulary map[string]bool) error {
	for _, mv := range in.movementFields() {
		if mv.value == nil {
			continue
		}
		raw := strings.ToLower(strings.TrimSpace(*mv.value))
		if len(raw) > maxMovementLen {
			return &FieldError{Field: mv.field, Message: fmt.Sprintf("%s cannot exceed %d characters", mv.field, maxMovementLen)}
		}
		if vocabulary != nil && !vocabulary[raw] {
			return &FieldError{
				Field:   mv.field,
				Message: mv.field + " must be one of: static, random, directed, collective, flow, none",
			}
		}
	}
	return nil
}

func (in *SimulationInput) validateDimensions() error {
	mode := DefaultMode
	if in.Mode != nil {
		mode = *in.Mode
	}
	switch mode {
	case Mode3D:
		if in.Z == nil {
			return &FieldError{Field: "z", Message: "z is required for 3D mode"}
		}
	case Mode2D:
		if in.Z != nil && *in.Z != 0 {
			return &FieldError{Field: "z", Message: "z must be 0 or omitted for 2D mode"}
		}
	}
	return nil
}

type movementField struct {
	field string
	value *string
}

func (in *SimulationInput) movementFields() []movementField {
	return []movementField{
		{field: "tumorMovement", value: in.TumorMovement},
		{field: "immuneMovement", value: in.ImmuneMovement},
		{field: "stemMovement", value: in.StemMovement},
		{field: "fibroblastMovement", value: in.FibroblastMovement},
		{field: "drugCarrierMovement", value: in.DrugCarrierMovement},
	}
}

// NormalizeMovements rewrites every present movement to its canonical name.
func (in *SimulationInput) NormalizeMovements() {
	targets := []**string{
		&in.TumorMovement, &in.ImmuneMovement, &in.StemMovement, &in.FibroblastMovement, &in.DrugCarrierMovement,
	}
	for _, target := range targets {
		if *target == nil {
			continue
		}
		canonical := string(MapMovement(**target))
		*target = &canonical
	}
}

// Resolve applies the message defaults to unset fields and maps movements to the
// canonical vocabulary. z and unset movements stay nil.
func (in *SimulationInput) Resolve() SimulationParams {
	p := SimulationParams{
		Mode:                valueOr(in.Mode, DefaultMode),
		Substrate:           strings.TrimSpace(valueOr(in.Substrate, DefaultSubstrate)),
		Duration:            valueOr(in.Duration, DefaultDuration),
		DecayRate:           valueOr(in.DecayRate, DefaultDecayRate),
		DivisionRate:        valueOr(in.DivisionRate, DefaultDivisionRate),
		X:                   valueOr(in.X, DefaultX),
		Y:                   valueOr(in.Y, DefaultY),
		Z:                   cloneInt(in.Z),
		TumorCount:          valueOr(in.TumorCount, 0),
		TumorMovement:       mapMovementPtr(in.TumorMovement),
		ImmuneCount:         valueOr(in.ImmuneCount, 0),
		ImmuneMovement:      mapMovementPtr(in.ImmuneMovement),
		StemCount:           valueOr(in.StemCount, 0),
		StemMovement:        mapMovementPtr(in.StemMovement),
		FibroblastCount:     valueOr(in.FibroblastCount, 0),
		FibroblastMovement:  mapMovementPtr(in.FibroblastMovement),
		DrugCarrierCount:    valueOr(in.DrugCarrierCount, 0),
		DrugCarrierMovement: mapMovementPtr(in.DrugCarrierMovement),
	}
	if p.Substrate == "" {
		p.Substrate = DefaultSubstrate
	}
	return p
}

// importMovementVocabulary is the closed set accepted by document import.
var importMovementVocabulary = map[string]bool{ //nolint:gochecknoglobals // read-only lookup table
	"static":     true,
	"random":     true,
	"directed":   true,
	"collective": true,
	"flow":       true,
	"none":       true,
}

// ErrImportMissingField is wrapped by ValidateImport when a required field is absent.
var ErrImportMissingField = errors.New("required field is missing")

// ApplyImportDefaults fills optional fields with the defaults used for imported documents.
func (in *SimulationInput) ApplyImportDefaults() {
	setDefault(&in.DecayRate, 0.1)
	setDefault(&in.DivisionRate, 0.05)
	setDefault(&in.X, 100)
	setDefault(&in.Y, 100)
	setDefault(&in.ImmuneCount, 50)
	setDefault(&in.StemCount, 25)
	setDefault(&in.FibroblastCount, 75)
	setDefault(&in.DrugCarrierCount, 30)
	setDefault(&in.TumorMovement, "random")
	setDefault(&in.ImmuneMovement, "directed")
	setDefault(&in.StemMovement, "static")
	setDefault(&in.FibroblastMovement, "random")
	setDefault(&in.DrugCarrierMovement, "directed")
}

// ValidateImport applies the stricter import schema: title, mode, substrate,
// duration and tumorCount are required and movements must use the known vocabulary.
func (in *SimulationInput) ValidateImport() error {
	required := []struct {
		field   string
		missing bool
	}{
		{"title", in.Title == nil || strings.TrimSpace(*in.Title) == ""},
		{"mode", in.Mode == nil},
		{"substrate", in.Substrate == nil},
		{"duration", in.Duration == nil},
		{"tumorCount", in.TumorCount == nil},
	}
	for _, r := range required {
		if r.missing {
			return &FieldError{Field: r.field, Message: fmt.Sprintf("%s: %v", r.field, ErrImportMissingField)}
		}
	}
	if err := in.Validate(); err != nil {
		return err
	}
	return in.validateMovements(importMovementVocabulary)
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

func setDefault[T any](p **T, def T) {
	if *p == nil {
		v := def
		*p = &v
	}
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func mapMovementPtr(raw *string) *Movement {
	if raw == nil {
		return nil
	}
	m := MapMovement(*raw)
	return &m
}
