package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/target/simqueue/internal/domain/model"
	apperrors "github.com/target/simqueue/internal/errors"
)

const (
	// MaxImportCount bounds the count accepted alongside an imported document.
	MaxImportCount = 1000
	// MaxImportBytes bounds the size of an imported document.
	MaxImportBytes = 1 << 20
)

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

type jmespathLibEvaluator struct{}

func (jmespathLibEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// ImportRequest is a parameter document submitted for validation.
type ImportRequest struct {
	Document []byte
	// Path optionally selects the parameter object inside Document.
	Path  string
	Count int
}

// ImportResult carries the validated, normalized parameters.
type ImportResult struct {
	SimulationData model.SimulationInput `json:"simulationData"`
	Count          int                   `json:"count"`
}

// ImportServiceOptions groups dependencies for ImportService.
type ImportServiceOptions struct {
	Evaluator JMESPathEvaluator // Optional: defaults to go-jmespath
}

// ImportService validates parameter documents against the import schema. It never creates simulations.
type ImportService struct {
	jems JMESPathEvaluator
}

// NewImportService constructs a new ImportService.
func NewImportService(opts ImportServiceOptions) *ImportService {
	jems := opts.Evaluator
	if jems == nil {
		jems = jmespathLibEvaluator{}
	}
	return &ImportService{jems: jems}
}

// Import parses req.Document, applies import defaults and validates the result.
// Movements in the returned parameters use their canonical names.
func (s *ImportService) Import(req ImportRequest) (*ImportResult, error) {
	if req.Count < 1 || req.Count > MaxImportCount {
		return nil, apperrors.ValidationField("count", fmt.Sprintf("count must be between 1 and %d", MaxImportCount))
	}
	if len(bytes.TrimSpace(req.Document)) == 0 {
		return nil, apperrors.Validation("document is required")
	}
	if len(req.Document) > MaxImportBytes {
		return nil, apperrors.Validationf("document cannot exceed %d bytes", MaxImportBytes)
	}

	raw, err := s.selectDocument(req.Document, req.Path)
	if err != nil {
		return nil, err
	}

	// Keys outside the import schema are ignored.
	var in model.SimulationInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "document does not match the import schema")
	}

	in.ApplyImportDefaults()
	if err := in.ValidateImport(); err != nil {
		return nil, fieldErrorToApp(err)
	}
	in.NormalizeMovements()

	return &ImportResult{SimulationData: in, Count: req.Count}, nil
}

func (s *ImportService) selectDocument(doc []byte, path string) ([]byte, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return doc, nil
	}
	if err := s.jems.Validate(path); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid path expression")
	}

	var data any
	if err := json.Unmarshal(doc, &data); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "document is not valid JSON")
	}
	selected, err := s.jems.Evaluate(path, data)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "evaluate path expression")
	}
	if _, ok := selected.(map[string]any); !ok {
		return nil, apperrors.ValidationField("path", "path must select a JSON object")
	}
	out, err := json.Marshal(selected)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "encode selected document")
	}
	return out, nil
}
