package workflow

import (
	"strings"

	apperrors "foundation-review/internal/common/errors"
	"foundation-review/internal/common/validation"
	"foundation-review/internal/models"
)

func submissionSchema(minStatementLength int) map[string]interface{} {
	statement := map[string]interface{}{"type": "string", "minLength": minStatementLength}
	nonEmpty := map[string]interface{}{"type": "string", "minLength": 1}

	return map[string]interface{}{
		"type": "object",
		"required": []string{
			"fundingType", "personalStatement", "expectedBenefits",
			"commitmentStatement", "commitmentAcknowledged", "signature",
		},
		"properties": map[string]interface{}{
			"fundingType":            nonEmpty,
			"personalStatement":      statement,
			"expectedBenefits":       statement,
			"commitmentStatement":    statement,
			"commitmentAcknowledged": map[string]interface{}{"type": "boolean", "const": true},
			"signature":              nonEmpty,
			"requestedMonthlyAmount": map[string]interface{}{"type": "number", "minimum": 0},
		},
	}
}

// submissionDocument trims the free-text fields so padding cannot satisfy a length rule.
func submissionDocument(c models.ApplicationContent) map[string]interface{} {
	return map[string]interface{}{
		"fundingType":            strings.TrimSpace(c.FundingType),
		"personalStatement":      strings.TrimSpace(c.PersonalStatement),
		"expectedBenefits":       strings.TrimSpace(c.ExpectedBenefits),
		"commitmentStatement":    strings.TrimSpace(c.CommitmentStatement),
		"commitmentAcknowledged": c.CommitmentAcknowledged,
		"signature":              strings.TrimSpace(c.Signature),
		"requestedMonthlyAmount": c.RequestedMonthlyAmount,
	}
}

// validateSubmission returns one validation error per failing field.
func validateSubmission(v *validation.Validator, c models.ApplicationContent) ([]*apperrors.ReviewError, error) {
	result, err := v.Validate(submissionDocument(c))
	if err != nil {
		return nil, err
	}
	if result.Valid {
		return nil, nil
	}
	errs := make([]*apperrors.ReviewError, 0, len(result.Errors))
	for _, e := range result.Errors {
		errs = append(errs, apperrors.NewValidationError(e.Field, e.Message))
	}
	return errs, nil
}
