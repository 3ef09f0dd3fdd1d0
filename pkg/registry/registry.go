// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"io"
	"os"

	apperrors "foundation-review/internal/common/errors"
	castvote "foundation-review/internal/workers/review/cast-vote"
	evaluatevotes "foundation-review/internal/workers/review/evaluate-votes"
	recorddecision "foundation-review/internal/workers/review/record-decision"
	startreview "foundation-review/internal/workers/review/start-review"
)

const Version = "1.0.0"

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// Write encodes reg as indented JSON.
func Write(w io.Writer, reg *ActivityRegistry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reg)
}

// Review lists the review job workers with the BPMN error codes each can throw.
func Review() *ActivityRegistry {
	common := []string{
		bpmn(apperrors.ErrCodeValidationFailed),
		bpmn(apperrors.ErrCodeNotFound),
		bpmn(apperrors.ErrCodeForbidden),
		bpmn(apperrors.ErrCodeInvalidState),
	}

	return &ActivityRegistry{
		Version: Version,
		Activities: []Activity{
			{
				ID:          "start-review",
				DisplayName: "Start Review",
				Description: "Moves a submitted application to UnderReview and snapshots the board quorum",
				Category:    "review",
				TaskType:    startreview.TaskType,
				InputSchema: object([]string{"applicationId", "actorId"}, map[string]interface{}{
					"applicationId": str(),
					"actorId":       str(),
				}),
				OutputSchema: object(nil, map[string]interface{}{
					"applicationId": str(),
					"status":        str(),
					"votesRequired": integer(),
				}),
				ErrorCodes: append(common, bpmn(apperrors.ErrCodeConcurrencyConflict)),
				Timeout:    "30s",
				Retries:    3,
				Tags:       []string{"workflow"},
			},
			{
				ID:          "cast-vote",
				DisplayName: "Cast Vote",
				Description: "Records or replaces a board member's vote",
				Category:    "voting",
				TaskType:    castvote.TaskType,
				InputSchema: object([]string{"applicationId", "voterId", "decision", "reasoning", "confidenceLevel"}, map[string]interface{}{
					"applicationId": str(),
					"voterId":       str(),
					"decision": map[string]interface{}{
						"type": "string",
						"enum": []interface{}{"Approve", "Reject", "NeedsMoreInfo", "Abstain"},
					},
					"reasoning":       str(),
					"confidenceLevel": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 5},
				}),
				OutputSchema: object(nil, map[string]interface{}{
					"totalVotesCast":     integer(),
					"votesRequired":      integer(),
					"hasSufficientVotes": boolean(),
				}),
				ErrorCodes: common,
				Timeout:    "30s",
				Retries:    3,
				Tags:       []string{"voting"},
			},
			{
				ID:          "evaluate-votes",
				DisplayName: "Evaluate Votes",
				Description: "Publishes the voting summary and an advisory recommendation",
				Category:    "voting",
				TaskType:    evaluatevotes.TaskType,
				InputSchema: object([]string{"applicationId"}, map[string]interface{}{
					"applicationId": str(),
				}),
				OutputSchema: object(nil, map[string]interface{}{
					"hasSufficientVotes": boolean(),
					"hasAnyRejection":    boolean(),
					"isApproved":         boolean(),
					"recommendation": map[string]interface{}{
						"type": "string",
						"enum": []interface{}{evaluatevotes.RecommendApprove, evaluatevotes.RecommendReject, evaluatevotes.RecommendWait},
					},
				}),
				ErrorCodes: []string{bpmn(apperrors.ErrCodeValidationFailed), bpmn(apperrors.ErrCodeNotFound)},
				Timeout:    "30s",
				Retries:    3,
				Tags:       []string{"voting", "read-only"},
			},
			{
				ID:          "record-decision",
				DisplayName: "Record Decision",
				Description: "Approves or rejects an application and locks its votes",
				Category:    "review",
				TaskType:    recorddecision.TaskType,
				InputSchema: object([]string{"applicationId", "adminId", "decision"}, map[string]interface{}{
					"applicationId": str(),
					"adminId":       str(),
					"decision": map[string]interface{}{
						"type": "string",
						"enum": []interface{}{recorddecision.DecisionApprove, recorddecision.DecisionReject},
					},
					"message":               str(),
					"approvedMonthlyAmount": map[string]interface{}{"type": "number", "minimum": 0},
					"sponsorId":             str(),
				}),
				OutputSchema: object(nil, map[string]interface{}{
					"status":    str(),
					"decidedBy": str(),
					"decidedAt": str(),
				}),
				ErrorCodes: append(common, bpmn(apperrors.ErrCodeConcurrencyConflict)),
				Timeout:    "30s",
				Retries:    3,
				Tags:       []string{"workflow", "decision"},
			},
		},
	}
}

func bpmn(code apperrors.ErrorCode) string {
	return apperrors.BPMNErrorMapping[code]
}

func object(required []string, props map[string]interface{}) map[string]interface{} {
	schema := map[string]interface{}{"type": "object", "properties": props}
	if len(required) > 0 {
		req := make([]interface{}, len(required))
		for i, r := range required {
			req[i] = r
		}
		schema["required"] = req
	}
	return schema
}

func str() map[string]interface{}     { return map[string]interface{}{"type": "string"} }
func integer() map[string]interface{} { return map[string]interface{}{"type": "integer"} }
func boolean() map[string]interface{} { return map[string]interface{}{"type": "boolean"} }
