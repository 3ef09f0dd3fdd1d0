// pkg/registry/schema.go
package registry

// ActivityRegistry describes the job workers a BPMN model can reference.
type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

type Activity struct {
	ID           string                 `json:"id"`
	DisplayName  string                 `json:"displayName"`
	Description  string                 `json:"description"`
	Category     string                 `json:"category"`
	TaskType     string                 `json:"taskType"`
	InputSchema  map[string]interface{} `json:"inputSchema"`
	OutputSchema map[string]interface{} `json:"outputSchema"`
	ErrorCodes   []string               `json:"errorCodes"`
	Timeout      string                 `json:"timeout"`
	Retries      int                    `json:"retries"`
	Tags         []string               `json:"tags"`
}

// Find returns the activity for taskType.
func (r *ActivityRegistry) Find(taskType string) (Activity, bool) {
	for _, a := range r.Activities {
		if a.TaskType == taskType {
			return a, true
		}
	}
	return Activity{}, false
}
