package schema

// DefaultDetailType is the contract name used when nothing more specific is
// configured.
const DefaultDetailType = "WorkflowRunUpdate"

// DefaultDefinition is the schema of last resort for workflow run updates,
// used when neither the registry nor the configured fallbacks can produce a
// contract. Unknown fields remain tolerated under the default (non-strict)
// policy.
func DefaultDefinition() *Definition {
	def, err := NewDefinition(DefaultDetailType, []Field{
		{Name: "status", Required: true, Type: TypeEnum,
			Enum: []string{"DRAFT", "QUEUED", "RUNNING", "SUCCEEDED", "FAILED"}},
		{Name: "timestamp", Type: TypeString},
		{Name: "workflowRunId", Required: true, Type: TypeString},
	})
	if err != nil {
		// Static definition; construction cannot fail.
		panic(err)
	}
	return def
}
