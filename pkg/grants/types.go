package grants

// ProjectGrant records one principal's capabilities over one project.
// Exactly one of UserID or GroupID is set, matching the table the row
// came from.
type ProjectGrant struct {
	UserID  *int64 `json:"user_id,omitempty"`
	GroupID *int64 `json:"group_id,omitempty"`

	ProjectID        int64 `json:"-"`
	DeletableProject bool  `json:"deletable_project"`
	CreatableFlows   bool  `json:"creatable_flows"`
	DeletableFlows   bool  `json:"deletable_flows"`
	ReadableFlows    bool  `json:"readable_flows"`
}

// FromUser reports whether the grant came from the user table rather
// than the principal's group.
func (g *ProjectGrant) FromUser() bool {
	return g.UserID != nil
}

// FlowGrant records one principal's capabilities over one flow.
type FlowGrant struct {
	UserID  *int64 `json:"user_id,omitempty"`
	GroupID *int64 `json:"group_id,omitempty"`

	FlowID         string `json:"-"`
	ReadableFlow   bool   `json:"readable_flow"`
	UpdatableFlow  bool   `json:"updatable_flow"`
	ExecutableFlow bool   `json:"executable_flow"`
}

// FromUser reports whether the grant came from the user table.
func (g *FlowGrant) FromUser() bool {
	return g.UserID != nil
}

// OwnerProjectGrant returns the grant inserted for a project's creator:
// every capability enabled.
func OwnerProjectGrant(userID, projectID int64) *ProjectGrant {
	return &ProjectGrant{
		UserID:           &userID,
		ProjectID:        projectID,
		DeletableProject: true,
		CreatableFlows:   true,
		DeletableFlows:   true,
		ReadableFlows:    true,
	}
}

// DefaultGroupProjectGrant returns the restrictive grant inserted for
// the creator's group: read and traverse only, like a conservative
// default ACL.
func DefaultGroupProjectGrant(groupID, projectID int64) *ProjectGrant {
	return &ProjectGrant{
		GroupID:       &groupID,
		ProjectID:     projectID,
		ReadableFlows: true,
	}
}

// OwnerFlowGrant returns the grant inserted for a flow's creator:
// every capability enabled.
func OwnerFlowGrant(userID int64, flowID string) *FlowGrant {
	return &FlowGrant{
		UserID:         &userID,
		FlowID:         flowID,
		ReadableFlow:   true,
		UpdatableFlow:  true,
		ExecutableFlow: true,
	}
}

// DefaultGroupFlowGrant returns the restrictive grant inserted for the
// creator's group: read and execute, but not update.
func DefaultGroupFlowGrant(groupID int64, flowID string) *FlowGrant {
	return &FlowGrant{
		GroupID:        &groupID,
		FlowID:         flowID,
		ReadableFlow:   true,
		ExecutableFlow: true,
	}
}
