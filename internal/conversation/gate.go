package conversation

// Facts are the authorization facts the platform adapter supplies for each message.
type Facts struct {
	AuthorID         string
	RoleIDs          []string
	MentionsEveryone bool
	HasRoleMentions  bool
	CategoryID       string
}

// Verdict explains a gate decision.
type Verdict string

const (
	Admitted           Verdict = "admitted"
	OutsideAICategory  Verdict = "outside_ai_category"
	UnprivilegedPing   Verdict = "unprivileged_mention"
	AIOperationsPaused Verdict = "ai_ops_disabled"
)

// Gate decides whether the assistant may engage with a message at all.
type Gate struct {
	categories map[string]struct{}
	privileged map[string]struct{}
}

// NewGate builds a gate over the AI-eligible categories and the roles allowed to broadcast.
func NewGate(aiCategoryIDs, privilegedRoleIDs []string) *Gate {
	return &Gate{
		categories: toSet(aiCategoryIDs),
		privileged: toSet(privilegedRoleIDs),
	}
}

// Admit applies the category scope, the mention rule and the global switch, in that order.
func (g *Gate) Admit(f Facts, aiOpsEnabled bool) Verdict {
	if !g.InAICategory(f.CategoryID) {
		return OutsideAICategory
	}
	if (f.MentionsEveryone || f.HasRoleMentions) && !g.isPrivileged(f.RoleIDs) {
		return UnprivilegedPing
	}
	if !aiOpsEnabled {
		return AIOperationsPaused
	}
	return Admitted
}

// IsPrivileged reports whether any of roleIDs is a privileged role.
func (g *Gate) IsPrivileged(roleIDs []string) bool {
	return g.isPrivileged(roleIDs)
}

// InAICategory reports whether categoryID is AI-eligible.
func (g *Gate) InAICategory(categoryID string) bool {
	_, ok := g.categories[categoryID]
	return ok && categoryID != ""
}

func (g *Gate) isPrivileged(roleIDs []string) bool {
	for _, id := range roleIDs {
		if _, ok := g.privileged[id]; ok {
			return true
		}
	}
	return false
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}
