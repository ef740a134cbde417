// Package notify renders a short human-readable message whenever a proposal
// is approved or executed, using the same Liquid templating the rest of the
// codebase uses for personalization.
package notify

import (
	"fmt"

	"github.com/osteele/liquid"

	"github.com/ignite/campaign-optimizer/internal/domain"
)

const defaultApprovedTemplate = `Proposal {{ proposal_id }} for {{ campaign_id }} ({{ action_type }}) was {{ status }}{% if approved_by %} by {{ approved_by }}{% endif %}.`

const defaultExecutedTemplate = `Proposal {{ proposal_id }} executed on {{ platform }} ({{ action_type }}); result: {{ result_status }}.`

// Notifier renders proposal lifecycle events into messages. The Render
// methods return template failures to the caller and log nothing
// themselves; callers decide whether to log or ignore render failures.
type Notifier struct {
	engine           *liquid.Engine
	approvedTemplate string
	executedTemplate string
}

// New creates a Notifier with the default templates. Either template may be
// overridden for a custom deployment with WithTemplates.
func New() *Notifier {
	return &Notifier{
		engine:           liquid.NewEngine(),
		approvedTemplate: defaultApprovedTemplate,
		executedTemplate: defaultExecutedTemplate,
	}
}

// WithTemplates overrides the default approved/executed templates.
func (n *Notifier) WithTemplates(approved, executed string) *Notifier {
	if approved != "" {
		n.approvedTemplate = approved
	}
	if executed != "" {
		n.executedTemplate = executed
	}
	return n
}

// RenderApproval renders the approve/reject notification for a proposal.
func (n *Notifier) RenderApproval(p *domain.OptimizationProposal, approvedBy string) (string, error) {
	bindings := map[string]interface{}{
		"proposal_id": p.ID,
		"campaign_id": p.CampaignID,
		"action_type": string(p.ActionType),
		"status":      string(p.Status),
		"approved_by": approvedBy,
	}
	out, err := n.engine.ParseAndRenderString(n.approvedTemplate, bindings)
	if err != nil {
		return "", fmt.Errorf("render approval notification: %w", err)
	}
	return out, nil
}

// RenderExecution renders the execution-result notification for a proposal.
func (n *Notifier) RenderExecution(p *domain.OptimizationProposal, e *domain.Execution) (string, error) {
	bindings := map[string]interface{}{
		"proposal_id":   p.ID,
		"action_type":   string(p.ActionType),
		"platform":      e.Platform,
		"result_status": string(e.Status),
	}
	out, err := n.engine.ParseAndRenderString(n.executedTemplate, bindings)
	if err != nil {
		return "", fmt.Errorf("render execution notification: %w", err)
	}
	return out, nil
}
