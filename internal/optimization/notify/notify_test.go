package notify

import (
	"strings"
	"testing"

	"github.com/ignite/campaign-optimizer/internal/domain"
)

func TestRenderApproval(t *testing.T) {
	n := New()
	p := &domain.OptimizationProposal{
		ID:         "p1",
		CampaignID: "c1",
		ActionType: domain.ActionBudgetReallocation,
		Status:     domain.ProposalApproved,
	}

	msg, err := n.RenderApproval(p, "ops@example.com")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"p1", "c1", "budget_reallocation", "approved", "ops@example.com"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestRenderExecution(t *testing.T) {
	n := New()
	p := &domain.OptimizationProposal{ID: "p1", ActionType: domain.ActionPauseChannel}
	e := &domain.Execution{Platform: "meta", Status: domain.ExecutionCompleted}

	msg, err := n.RenderExecution(p, e)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"p1", "meta", "pause_channel", "completed"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestWithTemplates(t *testing.T) {
	n := New().WithTemplates("ALERT {{ proposal_id }}", "")
	p := &domain.OptimizationProposal{ID: "p9", Status: domain.ProposalRejected}

	msg, err := n.RenderApproval(p, "reviewer")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if msg != "ALERT p9" {
		t.Errorf("message = %q, want custom template applied", msg)
	}

	// An empty override keeps the default executed template.
	e := &domain.Execution{Platform: "google", Status: domain.ExecutionFailed}
	msg, err = n.RenderExecution(&domain.OptimizationProposal{ID: "p9", ActionType: domain.ActionResumeChannel}, e)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(msg, "google") {
		t.Errorf("message = %q, want default executed template", msg)
	}
}

func TestRenderBadTemplateErrors(t *testing.T) {
	n := New().WithTemplates("{% if %}", "")
	if _, err := n.RenderApproval(&domain.OptimizationProposal{ID: "p1"}, "x"); err == nil {
		t.Error("expected an error for a malformed template")
	}
}
