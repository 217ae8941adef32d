package agent

import (
	"context"
	"testing"

	"github.com/shayc/relay/pkg/models"
)

// stubAgent claims a fixed set of kinds.
type stubAgent struct {
	name   string
	kinds  map[models.TaskKind]bool
	result *Result
}

func (s *stubAgent) Name() string { return s.name }

func (s *stubAgent) CanHandle(kind models.TaskKind) bool { return s.kinds[kind] }

func (s *stubAgent) Process(ctx context.Context, task *models.Task) *Result {
	if s.result != nil {
		return s.result
	}
	return Succeed("ok", nil)
}

func TestRegistry_FirstMatchWins(t *testing.T) {
	r := NewRegistry()
	first := &stubAgent{name: "first", kinds: map[models.TaskKind]bool{models.TaskKindTriage: true}}
	second := &stubAgent{name: "second", kinds: map[models.TaskKind]bool{
		models.TaskKindTriage:         true,
		models.TaskKindGeneralInquiry: true,
	}}
	r.Register(first)
	r.Register(second)

	if got := r.FindHandler(models.TaskKindTriage); got != first {
		t.Errorf("FindHandler(triage) = %v, want first registered agent", got.Name())
	}
	if got := r.FindHandler(models.TaskKindGeneralInquiry); got != second {
		t.Errorf("FindHandler(general_inquiry) = %v, want second", got)
	}
}

func TestRegistry_NoHandler(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubAgent{name: "only", kinds: map[models.TaskKind]bool{models.TaskKindTriage: true}})

	if got := r.FindHandler(models.TaskKindDocumentAnalysis); got != nil {
		t.Errorf("FindHandler for unclaimed kind = %v, want nil", got)
	}
}

func TestRegistry_GetAndNames(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubAgent{name: "alpha"})
	r.Register(&stubAgent{name: "beta"})

	if got := r.Get("beta"); got == nil || got.Name() != "beta" {
		t.Errorf("Get(beta) = %v", got)
	}
	if got := r.Get("missing"); got != nil {
		t.Errorf("Get(missing) = %v, want nil", got)
	}

	names := r.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("Names = %v, want registration order", names)
	}
}
