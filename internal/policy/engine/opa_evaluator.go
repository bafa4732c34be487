package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	attendancedomain "presensi-praktikum/internal/attendance/domain"
	"presensi-praktikum/internal/policy/repository"
)

// Default Rego policy that matches the built-in classification rule: on time
// within the grace window, late afterwards.
const defaultRegoPolicy = `package presensi.classification

default status = "telat"

status = "hadir" if {
	input.checkin.elapsed_minutes <= input.class.grace_minutes
}
`

// OPAEvaluator classifies admitted check-ins using OPA Rego. Classes without
// a stored policy use the default policy above.
type OPAEvaluator struct {
	policyRepo repository.Repository
}

// NewOPAEvaluator returns an OPA-based classification evaluator.
func NewOPAEvaluator(policyRepo repository.Repository) *OPAEvaluator {
	return &OPAEvaluator{policyRepo: policyRepo}
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and
// evaluate the default policy. Does not call the policy repo or database.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	compiler, err := ast.CompileModules(map[string]string{"policy_0.rego": defaultRegoPolicy})
	if err != nil {
		return fmt.Errorf("compile default policy: %w", err)
	}
	q := rego.New(
		rego.Query("data.presensi.classification.status"),
		rego.Compiler(compiler),
		rego.Input(e.buildInput(ClassificationInput{})),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval default policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

// Classify evaluates the class's enabled policies against the check-in.
// Policy load or evaluation failures fall back to the built-in rule; a broken
// policy must never block a valid check-in.
func (e *OPAEvaluator) Classify(ctx context.Context, in ClassificationInput) (attendancedomain.Status, error) {
	var policies []string
	if e.policyRepo != nil && in.ClassID != "" {
		enabled, err := e.policyRepo.GetEnabledPoliciesByClass(ctx, in.ClassID)
		if err != nil {
			log.Printf("policy: failed to load policies for class %s: %v", in.ClassID, err)
		} else {
			for _, p := range enabled {
				if p.Enabled && p.Rules != "" {
					policies = append(policies, p.Rules)
				}
			}
		}
	}
	if len(policies) == 0 {
		policies = []string{defaultRegoPolicy}
	}

	status, err := e.evaluatePolicies(ctx, policies, in)
	if err != nil {
		log.Printf("policy: evaluation failed: %v, using built-in rule", err)
		return fallbackClassify(in), nil
	}
	return status, nil
}

func (e *OPAEvaluator) evaluatePolicies(ctx context.Context, policies []string, in ClassificationInput) (attendancedomain.Status, error) {
	modules := make(map[string]string)
	for i, policy := range policies {
		modules[fmt.Sprintf("policy_%d.rego", i)] = policy
	}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return "", fmt.Errorf("compile policies: %w", err)
	}

	q := rego.New(
		rego.Query("data.presensi.classification.status"),
		rego.Compiler(compiler),
		rego.Input(e.buildInput(in)),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return "", fmt.Errorf("eval policies: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return "", fmt.Errorf("policy query returned no result")
	}
	v, ok := rs[0].Expressions[0].Value.(string)
	if !ok {
		return "", fmt.Errorf("policy status is not a string: %v", rs[0].Expressions[0].Value)
	}
	status := attendancedomain.Status(v)
	if status != attendancedomain.StatusHadir && status != attendancedomain.StatusTelat {
		return "", fmt.Errorf("policy returned unexpected status %q", v)
	}
	return status, nil
}

func (e *OPAEvaluator) buildInput(in ClassificationInput) map[string]interface{} {
	return map[string]interface{}{
		"checkin": map[string]interface{}{
			"elapsed_minutes": in.Elapsed.Minutes(),
			"distance_m":      in.DistanceM,
		},
		"class": map[string]interface{}{
			"grace_minutes": in.GraceWindow.Minutes(),
			"radius_m":      in.RadiusM,
		},
	}
}

func fallbackClassify(in ClassificationInput) attendancedomain.Status {
	if in.Elapsed <= in.GraceWindow {
		return attendancedomain.StatusHadir
	}
	return attendancedomain.StatusTelat
}
