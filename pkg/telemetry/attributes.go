// Package telemetry provides OpenTelemetry integration for the Axon kernel:
// exporter setup, trace-aware logging, and kernel metrics.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for Axon kernel telemetry. Names follow OpenTelemetry
// conventions where applicable.
const (
	AttrSubject = "axon.subject"
	AttrTarget  = "axon.target"

	AttrTaskID  = "axon.task.id"
	AttrRuntime = "axon.task.runtime"
	AttrStatus  = "axon.task.status"

	AttrSpecID   = "axon.spec.id"
	AttrSpecKind = "axon.spec.kind"

	AttrPolicyAction = "axon.policy.action"
	AttrPolicyEffect = "axon.policy.effect"
	AttrPolicyRule   = "axon.policy.rule_id"

	AttrErrorCode = "axon.error.code"
)

// PolicyAttrs builds the standard attribute set for a policy decision.
func PolicyAttrs(action, effect, ruleID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrPolicyAction, action),
		attribute.String(AttrPolicyEffect, effect),
	}
	if ruleID != "" {
		attrs = append(attrs, attribute.String(AttrPolicyRule, ruleID))
	}
	return attrs
}
