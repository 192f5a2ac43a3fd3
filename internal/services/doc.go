// Package services holds cross-cutting helpers shared by the orchestrator
// and its supporting subsystems: the error taxonomy with sentinel markers and
// disposition classification, and context annotations for entity, stage,
// duty, and correlation identifiers that the logging package lifts into
// structured fields.
package services
