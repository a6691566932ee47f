// Package domain contains the pure domain model for document verification.
//
//	verification/domain/
//	├── document/    # schema registry: supported types, required fields, prompts
//	├── validation/  # field completeness and date-of-birth plausibility
//	└── quality/     # image quality gate
//
// # Domain Purity
//
// Packages under domain follow the same rules:
//
//	✓ No I/O (no database, HTTP, filesystem or model access)
//	✓ No context.Context in function signatures
//	✓ No time.Now() calls - time is received as a parameter
//
// The pipeline package orchestrates these rules around the vision capability.
package domain
