package applications

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("application not found")

type IncompleteApplicationError struct {
	Missing []string
}

func (e *IncompleteApplicationError) Error() string {
	return "application is incomplete: missing " + strings.Join(e.Missing, ", ")
}

// ComplianceViolationError rejects a submission on lawful-screening grounds.
type ComplianceViolationError struct {
	Rule   string
	Detail string
}

func (e *ComplianceViolationError) Error() string {
	return fmt.Sprintf("compliance violation (%s): %s", e.Rule, e.Detail)
}

// DuplicateApplicationError carries the record already on file for the applicant and unit.
type DuplicateApplicationError struct {
	Existing Record
}

func (e *DuplicateApplicationError) Error() string {
	return fmt.Sprintf("applicant %s already applied for unit %s as %s",
		e.Existing.Application.ApplicantID, e.Existing.Application.UnitID, e.Existing.ID)
}
